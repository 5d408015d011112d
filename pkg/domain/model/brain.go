package model

import "time"

// QueryResult is one ranked hit of a query
type QueryResult struct {
	ItemID     ItemID
	Content    string
	Source     Source
	Metadata   map[string]any
	Similarity float64
	CreatedAt  time.Time
}

// AddItemResult is returned by a successful ingestion
type AddItemResult struct {
	ItemID ItemID
	Status string
}

const AddItemStatusAdded = "added"

// BrainStatus summarizes an owner's store
type BrainStatus struct {
	Owner      OwnerID
	TotalItems int
	Embeddings int
	Sources    map[Source]int
	Categories int
	LastAdded  *time.Time
	SizeKB     float64
}
