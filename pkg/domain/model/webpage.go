package model

import "time"

// WebPage is what the URL enrichment extracts from a page
type WebPage struct {
	URL         string
	Domain      string
	Title       string
	Description string
	Text        string
	ExtractedAt time.Time
}
