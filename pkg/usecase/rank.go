package usecase

import (
	"context"
	"math"
	"sort"

	"github.com/secmon-lab/tedbrain/pkg/domain/model"
	"github.com/secmon-lab/tedbrain/pkg/utils/logging"
)

type scoredItem struct {
	itemID     model.ItemID
	similarity float64
}

// cosineSimilarity returns 0 when either vector has zero norm
func cosineSimilarity(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// rankEmbeddings scores every vector against query, highest first. Equal
// scores keep the order of embeddings.
func rankEmbeddings(ctx context.Context, query []float32, embeddings []*model.Embedding) []scoredItem {
	scored := make([]scoredItem, 0, len(embeddings))
	for _, e := range embeddings {
		if len(e.Vector) != len(query) {
			logging.From(ctx).Warn("skipping embedding with mismatched dimension",
				"item_id", e.ItemID,
				"expected", len(query),
				"actual", len(e.Vector),
			)
			continue
		}
		scored = append(scored, scoredItem{
			itemID:     e.ItemID,
			similarity: cosineSimilarity(query, e.Vector),
		})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].similarity > scored[j].similarity
	})
	return scored
}
