package interfaces

// Repository bundles the per-owner stores of the brain
type Repository interface {
	Item() ItemRepository
	Embedding() EmbeddingRepository
	Category() CategoryRepository
	Close() error
}
