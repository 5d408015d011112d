package memory

import (
	"sync"

	"github.com/secmon-lab/tedbrain/pkg/domain/interfaces"
	"github.com/secmon-lab/tedbrain/pkg/domain/model"
)

// Memory is an in-process repository. Every owner gets its own shard with
// its own lock, so owners never wait on each other.
type Memory struct {
	mu     sync.Mutex
	shards map[string]*shard

	item      *itemRepository
	embedding *embeddingRepository
	category  *categoryRepository
}

var _ interfaces.Repository = &Memory{}

type shard struct {
	mu          sync.RWMutex
	items       *ordered[model.ItemID, *model.Item]
	embeddings  *ordered[model.EmbeddingID, *model.Embedding]
	categories  *ordered[model.CategoryID, *model.Category]
	assignments map[model.ItemID][]model.CategoryID
}

func newShard() *shard {
	return &shard{
		items:       newOrdered[model.ItemID, *model.Item](),
		embeddings:  newOrdered[model.EmbeddingID, *model.Embedding](),
		categories:  newOrdered[model.CategoryID, *model.Category](),
		assignments: make(map[model.ItemID][]model.CategoryID),
	}
}

func New() *Memory {
	m := &Memory{
		shards: make(map[string]*shard),
	}
	m.item = &itemRepository{m: m}
	m.embedding = &embeddingRepository{m: m}
	m.category = &categoryRepository{m: m}
	return m
}

func (m *Memory) Item() interfaces.ItemRepository {
	return m.item
}

func (m *Memory) Embedding() interfaces.EmbeddingRepository {
	return m.embedding
}

func (m *Memory) Category() interfaces.CategoryRepository {
	return m.category
}

func (m *Memory) Close() error {
	return nil
}

// shard returns the owner's shard, creating it on first use
func (m *Memory) shard(owner model.OwnerID) *shard {
	key := owner.Key()

	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.shards[key]
	if !ok {
		s = newShard()
		m.shards[key] = s
	}
	return s
}

// ordered is a map that remembers insertion order
type ordered[K comparable, V any] struct {
	keys []K
	m    map[K]V
}

func newOrdered[K comparable, V any]() *ordered[K, V] {
	return &ordered[K, V]{m: make(map[K]V)}
}

func (o *ordered[K, V]) get(k K) (V, bool) {
	v, ok := o.m[k]
	return v, ok
}

func (o *ordered[K, V]) set(k K, v V) {
	if _, ok := o.m[k]; !ok {
		o.keys = append(o.keys, k)
	}
	o.m[k] = v
}

func (o *ordered[K, V]) remove(k K) {
	if _, ok := o.m[k]; !ok {
		return
	}
	delete(o.m, k)
	for i, key := range o.keys {
		if key == k {
			o.keys = append(o.keys[:i], o.keys[i+1:]...)
			break
		}
	}
}

func (o *ordered[K, V]) len() int {
	return len(o.keys)
}

func (o *ordered[K, V]) values() []V {
	out := make([]V, 0, len(o.keys))
	for _, k := range o.keys {
		out = append(out, o.m[k])
	}
	return out
}
