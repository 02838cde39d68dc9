package store

import (
	"context"
	"sort"
	"sync"

	"github.com/rotisserie/eris"

	"github.com/sells-group/bankscan/internal/model"
)

// MemoryStore keeps batches in process memory. Record slices are copied on
// the way in and out.
type MemoryStore struct {
	mu      sync.RWMutex
	batches map[string]*model.Batch
	order   []string
}

// NewMemory creates an empty MemoryStore.
func NewMemory() *MemoryStore {
	return &MemoryStore{batches: make(map[string]*model.Batch)}
}

func (s *MemoryStore) Migrate(context.Context) error { return nil }
func (s *MemoryStore) Close() error                  { return nil }

func (s *MemoryStore) SaveBatch(_ context.Context, batch *model.Batch) error {
	if batch == nil || batch.ID == "" {
		return eris.New("memory: batch id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.batches[batch.ID]; !ok {
		s.order = append(s.order, batch.ID)
	}
	s.batches[batch.ID] = cloneBatch(batch)
	return nil
}

func (s *MemoryStore) GetBatch(_ context.Context, id string) (*model.Batch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.batches[id]
	if !ok {
		return nil, eris.Wrapf(ErrNotFound, "memory: get batch %s", id)
	}
	return cloneBatch(b), nil
}

func (s *MemoryStore) LatestBatch(ctx context.Context) (*model.Batch, error) {
	s.mu.RLock()
	ids := s.sortedIDs()
	s.mu.RUnlock()

	if len(ids) == 0 {
		return nil, eris.Wrap(ErrNotFound, "memory: latest batch")
	}
	return s.GetBatch(ctx, ids[0])
}

func (s *MemoryStore) ListBatches(_ context.Context, limit int) ([]model.BatchSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.sortedIDs()
	if n := listLimit(limit); len(ids) > n {
		ids = ids[:n]
	}
	out := make([]model.BatchSummary, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.batches[id].Summary())
	}
	return out, nil
}

// sortedIDs returns IDs newest first; insertion order breaks ties.
func (s *MemoryStore) sortedIDs() []string {
	ids := make([]string, len(s.order))
	for i, id := range s.order {
		ids[len(ids)-1-i] = id
	}
	sort.SliceStable(ids, func(i, j int) bool {
		return s.batches[ids[i]].CreatedAt.After(s.batches[ids[j]].CreatedAt)
	})
	return ids
}

func cloneBatch(b *model.Batch) *model.Batch {
	c := *b
	c.Records = make([]model.ExtractedRecord, len(b.Records))
	copy(c.Records, b.Records)
	for i := range c.Records {
		if frags := b.Records[i].TextFragments; frags != nil {
			c.Records[i].TextFragments = append([]model.TextFragment(nil), frags...)
		}
	}
	return &c
}
