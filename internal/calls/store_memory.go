package calls

import (
	"iter"
	"sync"
)

// MemoryStore keeps call records for the lifetime of the process.
// Insertion order is preserved for aggregation and display.
type MemoryStore struct {
	mu    sync.Mutex
	order []string
	byID  map[string]*Call
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byID: make(map[string]*Call)}
}

func (s *MemoryStore) Insert(c Call) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[c.ID]; ok {
		return ErrDuplicateID
	}
	cp := c
	s.byID[c.ID] = &cp
	s.order = append(s.order, c.ID)
	return nil
}

func (s *MemoryStore) FindByID(id string) (Call, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.byID[id]
	if !ok {
		return Call{}, ErrNotFound
	}
	return *c, nil
}

// All snapshots the records under the lock, then yields copies.
// A restarted iteration re-yields the same snapshot.
func (s *MemoryStore) All() iter.Seq[Call] {
	s.mu.Lock()
	snapshot := make([]Call, 0, len(s.order))
	for _, id := range s.order {
		snapshot = append(snapshot, *s.byID[id])
	}
	s.mu.Unlock()

	return func(yield func(Call) bool) {
		for _, c := range snapshot {
			if !yield(c) {
				return
			}
		}
	}
}

func (s *MemoryStore) Update(id string, fn func(*Call) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.byID[id]
	if !ok {
		return ErrNotFound
	}
	// Mutate a copy so a failed fn leaves the record untouched.
	cp := *c
	if err := fn(&cp); err != nil {
		return err
	}
	// ID and CreatedAt are immutable after insert.
	cp.ID = c.ID
	cp.CreatedAt = c.CreatedAt
	*c = cp
	return nil
}
