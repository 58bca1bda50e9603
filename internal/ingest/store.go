package ingest

import "sync"

// Store holds the single active dataset. Replacing it is atomic; readers
// observe either the previous or the new dataset, never a mix.
type Store struct {
	mu      sync.RWMutex
	current *Dataset
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{}
}

// Current returns the active dataset or ErrNoDataset.
func (s *Store) Current() (*Dataset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return nil, ErrNoDataset
	}
	return s.current, nil
}

// Replace installs ds as the active dataset and returns the previous one.
func (s *Store) Replace(ds *Dataset) *Dataset {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.current
	s.current = ds
	return prev
}
