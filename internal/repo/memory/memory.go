// Package memory provides an in-memory RecordStore.
package memory

import (
	"context"
	"sync"

	"github.com/pkiops/pkihealth/internal/domain"
	"github.com/pkiops/pkihealth/internal/repo"
)

// Store keeps records in a slice guarded by a RWMutex.
type Store struct {
	mu      sync.RWMutex
	records []domain.Record
}

var _ repo.RecordStore = (*Store)(nil)

func New() *Store {
	return &Store{}
}

func (s *Store) Append(_ context.Context, rec domain.Record) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return nil
}

// List returns a copy so callers cannot mutate the store.
func (s *Store) List(_ context.Context) ([]domain.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Record, len(s.records))
	copy(out, s.records)
	return out, nil
}
