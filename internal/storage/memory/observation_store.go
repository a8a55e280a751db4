package memory

import (
	"context"
	"sort"
	"sync"

	"dex-sniper-core/internal/domain"
	"dex-sniper-core/internal/storage"
)

// ObservationStore is an in-memory implementation of
// storage.ObservationStore. Observations are history, not state, so
// duplicates are accepted as-is.
type ObservationStore struct {
	mu   sync.RWMutex
	data []*domain.PoolObservation
}

// NewObservationStore creates a new in-memory observation store.
func NewObservationStore() *ObservationStore {
	return &ObservationStore{}
}

// Compile-time interface check.
var _ storage.ObservationStore = (*ObservationStore)(nil)

// InsertBulk adds a batch of observations.
func (s *ObservationStore) InsertBulk(_ context.Context, observations []*domain.PoolObservation) error {
	if len(observations) == 0 {
		return nil
	}
	for _, o := range observations {
		if o == nil || o.Chain == "" || o.PoolAddress == "" {
			return storage.ErrInvalidInput
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range observations {
		copy := *o
		s.data = append(s.data, &copy)
	}
	return nil
}

// GetByPool retrieves observations for a pool within [start, end]
// (inclusive, ms), ordered by observed_at ASC.
func (s *ObservationStore) GetByPool(_ context.Context, chain, poolAddress string, start, end int64) ([]*domain.PoolObservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.PoolObservation
	for _, o := range s.data {
		if o.Chain != chain || o.PoolAddress != poolAddress {
			continue
		}
		if o.ObservedAt < start || o.ObservedAt > end {
			continue
		}
		copy := *o
		result = append(result, &copy)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ObservedAt < result[j].ObservedAt
	})
	return result, nil
}
