package memory

import (
	"context"
	"sort"
	"sync"

	"dex-sniper-core/internal/domain"
	"dex-sniper-core/internal/storage"
)

// DecisionStore is an in-memory implementation of storage.DecisionStore.
type DecisionStore struct {
	mu   sync.RWMutex
	data map[string]*domain.AdmissionDecision // keyed by decision_id
}

// NewDecisionStore creates a new in-memory decision store.
func NewDecisionStore() *DecisionStore {
	return &DecisionStore{
		data: make(map[string]*domain.AdmissionDecision),
	}
}

// Compile-time interface check.
var _ storage.DecisionStore = (*DecisionStore)(nil)

// Insert adds a new decision. Returns ErrDuplicateKey if decision_id exists.
func (s *DecisionStore) Insert(_ context.Context, d *domain.AdmissionDecision) error {
	if d == nil || d.DecisionID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[d.DecisionID]; exists {
		return storage.ErrDuplicateKey
	}

	copy := *d
	s.data[d.DecisionID] = &copy
	return nil
}

// GetByID retrieves a decision by its ID. Returns ErrNotFound if not exists.
func (s *DecisionStore) GetByID(_ context.Context, decisionID string) (*domain.AdmissionDecision, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, exists := s.data[decisionID]
	if !exists {
		return nil, storage.ErrNotFound
	}
	copy := *d
	return &copy, nil
}

// GetByUser retrieves the most recent decisions for a user, newest first.
func (s *DecisionStore) GetByUser(_ context.Context, userID string, limit int) ([]*domain.AdmissionDecision, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.AdmissionDecision
	for _, d := range s.data {
		if d.UserID == userID {
			copy := *d
			result = append(result, &copy)
		}
	}
	sortDecisionsDesc(result)
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// GetByPool retrieves all decisions for a pool, newest first.
func (s *DecisionStore) GetByPool(_ context.Context, chain, poolAddress string) ([]*domain.AdmissionDecision, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.AdmissionDecision
	for _, d := range s.data {
		if d.Chain == chain && d.PoolAddress == poolAddress {
			copy := *d
			result = append(result, &copy)
		}
	}
	sortDecisionsDesc(result)
	return result, nil
}

// sortDecisionsDesc orders by decided_at DESC with decision_id as the
// tie-break so results are deterministic.
func sortDecisionsDesc(decisions []*domain.AdmissionDecision) {
	sort.Slice(decisions, func(i, j int) bool {
		if decisions[i].DecidedAt != decisions[j].DecidedAt {
			return decisions[i].DecidedAt > decisions[j].DecidedAt
		}
		return decisions[i].DecisionID < decisions[j].DecisionID
	})
}
