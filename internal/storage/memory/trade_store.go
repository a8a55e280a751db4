package memory

import (
	"context"
	"sort"
	"sync"

	"dex-sniper-core/internal/domain"
	"dex-sniper-core/internal/storage"
)

// TradeStore is an in-memory implementation of storage.TradeStore.
type TradeStore struct {
	mu   sync.RWMutex
	data map[string]*domain.ProxyTrade // keyed by trade_id
}

// NewTradeStore creates a new in-memory trade store.
func NewTradeStore() *TradeStore {
	return &TradeStore{
		data: make(map[string]*domain.ProxyTrade),
	}
}

// Compile-time interface check.
var _ storage.TradeStore = (*TradeStore)(nil)

// Insert adds a terminal trade. Returns ErrDuplicateKey if trade_id exists
// and ErrInvalidInput for a non-terminal status.
func (s *TradeStore) Insert(_ context.Context, t *domain.ProxyTrade) error {
	if t == nil || t.TradeID == "" {
		return storage.ErrInvalidInput
	}
	if !t.Status.Terminal() {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[t.TradeID]; exists {
		return storage.ErrDuplicateKey
	}

	copy := *t
	s.data[t.TradeID] = &copy
	return nil
}

// GetByID retrieves a trade by its ID. Returns ErrNotFound if not exists.
func (s *TradeStore) GetByID(_ context.Context, tradeID string) (*domain.ProxyTrade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, exists := s.data[tradeID]
	if !exists {
		return nil, storage.ErrNotFound
	}
	copy := *t
	return &copy, nil
}

// GetByUser retrieves the most recent trades for a user, newest first.
func (s *TradeStore) GetByUser(_ context.Context, userID string, limit int) ([]*domain.ProxyTrade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.ProxyTrade
	for _, t := range s.data {
		if t.UserID == userID {
			copy := *t
			result = append(result, &copy)
		}
	}
	sortTradesDesc(result)
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// GetByToken retrieves all trades buying a token, newest first.
func (s *TradeStore) GetByToken(_ context.Context, token string) ([]*domain.ProxyTrade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.ProxyTrade
	for _, t := range s.data {
		if t.TokenOut == token {
			copy := *t
			result = append(result, &copy)
		}
	}
	sortTradesDesc(result)
	return result, nil
}

func sortTradesDesc(trades []*domain.ProxyTrade) {
	sort.Slice(trades, func(i, j int) bool {
		if trades[i].CreatedAt != trades[j].CreatedAt {
			return trades[i].CreatedAt > trades[j].CreatedAt
		}
		return trades[i].TradeID < trades[j].TradeID
	})
}
