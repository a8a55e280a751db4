package memory

import (
	"context"
	"sort"
	"sync"

	"dex-sniper-core/internal/domain"
	"dex-sniper-core/internal/storage"
)

// PolicyStore is an in-memory implementation of storage.PolicyStore.
type PolicyStore struct {
	mu   sync.RWMutex
	data map[string]*domain.SniperConfig // keyed by config_id
}

// NewPolicyStore creates a new in-memory policy store.
func NewPolicyStore() *PolicyStore {
	return &PolicyStore{
		data: make(map[string]*domain.SniperConfig),
	}
}

// Compile-time interface check.
var _ storage.PolicyStore = (*PolicyStore)(nil)

// Upsert inserts or replaces a config by config_id.
func (s *PolicyStore) Upsert(_ context.Context, c *domain.SniperConfig) error {
	if c == nil || c.ConfigID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	copy := *c
	copy.Blacklist = append([]string(nil), c.Blacklist...)
	copy.Whitelist = append([]string(nil), c.Whitelist...)
	s.data[c.ConfigID] = &copy
	return nil
}

// GetByID retrieves a config by its ID. Returns ErrNotFound if not exists.
func (s *PolicyStore) GetByID(_ context.Context, configID string) (*domain.SniperConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, exists := s.data[configID]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return copyConfig(c), nil
}

// GetActiveConfigs retrieves all enabled configs applicable to a chain.
// Configs with no chain restriction always apply.
func (s *PolicyStore) GetActiveConfigs(_ context.Context, chain string) ([]*domain.SniperConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.SniperConfig
	for _, c := range s.data {
		if !c.Enabled {
			continue
		}
		if c.Chain != "" && c.Chain != chain {
			continue
		}
		result = append(result, copyConfig(c))
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ConfigID < result[j].ConfigID
	})
	return result, nil
}

// Delete removes a config. Returns ErrNotFound if not exists.
func (s *PolicyStore) Delete(_ context.Context, configID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[configID]; !exists {
		return storage.ErrNotFound
	}
	delete(s.data, configID)
	return nil
}

func copyConfig(c *domain.SniperConfig) *domain.SniperConfig {
	copy := *c
	copy.Blacklist = append([]string(nil), c.Blacklist...)
	copy.Whitelist = append([]string(nil), c.Whitelist...)
	return &copy
}
