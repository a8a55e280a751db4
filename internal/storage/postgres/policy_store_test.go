package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dex-sniper-core/internal/domain"
	"dex-sniper-core/internal/storage"
)

func createTestConfig(configID, chain string, enabled bool) *domain.SniperConfig {
	return &domain.SniperConfig{
		ConfigID:        configID,
		UserID:          "user-1",
		Chain:           chain,
		Enabled:         enabled,
		MaxBuyTaxPct:    10,
		MaxSellTaxPct:   10,
		MinLiquidityUSD: 5000,
		HoneypotCheck:   true,
		Blacklist:       []string{"0xbad1", "0xbad2"},
		ProxyWallet:     "0xproxy",
		QuoteToken:      "0xwbnb",
		MaxBuyAmount:    0.5,
		MaxSlippagePct:  5,
	}
}

func TestPolicyStore_UpsertAndGetByID(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewPolicyStore(pool)

	cfg := createTestConfig("cfg-001", "bsc", true)
	require.NoError(t, store.Upsert(ctx, cfg))

	retrieved, err := store.GetByID(ctx, "cfg-001")
	require.NoError(t, err)

	assert.Equal(t, cfg.UserID, retrieved.UserID)
	assert.Equal(t, cfg.Chain, retrieved.Chain)
	assert.True(t, retrieved.Enabled)
	assert.True(t, retrieved.HoneypotCheck)
	assert.Equal(t, []string{"0xbad1", "0xbad2"}, retrieved.Blacklist)
	assert.Empty(t, retrieved.Whitelist)
	assert.InDelta(t, cfg.MinLiquidityUSD, retrieved.MinLiquidityUSD, 0.0001)

	// Upsert replaces the existing row
	cfg.MaxBuyAmount = 1.5
	cfg.Enabled = false
	require.NoError(t, store.Upsert(ctx, cfg))

	retrieved, err = store.GetByID(ctx, "cfg-001")
	require.NoError(t, err)
	assert.InDelta(t, 1.5, retrieved.MaxBuyAmount, 0.0001)
	assert.False(t, retrieved.Enabled)
}

func TestPolicyStore_GetActiveConfigs(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewPolicyStore(pool)

	require.NoError(t, store.Upsert(ctx, createTestConfig("cfg-bsc", "bsc", true)))
	require.NoError(t, store.Upsert(ctx, createTestConfig("cfg-any", "", true)))
	require.NoError(t, store.Upsert(ctx, createTestConfig("cfg-sol", "solana", true)))
	require.NoError(t, store.Upsert(ctx, createTestConfig("cfg-off", "bsc", false)))

	configs, err := store.GetActiveConfigs(ctx, "bsc")
	require.NoError(t, err)
	require.Len(t, configs, 2)
	assert.Equal(t, "cfg-any", configs[0].ConfigID)
	assert.Equal(t, "cfg-bsc", configs[1].ConfigID)
}

func TestPolicyStore_Delete(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewPolicyStore(pool)

	require.NoError(t, store.Upsert(ctx, createTestConfig("cfg-001", "bsc", true)))
	require.NoError(t, store.Delete(ctx, "cfg-001"))

	_, err := store.GetByID(ctx, "cfg-001")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	err = store.Delete(ctx, "cfg-001")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
