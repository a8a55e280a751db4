package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dex-sniper-core/internal/domain"
	"dex-sniper-core/internal/storage"
)

func createTestTrade(tradeID string, createdAt int64) *domain.ProxyTrade {
	return &domain.ProxyTrade{
		TradeID:      tradeID,
		DecisionID:   "dec-001",
		UserID:       "user-1",
		Chain:        "bsc",
		ProxyAddress: "0xproxy",
		PoolAddress:  "0xpool1",
		TokenIn:      "0xwbnb",
		TokenOut:     "0xtoken1",
		AmountIn:     0.5,
		MinAmountOut: 950.0,
		SlippagePct:  5.0,
		Status:       domain.TradeConfirmed,
		TxHash:       ptr("0xhash1"),
		Attempts:     1,
		Deadline:     createdAt + 30_000,
		CreatedAt:    createdAt,
		UpdatedAt:    createdAt + 2000,
	}
}

func TestTradeStore_InsertAndGetByID(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewTradeStore(pool)

	trade := createTestTrade("trade-001", 1000)
	require.NoError(t, store.Insert(ctx, trade))

	retrieved, err := store.GetByID(ctx, "trade-001")
	require.NoError(t, err)

	assert.Equal(t, trade.TradeID, retrieved.TradeID)
	assert.Equal(t, trade.DecisionID, retrieved.DecisionID)
	assert.Equal(t, trade.Status, retrieved.Status)
	require.NotNil(t, retrieved.TxHash)
	assert.Equal(t, "0xhash1", *retrieved.TxHash)
	assert.Nil(t, retrieved.FailReason)
	assert.InDelta(t, trade.AmountIn, retrieved.AmountIn, 0.0001)
	assert.InDelta(t, trade.MinAmountOut, retrieved.MinAmountOut, 0.0001)
	assert.Equal(t, trade.Attempts, retrieved.Attempts)
	assert.Equal(t, trade.Deadline, retrieved.Deadline)
}

func TestTradeStore_FailedTradeWithReason(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewTradeStore(pool)

	trade := createTestTrade("trade-001", 1000)
	trade.Status = domain.TradeFailed
	trade.TxHash = nil
	trade.FailReason = ptr(domain.TradeFailSubmission)
	require.NoError(t, store.Insert(ctx, trade))

	retrieved, err := store.GetByID(ctx, "trade-001")
	require.NoError(t, err)
	assert.Equal(t, domain.TradeFailed, retrieved.Status)
	assert.Nil(t, retrieved.TxHash)
	require.NotNil(t, retrieved.FailReason)
	assert.Equal(t, domain.TradeFailSubmission, *retrieved.FailReason)
}

func TestTradeStore_RejectsNonTerminal(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewTradeStore(pool)

	trade := createTestTrade("trade-001", 1000)
	trade.Status = domain.TradeSubmitted

	err := store.Insert(context.Background(), trade)
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}

func TestTradeStore_DuplicateKey(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewTradeStore(pool)

	require.NoError(t, store.Insert(ctx, createTestTrade("trade-001", 1000)))
	err := store.Insert(ctx, createTestTrade("trade-001", 2000))
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestTradeStore_GetByUserAndToken(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewTradeStore(pool)

	t1 := createTestTrade("trade-001", 1000)
	t2 := createTestTrade("trade-002", 3000)
	t3 := createTestTrade("trade-003", 2000)
	t3.TokenOut = "0xother"

	require.NoError(t, store.Insert(ctx, t1))
	require.NoError(t, store.Insert(ctx, t2))
	require.NoError(t, store.Insert(ctx, t3))

	byUser, err := store.GetByUser(ctx, "user-1", 2)
	require.NoError(t, err)
	require.Len(t, byUser, 2)
	assert.Equal(t, "trade-002", byUser[0].TradeID)
	assert.Equal(t, "trade-003", byUser[1].TradeID)

	byToken, err := store.GetByToken(ctx, "0xtoken1")
	require.NoError(t, err)
	require.Len(t, byToken, 2)
	assert.Equal(t, "trade-002", byToken[0].TradeID)
	assert.Equal(t, "trade-001", byToken[1].TradeID)
}
