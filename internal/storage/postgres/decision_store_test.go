package postgres

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dex-sniper-core/internal/domain"
	"dex-sniper-core/internal/storage"
)

func createTestDecision(decisionID, userID string, decidedAt int64) *domain.AdmissionDecision {
	return &domain.AdmissionDecision{
		DecisionID:   decisionID,
		UserID:       userID,
		ConfigID:     "cfg-1",
		Chain:        "bsc",
		PoolAddress:  "0xpool1",
		TokenQuoted:  "0xtoken1",
		Outcome:      domain.OutcomeReject,
		Reasons:      []string{domain.ReasonBuyTax},
		RiskScore:    37.5,
		RiskLevel:    domain.RiskMedium,
		InfoRevision: 2,
		DecidedAt:    decidedAt,
	}
}

func TestDecisionStore_InsertAndGetByID(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewDecisionStore(pool)

	decision := createTestDecision("dec-001", "user-1", 1000)
	require.NoError(t, store.Insert(ctx, decision))

	retrieved, err := store.GetByID(ctx, "dec-001")
	require.NoError(t, err)

	assert.Equal(t, decision.DecisionID, retrieved.DecisionID)
	assert.Equal(t, decision.UserID, retrieved.UserID)
	assert.Equal(t, decision.Outcome, retrieved.Outcome)
	assert.Equal(t, decision.Reasons, retrieved.Reasons)
	assert.InDelta(t, decision.RiskScore, retrieved.RiskScore, 0.0001)
	assert.Equal(t, decision.RiskLevel, retrieved.RiskLevel)
	assert.Equal(t, decision.InfoRevision, retrieved.InfoRevision)
	assert.Equal(t, decision.DecidedAt, retrieved.DecidedAt)
}

func TestDecisionStore_DuplicateKey(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewDecisionStore(pool)

	decision := createTestDecision("dec-001", "user-1", 1000)
	require.NoError(t, store.Insert(ctx, decision))

	err := store.Insert(ctx, decision)
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestDecisionStore_GetByIDNotFound(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewDecisionStore(pool)

	_, err := store.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestDecisionStore_GetByUser(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewDecisionStore(pool)

	for i, ts := range []int64{1000, 3000, 2000} {
		d := createTestDecision(fmt.Sprintf("dec-%03d", i), "user-1", ts)
		require.NoError(t, store.Insert(ctx, d))
	}
	require.NoError(t, store.Insert(ctx, createTestDecision("dec-other", "user-2", 9000)))

	decisions, err := store.GetByUser(ctx, "user-1", 2)
	require.NoError(t, err)
	require.Len(t, decisions, 2)
	assert.Equal(t, int64(3000), decisions[0].DecidedAt)
	assert.Equal(t, int64(2000), decisions[1].DecidedAt)
}

func TestDecisionStore_GetByPool(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewDecisionStore(pool)

	d1 := createTestDecision("dec-001", "user-1", 1000)
	d2 := createTestDecision("dec-002", "user-2", 2000)
	other := createTestDecision("dec-003", "user-1", 3000)
	other.PoolAddress = "0xelsewhere"

	require.NoError(t, store.Insert(ctx, d1))
	require.NoError(t, store.Insert(ctx, d2))
	require.NoError(t, store.Insert(ctx, other))

	decisions, err := store.GetByPool(ctx, "bsc", "0xpool1")
	require.NoError(t, err)
	require.Len(t, decisions, 2)
	assert.Equal(t, "dec-002", decisions[0].DecisionID)
	assert.Equal(t, "dec-001", decisions[1].DecisionID)
}

func TestDecisionStore_AdmitWithEmptyReasons(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewDecisionStore(pool)

	decision := createTestDecision("dec-001", "user-1", 1000)
	decision.Outcome = domain.OutcomeAdmit
	decision.Reasons = nil
	require.NoError(t, store.Insert(ctx, decision))

	retrieved, err := store.GetByID(ctx, "dec-001")
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeAdmit, retrieved.Outcome)
	assert.Empty(t, retrieved.Reasons)
}
