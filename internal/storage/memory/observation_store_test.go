package memory

import (
	"context"
	"errors"
	"testing"

	"dex-sniper-core/internal/domain"
	"dex-sniper-core/internal/storage"
)

func obs(source string, observedAt int64) *domain.PoolObservation {
	liq := 1000.0
	return &domain.PoolObservation{
		Chain:        "bsc",
		PoolAddress:  "0xpool",
		SourceID:     source,
		LiquidityUSD: &liq,
		ObservedAt:   observedAt,
	}
}

func TestObservationStore_InsertBulkAndQuery(t *testing.T) {
	store := NewObservationStore()
	ctx := context.Background()

	batch := []*domain.PoolObservation{
		obs("dexscreener", 3000),
		obs("gmgn", 1000),
		obs("gmgn", 2000),
	}
	if err := store.InsertBulk(ctx, batch); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	got, err := store.GetByPool(ctx, "bsc", "0xpool", 1000, 2500)
	if err != nil {
		t.Fatalf("GetByPool failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 observations, got %d", len(got))
	}
	if got[0].ObservedAt != 1000 || got[1].ObservedAt != 2000 {
		t.Errorf("wrong order: %d, %d", got[0].ObservedAt, got[1].ObservedAt)
	}
}

func TestObservationStore_InvalidInput(t *testing.T) {
	store := NewObservationStore()

	err := store.InsertBulk(context.Background(), []*domain.PoolObservation{{Chain: "bsc"}})
	if !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput, got %v", err)
	}
}
