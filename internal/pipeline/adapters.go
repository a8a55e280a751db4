package pipeline

import (
	"context"

	"dex-sniper-core/internal/domain"
	"dex-sniper-core/internal/storage"
)

// StoreDecisionRecorder adapts a DecisionStore to the admission
// controller's recorder interface.
type StoreDecisionRecorder struct {
	Store storage.DecisionStore
}

func (r StoreDecisionRecorder) SaveDecision(ctx context.Context, decision *domain.AdmissionDecision) error {
	return r.Store.Insert(ctx, decision)
}

// StoreTradeRecorder adapts a TradeStore to the dispatcher's recorder
// interface. The dispatcher only hands over terminal trades, which is
// what the store accepts.
type StoreTradeRecorder struct {
	Store storage.TradeStore
}

func (r StoreTradeRecorder) SaveTrade(ctx context.Context, trade *domain.ProxyTrade) error {
	return r.Store.Insert(ctx, trade)
}
