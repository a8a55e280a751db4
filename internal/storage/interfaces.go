package storage

import (
	"context"

	"dex-sniper-core/internal/domain"
)

// DecisionStore provides access to admission_decisions storage. Decisions
// are an append-only audit trail.
type DecisionStore interface {
	// Insert adds a new decision. Returns ErrDuplicateKey if decision_id exists.
	Insert(ctx context.Context, d *domain.AdmissionDecision) error

	// GetByID retrieves a decision by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, decisionID string) (*domain.AdmissionDecision, error)

	// GetByUser retrieves the most recent decisions for a user, newest first.
	GetByUser(ctx context.Context, userID string, limit int) ([]*domain.AdmissionDecision, error)

	// GetByPool retrieves all decisions for a pool, newest first.
	GetByPool(ctx context.Context, chain, poolAddress string) ([]*domain.AdmissionDecision, error)
}

// TradeStore provides access to proxy_trades storage. Only terminal trades
// are persisted; the dispatcher owns a trade until then.
type TradeStore interface {
	// Insert adds a terminal trade. Returns ErrDuplicateKey if trade_id
	// exists and ErrInvalidInput for a non-terminal status.
	Insert(ctx context.Context, t *domain.ProxyTrade) error

	// GetByID retrieves a trade by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, tradeID string) (*domain.ProxyTrade, error)

	// GetByUser retrieves the most recent trades for a user, newest first.
	GetByUser(ctx context.Context, userID string, limit int) ([]*domain.ProxyTrade, error)

	// GetByToken retrieves all trades buying a token, newest first.
	GetByToken(ctx context.Context, token string) ([]*domain.ProxyTrade, error)
}

// PolicyStore provides access to sniper_configs storage. Unlike the audit
// stores, configs are user-editable and upserts are allowed.
type PolicyStore interface {
	// Upsert inserts or replaces a config by config_id.
	Upsert(ctx context.Context, c *domain.SniperConfig) error

	// GetByID retrieves a config by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, configID string) (*domain.SniperConfig, error)

	// GetActiveConfigs retrieves all enabled configs applicable to a
	// chain, including configs with no chain restriction.
	GetActiveConfigs(ctx context.Context, chain string) ([]*domain.SniperConfig, error)

	// Delete removes a config. Returns ErrNotFound if not exists.
	Delete(ctx context.Context, configID string) error
}

// ObservationStore provides access to pool observation history. Raw
// per-source observations feed offline analysis of source quality.
type ObservationStore interface {
	// InsertBulk adds a batch of observations.
	InsertBulk(ctx context.Context, observations []*domain.PoolObservation) error

	// GetByPool retrieves observations for a pool within [start, end]
	// (inclusive, ms), ordered by observed_at ASC.
	GetByPool(ctx context.Context, chain, poolAddress string, start, end int64) ([]*domain.PoolObservation, error)
}
