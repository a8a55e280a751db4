package clickhouse

import (
	"context"
	"fmt"

	"dex-sniper-core/internal/domain"
	"dex-sniper-core/internal/storage"
)

// ObservationStore implements storage.ObservationStore using ClickHouse.
// Observations are raw source history; the MergeTree table accepts
// duplicates and queries deduplicate nothing.
type ObservationStore struct {
	conn *Conn
}

// NewObservationStore creates a new ObservationStore.
func NewObservationStore(conn *Conn) *ObservationStore {
	return &ObservationStore{conn: conn}
}

// Compile-time interface check.
var _ storage.ObservationStore = (*ObservationStore)(nil)

// InsertBulk adds a batch of observations.
func (s *ObservationStore) InsertBulk(ctx context.Context, observations []*domain.PoolObservation) error {
	if len(observations) == 0 {
		return nil
	}
	for _, o := range observations {
		if o == nil || o.Chain == "" || o.PoolAddress == "" {
			return storage.ErrInvalidInput
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO pool_observations (
			chain, pool_address, exchange, source_id,
			base_token, quote_token,
			base_reserve, quote_reserve, liquidity_usd, price_usd, market_cap_usd,
			created_at, observed_at
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, o := range observations {
		err = batch.Append(
			o.Chain, o.PoolAddress, o.Exchange, o.SourceID,
			o.BaseToken, o.QuoteToken,
			o.BaseReserve, o.QuoteReserve, o.LiquidityUSD, o.PriceUSD, o.MarketCapUSD,
			uint64(o.CreatedAt), uint64(o.ObservedAt),
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByPool retrieves observations for a pool within [start, end]
// (inclusive, ms), ordered by observed_at ASC.
func (s *ObservationStore) GetByPool(ctx context.Context, chain, poolAddress string, start, end int64) ([]*domain.PoolObservation, error) {
	query := `
		SELECT chain, pool_address, exchange, source_id,
		       base_token, quote_token,
		       base_reserve, quote_reserve, liquidity_usd, price_usd, market_cap_usd,
		       created_at, observed_at
		FROM pool_observations
		WHERE chain = ? AND pool_address = ? AND observed_at BETWEEN ? AND ?
		ORDER BY observed_at ASC
	`

	rows, err := s.conn.Query(ctx, query, chain, poolAddress, uint64(start), uint64(end))
	if err != nil {
		return nil, fmt.Errorf("query observations: %w", err)
	}
	defer rows.Close()

	var result []*domain.PoolObservation
	for rows.Next() {
		var o domain.PoolObservation
		var createdAt, observedAt uint64
		err := rows.Scan(
			&o.Chain, &o.PoolAddress, &o.Exchange, &o.SourceID,
			&o.BaseToken, &o.QuoteToken,
			&o.BaseReserve, &o.QuoteReserve, &o.LiquidityUSD, &o.PriceUSD, &o.MarketCapUSD,
			&createdAt, &observedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan observation: %w", err)
		}
		o.CreatedAt = int64(createdAt)
		o.ObservedAt = int64(observedAt)
		result = append(result, &o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate observations: %w", err)
	}

	return result, nil
}
