package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"dex-sniper-core/internal/domain"
	"dex-sniper-core/internal/storage"
)

// TradeStore implements storage.TradeStore using PostgreSQL.
type TradeStore struct {
	pool *Pool
}

// NewTradeStore creates a new TradeStore.
func NewTradeStore(pool *Pool) *TradeStore {
	return &TradeStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TradeStore = (*TradeStore)(nil)

const tradeColumns = `
	trade_id, decision_id, user_id, chain,
	proxy_address, pool_address, token_in, token_out,
	amount_in, min_amount_out, slippage_pct,
	status, tx_hash, fail_reason,
	attempts, deadline, created_at, updated_at
`

// Insert adds a terminal trade. Returns ErrDuplicateKey if trade_id exists
// and ErrInvalidInput for a non-terminal status.
func (s *TradeStore) Insert(ctx context.Context, t *domain.ProxyTrade) error {
	if t == nil || t.TradeID == "" {
		return storage.ErrInvalidInput
	}
	if !t.Status.Terminal() {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO proxy_trades (` + tradeColumns + `)
		VALUES (
			$1, $2, $3, $4,
			$5, $6, $7, $8,
			$9, $10, $11,
			$12, $13, $14,
			$15, $16, $17, $18
		)
	`

	_, err := s.pool.Exec(ctx, query,
		t.TradeID, t.DecisionID, t.UserID, t.Chain,
		t.ProxyAddress, t.PoolAddress, t.TokenIn, t.TokenOut,
		t.AmountIn, t.MinAmountOut, t.SlippagePct,
		string(t.Status), t.TxHash, t.FailReason,
		t.Attempts, t.Deadline, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert proxy trade: %w", err)
	}
	return nil
}

// GetByID retrieves a trade by its ID. Returns ErrNotFound if not exists.
func (s *TradeStore) GetByID(ctx context.Context, tradeID string) (*domain.ProxyTrade, error) {
	query := `SELECT ` + tradeColumns + ` FROM proxy_trades WHERE trade_id = $1`

	row := s.pool.QueryRow(ctx, query, tradeID)
	t, err := scanTrade(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get trade by id: %w", err)
	}
	return t, nil
}

// GetByUser retrieves the most recent trades for a user, newest first.
func (s *TradeStore) GetByUser(ctx context.Context, userID string, limit int) ([]*domain.ProxyTrade, error) {
	query := `
		SELECT ` + tradeColumns + `
		FROM proxy_trades
		WHERE user_id = $1
		ORDER BY created_at DESC, trade_id ASC
	`
	args := []interface{}{userID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("get trades by user: %w", err)
	}
	defer rows.Close()

	return scanTrades(rows)
}

// GetByToken retrieves all trades buying a token, newest first.
func (s *TradeStore) GetByToken(ctx context.Context, token string) ([]*domain.ProxyTrade, error) {
	query := `
		SELECT ` + tradeColumns + `
		FROM proxy_trades
		WHERE token_out = $1
		ORDER BY created_at DESC, trade_id ASC
	`

	rows, err := s.pool.Query(ctx, query, token)
	if err != nil {
		return nil, fmt.Errorf("get trades by token: %w", err)
	}
	defer rows.Close()

	return scanTrades(rows)
}

func scanTrade(row pgx.Row) (*domain.ProxyTrade, error) {
	var t domain.ProxyTrade
	var status string
	err := row.Scan(
		&t.TradeID, &t.DecisionID, &t.UserID, &t.Chain,
		&t.ProxyAddress, &t.PoolAddress, &t.TokenIn, &t.TokenOut,
		&t.AmountIn, &t.MinAmountOut, &t.SlippagePct,
		&status, &t.TxHash, &t.FailReason,
		&t.Attempts, &t.Deadline, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	t.Status = domain.TradeStatus(status)
	return &t, nil
}

func scanTrades(rows pgx.Rows) ([]*domain.ProxyTrade, error) {
	var result []*domain.ProxyTrade
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("scan trade: %w", err)
		}
		result = append(result, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trades: %w", err)
	}
	return result, nil
}
