package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"dex-sniper-core/internal/domain"
	"dex-sniper-core/internal/storage"
)

// PolicyStore implements storage.PolicyStore using PostgreSQL.
type PolicyStore struct {
	pool *Pool
}

// NewPolicyStore creates a new PolicyStore.
func NewPolicyStore(pool *Pool) *PolicyStore {
	return &PolicyStore{pool: pool}
}

// Compile-time interface check.
var _ storage.PolicyStore = (*PolicyStore)(nil)

const configColumns = `
	config_id, user_id, chain, enabled,
	max_buy_tax_pct, max_sell_tax_pct, min_liquidity_usd,
	min_market_cap_usd, max_market_cap_usd,
	honeypot_check, lock_check, min_lock_pct,
	blacklist, whitelist,
	proxy_wallet, quote_token, max_buy_amount, max_slippage_pct
`

// Upsert inserts or replaces a config by config_id.
func (s *PolicyStore) Upsert(ctx context.Context, c *domain.SniperConfig) error {
	if c == nil || c.ConfigID == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO sniper_configs (` + configColumns + `)
		VALUES (
			$1, $2, $3, $4,
			$5, $6, $7,
			$8, $9,
			$10, $11, $12,
			$13, $14,
			$15, $16, $17, $18
		)
		ON CONFLICT (config_id) DO UPDATE SET
			user_id = EXCLUDED.user_id,
			chain = EXCLUDED.chain,
			enabled = EXCLUDED.enabled,
			max_buy_tax_pct = EXCLUDED.max_buy_tax_pct,
			max_sell_tax_pct = EXCLUDED.max_sell_tax_pct,
			min_liquidity_usd = EXCLUDED.min_liquidity_usd,
			min_market_cap_usd = EXCLUDED.min_market_cap_usd,
			max_market_cap_usd = EXCLUDED.max_market_cap_usd,
			honeypot_check = EXCLUDED.honeypot_check,
			lock_check = EXCLUDED.lock_check,
			min_lock_pct = EXCLUDED.min_lock_pct,
			blacklist = EXCLUDED.blacklist,
			whitelist = EXCLUDED.whitelist,
			proxy_wallet = EXCLUDED.proxy_wallet,
			quote_token = EXCLUDED.quote_token,
			max_buy_amount = EXCLUDED.max_buy_amount,
			max_slippage_pct = EXCLUDED.max_slippage_pct
	`

	_, err := s.pool.Exec(ctx, query,
		c.ConfigID, c.UserID, c.Chain, c.Enabled,
		c.MaxBuyTaxPct, c.MaxSellTaxPct, c.MinLiquidityUSD,
		c.MinMarketCapUSD, c.MaxMarketCapUSD,
		c.HoneypotCheck, c.LockCheck, c.MinLockPct,
		c.Blacklist, c.Whitelist,
		c.ProxyWallet, c.QuoteToken, c.MaxBuyAmount, c.MaxSlippagePct,
	)
	if err != nil {
		return fmt.Errorf("upsert sniper config: %w", err)
	}
	return nil
}

// GetByID retrieves a config by its ID. Returns ErrNotFound if not exists.
func (s *PolicyStore) GetByID(ctx context.Context, configID string) (*domain.SniperConfig, error) {
	query := `SELECT ` + configColumns + ` FROM sniper_configs WHERE config_id = $1`

	row := s.pool.QueryRow(ctx, query, configID)
	c, err := scanConfig(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get config by id: %w", err)
	}
	return c, nil
}

// GetActiveConfigs retrieves all enabled configs applicable to a chain,
// including configs with no chain restriction.
func (s *PolicyStore) GetActiveConfigs(ctx context.Context, chain string) ([]*domain.SniperConfig, error) {
	query := `
		SELECT ` + configColumns + `
		FROM sniper_configs
		WHERE enabled AND (chain = '' OR chain = $1)
		ORDER BY config_id ASC
	`

	rows, err := s.pool.Query(ctx, query, chain)
	if err != nil {
		return nil, fmt.Errorf("get active configs: %w", err)
	}
	defer rows.Close()

	var result []*domain.SniperConfig
	for rows.Next() {
		c, err := scanConfig(rows)
		if err != nil {
			return nil, fmt.Errorf("scan config: %w", err)
		}
		result = append(result, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate configs: %w", err)
	}
	return result, nil
}

// Delete removes a config. Returns ErrNotFound if not exists.
func (s *PolicyStore) Delete(ctx context.Context, configID string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM sniper_configs WHERE config_id = $1`, configID)
	if err != nil {
		return fmt.Errorf("delete config: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func scanConfig(row pgx.Row) (*domain.SniperConfig, error) {
	var c domain.SniperConfig
	err := row.Scan(
		&c.ConfigID, &c.UserID, &c.Chain, &c.Enabled,
		&c.MaxBuyTaxPct, &c.MaxSellTaxPct, &c.MinLiquidityUSD,
		&c.MinMarketCapUSD, &c.MaxMarketCapUSD,
		&c.HoneypotCheck, &c.LockCheck, &c.MinLockPct,
		&c.Blacklist, &c.Whitelist,
		&c.ProxyWallet, &c.QuoteToken, &c.MaxBuyAmount, &c.MaxSlippagePct,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}
