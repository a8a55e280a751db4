// Package admission matches risk-screened pools against user sniper configs.
// Each enabled config is a fixed ordered gate chain; a pool must pass every
// gate to be admitted. Decisions are append-only audit records and exactly
// one admission per (user, pool) pair may be in flight at a time.
package admission

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"dex-sniper-core/internal/domain"
	"dex-sniper-core/internal/idhash"
)

// ErrStaleAssessment means the pool's token info changed after the
// assessment was computed. The caller re-screens and retries.
var ErrStaleAssessment = errors.New("assessment is stale for pool revision")

// ConfigSource supplies the sniper configs active for a chain. The
// controller takes a fresh snapshot each evaluation and never mutates it.
type ConfigSource interface {
	GetActiveConfigs(ctx context.Context, chain string) ([]*domain.SniperConfig, error)
}

// DecisionRecorder persists admission decisions. Append-only.
type DecisionRecorder interface {
	SaveDecision(ctx context.Context, decision *domain.AdmissionDecision) error
}

// Admission is one admitted (pool, config) pair handed to the dispatcher.
type Admission struct {
	Decision   *domain.AdmissionDecision
	Config     *domain.SniperConfig
	Pool       *domain.Pool
	Assessment *domain.RiskAssessment
}

// Result holds everything one evaluation produced. Decisions covers both
// outcomes; Admitted only the pairs that passed every gate.
type Result struct {
	Decisions []*domain.AdmissionDecision
	Admitted  []*Admission
}

// Controller evaluates pools against sniper configs.
type Controller struct {
	configs  ConfigSource
	recorder DecisionRecorder // optional
	logger   *log.Logger
	now      func() int64

	// FailClosed rejects with reason "oracle_unavailable" when the
	// security oracle could not be consulted and the config asks for a
	// honeypot check. Default is fail-open: heuristics alone decide.
	failClosed bool

	mu       sync.Mutex
	inflight map[inflightKey]struct{}
}

type inflightKey struct {
	userID string
	pool   domain.PoolKey
}

// Options configures a Controller.
type Options struct {
	Configs    ConfigSource
	Recorder   DecisionRecorder
	FailClosed bool
	Logger     *log.Logger
	Now        func() int64
}

// NewController creates a Controller.
func NewController(opts Options) *Controller {
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.Now == nil {
		opts.Now = func() int64 { return time.Now().UnixMilli() }
	}
	return &Controller{
		configs:    opts.Configs,
		recorder:   opts.Recorder,
		logger:     opts.Logger,
		now:        opts.Now,
		failClosed: opts.FailClosed,
		inflight:   make(map[inflightKey]struct{}),
	}
}

// Evaluate runs every active config for the pool's chain through the gate
// chain. Invalid configs are logged and skipped for the whole cycle. Pairs
// already in flight are skipped without a new decision.
func (c *Controller) Evaluate(ctx context.Context, pool *domain.Pool, assessment *domain.RiskAssessment) (*Result, error) {
	if assessment.InfoRevision != pool.InfoRevision {
		return nil, fmt.Errorf("%w: assessed rev %d, pool rev %d",
			ErrStaleAssessment, assessment.InfoRevision, pool.InfoRevision)
	}

	configs, err := c.configs.GetActiveConfigs(ctx, pool.Chain)
	if err != nil {
		return nil, fmt.Errorf("load configs for %s: %w", pool.Chain, err)
	}

	decidedAt := c.now()
	result := &Result{}

	for _, cfg := range configs {
		if !cfg.Enabled || (cfg.Chain != "" && cfg.Chain != pool.Chain) {
			continue
		}
		if err := cfg.Validate(); err != nil {
			c.logger.Printf("[admission] skipping config %s: %v", cfg.ConfigID, err)
			continue
		}

		key := inflightKey{userID: cfg.UserID, pool: pool.Key()}
		if c.isInflight(key) {
			continue
		}

		decision := c.decide(pool, assessment, cfg, decidedAt)
		result.Decisions = append(result.Decisions, decision)

		if c.recorder != nil {
			if err := c.recorder.SaveDecision(ctx, decision); err != nil {
				c.logger.Printf("[admission] persist decision %s: %v", decision.DecisionID, err)
			}
		}

		if decision.Outcome == domain.OutcomeAdmit {
			c.markInflight(key)
			result.Admitted = append(result.Admitted, &Admission{
				Decision:   decision,
				Config:     cfg,
				Pool:       pool,
				Assessment: assessment,
			})
		}
	}
	return result, nil
}

// Release frees the (user, pool) slot after the trade reached a terminal
// state. A later evaluation of the same pair starts a fresh cycle.
func (c *Controller) Release(userID string, pool domain.PoolKey) {
	c.mu.Lock()
	delete(c.inflight, inflightKey{userID: userID, pool: pool})
	c.mu.Unlock()
}

func (c *Controller) isInflight(key inflightKey) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.inflight[key]
	return ok
}

func (c *Controller) markInflight(key inflightKey) {
	c.mu.Lock()
	c.inflight[key] = struct{}{}
	c.mu.Unlock()
}

// decide runs the gate chain and builds the decision record. Only the first
// failing gate's reason is recorded.
func (c *Controller) decide(pool *domain.Pool, assessment *domain.RiskAssessment, cfg *domain.SniperConfig, decidedAt int64) *domain.AdmissionDecision {
	decision := &domain.AdmissionDecision{
		DecisionID: idhash.ComputeDecisionID(
			cfg.UserID, cfg.ConfigID, pool.Chain, pool.PoolAddress,
			pool.InfoRevision, decidedAt),
		UserID:       cfg.UserID,
		ConfigID:     cfg.ConfigID,
		Chain:        pool.Chain,
		PoolAddress:  pool.PoolAddress,
		TokenQuoted:  pool.BaseToken,
		Outcome:      domain.OutcomeAdmit,
		RiskScore:    assessment.Score,
		RiskLevel:    assessment.Level,
		InfoRevision: pool.InfoRevision,
		DecidedAt:    decidedAt,
	}

	if reason, ok := firstFailingGate(pool, assessment, cfg, c.failClosed); !ok {
		decision.Outcome = domain.OutcomeReject
		decision.Reasons = []string{reason}
	}
	return decision
}

// firstFailingGate walks the gate chain in its fixed order and returns the
// first failing gate's reason. ok is true when every gate passed.
func firstFailingGate(pool *domain.Pool, assessment *domain.RiskAssessment, cfg *domain.SniperConfig, failClosed bool) (reason string, ok bool) {
	info := &pool.TokenInfo
	token := pool.BaseToken

	if pool.Stale {
		return domain.ReasonStale, false
	}
	if cfg.Blacklisted(token) {
		return domain.ReasonBlacklist, false
	}
	if !cfg.Whitelisted(token) {
		return domain.ReasonWhitelist, false
	}
	// Exactly the configured minimum is enough.
	if pool.LiquidityUSD < cfg.MinLiquidityUSD {
		return domain.ReasonLiquidity, false
	}
	if cfg.MaxBuyTaxPct > 0 && info.BuyTaxPct != nil && *info.BuyTaxPct > cfg.MaxBuyTaxPct {
		return domain.ReasonBuyTax, false
	}
	if cfg.MaxSellTaxPct > 0 && info.SellTaxPct != nil && *info.SellTaxPct > cfg.MaxSellTaxPct {
		return domain.ReasonSellTax, false
	}
	if cfg.MinMarketCapUSD > 0 && pool.MarketCapUSD < cfg.MinMarketCapUSD {
		return domain.ReasonMarketCap, false
	}
	if cfg.MaxMarketCapUSD > 0 && pool.MarketCapUSD > cfg.MaxMarketCapUSD {
		return domain.ReasonMarketCap, false
	}
	if cfg.HoneypotCheck {
		if failClosed && !assessment.OracleChecked {
			return domain.ReasonOracle, false
		}
		if info.Honeypot != nil && *info.Honeypot {
			return domain.ReasonHoneypot, false
		}
		if assessment.Level == domain.RiskCritical {
			return domain.ReasonHoneypot, false
		}
	}
	if cfg.LockCheck {
		// An unproven lock fails the gate; this one signal is opt-in
		// precisely because providers rarely report it.
		if info.LockPct == nil || *info.LockPct < cfg.MinLockPct {
			return domain.ReasonLock, false
		}
	}
	return "", true
}
