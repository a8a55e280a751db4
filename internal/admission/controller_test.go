package admission

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"

	"dex-sniper-core/internal/domain"
)

type staticConfigs struct {
	configs []*domain.SniperConfig
	err     error
}

func (s *staticConfigs) GetActiveConfigs(_ context.Context, _ string) ([]*domain.SniperConfig, error) {
	return s.configs, s.err
}

type memRecorder struct {
	saved []*domain.AdmissionDecision
}

func (m *memRecorder) SaveDecision(_ context.Context, d *domain.AdmissionDecision) error {
	m.saved = append(m.saved, d)
	return nil
}

func fp(v float64) *float64 { return &v }
func bp(v bool) *bool       { return &v }

func basePool() *domain.Pool {
	return &domain.Pool{
		Chain:        "bsc",
		PoolAddress:  "0xpool1",
		Exchange:     "pancakeswap",
		BaseToken:    "0xtoken1",
		QuoteToken:   "0xwbnb",
		LiquidityUSD: 10,
		MarketCapUSD: 50000,
		InfoRevision: 1,
		TokenInfo: domain.BaseTokenInfo{
			Address:    "0xtoken1",
			BuyTaxPct:  fp(5),
			SellTaxPct: fp(5),
			Honeypot:   bp(false),
			LockPct:    fp(90),
		},
	}
}

func baseConfig() *domain.SniperConfig {
	return &domain.SniperConfig{
		ConfigID:        "cfg-1",
		UserID:          "user-1",
		Chain:           "bsc",
		Enabled:         true,
		MaxBuyTaxPct:    10,
		MaxSellTaxPct:   10,
		MinLiquidityUSD: 5,
		HoneypotCheck:   true,
		QuoteToken:      "0xwbnb",
		MaxBuyAmount:    0.5,
		MaxSlippagePct:  10,
	}
}

func baseAssessment(pool *domain.Pool) *domain.RiskAssessment {
	return &domain.RiskAssessment{
		Chain:         pool.Chain,
		PoolAddress:   pool.PoolAddress,
		TokenAddress:  pool.TokenInfo.Address,
		Score:         10,
		Level:         domain.RiskLow,
		Confidence:    domain.ConfidenceFull,
		OracleChecked: true,
		InfoRevision:  pool.InfoRevision,
		AssessedAt:    1000,
	}
}

func newTestController(t *testing.T, configs ...*domain.SniperConfig) (*Controller, *memRecorder) {
	t.Helper()
	rec := &memRecorder{}
	c := NewController(Options{
		Configs:  &staticConfigs{configs: configs},
		Recorder: rec,
		Logger:   log.New(io.Discard, "", 0),
		Now:      func() int64 { return 2000 },
	})
	return c, rec
}

func TestEvaluate_AdmitsPassingPool(t *testing.T) {
	pool := basePool()
	c, rec := newTestController(t, baseConfig())

	result, err := c.Evaluate(context.Background(), pool, baseAssessment(pool))
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}

	if len(result.Admitted) != 1 {
		t.Fatalf("expected 1 admission, got %d", len(result.Admitted))
	}
	d := result.Admitted[0].Decision
	if d.Outcome != domain.OutcomeAdmit {
		t.Errorf("outcome = %s, want ADMIT", d.Outcome)
	}
	if len(d.Reasons) != 0 {
		t.Errorf("admit decision should carry no reasons, got %v", d.Reasons)
	}
	if d.TokenQuoted != "0xtoken1" {
		t.Errorf("token quoted = %s", d.TokenQuoted)
	}
	if len(rec.saved) != 1 || rec.saved[0].DecisionID != d.DecisionID {
		t.Error("decision was not persisted")
	}
}

func TestEvaluate_HoneypotRejects(t *testing.T) {
	pool := basePool()
	pool.TokenInfo.Honeypot = bp(true)
	c, _ := newTestController(t, baseConfig())

	assessment := baseAssessment(pool)
	assessment.Level = domain.RiskCritical

	result, err := c.Evaluate(context.Background(), pool, assessment)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}

	if len(result.Admitted) != 0 {
		t.Fatal("honeypot pool must not be admitted")
	}
	d := result.Decisions[0]
	if d.Outcome != domain.OutcomeReject {
		t.Fatalf("outcome = %s, want REJECT", d.Outcome)
	}
	if len(d.Reasons) != 1 || d.Reasons[0] != domain.ReasonHoneypot {
		t.Errorf("reasons = %v, want [honeypot]", d.Reasons)
	}
}

func TestEvaluate_LiquidityBoundaryInclusive(t *testing.T) {
	cfg := baseConfig()
	cfg.MinLiquidityUSD = 10

	// Exactly at the minimum passes.
	pool := basePool()
	pool.LiquidityUSD = 10
	c, _ := newTestController(t, cfg)
	result, err := c.Evaluate(context.Background(), pool, baseAssessment(pool))
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if len(result.Admitted) != 1 {
		t.Error("pool at exactly min liquidity should be admitted")
	}

	// One unit below fails with the liquidity reason.
	pool2 := basePool()
	pool2.LiquidityUSD = 9
	c2, _ := newTestController(t, cfg)
	result2, err := c2.Evaluate(context.Background(), pool2, baseAssessment(pool2))
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if len(result2.Admitted) != 0 {
		t.Fatal("pool below min liquidity must be rejected")
	}
	if got := result2.Decisions[0].Reasons; len(got) != 1 || got[0] != domain.ReasonLiquidity {
		t.Errorf("reasons = %v, want [liquidity]", got)
	}
}

func TestEvaluate_FirstFailingGateOnly(t *testing.T) {
	// Pool fails blacklist, liquidity, and both taxes at once; only the
	// blacklist reason (the earliest gate) is recorded.
	cfg := baseConfig()
	cfg.Blacklist = []string{"0xtoken1"}
	cfg.MinLiquidityUSD = 1000
	cfg.MaxBuyTaxPct = 1
	cfg.MaxSellTaxPct = 1

	pool := basePool()
	c, _ := newTestController(t, cfg)

	result, err := c.Evaluate(context.Background(), pool, baseAssessment(pool))
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if got := result.Decisions[0].Reasons; len(got) != 1 || got[0] != domain.ReasonBlacklist {
		t.Errorf("reasons = %v, want [blacklist]", got)
	}
}

func TestEvaluate_GateReasons(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(pool *domain.Pool, cfg *domain.SniperConfig)
		reason string
	}{
		{
			name: "whitelist excludes token",
			mutate: func(_ *domain.Pool, cfg *domain.SniperConfig) {
				cfg.Whitelist = []string{"0xother"}
			},
			reason: domain.ReasonWhitelist,
		},
		{
			name: "buy tax above limit",
			mutate: func(pool *domain.Pool, _ *domain.SniperConfig) {
				pool.TokenInfo.BuyTaxPct = fp(12)
			},
			reason: domain.ReasonBuyTax,
		},
		{
			name: "sell tax above limit",
			mutate: func(pool *domain.Pool, _ *domain.SniperConfig) {
				pool.TokenInfo.SellTaxPct = fp(25)
			},
			reason: domain.ReasonSellTax,
		},
		{
			name: "market cap below floor",
			mutate: func(pool *domain.Pool, cfg *domain.SniperConfig) {
				cfg.MinMarketCapUSD = 100000
			},
			reason: domain.ReasonMarketCap,
		},
		{
			name: "market cap above ceiling",
			mutate: func(pool *domain.Pool, cfg *domain.SniperConfig) {
				cfg.MaxMarketCapUSD = 1000
			},
			reason: domain.ReasonMarketCap,
		},
		{
			name: "lock below floor",
			mutate: func(pool *domain.Pool, cfg *domain.SniperConfig) {
				cfg.LockCheck = true
				cfg.MinLockPct = 95
			},
			reason: domain.ReasonLock,
		},
		{
			name: "lock unreported",
			mutate: func(pool *domain.Pool, cfg *domain.SniperConfig) {
				cfg.LockCheck = true
				cfg.MinLockPct = 50
				pool.TokenInfo.LockPct = nil
			},
			reason: domain.ReasonLock,
		},
		{
			name: "stale pool",
			mutate: func(pool *domain.Pool, _ *domain.SniperConfig) {
				pool.Stale = true
			},
			reason: domain.ReasonStale,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pool := basePool()
			cfg := baseConfig()
			tt.mutate(pool, cfg)

			c, _ := newTestController(t, cfg)
			result, err := c.Evaluate(context.Background(), pool, baseAssessment(pool))
			if err != nil {
				t.Fatalf("Evaluate failed: %v", err)
			}
			if len(result.Decisions) != 1 {
				t.Fatalf("expected 1 decision, got %d", len(result.Decisions))
			}
			d := result.Decisions[0]
			if d.Outcome != domain.OutcomeReject {
				t.Fatalf("outcome = %s, want REJECT", d.Outcome)
			}
			if len(d.Reasons) != 1 || d.Reasons[0] != tt.reason {
				t.Errorf("reasons = %v, want [%s]", d.Reasons, tt.reason)
			}
		})
	}
}

func TestEvaluate_ZeroTaxLimitDisablesGate(t *testing.T) {
	cfg := baseConfig()
	cfg.MaxBuyTaxPct = 0
	cfg.MaxSellTaxPct = 0

	pool := basePool()
	pool.TokenInfo.BuyTaxPct = fp(99)
	pool.TokenInfo.SellTaxPct = fp(99)

	c, _ := newTestController(t, cfg)
	result, err := c.Evaluate(context.Background(), pool, baseAssessment(pool))
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if len(result.Admitted) != 1 {
		t.Error("zero tax limits should disable the tax gates")
	}
}

func TestEvaluate_FailClosedWithoutOracle(t *testing.T) {
	pool := basePool()
	assessment := baseAssessment(pool)
	assessment.OracleChecked = false
	assessment.Confidence = domain.ConfidencePartial

	c := NewController(Options{
		Configs:    &staticConfigs{configs: []*domain.SniperConfig{baseConfig()}},
		FailClosed: true,
		Logger:     log.New(io.Discard, "", 0),
		Now:        func() int64 { return 2000 },
	})

	result, err := c.Evaluate(context.Background(), pool, assessment)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if len(result.Admitted) != 0 {
		t.Fatal("fail-closed mode must not admit without an oracle verdict")
	}
	if got := result.Decisions[0].Reasons; len(got) != 1 || got[0] != domain.ReasonOracle {
		t.Errorf("reasons = %v, want [oracle_unavailable]", got)
	}
}

func TestEvaluate_FailOpenWithoutOracle(t *testing.T) {
	pool := basePool()
	assessment := baseAssessment(pool)
	assessment.OracleChecked = false
	assessment.Confidence = domain.ConfidencePartial

	c, _ := newTestController(t, baseConfig())
	result, err := c.Evaluate(context.Background(), pool, assessment)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if len(result.Admitted) != 1 {
		t.Error("fail-open mode admits on heuristics alone")
	}
}

func TestEvaluate_StaleAssessmentRejected(t *testing.T) {
	pool := basePool()
	assessment := baseAssessment(pool)
	pool.InfoRevision = 2 // token info changed after assessment

	c, _ := newTestController(t, baseConfig())
	_, err := c.Evaluate(context.Background(), pool, assessment)
	if !errors.Is(err, ErrStaleAssessment) {
		t.Fatalf("expected ErrStaleAssessment, got %v", err)
	}
}

func TestEvaluate_InvalidConfigSkipped(t *testing.T) {
	bad := baseConfig()
	bad.MaxBuyAmount = 0 // fails validation
	good := baseConfig()
	good.ConfigID = "cfg-2"
	good.UserID = "user-2"

	pool := basePool()
	c, _ := newTestController(t, bad, good)

	result, err := c.Evaluate(context.Background(), pool, baseAssessment(pool))
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if len(result.Decisions) != 1 {
		t.Fatalf("invalid config must produce no decision, got %d decisions", len(result.Decisions))
	}
	if result.Decisions[0].UserID != "user-2" {
		t.Errorf("decision user = %s, want user-2", result.Decisions[0].UserID)
	}
}

func TestEvaluate_DisabledAndForeignChainSkipped(t *testing.T) {
	disabled := baseConfig()
	disabled.Enabled = false
	foreign := baseConfig()
	foreign.ConfigID = "cfg-sol"
	foreign.Chain = "solana"

	pool := basePool()
	c, _ := newTestController(t, disabled, foreign)

	result, err := c.Evaluate(context.Background(), pool, baseAssessment(pool))
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if len(result.Decisions) != 0 {
		t.Errorf("expected no decisions, got %d", len(result.Decisions))
	}
}

func TestEvaluate_InflightPairSkippedUntilReleased(t *testing.T) {
	pool := basePool()
	c, rec := newTestController(t, baseConfig())

	result, err := c.Evaluate(context.Background(), pool, baseAssessment(pool))
	if err != nil {
		t.Fatalf("first Evaluate failed: %v", err)
	}
	if len(result.Admitted) != 1 {
		t.Fatal("first pass should admit")
	}

	// Same pair again while the trade is open: no second admission, no
	// duplicate decision record.
	result2, err := c.Evaluate(context.Background(), pool, baseAssessment(pool))
	if err != nil {
		t.Fatalf("second Evaluate failed: %v", err)
	}
	if len(result2.Decisions) != 0 || len(result2.Admitted) != 0 {
		t.Fatal("in-flight pair must be skipped")
	}
	if len(rec.saved) != 1 {
		t.Fatalf("expected 1 persisted decision, got %d", len(rec.saved))
	}

	// After the terminal trade releases the slot a new cycle runs.
	c.Release("user-1", pool.Key())
	result3, err := c.Evaluate(context.Background(), pool, baseAssessment(pool))
	if err != nil {
		t.Fatalf("third Evaluate failed: %v", err)
	}
	if len(result3.Admitted) != 1 {
		t.Error("released pair should be evaluated again")
	}
}

func TestEvaluate_DeterministicDecisionID(t *testing.T) {
	pool := basePool()

	run := func() string {
		c, _ := newTestController(t, baseConfig())
		result, err := c.Evaluate(context.Background(), pool, baseAssessment(pool))
		if err != nil {
			t.Fatalf("Evaluate failed: %v", err)
		}
		return result.Decisions[0].DecisionID
	}

	if a, b := run(), run(); a != b {
		t.Errorf("same inputs produced different decision ids: %s vs %s", a, b)
	}
}
