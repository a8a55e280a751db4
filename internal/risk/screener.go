// Package risk scores pools for automated-trade safety. The screener folds
// token security attributes into a weighted composite in [0,100] and
// consults an external security oracle whose malicious verdicts can only
// raise the resulting level, never lower it.
package risk

import (
	"context"
	"fmt"
	"log"
	"time"

	"dex-sniper-core/internal/domain"
)

// Signal weights. The composite is the sum of weighted contributions,
// clamped to [0,100]; a reported honeypot overrides everything.
const (
	weightHoneypot      = 40.0
	weightBuyTax        = 15.0
	weightSellTax       = 15.0
	weightLock          = 15.0
	weightConcentration = 15.0
	weightRugRatio      = 10.0
	weightSniper        = 5.0
	weightBundler       = 5.0
	weightOpenSource    = 5.0
	weightRenounced     = 5.0

	// taxFreePct is the tax level below which no penalty accrues.
	taxFreePct = 10.0
	// taxMaxPct is where the tax penalty saturates.
	taxMaxPct = 50.0
)

// Screener computes risk assessments.
type Screener struct {
	oracle        SecurityOracle // optional
	oracleTimeout time.Duration
	logger        *log.Logger
	now           func() int64
}

// Options configures a Screener.
type Options struct {
	Oracle        SecurityOracle
	OracleTimeout time.Duration
	Logger        *log.Logger
	Now           func() int64
}

// NewScreener creates a Screener.
func NewScreener(opts Options) *Screener {
	if opts.OracleTimeout == 0 {
		opts.OracleTimeout = 5 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.Now == nil {
		opts.Now = func() int64 { return time.Now().UnixMilli() }
	}
	return &Screener{
		oracle:        opts.Oracle,
		oracleTimeout: opts.OracleTimeout,
		logger:        opts.Logger,
		now:           opts.Now,
	}
}

// Assess produces a RiskAssessment for the pool's current token info.
// Oracle failure degrades to the heuristic-only score with
// Confidence=partial; it never blocks the assessment.
func (s *Screener) Assess(ctx context.Context, pool *domain.Pool) *domain.RiskAssessment {
	score, factors, honeypot := s.composite(&pool.TokenInfo)

	assessment := &domain.RiskAssessment{
		Chain:        pool.Chain,
		PoolAddress:  pool.PoolAddress,
		TokenAddress: pool.TokenInfo.Address,
		Score:        clamp(score, 0, 100),
		Factors:      factors,
		Confidence:   domain.ConfidenceFull,
		InfoRevision: pool.InfoRevision,
		AssessedAt:   s.now(),
	}

	assessment.Level = domain.LevelForScore(assessment.Score)
	if honeypot {
		assessment.Level = domain.RiskCritical
	}

	s.consultOracle(ctx, pool, assessment)
	return assessment
}

// consultOracle applies the oracle verdict: malicious moves the level up to
// CRITICAL; unavailability marks the assessment partial.
func (s *Screener) consultOracle(ctx context.Context, pool *domain.Pool, a *domain.RiskAssessment) {
	if s.oracle == nil {
		a.Confidence = domain.ConfidencePartial
		return
	}

	octx, cancel := context.WithTimeout(ctx, s.oracleTimeout)
	defer cancel()

	info, err := s.oracle.GetTokenSecurity(octx, pool.Chain, pool.TokenInfo.Address)
	if err != nil {
		s.logger.Printf("[risk] oracle degraded for %s: %v", pool.TokenInfo.Address, err)
		a.Confidence = domain.ConfidencePartial
		return
	}

	a.OracleChecked = true
	if info.Malicious {
		a.OracleFlagged = true
		if domain.RiskCritical.Rank() > a.Level.Rank() {
			a.Level = domain.RiskCritical
		}
		a.Factors = append(a.Factors, domain.RiskFactor{
			Name:  "oracle_malicious",
			Value: fmt.Sprintf("%v", info.Flags),
		})
	}
}

// composite computes the weighted heuristic score. Missing signals add zero
// but are still recorded as factors so decisions stay explainable.
func (s *Screener) composite(info *domain.BaseTokenInfo) (float64, []domain.RiskFactor, bool) {
	var score float64
	var factors []domain.RiskFactor
	honeypot := false

	add := func(name string, value string, weight, contribution float64, missing bool) {
		score += contribution
		factors = append(factors, domain.RiskFactor{
			Name:         name,
			Value:        value,
			Weight:       weight,
			Contribution: contribution,
			Missing:      missing,
		})
	}

	if info.Honeypot == nil {
		add("honeypot", "unknown", weightHoneypot, 0, true)
	} else if *info.Honeypot {
		honeypot = true
		add("honeypot", "true", weightHoneypot, weightHoneypot, false)
	} else {
		add("honeypot", "false", weightHoneypot, 0, false)
	}

	addTax := func(name string, tax *float64, weight float64) {
		if tax == nil {
			add(name, "unknown", weight, 0, true)
			return
		}
		add(name, fmt.Sprintf("%.1f%%", *tax), weight, taxPenalty(*tax)*weight, false)
	}
	addTax("buy_tax", info.BuyTaxPct, weightBuyTax)
	addTax("sell_tax", info.SellTaxPct, weightSellTax)

	if info.LockPct == nil {
		add("lock", "unknown", weightLock, 0, true)
	} else {
		unlocked := clamp(100-*info.LockPct, 0, 100) / 100
		add("lock", fmt.Sprintf("%.1f%%", *info.LockPct), weightLock, unlocked*weightLock, false)
	}

	if info.Top10HolderPct == nil {
		add("holder_concentration", "unknown", weightConcentration, 0, true)
	} else {
		c := clamp(*info.Top10HolderPct, 0, 100) / 100
		add("holder_concentration", fmt.Sprintf("%.1f%%", *info.Top10HolderPct), weightConcentration, c*weightConcentration, false)
	}

	if info.RugRatio == nil {
		add("rug_ratio", "unknown", weightRugRatio, 0, true)
	} else {
		r := clamp(*info.RugRatio, 0, 1)
		add("rug_ratio", fmt.Sprintf("%.2f", r), weightRugRatio, r*weightRugRatio, false)
	}

	addRate := func(name string, rate *float64, weight float64) {
		if rate == nil {
			add(name, "unknown", weight, 0, true)
			return
		}
		r := clamp(*rate, 0, 100) / 100
		add(name, fmt.Sprintf("%.1f%%", *rate), weight, r*weight, false)
	}
	addRate("sniper_rate", info.SniperPct, weightSniper)
	addRate("bundler_rate", info.BundlerPct, weightBundler)

	addFlag := func(name string, flag *bool, weight float64) {
		if flag == nil {
			add(name, "unknown", weight, 0, true)
			return
		}
		if *flag {
			add(name, "true", weight, 0, false)
		} else {
			add(name, "false", weight, weight, false)
		}
	}
	addFlag("open_source", info.OpenSource, weightOpenSource)
	addFlag("renounced", info.Renounced, weightRenounced)

	return score, factors, honeypot
}

// taxPenalty maps a tax percentage to [0,1]: free below taxFreePct, linear
// up to saturation at taxMaxPct.
func taxPenalty(taxPct float64) float64 {
	if taxPct <= taxFreePct {
		return 0
	}
	return clamp((taxPct-taxFreePct)/(taxMaxPct-taxFreePct), 0, 1)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
