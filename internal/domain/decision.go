package domain

// Outcome is the result of evaluating one (pool, config) pair.
type Outcome string

const (
	OutcomeAdmit  Outcome = "ADMIT"
	OutcomeReject Outcome = "REJECT"
)

// Rejection reason codes, in gate order. Only the first failing gate is
// recorded so identical inputs always explain themselves identically.
const (
	ReasonBlacklist = "blacklist"
	ReasonWhitelist = "whitelist"
	ReasonLiquidity = "liquidity"
	ReasonBuyTax    = "buy_tax"
	ReasonSellTax   = "sell_tax"
	ReasonMarketCap = "market_cap"
	ReasonHoneypot  = "honeypot"
	ReasonLock      = "lock"
	ReasonStale     = "stale"
	ReasonOracle    = "oracle_unavailable" // fail-closed mode only
)

// AdmissionDecision is an append-only audit record for one evaluation of a
// (user, pool) pair. Re-evaluation creates a new record; existing records
// are never revised.
type AdmissionDecision struct {
	DecisionID  string // deterministic hash, see idhash
	UserID      string
	ConfigID    string
	Chain       string
	PoolAddress string
	TokenQuoted string // token that would be bought

	Outcome Outcome
	Reasons []string // empty for ADMIT, first failing gate for REJECT

	RiskScore    float64
	RiskLevel    RiskLevel
	InfoRevision int64 // pool TokenInfo revision the decision was made against
	DecidedAt    int64 // ms
}
