package domain

// TradeStatus is a ProxyTrade's position in its lifecycle.
type TradeStatus string

const (
	TradePending   TradeStatus = "pending"
	TradeSubmitted TradeStatus = "submitted"
	TradeConfirmed TradeStatus = "confirmed"
	TradeFailed    TradeStatus = "failed"
	TradeExpired   TradeStatus = "expired"
)

// Terminal reports whether the status admits no further transitions.
func (s TradeStatus) Terminal() bool {
	return s == TradeConfirmed || s == TradeFailed || s == TradeExpired
}

// CanTransition reports whether moving from s to next is a legal forward
// step. Trades never leave a terminal state and never move backward.
func (s TradeStatus) CanTransition(next TradeStatus) bool {
	switch s {
	case TradePending:
		return next == TradeSubmitted || next == TradeFailed || next == TradeExpired
	case TradeSubmitted:
		return next == TradeConfirmed || next == TradeFailed || next == TradeExpired
	default:
		return false
	}
}

// Trade failure reason codes.
const (
	TradeFailSubmission = "submission_failed" // broadcast never succeeded
	TradeFailReverted   = "reverted"          // confirmed on chain as failed
	TradeFailExpired    = "deadline_expired"
)

// ProxyTrade is a buy executed through a user's custodied proxy wallet.
// The dispatcher owns it until it reaches a terminal state, then hands it
// to the trade store.
type ProxyTrade struct {
	TradeID    string // deterministic hash, see idhash
	DecisionID string
	UserID     string
	Chain      string

	ProxyAddress string
	PoolAddress  string
	TokenIn      string // quote token spent
	TokenOut     string // base token bought

	AmountIn     float64
	MinAmountOut float64 // AmountIn / price less MaxSlippagePct
	SlippagePct  float64

	Status     TradeStatus
	TxHash     *string // set once broadcast
	FailReason *string // set on failed/expired

	Attempts  int   // submission attempts, bounded
	Deadline  int64 // hard cancellation boundary (ms)
	CreatedAt int64 // ms
	UpdatedAt int64 // ms
}
