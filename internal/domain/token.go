package domain

// BaseTokenInfo holds token-level security attributes for a pool's base
// token. Fields are pointers because providers disagree on coverage: nil
// means the signal was never reported, which the risk screener treats
// differently from an explicit zero.
type BaseTokenInfo struct {
	Address string  // token address (mint on Solana)
	Name    *string // token name (nullable)
	Symbol  *string // token symbol (nullable)

	BuyTaxPct  *float64 // buy tax in percent
	SellTaxPct *float64 // sell tax in percent

	Honeypot   *bool // sells blocked after purchase
	OpenSource *bool // contract source verified
	Renounced  *bool // ownership renounced

	Top10HolderPct *float64 // top-10 holder concentration in percent
	LockPct        *float64 // locked/burned liquidity in percent
	RugRatio       *float64 // heuristic rug likelihood in [0,1]
	SniperPct      *float64 // sniper-wallet participation in percent
	BundlerPct     *float64 // bundled-buy participation in percent
	HolderCount    *int     // total holder count
}

// MateriallyDiffers reports whether the risk-relevant fields of b and other
// disagree. Only fields that feed admission gates or the risk score count;
// name/symbol churn does not trigger re-assessment.
func (b *BaseTokenInfo) MateriallyDiffers(other *BaseTokenInfo) bool {
	if other == nil {
		return false
	}
	return !eqF(b.BuyTaxPct, other.BuyTaxPct) ||
		!eqF(b.SellTaxPct, other.SellTaxPct) ||
		!eqB(b.Honeypot, other.Honeypot) ||
		!eqB(b.OpenSource, other.OpenSource) ||
		!eqB(b.Renounced, other.Renounced) ||
		!eqF(b.Top10HolderPct, other.Top10HolderPct) ||
		!eqF(b.LockPct, other.LockPct) ||
		!eqF(b.RugRatio, other.RugRatio) ||
		!eqF(b.SniperPct, other.SniperPct) ||
		!eqF(b.BundlerPct, other.BundlerPct)
}

func eqF(a, b *float64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func eqB(a, b *bool) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// MergeFrom fills b's nil fields from other and overwrites non-nil fields
// when overwrite is true. Used by the aggregator's source-priority merge.
func (b *BaseTokenInfo) MergeFrom(other *BaseTokenInfo, overwrite bool) {
	if other == nil {
		return
	}
	if b.Address == "" {
		b.Address = other.Address
	}
	mergeS(&b.Name, other.Name, overwrite)
	mergeS(&b.Symbol, other.Symbol, overwrite)
	mergeF(&b.BuyTaxPct, other.BuyTaxPct, overwrite)
	mergeF(&b.SellTaxPct, other.SellTaxPct, overwrite)
	mergeB(&b.Honeypot, other.Honeypot, overwrite)
	mergeB(&b.OpenSource, other.OpenSource, overwrite)
	mergeB(&b.Renounced, other.Renounced, overwrite)
	mergeF(&b.Top10HolderPct, other.Top10HolderPct, overwrite)
	mergeF(&b.LockPct, other.LockPct, overwrite)
	mergeF(&b.RugRatio, other.RugRatio, overwrite)
	mergeF(&b.SniperPct, other.SniperPct, overwrite)
	mergeF(&b.BundlerPct, other.BundlerPct, overwrite)
	mergeI(&b.HolderCount, other.HolderCount, overwrite)
}

func mergeF(dst **float64, src *float64, overwrite bool) {
	if src != nil && (*dst == nil || overwrite) {
		v := *src
		*dst = &v
	}
}

func mergeB(dst **bool, src *bool, overwrite bool) {
	if src != nil && (*dst == nil || overwrite) {
		v := *src
		*dst = &v
	}
}

func mergeS(dst **string, src *string, overwrite bool) {
	if src != nil && (*dst == nil || overwrite) {
		v := *src
		*dst = &v
	}
}

func mergeI(dst **int, src *int, overwrite bool) {
	if src != nil && (*dst == nil || overwrite) {
		v := *src
		*dst = &v
	}
}
