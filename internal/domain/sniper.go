package domain

import (
	"errors"
	"fmt"
)

// ErrConfigInvalid marks a sniper config that failed sanity bounds.
// Invalid configs are skipped for the whole cycle, never partially applied.
var ErrConfigInvalid = errors.New("sniper config invalid")

// SniperConfig is one user's automated-buy policy. The core treats configs
// as read-only snapshots: the policy store owns their lifecycle and a fresh
// snapshot is taken each evaluation cycle.
type SniperConfig struct {
	ConfigID string
	UserID   string
	Chain    string // empty means all chains
	Enabled  bool

	MaxBuyTaxPct    float64 // 0 disables the gate
	MaxSellTaxPct   float64 // 0 disables the gate
	MinLiquidityUSD float64
	MinMarketCapUSD float64 // 0 disables the lower bound
	MaxMarketCapUSD float64 // 0 disables the upper bound

	HoneypotCheck bool
	LockCheck     bool
	MinLockPct    float64 // lock gate floor, used when LockCheck is set

	Blacklist []string // token addresses, reject outright
	Whitelist []string // when non-empty, only these tokens are admitted

	ProxyWallet    string  // custodied wallet executing the buy
	QuoteToken     string  // token spent, e.g. WSOL/WBNB address
	MaxBuyAmount   float64 // amountIn per trade, quote units
	MaxSlippagePct float64
}

// Validate checks sanity bounds. A failing config is reported and skipped.
func (c *SniperConfig) Validate() error {
	if c.UserID == "" {
		return fmt.Errorf("%w: missing user id", ErrConfigInvalid)
	}
	if c.MaxBuyTaxPct < 0 || c.MaxSellTaxPct < 0 {
		return fmt.Errorf("%w: negative tax limit", ErrConfigInvalid)
	}
	if c.MinLiquidityUSD < 0 {
		return fmt.Errorf("%w: negative min liquidity", ErrConfigInvalid)
	}
	if c.MinMarketCapUSD < 0 || c.MaxMarketCapUSD < 0 {
		return fmt.Errorf("%w: negative market cap bound", ErrConfigInvalid)
	}
	if c.MaxMarketCapUSD > 0 && c.MinMarketCapUSD > c.MaxMarketCapUSD {
		return fmt.Errorf("%w: min market cap above max", ErrConfigInvalid)
	}
	if c.LockCheck && (c.MinLockPct < 0 || c.MinLockPct > 100) {
		return fmt.Errorf("%w: lock floor out of range", ErrConfigInvalid)
	}
	if c.MaxBuyAmount <= 0 {
		return fmt.Errorf("%w: non-positive buy amount", ErrConfigInvalid)
	}
	if c.MaxSlippagePct < 0 || c.MaxSlippagePct >= 100 {
		return fmt.Errorf("%w: slippage out of range", ErrConfigInvalid)
	}
	return nil
}

// Blacklisted reports whether the token is on the config's blacklist.
func (c *SniperConfig) Blacklisted(token string) bool {
	for _, t := range c.Blacklist {
		if t == token {
			return true
		}
	}
	return false
}

// Whitelisted reports whether the token passes the whitelist. An empty
// whitelist admits every token.
func (c *SniperConfig) Whitelisted(token string) bool {
	if len(c.Whitelist) == 0 {
		return true
	}
	for _, t := range c.Whitelist {
		if t == token {
			return true
		}
	}
	return false
}
