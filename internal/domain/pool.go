package domain

// PoolObservation is a single provider's view of a liquidity pool at a point
// in time. Observations are ephemeral: they exist only to feed the aggregator
// and the observation history store.
type PoolObservation struct {
	Chain       string // chain identifier, e.g. "solana", "bsc"
	PoolAddress string // pool/pair address on chain
	Exchange    string // DEX name, e.g. "raydium", "pancakeswap"
	SourceID    string // adapter identifier, e.g. "dexscreener"

	BaseToken  string // base token address
	QuoteToken string // quote token address

	BaseReserve  *float64 // base token reserve (nullable)
	QuoteReserve *float64 // quote token reserve (nullable)
	LiquidityUSD *float64 // total liquidity in USD (nullable)
	PriceUSD     *float64 // base token price in USD (nullable)
	MarketCapUSD *float64 // base token market cap in USD (nullable)

	TokenInfo *BaseTokenInfo // token security attributes, if the source reports them

	CreatedAt  int64 // pool open timestamp (ms), 0 if unknown
	ObservedAt int64 // when the source observed this state (ms)
}

// Key returns the canonical pool identity for this observation.
func (o *PoolObservation) Key() PoolKey {
	return PoolKey{Chain: o.Chain, Address: o.PoolAddress}
}

// PoolKey identifies one logical pool. All observations with the same key
// merge into a single canonical Pool record.
type PoolKey struct {
	Chain   string
	Address string
}

// String returns "chain:address".
func (k PoolKey) String() string {
	return k.Chain + ":" + k.Address
}

// Pool is the canonical merged record for one (chain, address) pair.
// It is owned exclusively by the aggregator; everyone else sees copies.
type Pool struct {
	Chain       string
	PoolAddress string
	Exchange    string

	BaseToken  string
	QuoteToken string
	TokenInfo  BaseTokenInfo

	BaseReserve  float64
	QuoteReserve float64
	LiquidityUSD float64
	PriceUSD     float64
	MarketCapUSD float64

	OpenTimestamp  int64 // pool creation time (ms), best known
	FirstSeenAt    int64 // when the aggregator first saw this pool (ms)
	LastObservedAt int64 // most recent observation (ms)

	// InfoRevision increments on every material TokenInfo change.
	// Risk assessments record the revision they were computed against.
	InfoRevision int64

	Stale bool // no observation within the staleness window
}

// Key returns the pool identity.
func (p *Pool) Key() PoolKey {
	return PoolKey{Chain: p.Chain, Address: p.PoolAddress}
}
