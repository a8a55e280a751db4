package aggregator

import (
	"sort"

	"dex-sniper-core/internal/domain"
)

// Sort keys accepted by ListQuery.
const (
	SortByLiquidity    = "liquidity"
	SortByMarketCap    = "market_cap"
	SortByAge          = "age"
	SortByLastObserved = "last_observed"
)

// ListQuery filters and orders a pool listing. Zero values mean "no filter".
type ListQuery struct {
	Chain        string
	Exchange     string
	MaxAgeMs     int64  // only pools opened within this window
	SortBy       string // one of the SortBy constants, default liquidity
	Ascending    bool
	Limit        int // 0 means no limit
	Offset       int
	IncludeStale bool
}

// Get returns a copy of the pool for key, if known. The copy's Stale flag
// reflects the staleness window at call time.
func (a *Aggregator) Get(key domain.PoolKey) (domain.Pool, bool) {
	s := a.shardFor(key)
	now := a.cfg.Now()

	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.pools[key]
	if !ok {
		return domain.Pool{}, false
	}
	pool := *e.pool
	pool.Stale = a.staleAt(&pool, now)
	return pool, true
}

// Eligible reports whether the pool exists and is inside the staleness
// window, i.e. may still receive admission decisions.
func (a *Aggregator) Eligible(key domain.PoolKey) bool {
	pool, ok := a.Get(key)
	return ok && !pool.Stale
}

// List returns a consistent snapshot of pools matching the query. Each
// shard is copied under its read lock, so no partial merge is ever visible;
// sorting and pagination happen on the copies.
func (a *Aggregator) List(q ListQuery) []domain.Pool {
	now := a.cfg.Now()

	var pools []domain.Pool
	for _, s := range a.shards {
		s.mu.RLock()
		for _, e := range s.pools {
			pool := *e.pool
			pool.Stale = a.staleAt(&pool, now)
			if a.matches(&pool, q, now) {
				pools = append(pools, pool)
			}
		}
		s.mu.RUnlock()
	}

	sortPools(pools, q)

	if q.Offset > 0 {
		if q.Offset >= len(pools) {
			return nil
		}
		pools = pools[q.Offset:]
	}
	if q.Limit > 0 && len(pools) > q.Limit {
		pools = pools[:q.Limit]
	}
	return pools
}

// Len returns the number of tracked pools across all shards.
func (a *Aggregator) Len() int {
	n := 0
	for _, s := range a.shards {
		s.mu.RLock()
		n += len(s.pools)
		s.mu.RUnlock()
	}
	return n
}

func (a *Aggregator) staleAt(pool *domain.Pool, nowMs int64) bool {
	return nowMs-pool.LastObservedAt > a.cfg.StaleAfter.Milliseconds()
}

func (a *Aggregator) matches(pool *domain.Pool, q ListQuery, nowMs int64) bool {
	if !q.IncludeStale && pool.Stale {
		return false
	}
	if q.Chain != "" && pool.Chain != q.Chain {
		return false
	}
	if q.Exchange != "" && pool.Exchange != q.Exchange {
		return false
	}
	if q.MaxAgeMs > 0 {
		if pool.OpenTimestamp == 0 || nowMs-pool.OpenTimestamp > q.MaxAgeMs {
			return false
		}
	}
	return true
}

func sortPools(pools []domain.Pool, q ListQuery) {
	less := func(a, b *domain.Pool) bool {
		switch q.SortBy {
		case SortByMarketCap:
			if a.MarketCapUSD != b.MarketCapUSD {
				return a.MarketCapUSD > b.MarketCapUSD
			}
		case SortByAge:
			if a.OpenTimestamp != b.OpenTimestamp {
				return a.OpenTimestamp > b.OpenTimestamp // newest first
			}
		case SortByLastObserved:
			if a.LastObservedAt != b.LastObservedAt {
				return a.LastObservedAt > b.LastObservedAt
			}
		default: // SortByLiquidity
			if a.LiquidityUSD != b.LiquidityUSD {
				return a.LiquidityUSD > b.LiquidityUSD
			}
		}
		// stable identity tie-break keeps pagination deterministic
		if a.Chain != b.Chain {
			return a.Chain < b.Chain
		}
		return a.PoolAddress < b.PoolAddress
	}

	sort.Slice(pools, func(i, j int) bool {
		if q.Ascending {
			return less(&pools[j], &pools[i])
		}
		return less(&pools[i], &pools[j])
	})
}
