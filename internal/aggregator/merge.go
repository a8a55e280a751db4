package aggregator

import (
	"dex-sniper-core/internal/domain"
	"dex-sniper-core/internal/source"
)

// merge folds an observation into an existing entry. Returns true when the
// token info changed materially (the caller emits pool_updated).
//
// Conflict rules, in order:
//   - token-info group (exchange, open timestamp, security attributes):
//     a strictly higher-priority source overwrites; equal priority defers to
//     the newer observation; equal timestamps tie-break on lexicographic
//     source id. Losing sources may still fill fields the winner never set.
//   - numeric market group (reserves, liquidity, price, market cap): always
//     the latest observation, source priority ignored, same tie-break.
//
// Replaying the identical observation changes nothing but LastObservedAt.
func merge(e *entry, obs *domain.PoolObservation, prio source.Priorities) bool {
	rank := prio.Rank(obs.SourceID)

	infoWins := wins(rank, obs.ObservedAt, obs.SourceID, e.infoRank, e.infoAt, e.infoSource)

	before := e.pool.TokenInfo
	if obs.TokenInfo != nil {
		e.pool.TokenInfo.MergeFrom(obs.TokenInfo, infoWins)
	}
	if infoWins {
		if obs.Exchange != "" {
			e.pool.Exchange = obs.Exchange
		}
		if obs.CreatedAt != 0 {
			e.pool.OpenTimestamp = obs.CreatedAt
		}
		if obs.QuoteToken != "" {
			e.pool.QuoteToken = obs.QuoteToken
		}
		e.infoRank = rank
		e.infoAt = obs.ObservedAt
		e.infoSource = obs.SourceID
	} else {
		// fill-only for fields the winner never reported
		if e.pool.Exchange == "" {
			e.pool.Exchange = obs.Exchange
		}
		if e.pool.OpenTimestamp == 0 {
			e.pool.OpenTimestamp = obs.CreatedAt
		}
		if e.pool.QuoteToken == "" {
			e.pool.QuoteToken = obs.QuoteToken
		}
	}

	if wins(0, obs.ObservedAt, obs.SourceID, 0, e.numAt, e.numSource) {
		applyNumeric(e.pool, obs)
		e.numAt = obs.ObservedAt
		e.numSource = obs.SourceID
	}

	if obs.ObservedAt > e.pool.LastObservedAt {
		e.pool.LastObservedAt = obs.ObservedAt
	}
	e.pool.Stale = false

	material := before.MateriallyDiffers(&e.pool.TokenInfo)
	if material {
		e.pool.InfoRevision++
	}
	return material
}

// wins decides whether the candidate (rank, at, src) beats the incumbent.
// Lower rank wins; then newer observation; then lexicographically smaller
// source id. An exact identity tie counts as a win so replays are absorbed
// idempotently by the overwrite path.
func wins(rank int, at int64, src string, curRank int, curAt int64, curSrc string) bool {
	if rank != curRank {
		return rank < curRank
	}
	if at != curAt {
		return at > curAt
	}
	return src <= curSrc
}

// applyNumeric copies the present numeric market fields from obs.
func applyNumeric(pool *domain.Pool, obs *domain.PoolObservation) {
	if obs.BaseReserve != nil {
		pool.BaseReserve = *obs.BaseReserve
	}
	if obs.QuoteReserve != nil {
		pool.QuoteReserve = *obs.QuoteReserve
	}
	if obs.LiquidityUSD != nil {
		pool.LiquidityUSD = *obs.LiquidityUSD
	}
	if obs.PriceUSD != nil {
		pool.PriceUSD = *obs.PriceUSD
	}
	if obs.MarketCapUSD != nil {
		pool.MarketCapUSD = *obs.MarketCapUSD
	}
}
