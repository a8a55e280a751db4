// Package source contains market-data provider adapters. Each adapter
// normalizes one provider's pool feed into domain.PoolObservation and is
// fully independent of the others: a failing provider surfaces as
// ErrSourceUnavailable and never blocks the rest of the pipeline.
package source

import (
	"context"
	"errors"
	"fmt"

	"dex-sniper-core/internal/domain"
)

// ErrSourceUnavailable marks a provider-level failure (4xx/5xx, timeout,
// disconnect). The caller skips the source for the cycle and retries later.
var ErrSourceUnavailable = errors.New("source unavailable")

// unavailable wraps a provider error with the source id for logging.
func unavailable(sourceID string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrSourceUnavailable, sourceID, err)
}

// PollFilters narrows a Poll request.
type PollFilters struct {
	Chain     string // empty means the adapter's default chain
	Timeframe string // provider-specific window, e.g. "5m", "1h"
	Limit     int    // max results, 0 means provider default
}

// Source is one market-data provider adapter.
type Source interface {
	// ID returns the adapter identifier used for merge priority.
	ID() string

	// Stream returns an infinite observation stream. The channel closes when
	// ctx is cancelled; on provider disconnect the adapter reconnects
	// internally and the stream resumes.
	Stream(ctx context.Context) (<-chan *domain.PoolObservation, error)

	// Poll fetches a finite batch of observations matching filters.
	// Returns ErrSourceUnavailable on provider failure.
	Poll(ctx context.Context, filters PollFilters) ([]*domain.PoolObservation, error)
}

// Priorities maps source id to merge rank, lower rank wins field conflicts.
// Unknown sources sort last.
type Priorities map[string]int

// Rank returns the source's priority, or a rank below every known source.
func (p Priorities) Rank(sourceID string) int {
	if r, ok := p[sourceID]; ok {
		return r
	}
	return len(p) + 1
}
