// Package aggregator maintains the canonical Pool map. Observations from
// all source adapters are hash-partitioned by pool key so that each key is
// only ever written by one shard goroutine; merge conflicts are resolved by
// source priority, then recency, then lexicographic source id.
package aggregator

import (
	"context"
	"hash/fnv"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"dex-sniper-core/internal/domain"
	"dex-sniper-core/internal/source"
)

// PoolEvent is emitted on pool discovery and on material token-info change.
type PoolEvent struct {
	Type domain.EventType // EventPoolCreated or EventPoolUpdated
	Pool domain.Pool      // copy of the merged state after the change
}

// Config configures the aggregator.
type Config struct {
	Shards     int           // single-writer partitions, default 8
	QueueSize  int           // per-shard input queue, default 256
	EventQueue int           // outbound event queue, default 1024
	StaleAfter time.Duration // no-observation window before a pool goes stale
	Priorities source.Priorities
	Logger     *log.Logger
	Now        func() int64 // ms clock, injectable for tests
}

// Aggregator owns the canonical pool state.
type Aggregator struct {
	cfg    Config
	shards []*shard
	events chan PoolEvent

	eventMu      sync.Mutex
	droppedEvent atomic.Int64

	wg sync.WaitGroup
}

// New creates an Aggregator. Call Run to start the shard workers.
func New(cfg Config) *Aggregator {
	if cfg.Shards <= 0 {
		cfg.Shards = 8
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.EventQueue <= 0 {
		cfg.EventQueue = 1024
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = 30 * time.Minute
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	if cfg.Now == nil {
		cfg.Now = func() int64 { return time.Now().UnixMilli() }
	}

	a := &Aggregator{
		cfg:    cfg,
		events: make(chan PoolEvent, cfg.EventQueue),
	}
	for i := 0; i < cfg.Shards; i++ {
		a.shards = append(a.shards, newShard(a, cfg.QueueSize))
	}
	return a
}

// Events returns the pool event stream. Slow consumers lose the oldest
// events rather than stalling the merge path; losses are counted.
func (a *Aggregator) Events() <-chan PoolEvent {
	return a.events
}

// DroppedEvents returns how many events were discarded on queue overflow.
func (a *Aggregator) DroppedEvents() int64 {
	return a.droppedEvent.Load()
}

// Run starts the shard workers and blocks until ctx is cancelled.
func (a *Aggregator) Run(ctx context.Context) error {
	for _, s := range a.shards {
		a.wg.Add(1)
		go func(s *shard) {
			defer a.wg.Done()
			s.run(ctx)
		}(s)
	}
	<-ctx.Done()
	a.wg.Wait()
	close(a.events)
	return ctx.Err()
}

// Apply routes an observation to its owning shard. It blocks while the
// shard's queue is full, which backpressures the adapters, and gives up
// when ctx ends.
func (a *Aggregator) Apply(ctx context.Context, obs *domain.PoolObservation) error {
	if obs == nil || obs.Chain == "" || obs.PoolAddress == "" {
		return nil
	}
	s := a.shardFor(obs.Key())
	select {
	case s.in <- obs:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ApplySync merges an observation on the caller's goroutine. Only safe when
// the shard workers are not running; used by tests and replay tooling.
func (a *Aggregator) ApplySync(obs *domain.PoolObservation) {
	if obs == nil || obs.Chain == "" || obs.PoolAddress == "" {
		return
	}
	a.shardFor(obs.Key()).apply(obs)
}

func (a *Aggregator) shardFor(key domain.PoolKey) *shard {
	h := fnv.New32a()
	h.Write([]byte(key.Chain))
	h.Write([]byte{0})
	h.Write([]byte(key.Address))
	return a.shards[int(h.Sum32())%len(a.shards)]
}

// emit publishes an event with drop-oldest-on-overflow semantics. The
// eventMu serializes the drop+send pair so per-topic order is preserved.
func (a *Aggregator) emit(ev PoolEvent) {
	a.eventMu.Lock()
	defer a.eventMu.Unlock()
	for {
		select {
		case a.events <- ev:
			return
		default:
		}
		select {
		case <-a.events:
			a.droppedEvent.Add(1)
		default:
		}
	}
}

// entry is one pool plus the merge provenance needed for conflict
// resolution. infoRank/infoAt/infoSource track who last won the token-info
// group; numAt/numSource track the numeric market-data group.
type entry struct {
	pool       *domain.Pool
	infoRank   int
	infoAt     int64
	infoSource string
	numAt      int64
	numSource  string
}

// shard owns a partition of the pool map. Writes happen only on the shard
// goroutine (or via apply in tests); reads copy under RLock.
type shard struct {
	agg   *Aggregator
	in    chan *domain.PoolObservation
	mu    sync.RWMutex
	pools map[domain.PoolKey]*entry
}

func newShard(agg *Aggregator, queue int) *shard {
	return &shard{
		agg:   agg,
		in:    make(chan *domain.PoolObservation, queue),
		pools: make(map[domain.PoolKey]*entry),
	}
}

func (s *shard) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case obs := <-s.in:
			s.apply(obs)
		}
	}
}

// apply merges one observation into the shard's state and emits events.
func (s *shard) apply(obs *domain.PoolObservation) {
	key := obs.Key()

	s.mu.Lock()
	e, exists := s.pools[key]
	if !exists {
		e = s.create(obs)
		s.pools[key] = e
		pool := *e.pool
		s.mu.Unlock()
		s.agg.emit(PoolEvent{Type: domain.EventPoolCreated, Pool: pool})
		return
	}

	material := merge(e, obs, s.agg.cfg.Priorities)
	pool := *e.pool
	s.mu.Unlock()

	if material {
		s.agg.emit(PoolEvent{Type: domain.EventPoolUpdated, Pool: pool})
	}
}

// create builds the first entry for a key.
func (s *shard) create(obs *domain.PoolObservation) *entry {
	now := s.agg.cfg.Now()
	rank := s.agg.cfg.Priorities.Rank(obs.SourceID)

	pool := &domain.Pool{
		Chain:          obs.Chain,
		PoolAddress:    obs.PoolAddress,
		Exchange:       obs.Exchange,
		BaseToken:      obs.BaseToken,
		QuoteToken:     obs.QuoteToken,
		OpenTimestamp:  obs.CreatedAt,
		FirstSeenAt:    now,
		LastObservedAt: obs.ObservedAt,
		InfoRevision:   1,
	}
	if obs.TokenInfo != nil {
		pool.TokenInfo = *obs.TokenInfo
	} else {
		pool.TokenInfo = domain.BaseTokenInfo{Address: obs.BaseToken}
	}
	applyNumeric(pool, obs)

	return &entry{
		pool:       pool,
		infoRank:   rank,
		infoAt:     obs.ObservedAt,
		infoSource: obs.SourceID,
		numAt:      obs.ObservedAt,
		numSource:  obs.SourceID,
	}
}
