// Package pipeline wires the live stages end to end. It coordinates:
// sources → aggregator → risk screening → admission → dispatch, with
// every state change fanned out through the broadcast hub. Each stage
// keeps its own failure domain: a broken source, a failed persistence
// write or a reverted trade is logged and counted, never fatal to the
// run.
package pipeline

import (
	"context"
	"errors"
	"hash/fnv"
	"log"
	"sync"
	"time"

	"dex-sniper-core/internal/admission"
	"dex-sniper-core/internal/aggregator"
	"dex-sniper-core/internal/broadcast"
	"dex-sniper-core/internal/dispatch"
	"dex-sniper-core/internal/domain"
	"dex-sniper-core/internal/observability"
	"dex-sniper-core/internal/risk"
	"dex-sniper-core/internal/source"
	"dex-sniper-core/internal/storage"
)

const (
	// DefaultWorkers is the pool-event evaluation concurrency.
	DefaultWorkers = 4
	// DefaultBatchSize is the observation persistence batch size.
	DefaultBatchSize = 100
	// DefaultFlushInterval bounds how long a partial batch may wait.
	DefaultFlushInterval = 2 * time.Second
	// DefaultStatsInterval is the gauge/counter refresh cadence.
	DefaultStatsInterval = 5 * time.Second

	// obsBuffer decouples the persistence path from the merge path.
	obsBuffer = 512
)

// Options configures a Pipeline. Sources, Aggregator, Screener,
// Controller, Wallet and Hub are required; the rest is optional.
type Options struct {
	Sources    []source.Source
	Aggregator *aggregator.Aggregator
	Screener   *risk.Screener
	Controller *admission.Controller
	Hub        *broadcast.Hub

	// Dispatch configures the trade dispatcher the pipeline builds.
	// The pipeline wraps OnUpdate/OnTerminal to publish hub events and
	// release admission slots before calling any caller-supplied hook.
	Dispatch dispatch.Options

	// Observations, when set, receives every ingested observation in
	// batches. Write failures are logged and the batch is discarded.
	Observations storage.ObservationStore

	Metrics *observability.Metrics
	Logger  *log.Logger

	Workers       int
	BatchSize     int
	FlushInterval time.Duration
	StatsInterval time.Duration
}

// Pipeline runs the discovery-to-trade flow.
type Pipeline struct {
	sources    []source.Source
	agg        *aggregator.Aggregator
	screener   *risk.Screener
	controller *admission.Controller
	dispatcher *dispatch.Dispatcher
	hub        *broadcast.Hub

	observations storage.ObservationStore
	metrics      *observability.Metrics
	logger       *log.Logger

	workers       int
	batchSize     int
	flushInterval time.Duration
	statsInterval time.Duration

	obsCh chan *domain.PoolObservation

	// tradeWG tracks in-flight trade goroutines so Run can drain them.
	tradeWG sync.WaitGroup
}

// New creates a Pipeline. Call Run to start it.
func New(opts Options) *Pipeline {
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = DefaultFlushInterval
	}
	if opts.StatsInterval <= 0 {
		opts.StatsInterval = DefaultStatsInterval
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}

	p := &Pipeline{
		sources:       opts.Sources,
		agg:           opts.Aggregator,
		screener:      opts.Screener,
		controller:    opts.Controller,
		hub:           opts.Hub,
		observations:  opts.Observations,
		metrics:       opts.Metrics,
		logger:        opts.Logger,
		workers:       opts.Workers,
		batchSize:     opts.BatchSize,
		flushInterval: opts.FlushInterval,
		statsInterval: opts.StatsInterval,
		obsCh:         make(chan *domain.PoolObservation, obsBuffer),
	}

	dopts := opts.Dispatch
	userUpdate, userTerminal := dopts.OnUpdate, dopts.OnTerminal
	dopts.OnUpdate = func(trade domain.ProxyTrade) {
		p.publishTradeUpdate(trade)
		if userUpdate != nil {
			userUpdate(trade)
		}
	}
	dopts.OnTerminal = func(trade domain.ProxyTrade) {
		p.finishTrade(trade)
		if userTerminal != nil {
			userTerminal(trade)
		}
	}
	if dopts.Logger == nil {
		dopts.Logger = opts.Logger
	}
	p.dispatcher = dispatch.NewDispatcher(dopts)
	return p
}

// Dispatcher returns the dispatcher the pipeline built.
func (p *Pipeline) Dispatcher() *dispatch.Dispatcher {
	return p.dispatcher
}

// Run starts every stage and blocks until ctx is cancelled. On
// cancellation the source streams close, the aggregator drains its
// shards, the event workers finish the queued pool events and in-flight
// trades run to a terminal state before Run returns.
func (p *Pipeline) Run(ctx context.Context) error {
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		// Run returns ctx.Err() after a clean drain.
		_ = p.agg.Run(ctx)
	}()

	for _, src := range p.sources {
		wg.Add(1)
		go func(src source.Source) {
			defer wg.Done()
			p.streamLoop(ctx, src)
		}(src)
	}

	if p.observations != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.persistLoop(ctx)
		}()
	}

	// Pool events are partitioned by key so one pool's events are always
	// handled by the same worker, in emit order. Fanning all workers over
	// one channel would let a pool_updated overtake its pool_created.
	lanes := make([]chan aggregator.PoolEvent, p.workers)
	for i := range lanes {
		lanes[i] = make(chan aggregator.PoolEvent, 16)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		p.routeEvents(lanes)
	}()
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func(lane <-chan aggregator.PoolEvent) {
			defer wg.Done()
			p.eventLoop(ctx, lane)
		}(lanes[i])
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		p.statsLoop(ctx)
	}()

	<-ctx.Done()
	wg.Wait()
	p.tradeWG.Wait()
	return ctx.Err()
}

// streamLoop consumes one source's observation stream. The adapter
// reconnects internally, so a closed channel means ctx ended.
func (p *Pipeline) streamLoop(ctx context.Context, src source.Source) {
	ch, err := src.Stream(ctx)
	if err != nil {
		p.logger.Printf("[pipeline] source %s stream failed: %v", src.ID(), err)
		if p.metrics != nil {
			p.metrics.SourceErrors.WithLabelValues(src.ID()).Inc()
		}
		return
	}
	for obs := range ch {
		if p.metrics != nil {
			p.metrics.ObservationsIngested.WithLabelValues(src.ID()).Inc()
		}
		if p.observations != nil {
			select {
			case p.obsCh <- obs:
			default:
				// Persistence is best effort; the merge path wins.
			}
		}
		if err := p.agg.Apply(ctx, obs); err != nil && !errors.Is(err, context.Canceled) {
			p.logger.Printf("[pipeline] apply observation from %s: %v", src.ID(), err)
		}
	}
}

// persistLoop batches observations into the observation store.
func (p *Pipeline) persistLoop(ctx context.Context) {
	ticker := time.NewTicker(p.flushInterval)
	defer ticker.Stop()

	batch := make([]*domain.PoolObservation, 0, p.batchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		// Flushes outlive ctx so the final batch is not lost on shutdown.
		wctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := p.observations.InsertBulk(wctx, batch); err != nil {
			p.logger.Printf("[pipeline] persist %d observations: %v", len(batch), err)
		}
		cancel()
		batch = batch[:0]
	}

	for {
		select {
		case <-ctx.Done():
			// Drain whatever the source loops already queued.
			for {
				select {
				case obs := <-p.obsCh:
					batch = append(batch, obs)
				default:
					flush()
					return
				}
			}
		case obs := <-p.obsCh:
			batch = append(batch, obs)
			if len(batch) >= p.batchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}

// routeEvents assigns each pool event to its key's lane. It drains the
// aggregator's stream to completion, then closes every lane.
func (p *Pipeline) routeEvents(lanes []chan aggregator.PoolEvent) {
	for ev := range p.agg.Events() {
		lanes[laneFor(ev.Pool.Key(), len(lanes))] <- ev
	}
	for _, lane := range lanes {
		close(lane)
	}
}

func laneFor(key domain.PoolKey, n int) int {
	h := fnv.New32a()
	h.Write([]byte(key.Chain))
	h.Write([]byte{0})
	h.Write([]byte(key.Address))
	return int(h.Sum32()) % n
}

// eventLoop consumes one lane until the router closes it.
func (p *Pipeline) eventLoop(ctx context.Context, lane <-chan aggregator.PoolEvent) {
	for ev := range lane {
		p.handleEvent(ctx, ev)
	}
}

func (p *Pipeline) handleEvent(ctx context.Context, ev aggregator.PoolEvent) {
	pool := ev.Pool

	if p.metrics != nil {
		switch ev.Type {
		case domain.EventPoolCreated:
			p.metrics.PoolsCreated.Inc()
		case domain.EventPoolUpdated:
			p.metrics.MaterialUpdates.Inc()
		}
	}

	topic := domain.TopicPool(pool.Chain, pool.PoolAddress)
	if err := p.hub.Publish(topic, ev.Type, domain.PoolEventPayload{Pool: pool}); err != nil {
		p.logger.Printf("[pipeline] publish %s: %v", ev.Type, err)
	}

	p.evaluate(ctx, &pool)
}

// evaluate screens a pool and runs admission. A stale assessment is
// retried once against the aggregator's current snapshot; if the pool
// moved again in between, the next event re-evaluates it anyway.
func (p *Pipeline) evaluate(ctx context.Context, pool *domain.Pool) {
	assessment := p.assess(ctx, pool)

	result, err := p.controller.Evaluate(ctx, pool, assessment)
	if errors.Is(err, admission.ErrStaleAssessment) {
		current, ok := p.agg.Get(pool.Key())
		if !ok {
			return
		}
		pool = &current
		assessment = p.assess(ctx, pool)
		result, err = p.controller.Evaluate(ctx, pool, assessment)
	}
	if err != nil {
		p.logger.Printf("[pipeline] evaluate %s: %v", pool.Key(), err)
		return
	}

	if p.metrics != nil {
		for _, d := range result.Decisions {
			p.metrics.DecisionsTotal.WithLabelValues(string(d.Outcome)).Inc()
		}
	}

	for _, adm := range result.Admitted {
		trade := p.dispatcher.NewTrade(adm)
		p.tradeWG.Add(1)
		go func(trade *domain.ProxyTrade) {
			defer p.tradeWG.Done()
			if err := p.dispatcher.Execute(ctx, trade); err != nil {
				p.logger.Printf("[pipeline] execute trade %s: %v", trade.TradeID, err)
			}
		}(trade)
	}
}

func (p *Pipeline) assess(ctx context.Context, pool *domain.Pool) *domain.RiskAssessment {
	started := time.Now()
	assessment := p.screener.Assess(ctx, pool)
	if p.metrics != nil {
		p.metrics.AssessmentLatency.Observe(time.Since(started).Seconds())
		p.metrics.AssessmentsTotal.WithLabelValues(string(assessment.Level)).Inc()
		if assessment.OracleChecked {
			p.metrics.OracleCalls.WithLabelValues("ok").Inc()
		} else if assessment.Confidence == domain.ConfidencePartial {
			p.metrics.OracleCalls.WithLabelValues("degraded").Inc()
		}
	}
	return assessment
}

// publishTradeUpdate fans a trade transition out to its token room.
func (p *Pipeline) publishTradeUpdate(trade domain.ProxyTrade) {
	topic := domain.TopicTrades(trade.TokenOut)
	if err := p.hub.Publish(topic, domain.EventTradeUpdate, domain.TradeEventPayload{Trade: trade}); err != nil {
		p.logger.Printf("[pipeline] publish trade update %s: %v", trade.TradeID, err)
	}
}

// finishTrade alerts the proxy wallet's room once a trade reaches a
// terminal state. The admission slot is freed only after a failed or
// expired trade; a confirmed buy keeps the (user, pool) pair held so
// later material updates cannot re-buy the same pool.
func (p *Pipeline) finishTrade(trade domain.ProxyTrade) {
	if trade.Status == domain.TradeFailed || trade.Status == domain.TradeExpired {
		p.controller.Release(trade.UserID, domain.PoolKey{Chain: trade.Chain, Address: trade.PoolAddress})
	}

	if p.metrics != nil {
		p.metrics.TradesTotal.WithLabelValues(string(trade.Status)).Inc()
		p.metrics.SubmitAttempts.Add(float64(trade.Attempts))
		p.metrics.TradeDuration.Observe(float64(trade.UpdatedAt-trade.CreatedAt) / 1000)
	}

	payload := domain.WalletEventPayload{
		Address: trade.ProxyAddress,
		Message: "trade " + string(trade.Status) + ": " + trade.TokenOut,
		TradeID: trade.TradeID,
	}
	topic := domain.TopicWallet(trade.ProxyAddress)
	if err := p.hub.Publish(topic, domain.EventWalletAlert, payload); err != nil {
		p.logger.Printf("[pipeline] publish wallet alert %s: %v", trade.TradeID, err)
	}
}

// statsLoop refreshes the gauges and forwards the stages' internal drop
// counters into the metrics registry as deltas.
func (p *Pipeline) statsLoop(ctx context.Context) {
	if p.metrics == nil {
		return
	}
	ticker := time.NewTicker(p.statsInterval)
	defer ticker.Stop()

	var lastAggDropped int64
	var lastHubPublished, lastHubDropped uint64
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.metrics.PoolsTracked.Set(float64(p.agg.Len()))
			p.metrics.SubscribersGauge.Set(float64(p.hub.TotalSubscribers()))

			if d := p.agg.DroppedEvents(); d > lastAggDropped {
				p.metrics.PoolEventsDropped.Add(float64(d - lastAggDropped))
				lastAggDropped = d
			}
			published, dropped := p.hub.Stats()
			if published > lastHubPublished {
				p.metrics.EventsPublished.Add(float64(published - lastHubPublished))
				lastHubPublished = published
			}
			if dropped > lastHubDropped {
				p.metrics.EventsDropped.Add(float64(dropped - lastHubDropped))
				lastHubDropped = dropped
			}
		}
	}
}
