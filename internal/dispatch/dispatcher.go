// Package dispatch executes admitted trades through custodied proxy
// wallets and drives each trade's forward-only lifecycle:
// pending -> submitted -> confirmed | failed | expired. Submission retries
// are bounded and stop permanently once a transaction has been broadcast;
// a hard deadline expires anything still open.
package dispatch

import (
	"context"
	"fmt"
	"log"
	"time"

	"dex-sniper-core/internal/admission"
	"dex-sniper-core/internal/domain"
	"dex-sniper-core/internal/idhash"
)

// Default configuration values.
const (
	DefaultMaxAttempts  = 2
	DefaultRetryDelay   = 500 * time.Millisecond
	DefaultDeadline     = 30 * time.Second
	DefaultConfirmEvery = 2 * time.Second
)

// TradeRecorder persists trades once they reach a terminal state.
// Append-only; the dispatcher owns the trade until then.
type TradeRecorder interface {
	SaveTrade(ctx context.Context, trade *domain.ProxyTrade) error
}

// Dispatcher turns admissions into executed trades.
type Dispatcher struct {
	wallet   WalletCustody
	recorder TradeRecorder // optional

	onUpdate   func(trade domain.ProxyTrade) // every status transition
	onTerminal func(trade domain.ProxyTrade)

	maxAttempts  int
	retryDelay   time.Duration
	deadline     time.Duration
	confirmEvery time.Duration

	logger *log.Logger
	now    func() int64
	sleep  func(ctx context.Context, d time.Duration) error
}

// Options configures a Dispatcher.
type Options struct {
	Wallet   WalletCustody
	Recorder TradeRecorder

	// OnUpdate fires on every status transition with a copy of the
	// trade. OnTerminal fires once, after the terminal transition.
	OnUpdate   func(trade domain.ProxyTrade)
	OnTerminal func(trade domain.ProxyTrade)

	MaxAttempts  int           // submission attempts before giving up
	RetryDelay   time.Duration // delay between submission attempts
	Deadline     time.Duration // hard lifecycle boundary per trade
	ConfirmEvery time.Duration // receipt poll interval

	Logger *log.Logger
	Now    func() int64
	Sleep  func(ctx context.Context, d time.Duration) error
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(opts Options) *Dispatcher {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = DefaultRetryDelay
	}
	if opts.Deadline <= 0 {
		opts.Deadline = DefaultDeadline
	}
	if opts.ConfirmEvery <= 0 {
		opts.ConfirmEvery = DefaultConfirmEvery
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.Now == nil {
		opts.Now = func() int64 { return time.Now().UnixMilli() }
	}
	if opts.Sleep == nil {
		opts.Sleep = func(ctx context.Context, d time.Duration) error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(d):
				return nil
			}
		}
	}
	return &Dispatcher{
		wallet:       opts.Wallet,
		recorder:     opts.Recorder,
		onUpdate:     opts.OnUpdate,
		onTerminal:   opts.OnTerminal,
		maxAttempts:  opts.MaxAttempts,
		retryDelay:   opts.RetryDelay,
		deadline:     opts.Deadline,
		confirmEvery: opts.ConfirmEvery,
		logger:       opts.Logger,
		now:          opts.Now,
		sleep:        opts.Sleep,
	}
}

// NewTrade builds a pending trade from an admission. The trade id is
// deterministic so a replayed admission maps to the same trade.
func (d *Dispatcher) NewTrade(adm *admission.Admission) *domain.ProxyTrade {
	cfg := adm.Config
	pool := adm.Pool
	createdAt := d.now()

	trade := &domain.ProxyTrade{
		DecisionID:   adm.Decision.DecisionID,
		UserID:       cfg.UserID,
		Chain:        pool.Chain,
		ProxyAddress: cfg.ProxyWallet,
		PoolAddress:  pool.PoolAddress,
		TokenIn:      cfg.QuoteToken,
		TokenOut:     pool.BaseToken,
		AmountIn:     cfg.MaxBuyAmount,
		MinAmountOut: minAmountOut(cfg.MaxBuyAmount, pool.PriceUSD, cfg.MaxSlippagePct),
		SlippagePct:  cfg.MaxSlippagePct,
		Status:       domain.TradePending,
		Deadline:     createdAt + d.deadline.Milliseconds(),
		CreatedAt:    createdAt,
		UpdatedAt:    createdAt,
	}
	trade.TradeID = idhash.ComputeTradeID(
		trade.DecisionID, trade.ProxyAddress, trade.TokenIn, trade.TokenOut, createdAt)
	return trade
}

// minAmountOut converts the spend amount into the fewest acceptable tokens
// at the last observed price. An unknown price disables the floor.
func minAmountOut(amountIn, priceUSD, slippagePct float64) float64 {
	if priceUSD <= 0 {
		return 0
	}
	expected := amountIn / priceUSD
	return expected * (1 - slippagePct/100)
}

// Execute drives the trade from pending to a terminal state. It blocks
// until the trade is terminal or ctx is cancelled; cancellation after
// broadcast leaves the trade expired, never resubmitted.
func (d *Dispatcher) Execute(ctx context.Context, trade *domain.ProxyTrade) error {
	if trade.Status != domain.TradePending {
		return fmt.Errorf("trade %s is %s, not pending", trade.TradeID, trade.Status)
	}

	if err := d.submit(ctx, trade); err != nil {
		return err
	}
	if trade.Status.Terminal() {
		return d.finish(ctx, trade)
	}
	if err := d.confirm(ctx, trade); err != nil {
		return err
	}
	return d.finish(ctx, trade)
}

// submit broadcasts the trade with bounded retries. Leaves the trade
// submitted on success, failed or expired otherwise.
func (d *Dispatcher) submit(ctx context.Context, trade *domain.ProxyTrade) error {
	var lastErr error

	for trade.Attempts < d.maxAttempts {
		if d.now() >= trade.Deadline {
			d.transition(trade, domain.TradeExpired, domain.TradeFailExpired)
			return nil
		}
		if trade.Attempts > 0 {
			if err := d.sleep(ctx, d.retryDelay); err != nil {
				d.transition(trade, domain.TradeExpired, domain.TradeFailExpired)
				return nil
			}
		}
		trade.Attempts++

		signed, err := d.wallet.Sign(ctx, trade)
		if err != nil {
			lastErr = err
			d.logger.Printf("[dispatch] sign attempt %d for %s: %v", trade.Attempts, trade.TradeID, err)
			continue
		}

		txHash, err := d.wallet.Submit(ctx, trade.Chain, signed)
		if err != nil {
			lastErr = err
			d.logger.Printf("[dispatch] submit attempt %d for %s: %v", trade.Attempts, trade.TradeID, err)
			continue
		}

		// Broadcast succeeded; from here the transaction is on the
		// network and must never be submitted again.
		trade.TxHash = &txHash
		d.transition(trade, domain.TradeSubmitted, "")
		return nil
	}

	d.logger.Printf("[dispatch] trade %s exhausted %d attempts: %v", trade.TradeID, trade.Attempts, lastErr)
	d.transition(trade, domain.TradeFailed, domain.TradeFailSubmission)
	return nil
}

// confirm polls for the receipt until the trade confirms, reverts, or the
// deadline passes.
func (d *Dispatcher) confirm(ctx context.Context, trade *domain.ProxyTrade) error {
	for {
		if d.now() >= trade.Deadline {
			d.transition(trade, domain.TradeExpired, domain.TradeFailExpired)
			return nil
		}

		receipt, err := d.wallet.GetReceipt(ctx, trade.Chain, *trade.TxHash)
		if err != nil {
			d.logger.Printf("[dispatch] receipt poll for %s: %v", trade.TradeID, err)
		} else if receipt != nil {
			if receipt.Success {
				d.transition(trade, domain.TradeConfirmed, "")
			} else {
				d.transition(trade, domain.TradeFailed, domain.TradeFailReverted)
			}
			return nil
		}

		if err := d.sleep(ctx, d.confirmEvery); err != nil {
			d.transition(trade, domain.TradeExpired, domain.TradeFailExpired)
			return nil
		}
	}
}

// transition applies a legal forward step and notifies listeners.
func (d *Dispatcher) transition(trade *domain.ProxyTrade, next domain.TradeStatus, failReason string) {
	if !trade.Status.CanTransition(next) {
		d.logger.Printf("[dispatch] illegal transition %s -> %s for %s", trade.Status, next, trade.TradeID)
		return
	}
	trade.Status = next
	trade.UpdatedAt = d.now()
	if failReason != "" {
		reason := failReason
		trade.FailReason = &reason
	}
	if d.onUpdate != nil {
		d.onUpdate(*trade)
	}
}

// finish persists the terminal trade and notifies the terminal listener.
func (d *Dispatcher) finish(ctx context.Context, trade *domain.ProxyTrade) error {
	if !trade.Status.Terminal() {
		return fmt.Errorf("trade %s finished non-terminal in %s", trade.TradeID, trade.Status)
	}
	if d.recorder != nil {
		if err := d.recorder.SaveTrade(ctx, trade); err != nil {
			d.logger.Printf("[dispatch] persist trade %s: %v", trade.TradeID, err)
		}
	}
	if d.onTerminal != nil {
		d.onTerminal(*trade)
	}
	return nil
}
