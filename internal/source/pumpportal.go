package source

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/gorilla/websocket"

	"dex-sniper-core/internal/domain"
)

// SourcePumpPortal is the adapter id for the PumpPortal new-token stream.
const SourcePumpPortal = "pumpportal"

// PumpPortalConfig configures the PumpPortal adapter.
type PumpPortalConfig struct {
	Endpoint          string // e.g. "wss://pumpportal.fun/api/data"
	SolPriceUSD       float64
	ReconnectDelay    time.Duration
	MaxReconnectDelay time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
}

// DefaultPumpPortalConfig returns production defaults.
func DefaultPumpPortalConfig() PumpPortalConfig {
	return PumpPortalConfig{
		Endpoint:          "wss://pumpportal.fun/api/data",
		SolPriceUSD:       150,
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
	}
}

// PumpPortalSource streams pump.fun token launches over WebSocket. True
// streaming source: observations arrive as launches happen, with reconnect
// and resubscribe on disconnect.
type PumpPortalSource struct {
	cfg    PumpPortalConfig
	logger *log.Logger
}

// NewPumpPortalSource creates a PumpPortal adapter.
func NewPumpPortalSource(cfg PumpPortalConfig, logger *log.Logger) *PumpPortalSource {
	if cfg.Endpoint == "" {
		cfg = DefaultPumpPortalConfig()
	}
	if cfg.ReconnectDelay == 0 {
		cfg.ReconnectDelay = 1 * time.Second
	}
	if cfg.MaxReconnectDelay == 0 {
		cfg.MaxReconnectDelay = 30 * time.Second
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 60 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if logger == nil {
		logger = log.Default()
	}
	return &PumpPortalSource{cfg: cfg, logger: logger}
}

// ID implements Source.
func (s *PumpPortalSource) ID() string { return SourcePumpPortal }

// ppNewToken mirrors the provider's new-token message.
type ppNewToken struct {
	TxType                string  `json:"txType"` // "create" on launch
	Mint                  string  `json:"mint"`
	Name                  string  `json:"name"`
	Symbol                string  `json:"symbol"`
	BondingCurveKey       string  `json:"bondingCurveKey"`
	MarketCapSol          float64 `json:"marketCapSol"`
	VSolInBondingCurve    float64 `json:"vSolInBondingCurve"`
	VTokensInBondingCurve float64 `json:"vTokensInBondingCurve"`
	Signature             string  `json:"signature"`
}

// Poll is unsupported for a push-only stream: it returns whatever arrives
// within the request timeout, which for launch feeds is usually empty.
// Callers wanting launches should use Stream.
func (s *PumpPortalSource) Poll(ctx context.Context, _ PollFilters) ([]*domain.PoolObservation, error) {
	return nil, unavailable(SourcePumpPortal, errors.New("poll not supported, use Stream"))
}

// Stream connects, subscribes to new-token events, and reconnects with
// exponential backoff on any failure. The channel closes only when ctx ends.
func (s *PumpPortalSource) Stream(ctx context.Context) (<-chan *domain.PoolObservation, error) {
	out := make(chan *domain.PoolObservation, 100)

	go func() {
		defer close(out)
		delay := s.cfg.ReconnectDelay

		for {
			if ctx.Err() != nil {
				return
			}

			err := s.runConnection(ctx, out)
			if err != nil && ctx.Err() == nil {
				s.logger.Printf("[pumpportal] connection lost: %v, reconnecting in %v", err, delay)
			}

			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}

			delay *= 2
			if delay > s.cfg.MaxReconnectDelay {
				delay = s.cfg.MaxReconnectDelay
			}
		}
	}()

	return out, nil
}

// runConnection holds one WebSocket session: dial, subscribe, read until error.
func (s *PumpPortalSource) runConnection(ctx context.Context, out chan<- *domain.PoolObservation) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, s.cfg.Endpoint, nil)
	if err != nil {
		return unavailable(SourcePumpPortal, err)
	}
	defer conn.Close()

	// Close the socket when ctx ends so ReadMessage unblocks.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
	sub := map[string]string{"method": "subscribeNewToken"}
	if err := conn.WriteJSON(sub); err != nil {
		return unavailable(SourcePumpPortal, err)
	}

	for {
		conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return unavailable(SourcePumpPortal, err)
		}

		var msg ppNewToken
		if err := json.Unmarshal(raw, &msg); err != nil {
			continue // subscription acks and heartbeats are not token events
		}

		obs := s.toObservation(&msg, time.Now().UnixMilli())
		if obs == nil {
			continue
		}

		select {
		case out <- obs:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// toObservation converts a launch message to an observation. Launches carry
// no security attributes; the info snapshot is identity-only and the risk
// screener treats the signals as missing.
func (s *PumpPortalSource) toObservation(m *ppNewToken, observedAt int64) *domain.PoolObservation {
	if m.Mint == "" || m.BondingCurveKey == "" {
		return nil
	}
	// Launch mints come from freshly generated keypairs, so they must lie
	// on the ed25519 curve; the bonding curve account is a PDA and only
	// needs to decode.
	if !IsWalletAddress(m.Mint) || !IsValidSolanaAddress(m.BondingCurveKey) {
		return nil
	}

	obs := &domain.PoolObservation{
		Chain:       "solana",
		PoolAddress: m.BondingCurveKey,
		Exchange:    "pumpfun",
		SourceID:    SourcePumpPortal,
		BaseToken:   m.Mint,
		QuoteToken:  "So11111111111111111111111111111111111111112",
		CreatedAt:   observedAt,
		ObservedAt:  observedAt,
	}

	if m.VSolInBondingCurve > 0 && s.cfg.SolPriceUSD > 0 {
		liq := m.VSolInBondingCurve * s.cfg.SolPriceUSD
		obs.LiquidityUSD = &liq
		reserve := m.VSolInBondingCurve
		obs.QuoteReserve = &reserve
	}
	if m.VTokensInBondingCurve > 0 {
		reserve := m.VTokensInBondingCurve
		obs.BaseReserve = &reserve
	}
	if m.MarketCapSol > 0 && s.cfg.SolPriceUSD > 0 {
		mc := m.MarketCapSol * s.cfg.SolPriceUSD
		obs.MarketCapUSD = &mc
	}

	info := &domain.BaseTokenInfo{Address: m.Mint}
	if m.Name != "" {
		name := m.Name
		info.Name = &name
	}
	if m.Symbol != "" {
		sym := m.Symbol
		info.Symbol = &sym
	}
	obs.TokenInfo = info

	return obs
}
