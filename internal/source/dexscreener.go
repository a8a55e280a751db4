package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"dex-sniper-core/internal/domain"
)

// SourceDexScreener is the adapter id for the DexScreener pair API.
const SourceDexScreener = "dexscreener"

// DexScreenerConfig configures the DexScreener adapter.
type DexScreenerConfig struct {
	BaseURL      string        // e.g. "https://api.dexscreener.com"
	Chain        string        // default chain for Poll/Stream
	PollInterval time.Duration // Stream poll cadence
	Timeout      time.Duration // per-request timeout
}

// DefaultDexScreenerConfig returns production defaults.
func DefaultDexScreenerConfig() DexScreenerConfig {
	return DexScreenerConfig{
		BaseURL:      "https://api.dexscreener.com",
		Chain:        "solana",
		PollInterval: 5 * time.Second,
		Timeout:      10 * time.Second,
	}
}

// DexScreenerSource polls the DexScreener pair API for trending/new pairs.
type DexScreenerSource struct {
	cfg    DexScreenerConfig
	client *http.Client
	logger *log.Logger
}

// NewDexScreenerSource creates a DexScreener adapter.
func NewDexScreenerSource(cfg DexScreenerConfig, logger *log.Logger) *DexScreenerSource {
	if cfg.BaseURL == "" {
		cfg = DefaultDexScreenerConfig()
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if logger == nil {
		logger = log.Default()
	}
	return &DexScreenerSource{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

// ID implements Source.
func (s *DexScreenerSource) ID() string { return SourceDexScreener }

// dsPair mirrors the provider's pair object. Numeric strings are parsed
// leniently: a malformed field drops the value, not the observation.
type dsPair struct {
	ChainID     string `json:"chainId"`
	DexID       string `json:"dexId"`
	PairAddress string `json:"pairAddress"`
	BaseToken   struct {
		Address string `json:"address"`
		Name    string `json:"name"`
		Symbol  string `json:"symbol"`
	} `json:"baseToken"`
	QuoteToken struct {
		Address string `json:"address"`
	} `json:"quoteToken"`
	PriceUSD  string `json:"priceUsd"`
	Liquidity struct {
		USD  float64 `json:"usd"`
		Base float64 `json:"base"`
	} `json:"liquidity"`
	MarketCap     float64 `json:"marketCap"`
	PairCreatedAt int64   `json:"pairCreatedAt"` // ms
}

type dsResponse struct {
	Pairs []dsPair `json:"pairs"`
}

// Poll fetches the latest pairs for the filtered chain.
func (s *DexScreenerSource) Poll(ctx context.Context, filters PollFilters) ([]*domain.PoolObservation, error) {
	chain := filters.Chain
	if chain == "" {
		chain = s.cfg.Chain
	}

	url := fmt.Sprintf("%s/latest/dex/pairs/%s", s.cfg.BaseURL, chain)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, unavailable(SourceDexScreener, err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, unavailable(SourceDexScreener, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, unavailable(SourceDexScreener, fmt.Errorf("status %d", resp.StatusCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, unavailable(SourceDexScreener, err)
	}

	var parsed dsResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, unavailable(SourceDexScreener, fmt.Errorf("decode response: %w", err))
	}

	now := time.Now().UnixMilli()
	observations := make([]*domain.PoolObservation, 0, len(parsed.Pairs))
	for i := range parsed.Pairs {
		obs := s.toObservation(&parsed.Pairs[i], now)
		if obs == nil {
			continue
		}
		observations = append(observations, obs)
		if filters.Limit > 0 && len(observations) >= filters.Limit {
			break
		}
	}
	return observations, nil
}

// toObservation converts a provider pair to a normalized observation.
// Returns nil for rows missing identity fields.
func (s *DexScreenerSource) toObservation(p *dsPair, observedAt int64) *domain.PoolObservation {
	if p.PairAddress == "" || p.BaseToken.Address == "" {
		return nil
	}

	obs := &domain.PoolObservation{
		Chain:       p.ChainID,
		PoolAddress: p.PairAddress,
		Exchange:    p.DexID,
		SourceID:    SourceDexScreener,
		BaseToken:   p.BaseToken.Address,
		QuoteToken:  p.QuoteToken.Address,
		CreatedAt:   p.PairCreatedAt,
		ObservedAt:  observedAt,
	}

	if p.Liquidity.USD > 0 {
		liq := p.Liquidity.USD
		obs.LiquidityUSD = &liq
	}
	if p.MarketCap > 0 {
		mc := p.MarketCap
		obs.MarketCapUSD = &mc
	}
	if price, err := strconv.ParseFloat(p.PriceUSD, 64); err == nil && price > 0 {
		obs.PriceUSD = &price
	}

	info := &domain.BaseTokenInfo{Address: p.BaseToken.Address}
	if p.BaseToken.Name != "" {
		name := p.BaseToken.Name
		info.Name = &name
	}
	if p.BaseToken.Symbol != "" {
		sym := p.BaseToken.Symbol
		info.Symbol = &sym
	}
	obs.TokenInfo = info

	return obs
}

// Stream polls on an interval and emits each batch. Restart-after-failure is
// just the next tick; a failing cycle is logged and skipped.
func (s *DexScreenerSource) Stream(ctx context.Context) (<-chan *domain.PoolObservation, error) {
	out := make(chan *domain.PoolObservation, 100)

	go func() {
		defer close(out)
		ticker := time.NewTicker(s.cfg.PollInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				observations, err := s.Poll(ctx, PollFilters{})
				if err != nil {
					s.logger.Printf("[dexscreener] poll failed: %v", err)
					continue
				}
				for _, obs := range observations {
					select {
					case out <- obs:
					case <-ctx.Done():
						return
					}
				}
			}
		}
	}()

	return out, nil
}
