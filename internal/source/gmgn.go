package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"dex-sniper-core/internal/domain"
)

// SourceGmgn is the adapter id for the GMGN ranked-swaps API. It is the only
// polled provider that reports token security attributes, so it ranks above
// pure market-data sources in the default merge priority.
const SourceGmgn = "gmgn"

// GmgnConfig configures the GMGN adapter.
type GmgnConfig struct {
	BaseURL      string // e.g. "https://gmgn.ai"
	Chain        string
	Timeframe    string // rank window: "1m", "5m", "1h"
	PollInterval time.Duration
	Timeout      time.Duration
}

// DefaultGmgnConfig returns production defaults.
func DefaultGmgnConfig() GmgnConfig {
	return GmgnConfig{
		BaseURL:      "https://gmgn.ai",
		Chain:        "sol",
		Timeframe:    "5m",
		PollInterval: 10 * time.Second,
		Timeout:      10 * time.Second,
	}
}

// GmgnSource polls GMGN's swap ranking, which carries per-token security
// attributes alongside market data.
type GmgnSource struct {
	cfg    GmgnConfig
	client *http.Client
	logger *log.Logger
}

// NewGmgnSource creates a GMGN adapter.
func NewGmgnSource(cfg GmgnConfig, logger *log.Logger) *GmgnSource {
	if cfg.BaseURL == "" {
		cfg = DefaultGmgnConfig()
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = 10 * time.Second
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if logger == nil {
		logger = log.Default()
	}
	return &GmgnSource{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

// ID implements Source.
func (s *GmgnSource) ID() string { return SourceGmgn }

// gmgnToken mirrors one rank entry. Flags arrive as 0/1 integers; pointer
// fields distinguish "not reported" from "reported false".
type gmgnToken struct {
	Address               string   `json:"address"`
	PoolAddress           string   `json:"pool_address"`
	Symbol                string   `json:"symbol"`
	Name                  string   `json:"name"`
	Exchange              string   `json:"exchange"`
	QuoteAddress          string   `json:"quote_address"`
	Price                 float64  `json:"price"`
	Liquidity             float64  `json:"liquidity"`
	MarketCap             float64  `json:"market_cap"`
	PoolCreationTimestamp int64    `json:"pool_creation_timestamp"` // seconds
	BuyTax                *float64 `json:"buy_tax"`                 // fraction, 0.05 = 5%
	SellTax               *float64 `json:"sell_tax"`
	IsHoneypot            *int     `json:"is_honeypot"`
	IsOpenSource          *int     `json:"is_open_source"`
	Renounced             *int     `json:"renounced"`
	Top10HolderRate       *float64 `json:"top_10_holder_rate"` // fraction
	LockedRate            *float64 `json:"locked_rate"`        // fraction of LP locked/burned
	RugRatio              *float64 `json:"rug_ratio"`
	SniperRate            *float64 `json:"sniper_rate"`
	BundlerRate           *float64 `json:"bundler_rate"`
	HolderCount           *int     `json:"holder_count"`
}

type gmgnResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data struct {
		Rank []gmgnToken `json:"rank"`
	} `json:"data"`
}

// Poll fetches the current swap ranking for the filtered chain/timeframe.
func (s *GmgnSource) Poll(ctx context.Context, filters PollFilters) ([]*domain.PoolObservation, error) {
	chain := filters.Chain
	if chain == "" {
		chain = s.cfg.Chain
	}
	timeframe := filters.Timeframe
	if timeframe == "" {
		timeframe = s.cfg.Timeframe
	}

	url := fmt.Sprintf("%s/defi/quotation/v1/rank/%s/swaps/%s", s.cfg.BaseURL, chain, timeframe)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, unavailable(SourceGmgn, err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, unavailable(SourceGmgn, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, unavailable(SourceGmgn, fmt.Errorf("status %d", resp.StatusCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, unavailable(SourceGmgn, err)
	}

	var parsed gmgnResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, unavailable(SourceGmgn, fmt.Errorf("decode response: %w", err))
	}
	if parsed.Code != 0 {
		return nil, unavailable(SourceGmgn, fmt.Errorf("api code %d: %s", parsed.Code, parsed.Msg))
	}

	now := time.Now().UnixMilli()
	observations := make([]*domain.PoolObservation, 0, len(parsed.Data.Rank))
	for i := range parsed.Data.Rank {
		obs := s.toObservation(chain, &parsed.Data.Rank[i], now)
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

// toObservation converts a rank entry to a normalized observation. Tax and
// holder rates arrive as fractions and are normalized to percent.
func (s *GmgnSource) toObservation(chain string, t *gmgnToken, observedAt int64) *domain.PoolObservation {
	if t.Address == "" || t.PoolAddress == "" {
		return nil
	}

	obs := &domain.PoolObservation{
		Chain:       normalizeChain(chain),
		PoolAddress: t.PoolAddress,
		Exchange:    t.Exchange,
		SourceID:    SourceGmgn,
		BaseToken:   t.Address,
		QuoteToken:  t.QuoteAddress,
		CreatedAt:   t.PoolCreationTimestamp * 1000,
		ObservedAt:  observedAt,
	}

	if t.Liquidity > 0 {
		liq := t.Liquidity
		obs.LiquidityUSD = &liq
	}
	if t.Price > 0 {
		price := t.Price
		obs.PriceUSD = &price
	}
	if t.MarketCap > 0 {
		mc := t.MarketCap
		obs.MarketCapUSD = &mc
	}

	info := &domain.BaseTokenInfo{Address: t.Address}
	if t.Name != "" {
		name := t.Name
		info.Name = &name
	}
	if t.Symbol != "" {
		sym := t.Symbol
		info.Symbol = &sym
	}
	info.BuyTaxPct = fractionToPct(t.BuyTax)
	info.SellTaxPct = fractionToPct(t.SellTax)
	info.Honeypot = intToBool(t.IsHoneypot)
	info.OpenSource = intToBool(t.IsOpenSource)
	info.Renounced = intToBool(t.Renounced)
	info.Top10HolderPct = fractionToPct(t.Top10HolderRate)
	info.LockPct = fractionToPct(t.LockedRate)
	if t.RugRatio != nil {
		v := *t.RugRatio
		info.RugRatio = &v
	}
	info.SniperPct = fractionToPct(t.SniperRate)
	info.BundlerPct = fractionToPct(t.BundlerRate)
	if t.HolderCount != nil {
		v := *t.HolderCount
		info.HolderCount = &v
	}
	obs.TokenInfo = info

	return obs
}

// Stream polls on an interval, same restart semantics as DexScreener.
func (s *GmgnSource) Stream(ctx context.Context) (<-chan *domain.PoolObservation, error) {
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
					s.logger.Printf("[gmgn] poll failed: %v", err)
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

func fractionToPct(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f * 100
	return &v
}

func intToBool(i *int) *bool {
	if i == nil {
		return nil
	}
	v := *i != 0
	return &v
}

// normalizeChain maps provider chain slugs to canonical chain ids.
func normalizeChain(chain string) string {
	switch chain {
	case "sol":
		return "solana"
	case "eth":
		return "ethereum"
	default:
		return chain
	}
}
