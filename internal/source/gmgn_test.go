package source

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

const gmgnFixture = `{
	"code": 0,
	"msg": "success",
	"data": {
		"rank": [
			{
				"address": "MintCCC",
				"pool_address": "PoolCCC",
				"symbol": "GMA",
				"name": "Gamma",
				"exchange": "raydium",
				"quote_address": "So11111111111111111111111111111111111111112",
				"price": 0.001,
				"liquidity": 22000,
				"market_cap": 150000,
				"pool_creation_timestamp": 1700000000,
				"buy_tax": 0.05,
				"sell_tax": 0.07,
				"is_honeypot": 0,
				"is_open_source": 1,
				"renounced": 1,
				"top_10_holder_rate": 0.31,
				"locked_rate": 0.95,
				"rug_ratio": 0.1,
				"sniper_rate": 0.12,
				"holder_count": 420
			}
		]
	}
}`

func TestGmgnPoll_SecurityAttributes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/defi/quotation/v1/rank/sol/swaps/5m" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.Write([]byte(gmgnFixture))
	}))
	defer server.Close()

	src := NewGmgnSource(GmgnConfig{BaseURL: server.URL, Chain: "sol", Timeframe: "5m"}, nil)

	observations, err := src.Poll(context.Background(), PollFilters{})
	if err != nil {
		t.Fatalf("Poll failed: %v", err)
	}
	if len(observations) != 1 {
		t.Fatalf("expected 1 observation, got %d", len(observations))
	}

	obs := observations[0]
	if obs.Chain != "solana" {
		t.Errorf("chain should normalize sol -> solana, got %s", obs.Chain)
	}
	if obs.CreatedAt != 1700000000000 {
		t.Errorf("pool creation should convert to ms, got %d", obs.CreatedAt)
	}

	info := obs.TokenInfo
	if info == nil {
		t.Fatal("token info missing")
	}
	if info.BuyTaxPct == nil || *info.BuyTaxPct != 5 {
		t.Errorf("buy tax should be 5%%, got %v", info.BuyTaxPct)
	}
	if info.SellTaxPct == nil || *info.SellTaxPct < 6.99 || *info.SellTaxPct > 7.01 {
		t.Errorf("sell tax should be ~7%%, got %v", info.SellTaxPct)
	}
	if info.Honeypot == nil || *info.Honeypot {
		t.Errorf("honeypot should be reported false, got %v", info.Honeypot)
	}
	if info.Renounced == nil || !*info.Renounced {
		t.Errorf("renounced should be true, got %v", info.Renounced)
	}
	if info.LockPct == nil || *info.LockPct != 95 {
		t.Errorf("lock pct should be 95, got %v", info.LockPct)
	}
	if info.BundlerPct != nil {
		t.Error("bundler rate was not reported and must stay nil")
	}
	if info.HolderCount == nil || *info.HolderCount != 420 {
		t.Errorf("holder count wrong: %v", info.HolderCount)
	}
}

func TestGmgnPoll_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code": 500, "msg": "rate limited"}`))
	}))
	defer server.Close()

	src := NewGmgnSource(GmgnConfig{BaseURL: server.URL, Chain: "sol", Timeframe: "5m"}, nil)

	_, err := src.Poll(context.Background(), PollFilters{})
	if !errors.Is(err, ErrSourceUnavailable) {
		t.Fatalf("expected ErrSourceUnavailable, got %v", err)
	}
}
