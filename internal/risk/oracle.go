package risk

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

// ErrOracleDegraded marks a security oracle failure. Assessment continues
// heuristic-only; the caller records Confidence=partial.
var ErrOracleDegraded = errors.New("security oracle degraded")

// SecurityInfo is the oracle's verdict for one token.
type SecurityInfo struct {
	Malicious bool
	Flags     []string // which provider flags fired
	FetchedAt int64    // ms
}

// SecurityOracle is the external token-security rating service. Internals
// of the rating are a black box; only the verdict contract matters here.
type SecurityOracle interface {
	GetTokenSecurity(ctx context.Context, chain, address string) (*SecurityInfo, error)
}

// OracleConfig configures the HTTP oracle client.
type OracleConfig struct {
	BaseURL     string        // e.g. "https://api.gopluslabs.io"
	CacheTTL    time.Duration // per-(chain,address) verdict cache
	MinInterval time.Duration // floor between upstream calls (rate limit)
	Timeout     time.Duration
}

// DefaultOracleConfig returns production defaults.
func DefaultOracleConfig() OracleConfig {
	return OracleConfig{
		BaseURL:     "https://api.gopluslabs.io",
		CacheTTL:    5 * time.Minute,
		MinInterval: time.Second,
		Timeout:     5 * time.Second,
	}
}

// HTTPOracle queries a GoPlus-style token security API with a TTL cache and
// a minimum interval between upstream calls.
type HTTPOracle struct {
	cfg    OracleConfig
	client *http.Client
	now    func() time.Time

	mu       sync.Mutex
	cache    map[string]cachedVerdict
	lastCall time.Time
}

type cachedVerdict struct {
	info    *SecurityInfo
	expires time.Time
}

// NewHTTPOracle creates an oracle client.
func NewHTTPOracle(cfg OracleConfig) *HTTPOracle {
	if cfg.BaseURL == "" {
		cfg = DefaultOracleConfig()
	}
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Second
	}
	return &HTTPOracle{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		now:    time.Now,
		cache:  make(map[string]cachedVerdict),
	}
}

// chainIDs maps canonical chain names to the provider's numeric chain ids.
var chainIDs = map[string]string{
	"ethereum": "1",
	"bsc":      "56",
	"base":     "8453",
	"solana":   "solana",
}

// securityResponse mirrors the provider envelope. Flag fields arrive as
// "0"/"1" strings.
type securityResponse struct {
	Code    int                          `json:"code"`
	Message string                       `json:"message"`
	Result  map[string]map[string]string `json:"result"`
}

// maliciousFlags are the provider fields that count as a malicious verdict.
var maliciousFlags = []string{
	"is_honeypot",
	"is_blacklisted",
	"transfer_pausable",
	"cannot_sell_all",
	"owner_change_balance",
	"selfdestruct",
}

// GetTokenSecurity implements SecurityOracle. Cached verdicts are returned
// without an upstream call; calls closer together than MinInterval fail
// degraded rather than hammering the provider.
func (o *HTTPOracle) GetTokenSecurity(ctx context.Context, chain, address string) (*SecurityInfo, error) {
	key := chain + ":" + strings.ToLower(address)

	o.mu.Lock()
	if v, ok := o.cache[key]; ok && o.now().Before(v.expires) {
		o.mu.Unlock()
		return v.info, nil
	}
	if o.cfg.MinInterval > 0 && o.now().Sub(o.lastCall) < o.cfg.MinInterval {
		o.mu.Unlock()
		return nil, fmt.Errorf("%w: rate limited", ErrOracleDegraded)
	}
	o.lastCall = o.now()
	o.mu.Unlock()

	info, err := o.fetch(ctx, chain, address)
	if err != nil {
		return nil, err
	}

	o.mu.Lock()
	o.cache[key] = cachedVerdict{info: info, expires: o.now().Add(o.cfg.CacheTTL)}
	o.mu.Unlock()
	return info, nil
}

func (o *HTTPOracle) fetch(ctx context.Context, chain, address string) (*SecurityInfo, error) {
	chainID, ok := chainIDs[chain]
	if !ok {
		chainID = chain
	}

	url := fmt.Sprintf("%s/api/v1/token_security/%s?contract_addresses=%s",
		o.cfg.BaseURL, chainID, address)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOracleDegraded, err)
	}

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOracleDegraded, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrOracleDegraded, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOracleDegraded, err)
	}

	var parsed securityResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrOracleDegraded, err)
	}
	if parsed.Code != 1 {
		return nil, fmt.Errorf("%w: api code %d: %s", ErrOracleDegraded, parsed.Code, parsed.Message)
	}

	info := &SecurityInfo{FetchedAt: o.now().UnixMilli()}
	attrs, ok := parsed.Result[strings.ToLower(address)]
	if !ok {
		// token unknown to the provider: a clean no-verdict answer
		return info, nil
	}
	for _, flag := range maliciousFlags {
		if attrs[flag] == "1" {
			info.Malicious = true
			info.Flags = append(info.Flags, flag)
		}
	}
	return info, nil
}
