package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"dex-sniper-core/internal/domain"
)

// HTTPSigner asks the external custody service to build and sign a swap
// transaction for a proxy wallet. Keys never leave the custody service.
type HTTPSigner struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPSigner creates an HTTPSigner.
func NewHTTPSigner(baseURL string, timeout time.Duration) *HTTPSigner {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPSigner{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type signRequest struct {
	TradeID      string  `json:"tradeId"`
	Chain        string  `json:"chain"`
	ProxyWallet  string  `json:"proxyWallet"`
	PoolAddress  string  `json:"poolAddress"`
	TokenIn      string  `json:"tokenIn"`
	TokenOut     string  `json:"tokenOut"`
	AmountIn     float64 `json:"amountIn"`
	MinAmountOut float64 `json:"minAmountOut"`
	SlippagePct  float64 `json:"slippagePct"`
	Deadline     int64   `json:"deadline"`
}

type signResponse struct {
	SignedTx string `json:"signedTx"`
	Error    string `json:"error,omitempty"`
}

// SignSwap implements Signer.
func (s *HTTPSigner) SignSwap(ctx context.Context, trade *domain.ProxyTrade) (string, error) {
	body, err := json.Marshal(signRequest{
		TradeID:      trade.TradeID,
		Chain:        trade.Chain,
		ProxyWallet:  trade.ProxyAddress,
		PoolAddress:  trade.PoolAddress,
		TokenIn:      trade.TokenIn,
		TokenOut:     trade.TokenOut,
		AmountIn:     trade.AmountIn,
		MinAmountOut: trade.MinAmountOut,
		SlippagePct:  trade.SlippagePct,
		Deadline:     trade.Deadline,
	})
	if err != nil {
		return "", fmt.Errorf("marshal sign request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/v1/sign", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create sign request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("sign request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read sign response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("signer returned status %d: %s", resp.StatusCode, string(data))
	}

	var sr signResponse
	if err := json.Unmarshal(data, &sr); err != nil {
		return "", fmt.Errorf("parse sign response: %w", err)
	}
	if sr.Error != "" {
		return "", fmt.Errorf("signer rejected trade %s: %s", trade.TradeID, sr.Error)
	}
	if sr.SignedTx == "" {
		return "", fmt.Errorf("signer returned empty transaction for trade %s", trade.TradeID)
	}
	return sr.SignedTx, nil
}
