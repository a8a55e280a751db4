package chain

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"dex-sniper-core/internal/dispatch"
	"dex-sniper-core/internal/domain"
)

// Signer is the external custody service holding proxy wallet keys. It
// builds and signs the swap; the raw key never reaches this process.
type Signer interface {
	SignSwap(ctx context.Context, trade *domain.ProxyTrade) (signedTx string, err error)
}

// Custody implements dispatch.WalletCustody on top of a Signer and one
// JSON-RPC node client per chain.
type Custody struct {
	signer  Signer
	clients map[string]*Client
	logger  *log.Logger
}

// NewCustody creates a Custody. clients maps chain name to node client.
func NewCustody(signer Signer, clients map[string]*Client, logger *log.Logger) *Custody {
	if logger == nil {
		logger = log.Default()
	}
	return &Custody{signer: signer, clients: clients, logger: logger}
}

func (c *Custody) client(chain string) (*Client, error) {
	client, ok := c.clients[chain]
	if !ok {
		return nil, fmt.Errorf("no node client for chain %q", chain)
	}
	return client, nil
}

// Sign implements dispatch.WalletCustody.
func (c *Custody) Sign(ctx context.Context, trade *domain.ProxyTrade) (string, error) {
	return c.signer.SignSwap(ctx, trade)
}

// Submit implements dispatch.WalletCustody. Solana nodes take base64
// payloads via sendTransaction; EVM nodes take hex via
// eth_sendRawTransaction. Both return the transaction identifier.
func (c *Custody) Submit(ctx context.Context, chain, signedTx string) (string, error) {
	client, err := c.client(chain)
	if err != nil {
		return "", err
	}

	var txHash string
	if chain == "solana" {
		params := []interface{}{signedTx, map[string]interface{}{"encoding": "base64"}}
		if err := client.Call(ctx, "sendTransaction", params, &txHash); err != nil {
			return "", fmt.Errorf("sendTransaction: %w", err)
		}
	} else {
		if err := client.Call(ctx, "eth_sendRawTransaction", []interface{}{signedTx}, &txHash); err != nil {
			return "", fmt.Errorf("eth_sendRawTransaction: %w", err)
		}
	}
	if txHash == "" {
		return "", fmt.Errorf("node returned empty tx hash for chain %s", chain)
	}
	return txHash, nil
}

// GetReceipt implements dispatch.WalletCustody.
func (c *Custody) GetReceipt(ctx context.Context, chain, txHash string) (*dispatch.Receipt, error) {
	client, err := c.client(chain)
	if err != nil {
		return nil, err
	}
	if chain == "solana" {
		return solanaReceipt(ctx, client, txHash)
	}
	return evmReceipt(ctx, client, txHash)
}

// signatureStatusResult mirrors getSignatureStatuses.
type signatureStatusResult struct {
	Value []*struct {
		Slot               int64       `json:"slot"`
		ConfirmationStatus string      `json:"confirmationStatus"`
		Err                interface{} `json:"err"`
	} `json:"value"`
}

func solanaReceipt(ctx context.Context, client *Client, signature string) (*dispatch.Receipt, error) {
	params := []interface{}{[]string{signature}}
	var result signatureStatusResult
	if err := client.Call(ctx, "getSignatureStatuses", params, &result); err != nil {
		return nil, err
	}
	if len(result.Value) == 0 || result.Value[0] == nil {
		// Not yet processed
		return nil, nil
	}
	status := result.Value[0]
	if status.Err != nil {
		return &dispatch.Receipt{TxHash: signature, Success: false}, nil
	}
	if status.ConfirmationStatus == "confirmed" || status.ConfirmationStatus == "finalized" {
		return &dispatch.Receipt{TxHash: signature, Success: true}, nil
	}
	// Processed but not yet at a trustworthy commitment
	return nil, nil
}

// evmReceiptResult mirrors eth_getTransactionReceipt.
type evmReceiptResult struct {
	TransactionHash string `json:"transactionHash"`
	Status          string `json:"status"` // "0x1" success, "0x0" reverted
	BlockNumber     string `json:"blockNumber"`
}

func evmReceipt(ctx context.Context, client *Client, txHash string) (*dispatch.Receipt, error) {
	var raw json.RawMessage
	if err := client.Call(ctx, "eth_getTransactionReceipt", []interface{}{txHash}, &raw); err != nil {
		return nil, err
	}
	if len(raw) == 0 || string(raw) == "null" {
		// Not yet mined
		return nil, nil
	}
	var result evmReceiptResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("unmarshal receipt: %w", err)
	}
	return &dispatch.Receipt{
		TxHash:  txHash,
		Success: result.Status == "0x1",
	}, nil
}
