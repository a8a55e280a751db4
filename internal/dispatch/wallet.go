package dispatch

import (
	"context"

	"dex-sniper-core/internal/domain"
)

// WalletCustody signs and broadcasts trades through custodied proxy
// wallets. Key material never enters this process; the custody service
// returns opaque signed payloads.
type WalletCustody interface {
	// Sign produces a signed swap transaction for the trade.
	Sign(ctx context.Context, trade *domain.ProxyTrade) (signedTx string, err error)

	// Submit broadcasts a signed transaction and returns its hash.
	Submit(ctx context.Context, chain, signedTx string) (txHash string, err error)

	// GetReceipt looks up the on-chain outcome of a broadcast
	// transaction. A nil receipt means not yet included.
	GetReceipt(ctx context.Context, chain, txHash string) (*Receipt, error)
}

// Receipt is the confirmed on-chain outcome of a transaction.
type Receipt struct {
	TxHash    string
	Success   bool  // false means included but reverted
	BlockTime int64 // ms, 0 if the node did not report it
}
