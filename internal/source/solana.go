package source

import (
	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// IsValidSolanaAddress reports whether s decodes to a 32-byte ed25519 point.
// Token mints and pool accounts are on-curve or PDA addresses; anything that
// fails to decode is provider garbage and the observation is dropped.
func IsValidSolanaAddress(s string) bool {
	if len(s) < 32 || len(s) > 44 {
		return false
	}
	raw, err := base58.Decode(s)
	if err != nil || len(raw) != 32 {
		return false
	}
	return true
}

// IsOnCurve reports whether a decoded 32-byte address lies on the ed25519
// curve. PDAs are intentionally off-curve; wallet addresses are on-curve.
func IsOnCurve(point []byte) bool {
	if len(point) != 32 {
		return false
	}
	_, err := new(edwards25519.Point).SetBytes(point)
	return err == nil
}

// IsWalletAddress reports whether s is a valid on-curve Solana address,
// i.e. something a user wallet (not a PDA) could own.
func IsWalletAddress(s string) bool {
	raw, err := base58.Decode(s)
	if err != nil || len(raw) != 32 {
		return false
	}
	return IsOnCurve(raw)
}
