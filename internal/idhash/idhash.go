// Package idhash computes deterministic record identifiers. Replaying the
// same inputs yields the same IDs, which keeps decision and trade records
// idempotent across restarts.
package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ComputeDecisionID computes a deterministic decision id using SHA256.
// Formula: SHA256(user_id|config_id|chain|pool|info_revision|decided_at)
// Returns hex-encoded hash (64 characters).
func ComputeDecisionID(userID, configID, chain, pool string, infoRevision, decidedAt int64) string {
	data := fmt.Sprintf("%s|%s|%s|%s|%d|%d",
		userID,
		configID,
		chain,
		pool,
		infoRevision,
		decidedAt,
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}

// ComputeTradeID computes a deterministic trade id using SHA256.
// Formula: SHA256(decision_id|proxy|token_in|token_out|created_at)
// Returns hex-encoded hash (64 characters).
func ComputeTradeID(decisionID, proxy, tokenIn, tokenOut string, createdAt int64) string {
	data := fmt.Sprintf("%s|%s|%s|%s|%d",
		decisionID,
		proxy,
		tokenIn,
		tokenOut,
		createdAt,
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
