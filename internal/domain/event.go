package domain

import "fmt"

// EventType tags an event envelope's payload variant.
type EventType string

const (
	EventPoolCreated EventType = "pool_created"
	EventPoolUpdated EventType = "pool_updated"
	EventTradeUpdate EventType = "trade_update"
	EventWalletAlert EventType = "wallet_alert"
)

// Topic name helpers. Topics are the broadcaster's room keys.

// TopicPool returns "pool:{chain}:{address}".
func TopicPool(chain, address string) string {
	return "pool:" + chain + ":" + address
}

// TopicTrades returns "trades:{tokenAddress}".
func TopicTrades(token string) string {
	return "trades:" + token
}

// TopicWallet returns "wallet:{address}".
func TopicWallet(address string) string {
	return "wallet:" + address
}

// EventPayload is the closed set of event data variants. Each payload knows
// which event types it may travel under; Publish validates the pairing.
type EventPayload interface {
	AllowedType(t EventType) bool
}

// PoolEventPayload carries pool_created / pool_updated data.
type PoolEventPayload struct {
	Pool Pool `json:"pool"`
}

// AllowedType implements EventPayload.
func (PoolEventPayload) AllowedType(t EventType) bool {
	return t == EventPoolCreated || t == EventPoolUpdated
}

// TradeEventPayload carries trade lifecycle data.
type TradeEventPayload struct {
	Trade ProxyTrade `json:"trade"`
}

// AllowedType implements EventPayload.
func (TradeEventPayload) AllowedType(t EventType) bool {
	return t == EventTradeUpdate
}

// WalletEventPayload carries wallet activity notifications.
type WalletEventPayload struct {
	Address string `json:"address"`
	Message string `json:"message"`
	TradeID string `json:"tradeId,omitempty"`
}

// AllowedType implements EventPayload.
func (WalletEventPayload) AllowedType(t EventType) bool {
	return t == EventWalletAlert
}

// Event is the envelope delivered to subscribed clients.
type Event struct {
	ID        string       `json:"id"`
	Type      EventType    `json:"type"`
	Data      EventPayload `json:"data"`
	Timestamp int64        `json:"timestamp"` // ms
}

// NewEvent builds an envelope, rejecting type/payload mismatches.
func NewEvent(id string, t EventType, data EventPayload, ts int64) (Event, error) {
	if data == nil {
		return Event{}, fmt.Errorf("event %s: nil payload", t)
	}
	if !data.AllowedType(t) {
		return Event{}, fmt.Errorf("event %s: payload %T not allowed", t, data)
	}
	return Event{ID: id, Type: t, Data: data, Timestamp: ts}, nil
}
