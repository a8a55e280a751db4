package broadcast

import (
	"fmt"
	"io"
	"log"
	"testing"

	"dex-sniper-core/internal/domain"
)

func newTestHub(queueSize int) *Hub {
	return NewHub(Options{
		QueueSize: queueSize,
		Logger:    log.New(io.Discard, "", 0),
		Now:       func() int64 { return 1000 },
	})
}

func poolPayload(address string) domain.PoolEventPayload {
	return domain.PoolEventPayload{Pool: domain.Pool{Chain: "bsc", PoolAddress: address}}
}

func TestHub_DeliversToTopicSubscribers(t *testing.T) {
	hub := newTestHub(8)
	topic := domain.TopicPool("bsc", "0xpool")

	sub := hub.Subscribe(topic)
	other := hub.Subscribe(domain.TopicPool("bsc", "0xother"))
	defer sub.Close()
	defer other.Close()

	if err := hub.Publish(topic, domain.EventPoolCreated, poolPayload("0xpool")); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	ev := <-sub.C()
	if ev.Type != domain.EventPoolCreated {
		t.Errorf("type = %s, want pool_created", ev.Type)
	}
	if ev.ID == "" || ev.Timestamp != 1000 {
		t.Errorf("envelope not filled: id=%q ts=%d", ev.ID, ev.Timestamp)
	}

	select {
	case ev := <-other.C():
		t.Errorf("foreign room received event %s", ev.Type)
	default:
	}
}

func TestHub_RejectsMismatchedPayload(t *testing.T) {
	hub := newTestHub(8)

	err := hub.Publish("t", domain.EventTradeUpdate, poolPayload("0xpool"))
	if err == nil {
		t.Fatal("pool payload under trade_update must be rejected")
	}
}

func TestHub_PerTopicOrdering(t *testing.T) {
	hub := newTestHub(64)
	topic := domain.TopicTrades("0xtoken")
	sub := hub.Subscribe(topic)
	defer sub.Close()

	for i := 0; i < 10; i++ {
		payload := domain.TradeEventPayload{Trade: domain.ProxyTrade{TradeID: fmt.Sprintf("t-%d", i)}}
		if err := hub.Publish(topic, domain.EventTradeUpdate, payload); err != nil {
			t.Fatalf("Publish %d failed: %v", i, err)
		}
	}

	for i := 0; i < 10; i++ {
		ev := <-sub.C()
		trade := ev.Data.(domain.TradeEventPayload).Trade
		if trade.TradeID != fmt.Sprintf("t-%d", i) {
			t.Fatalf("event %d carries trade %s", i, trade.TradeID)
		}
	}
}

func TestHub_SlowSubscriberDropsOldest(t *testing.T) {
	hub := newTestHub(2)
	topic := domain.TopicPool("bsc", "0xpool")
	sub := hub.Subscribe(topic)
	defer sub.Close()

	// Queue capacity 2, five publishes: the three oldest are evicted.
	for i := 0; i < 5; i++ {
		payload := domain.PoolEventPayload{Pool: domain.Pool{PoolAddress: fmt.Sprintf("0x%d", i)}}
		if err := hub.Publish(topic, domain.EventPoolUpdated, payload); err != nil {
			t.Fatalf("Publish %d failed: %v", i, err)
		}
	}

	if sub.Dropped() != 3 {
		t.Errorf("dropped = %d, want 3", sub.Dropped())
	}

	first := <-sub.C()
	if got := first.Data.(domain.PoolEventPayload).Pool.PoolAddress; got != "0x3" {
		t.Errorf("first surviving event = %s, want 0x3", got)
	}

	_, dropped := hub.Stats()
	if dropped != 3 {
		t.Errorf("hub dropped = %d, want 3", dropped)
	}
}

func TestHub_SlowSubscriberDoesNotStallRoomMates(t *testing.T) {
	hub := newTestHub(1)
	topic := domain.TopicPool("bsc", "0xpool")

	slow := hub.Subscribe(topic)
	fast := hub.Subscribe(topic)
	defer slow.Close()

	for i := 0; i < 3; i++ {
		if err := hub.Publish(topic, domain.EventPoolUpdated, poolPayload("0xpool")); err != nil {
			t.Fatalf("Publish failed: %v", err)
		}
		<-fast.C() // fast keeps up
	}

	if fast.Dropped() != 0 {
		t.Errorf("fast subscriber dropped %d", fast.Dropped())
	}
	if slow.Dropped() != 2 {
		t.Errorf("slow subscriber dropped %d, want 2", slow.Dropped())
	}
	fast.Close()
}

func TestHub_JoinAndLeave(t *testing.T) {
	hub := newTestHub(8)
	sub := hub.Subscribe()
	defer sub.Close()

	topic := domain.TopicWallet("0xproxy")
	hub.Join(sub, topic)
	if hub.Subscribers(topic) != 1 {
		t.Fatal("join did not register")
	}

	payload := domain.WalletEventPayload{Address: "0xproxy", Message: "buy confirmed"}
	if err := hub.Publish(topic, domain.EventWalletAlert, payload); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	<-sub.C()

	hub.Leave(sub, topic)
	if hub.Subscribers(topic) != 0 {
		t.Fatal("leave did not unregister")
	}

	if err := hub.Publish(topic, domain.EventWalletAlert, payload); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	select {
	case ev := <-sub.C():
		t.Errorf("received %s after leaving the room", ev.Type)
	default:
	}
}

func TestHub_CloseEndsChannelAndEmptiesRooms(t *testing.T) {
	hub := newTestHub(8)
	topic := domain.TopicPool("bsc", "0xpool")
	sub := hub.Subscribe(topic)

	sub.Close()

	if _, ok := <-sub.C(); ok {
		t.Error("channel should be closed")
	}
	if hub.Subscribers(topic) != 0 {
		t.Error("closed subscription still registered")
	}

	// Publishing after close is a no-op for this subscriber.
	if err := hub.Publish(topic, domain.EventPoolCreated, poolPayload("0xpool")); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
}

func TestHub_CloseShutsDownAllSubscriptions(t *testing.T) {
	hub := newTestHub(8)
	a := hub.Subscribe(domain.TopicPool("bsc", "0xa"))
	b := hub.Subscribe(domain.TopicTrades("0xb"), domain.TopicWallet("0xc"))

	hub.Close()

	if _, ok := <-a.C(); ok {
		t.Error("subscription a should be closed")
	}
	if _, ok := <-b.C(); ok {
		t.Error("subscription b should be closed")
	}
	if n := hub.TotalSubscribers(); n != 0 {
		t.Errorf("TotalSubscribers = %d after Close, want 0", n)
	}
}
