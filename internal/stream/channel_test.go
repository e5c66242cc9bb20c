package stream

import "testing"

func TestChannel_RememberSkipsUnsubscribe(t *testing.T) {
	ch := &channel{}

	trades := map[string]any{"id": "1", "event": "subscribe", "topic": "SPOT_BTC_USDT@trade"}
	book := Message{"id": "2", "event": "subscribe", "topic": "SPOT_BTC_USDT@orderbook"}

	ch.remember(trades)
	ch.remember(book)
	ch.remember(map[string]any{"id": "3", "event": "unsubscribe", "topic": "SPOT_BTC_USDT@trade"})
	ch.remember(map[string]any{"id": "4", "event": "unsubscribe", "topic": "SPOT_ETH_USDT@trade"})
	ch.remember(map[string]any{"event": "unsubscribe"})

	_, subs := ch.snapshot()
	if len(subs) != 1 {
		t.Fatalf("expected 1 remembered subscription, got %d: %v", len(subs), subs)
	}
	if event, topic := describePayload(subs[0]); event != "subscribe" || topic != "SPOT_BTC_USDT@orderbook" {
		t.Errorf("unexpected remembered payload %v", subs[0])
	}
}

func TestDescribePayload(t *testing.T) {
	tests := []struct {
		name      string
		payload   any
		wantEvent string
		wantTopic string
	}{
		{"map", map[string]any{"event": "subscribe", "topic": "balance"}, "subscribe", "balance"},
		{"struct", struct {
			Event string `json:"event"`
			Topic string `json:"topic"`
		}{"unsubscribe", "position"}, "unsubscribe", "position"},
		{"not an object", []int{1, 2}, "", ""},
		{"unencodable", make(chan int), "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event, topic := describePayload(tt.payload)
			if event != tt.wantEvent || topic != tt.wantTopic {
				t.Errorf("got (%q, %q), want (%q, %q)", event, topic, tt.wantEvent, tt.wantTopic)
			}
		})
	}
}
