package stream

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/rickgao/woostream/internal/metrics"
)

// channel is the manager's per-channel run state.
type channel struct {
	spec    ChannelSpec
	conn    *Conn
	handler Handler
	logger  *slog.Logger

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{} // Closed after the consumer exits

	mu            sync.Mutex
	authenticated bool
	subscriptions []any
}

func (ch *channel) stop() {
	ch.running.Store(false)
	ch.cancel()
}

// remember records payload for replay. An unsubscribe is never replayed and
// retires the remembered subscriptions for its topic.
func (ch *channel) remember(payload any) {
	event, topic := describePayload(payload)

	ch.mu.Lock()
	defer ch.mu.Unlock()

	if event != "unsubscribe" {
		ch.subscriptions = append(ch.subscriptions, payload)
		return
	}
	if topic == "" {
		return
	}
	ch.subscriptions = slices.DeleteFunc(ch.subscriptions, func(p any) bool {
		_, t := describePayload(p)
		return t == topic
	})
}

// describePayload extracts the event and topic of an outbound payload.
func describePayload(payload any) (event, topic string) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", ""
	}
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return "", ""
	}
	return msg.Event(), msg.Topic()
}

func (ch *channel) setAuthenticated() {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	ch.authenticated = true
}

func (ch *channel) snapshot() (bool, []any) {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return ch.authenticated, slices.Clone(ch.subscriptions)
}

// consume drains the channel's queue until the channel is stopped or its
// connection fails for good.
func (m *Manager) consume(ch *channel) {
	defer m.wg.Done()
	defer close(ch.done)
	defer m.forget(ch)
	defer ch.conn.Close()

	if err := ch.conn.Open(ch.ctx); err != nil {
		ch.logger.Error("open connection", "error", err)
		m.report(ch.spec.Name, err)
		return
	}

	for ch.running.Load() {
		msg, err := ch.conn.Recv(ch.ctx, m.cfg.RecvTimeout)
		if err != nil {
			switch {
			case errors.Is(err, ErrRecvTimeout):
				continue
			case ch.ctx.Err() != nil:
				return
			default:
				ch.logger.Error("channel failed", "error", err)
				m.report(ch.spec.Name, err)
				return
			}
		}

		if msg.IsPing() {
			m.pong(ch)
			continue
		}
		ch.handler(msg)
	}
}

// pong answers a keepalive ping on the same channel.
func (m *Manager) pong(ch *channel) {
	if err := ch.conn.Send(ch.ctx, Pong()); err != nil && ch.ctx.Err() == nil {
		ch.logger.Warn("pong failed", "error", err)
	}
}

// restore re-authenticates and replays subscriptions after a reconnect.
func (m *Manager) restore(ch *channel) {
	authenticated, subs := ch.snapshot()

	if authenticated && m.cfg.Credentials != nil {
		if err := ch.conn.Send(ch.ctx, m.authRequest(ch.spec.Name)); err != nil {
			ch.logger.Warn("re-authentication failed", "error", err)
			return
		}
	}
	for _, payload := range subs {
		if err := ch.conn.Send(ch.ctx, payload); err != nil {
			ch.logger.Warn("resubscribe failed", "error", err)
			return
		}
	}

	ch.logger.Info("channel restored",
		"authenticated", authenticated,
		"subscriptions", len(subs),
	)
}

// forget removes ch from the run state once its consumer is done.
func (m *Manager) forget(ch *channel) {
	ch.running.Store(false)

	m.mu.Lock()
	if m.channels[ch.spec.Name] == ch {
		delete(m.channels, ch.spec.Name)
	}
	m.mu.Unlock()

	metrics.ForgetChannel(ch.spec.Name)
	ch.logger.Info("channel stopped")
}
