package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/rickgao/woostream/internal/metrics"
)

// Dialer opens websocket connections. *websocket.Dialer satisfies it.
type Dialer interface {
	DialContext(ctx context.Context, urlStr string, requestHeader http.Header) (*websocket.Conn, *http.Response, error)
}

// ConnOption configures a Conn.
type ConnOption func(*Conn)

// WithDialer replaces the default websocket dialer.
func WithDialer(d Dialer) ConnOption {
	return func(c *Conn) {
		c.dialer = d
	}
}

// WithConnLogger sets the logger.
func WithConnLogger(logger *slog.Logger) ConnOption {
	return func(c *Conn) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithExitFunc registers fn to run once when the Conn is closed.
func WithExitFunc(fn func()) ConnOption {
	return func(c *Conn) {
		c.onExit = fn
	}
}

// WithReconnectFunc registers fn to run after every successful reconnect.
// It runs on its own goroutine and may call Send.
func WithReconnectFunc(fn func()) ConnOption {
	return func(c *Conn) {
		c.onReconnect = fn
	}
}

// WithJitter replaces the backoff random source. fn must return values in [0, 1).
func WithJitter(fn func() float64) ConnOption {
	return func(c *Conn) {
		c.jitter = fn
	}
}

// withSleep replaces the backoff sleep.
func withSleep(fn func(context.Context, time.Duration) error) ConnOption {
	return func(c *Conn) {
		c.sleep = fn
	}
}

// Conn is one resilient websocket connection for a logical channel.
//
// A single supervisor goroutine, started by Open, owns dialing, the read
// loop and reconnect backoff. Decoded messages land in a bounded queue that
// the consumer drains with Recv.
type Conn struct {
	name   string
	url    string
	cfg    ConnConfig
	dialer Dialer
	logger *slog.Logger
	queue  *Queue[Message]

	onExit      func()
	onReconnect func()
	jitter      func() float64
	sleep       func(context.Context, time.Duration) error

	state      atomic.Int32
	reconnects atomic.Int32
	connects   atomic.Int32

	mu      sync.Mutex
	ws      *websocket.Conn
	ready   chan struct{} // Closed while ws is usable
	session string        // Id of the current or last socket
	err     error         // Terminal failure
	started bool
	cancel  context.CancelFunc

	writeMu  sync.Mutex
	done     chan struct{}
	exitOnce sync.Once
}

// NewConn creates a connection for channel name. It does not dial until Open.
func NewConn(name, url string, cfg ConnConfig, opts ...ConnOption) *Conn {
	cfg = cfg.withDefaults()

	c := &Conn{
		name: name,
		url:  url,
		cfg:  cfg,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: cfg.HandshakeTimeout,
		},
		logger: slog.Default(),
		queue:  NewQueue[Message](cfg.QueueSize),
		jitter: rand.Float64,
		sleep:  sleepCtx,
		ready:  make(chan struct{}),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("channel", name)
	c.setState(StateInitialising)

	return c
}

// Name returns the channel name.
func (c *Conn) Name() string { return c.name }

// URL returns the endpoint this connection dials.
func (c *Conn) URL() string { return c.url }

// Session returns the id of the current or last socket, empty before the
// first connect.
func (c *Conn) Session() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// State returns the current lifecycle state.
func (c *Conn) State() State {
	return State(c.state.Load())
}

// Reconnects returns the current consecutive reconnect attempt count.
func (c *Conn) Reconnects() int {
	return int(c.reconnects.Load())
}

// Connects returns how many times a socket was established.
func (c *Conn) Connects() int {
	return int(c.connects.Load())
}

// Queue exposes the inbound queue.
func (c *Conn) Queue() *Queue[Message] {
	return c.queue
}

// Done is closed when the supervisor has stopped.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// Err returns the terminal failure, if any.
func (c *Conn) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Open starts the supervisor. The connection lives until ctx is cancelled,
// Close is called or the reconnect budget is exhausted. Open is idempotent.
func (c *Conn) Open(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.State() == StateExiting {
		return ErrClosed
	}
	if c.started {
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.started = true

	go c.run(runCtx)
	return nil
}

// Close stops the supervisor, closes the socket and runs the exit callback.
// Safe to call more than once.
func (c *Conn) Close() error {
	c.exitOnce.Do(func() {
		c.setState(StateExiting)

		c.mu.Lock()
		started := c.started
		cancel := c.cancel
		ws := c.ws
		c.mu.Unlock()

		if ws != nil {
			ws.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second),
			)
		}
		if cancel != nil {
			cancel()
		}
		if started {
			<-c.done
		}
		c.setState(StateExiting)

		if c.onExit != nil {
			c.onExit()
		}
		c.logger.Debug("connection closed")
	})
	return nil
}

// Send JSON-encodes v and writes it as a text frame, waiting for a live
// socket if the connection is (re)connecting.
func (c *Conn) Send(ctx context.Context, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}

	ws, err := c.waitSocket(ctx)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	ws.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	if err := ws.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	return nil
}

// Recv returns the next queued message, waiting up to timeout. It returns
// ErrRecvTimeout when nothing arrived, and the terminal error once the
// connection has stopped and the queue is drained.
func (c *Conn) Recv(ctx context.Context, timeout time.Duration) (Message, error) {
	if msg, ok := c.queue.TryRecv(); ok {
		return msg, nil
	}

	var expired <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		expired = t.C
	}

	select {
	case msg := <-c.queue.C():
		return msg, nil
	case <-expired:
		return nil, ErrRecvTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.done:
		if msg, ok := c.queue.TryRecv(); ok {
			return msg, nil
		}
		if err := c.Err(); err != nil {
			return nil, err
		}
		return nil, ErrClosed
	}
}

// waitSocket blocks until a socket is available.
func (c *Conn) waitSocket(ctx context.Context) (*websocket.Conn, error) {
	for {
		c.mu.Lock()
		ws, ready, err := c.ws, c.ready, c.err
		c.mu.Unlock()

		switch {
		case err != nil:
			return nil, err
		case c.State() == StateExiting:
			return nil, ErrClosed
		case ws != nil:
			return ws, nil
		}

		select {
		case <-ready:
		case <-c.done:
			if err := c.Err(); err != nil {
				return nil, err
			}
			return nil, ErrClosed
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// run is the supervisor loop.
func (c *Conn) run(ctx context.Context) {
	defer close(c.done)

	for {
		ws, err := c.dial(ctx)
		if err == nil {
			if !c.streaming(ws) {
				ws.Close()
				return
			}
			err = c.readLoop(ctx, ws)
			c.drop(ws)
		}

		if ctx.Err() != nil || c.State() == StateExiting {
			return
		}
		c.logger.Warn("connection lost", "session", c.Session(), "error", err)

		if err := c.backoff(ctx); err != nil {
			if errors.Is(err, ErrMaxReconnects) {
				c.fail(err)
			}
			return
		}
	}
}

func (c *Conn) dial(ctx context.Context) (*websocket.Conn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, c.cfg.HandshakeTimeout)
	defer cancel()

	ws, _, err := c.dialer.DialContext(dialCtx, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", c.url, err)
	}
	return ws, nil
}

// streaming publishes a freshly dialed socket. It reports false, leaving ws
// unpublished, when Close won the race against the dial.
func (c *Conn) streaming(ws *websocket.Conn) bool {
	ws.SetPingHandler(func(data string) error {
		ws.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
		return ws.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(time.Second))
	})

	session := uuid.NewString()

	c.mu.Lock()
	if !c.setState(StateStreaming) {
		c.mu.Unlock()
		return false
	}
	c.ws = ws
	c.session = session
	close(c.ready)
	c.mu.Unlock()

	reconnected := c.connects.Add(1) > 1
	c.reconnects.Store(0)

	c.logger.Info("websocket connected", "url", c.url, "session", session)

	if reconnected && c.onReconnect != nil {
		go c.onReconnect()
	}
	return true
}

// readLoop reads frames until the socket fails or ctx is cancelled.
func (c *Conn) readLoop(ctx context.Context, ws *websocket.Conn) error {
	// Closing the socket unblocks ReadMessage.
	stop := context.AfterFunc(ctx, func() { ws.Close() })
	defer stop()

	for {
		ws.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))

		_, data, err := ws.ReadMessage()
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				return fmt.Errorf("no message in %s: %w", c.cfg.ReadTimeout, err)
			}
			return fmt.Errorf("read: %w", err)
		}

		c.ingest(data)
	}
}

// ingest decodes a frame and queues it if there is room.
func (c *Conn) ingest(data []byte) {
	msg, reason := decodeFrame(data, c.cfg.Binary)
	if reason != "" {
		metrics.MessagesDropped.WithLabelValues(c.name, reason).Inc()
		c.logger.Debug("dropping undecodable frame", "reason", reason, "size", len(data))
		return
	}

	if !c.queue.Push(msg) {
		metrics.MessagesDropped.WithLabelValues(c.name, metrics.ReasonQueueFull).Inc()
		c.logger.Debug("queue full, dropping message", "event", msg.Event(), "topic", msg.Topic())
		return
	}
	metrics.MessagesReceived.WithLabelValues(c.name).Inc()
}

// drop retires ws so senders wait for the next socket.
func (c *Conn) drop(ws *websocket.Conn) {
	c.mu.Lock()
	if c.ws == ws {
		c.ws = nil
		c.ready = make(chan struct{})
	}
	c.mu.Unlock()

	ws.Close()
}

// backoff counts a failed attempt and waits before the next one.
func (c *Conn) backoff(ctx context.Context) error {
	c.setState(StateReconnecting)

	n := int(c.reconnects.Add(1))
	metrics.Reconnects.WithLabelValues(c.name).Inc()

	if n > c.cfg.MaxReconnects {
		c.logger.Error("max reconnections reached", "max", c.cfg.MaxReconnects)
		return fmt.Errorf("%w (%d)", ErrMaxReconnects, c.cfg.MaxReconnects)
	}

	wait := ReconnectWait(n, c.cfg.MaxReconnectWait, c.jitter())
	c.logger.Info("reconnecting",
		"session", c.Session(),
		"attempt", n,
		"remaining", c.cfg.MaxReconnects-n,
		"wait", wait,
	)
	return c.sleep(ctx, wait)
}

func (c *Conn) fail(err error) {
	c.mu.Lock()
	c.err = err
	c.mu.Unlock()

	metrics.ChannelFailures.WithLabelValues(c.name).Inc()
}

// setState moves to s. StateExiting is final: leaving it reports false.
func (c *Conn) setState(s State) bool {
	for {
		cur := c.state.Load()
		if State(cur) == StateExiting && s != StateExiting {
			return false
		}
		if c.state.CompareAndSwap(cur, int32(s)) {
			metrics.ConnectionState.WithLabelValues(c.name).Set(float64(s))
			return true
		}
	}
}
