package stream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rickgao/woostream/internal/api"
	"github.com/rickgao/woostream/internal/auth"
)

// Handler receives every non-keepalive message of a channel. It runs on the
// channel's consumer goroutine; a slow handler backs up that channel's queue.
type Handler func(Message)

// ManagerConfig configures a Manager.
type ManagerConfig struct {
	ApplicationID string
	Credentials   *auth.Credentials // Required for Authenticate
	Sandbox       bool
	PublicURL     string // Overrides the public stream base URL
	PrivateURL    string // Overrides the private stream base URL
	Conn          ConnConfig
	RecvTimeout   time.Duration // Consumer poll interval
	AuthChannel   string
	ErrorBuffer   int
}

// DefaultManagerConfig returns defaults for everything except the account.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		Conn:        DefaultConnConfig(),
		RecvTimeout: DefaultRecvTimeout,
		AuthChannel: DefaultAuthChannel,
		ErrorBuffer: 16,
	}
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithConnOptions applies opts to every connection the manager creates.
func WithConnOptions(opts ...ConnOption) ManagerOption {
	return func(m *Manager) {
		m.connOpts = append(m.connOpts, opts...)
	}
}

// WithAPIOptions applies opts to the credentialed REST client.
func WithAPIOptions(opts ...api.ClientOption) ManagerOption {
	return func(m *Manager) {
		m.apiOpts = append(m.apiOpts, opts...)
	}
}

// Manager runs channel lifecycles in the background so callers can start,
// subscribe and stop channels without driving the connections themselves.
type Manager struct {
	cfg      ManagerConfig
	logger   *slog.Logger
	connOpts []ConnOption
	apiOpts  []api.ClientOption

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	running  atomic.Bool
	ready    chan struct{} // Closed once client and registry exist
	loopDone chan struct{}
	errs     chan error

	mu       sync.Mutex
	started  bool
	startErr error
	client   *api.Client
	registry *Registry
	channels map[string]*channel
}

// NewManager creates a stopped manager. The application id is required.
func NewManager(cfg ManagerConfig, logger *slog.Logger, opts ...ManagerOption) (*Manager, error) {
	if cfg.ApplicationID == "" {
		return nil, api.ErrNoApplicationID
	}
	if logger == nil {
		logger = slog.Default()
	}

	d := DefaultManagerConfig()
	if cfg.RecvTimeout <= 0 {
		cfg.RecvTimeout = d.RecvTimeout
	}
	if cfg.AuthChannel == "" {
		cfg.AuthChannel = d.AuthChannel
	}
	if cfg.ErrorBuffer <= 0 {
		cfg.ErrorBuffer = d.ErrorBuffer
	}
	cfg.Conn = cfg.Conn.withDefaults()

	m := &Manager{
		cfg:      cfg,
		logger:   logger,
		ready:    make(chan struct{}),
		loopDone: make(chan struct{}),
		errs:     make(chan error, cfg.ErrorBuffer),
		channels: make(map[string]*channel),
	}
	for _, opt := range opts {
		opt(m)
	}

	return m, nil
}

// Start launches the lifecycle goroutine. It returns immediately; channel
// operations wait until initialisation completes. Start is idempotent.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.started {
		return nil
	}
	m.started = true
	m.ctx, m.cancel = context.WithCancel(ctx)
	m.running.Store(true)

	go m.run()
	return nil
}

// run owns the credentialed client for the manager's lifetime.
func (m *Manager) run() {
	defer close(m.loopDone)

	opts := append([]api.ClientOption{
		api.WithSandbox(m.cfg.Sandbox),
		api.WithLogger(m.logger),
	}, m.apiOpts...)

	client, err := api.NewClient(m.cfg.ApplicationID, m.cfg.Credentials, opts...)
	if err == nil {
		err = m.initRegistry(client)
	}

	m.mu.Lock()
	if err != nil {
		m.startErr = err
	} else {
		m.client = client
	}
	m.mu.Unlock()
	close(m.ready)

	if err != nil {
		m.logger.Error("stream manager failed to start", "error", err)
		return
	}
	m.logger.Info("stream manager started",
		"application_id", m.cfg.ApplicationID,
		"sandbox", m.cfg.Sandbox,
	)

	<-m.ctx.Done()

	client.Close()
	m.logger.Info("stream manager stopped")
}

// initRegistry builds the registry once the client exists.
func (m *Manager) initRegistry(client *api.Client) error {
	endpoints, err := NewEndpoints(client.ApplicationID(), client.Sandbox(), m.cfg.PublicURL, m.cfg.PrivateURL)
	if err != nil {
		return fmt.Errorf("build endpoints: %w", err)
	}

	m.mu.Lock()
	m.registry = NewRegistry(endpoints, m.cfg.Conn, m.logger, m.connOpts...)
	m.mu.Unlock()
	return nil
}

// Ready is closed once the manager finished initialising, successfully or not.
func (m *Manager) Ready() <-chan struct{} {
	return m.ready
}

// waitReady blocks until initialisation finished or ctx is done.
func (m *Manager) waitReady(ctx context.Context) error {
	select {
	case <-m.ready:
	case <-ctx.Done():
		return ctx.Err()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.startErr != nil {
		return fmt.Errorf("%w: %v", ErrNotReady, m.startErr)
	}
	return nil
}

// Client returns the credentialed REST client, or nil before initialisation.
func (m *Manager) Client() *api.Client {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.client
}

// Registry returns the connection registry, or nil before initialisation.
func (m *Manager) Registry() *Registry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.registry
}

// Errors reports channels that gave up reconnecting, as *ChannelError.
func (m *Manager) Errors() <-chan error {
	return m.errs
}

// StartChannel starts consuming a public or private channel, delivering
// messages to handler. Starting a running channel returns its connection.
func (m *Manager) StartChannel(ctx context.Context, name string, authenticated bool, handler Handler) (*Conn, error) {
	return m.StartChannelSpec(ctx, ChannelSpec{Name: name, Authenticated: authenticated}, handler)
}

// StartChannelSpec is StartChannel with full channel options.
func (m *Manager) StartChannelSpec(ctx context.Context, spec ChannelSpec, handler Handler) (*Conn, error) {
	if spec.Name == "" {
		return nil, errors.New("channel name is required")
	}
	if handler == nil {
		return nil, errors.New("handler is required")
	}
	if err := m.waitReady(ctx); err != nil {
		return nil, err
	}

	for {
		m.mu.Lock()
		if !m.running.Load() {
			m.mu.Unlock()
			return nil, ErrManagerStopped
		}
		prev, ok := m.channels[spec.Name]
		if !ok {
			break // Lock held
		}
		if prev.running.Load() {
			m.mu.Unlock()
			return prev.conn, nil
		}
		m.mu.Unlock()

		// A stopped consumer is still shutting down; its connection must
		// deregister before a new one can be created under the same name.
		select {
		case <-prev.done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	defer m.mu.Unlock()

	chCtx, cancel := context.WithCancel(m.ctx)
	ch := &channel{
		spec:    spec,
		handler: handler,
		ctx:     chCtx,
		cancel:  cancel,
		done:    make(chan struct{}),
		logger:  m.logger.With("channel", spec.Name),
	}
	ch.conn = m.registry.Acquire(spec, WithReconnectFunc(func() { m.restore(ch) }))
	ch.running.Store(true)
	m.channels[spec.Name] = ch

	m.wg.Add(1)
	go m.consume(ch)

	m.logger.Info("channel started", "channel", spec.Name, "authenticated", spec.Authenticated)
	return ch.conn, nil
}

// Subscribe sends payload through the named channel. Successful payloads are
// replayed after the channel reconnects, except unsubscribe events, which
// instead drop the remembered subscriptions for their topic.
func (m *Manager) Subscribe(ctx context.Context, name string, payload any) error {
	if err := m.waitReady(ctx); err != nil {
		return err
	}

	if err := m.registry.Forward(ctx, name, payload); err != nil {
		m.logger.Warn("subscribe failed", "channel", name, "error", err)
		return err
	}

	if ch := m.channel(name); ch != nil {
		ch.remember(payload)
	}
	return nil
}

// Authenticate signs in on the default private channel.
func (m *Manager) Authenticate(ctx context.Context) error {
	return m.AuthenticateChannel(ctx, m.cfg.AuthChannel)
}

// AuthenticateChannel sends a signed auth event through channel name. The
// channel must have been started as authenticated.
func (m *Manager) AuthenticateChannel(ctx context.Context, name string) error {
	if err := m.waitReady(ctx); err != nil {
		return err
	}
	if m.cfg.Credentials == nil {
		return ErrNoCredentials
	}

	if err := m.registry.Forward(ctx, name, m.authRequest(name)); err != nil {
		m.logger.Warn("authentication failed", "channel", name, "error", err)
		return err
	}

	if ch := m.channel(name); ch != nil {
		ch.setAuthenticated()
	}
	m.logger.Info("authentication sent", "channel", name)
	return nil
}

func (m *Manager) authRequest(name string) AuthRequest {
	ts := auth.Timestamp(time.Now())
	return AuthRequest{
		ID:    name,
		Event: "auth",
		Params: AuthParams{
			APIKey:    m.cfg.Credentials.APIKey,
			Sign:      m.cfg.Credentials.SignWebSocket(ts),
			Timestamp: ts,
		},
	}
}

// StopChannel stops the consumer of name; its connection closes and
// deregisters shortly after. Unknown names are ignored.
func (m *Manager) StopChannel(name string) {
	m.mu.Lock()
	ch, ok := m.channels[name]
	m.mu.Unlock()

	if !ok {
		return
	}
	ch.stop()
	m.logger.Info("channel stopping", "channel", name)
}

// Running reports whether the consumer of name is active.
func (m *Manager) Running(name string) bool {
	ch := m.channel(name)
	return ch != nil && ch.running.Load()
}

// Channels returns the names of running channels, sorted.
func (m *Manager) Channels() []string {
	m.mu.Lock()
	names := make([]string, 0, len(m.channels))
	for name, ch := range m.channels {
		if ch.running.Load() {
			names = append(names, name)
		}
	}
	m.mu.Unlock()

	slices.Sort(names)
	return names
}

// Stop stops every channel and the lifecycle goroutine. It waits for
// consumers to exit until ctx is done. Safe to call more than once.
func (m *Manager) Stop(ctx context.Context) error {
	if !m.running.CompareAndSwap(true, false) {
		return nil
	}
	m.logger.Info("stopping stream manager")

	m.mu.Lock()
	for _, ch := range m.channels {
		ch.stop()
	}
	m.mu.Unlock()
	m.cancel()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		<-m.loopDone
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		m.logger.Warn("shutdown timeout, closing connections")
		if r := m.Registry(); r != nil {
			r.CloseAll()
		}
		return ctx.Err()
	}
}

func (m *Manager) channel(name string) *channel {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.channels[name]
}

// report publishes a terminal channel failure without blocking.
func (m *Manager) report(name string, err error) {
	select {
	case m.errs <- &ChannelError{Name: name, Err: err}:
	default:
		m.logger.Warn("error channel full, dropping error", "channel", name, "error", err)
	}
}
