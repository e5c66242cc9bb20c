package stream

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
)

// Registry maps channel names to their connections.
type Registry struct {
	endpoints Endpoints
	cfg       ConnConfig
	connOpts  []ConnOption
	logger    *slog.Logger

	mu    sync.Mutex
	conns map[string]*Conn
}

// NewRegistry creates an empty registry. opts apply to every Conn it creates.
func NewRegistry(endpoints Endpoints, cfg ConnConfig, logger *slog.Logger, opts ...ConnOption) *Registry {
	if logger == nil {
		logger = slog.Default()
	}

	return &Registry{
		endpoints: endpoints,
		cfg:       cfg,
		connOpts:  opts,
		logger:    logger,
		conns:     make(map[string]*Conn),
	}
}

// Endpoints returns the stream URLs this registry connects to.
func (r *Registry) Endpoints() Endpoints {
	return r.endpoints
}

// GetOrCreate returns the connection for name, creating it on first use.
func (r *Registry) GetOrCreate(name string, authenticated bool) *Conn {
	return r.Acquire(ChannelSpec{Name: name, Authenticated: authenticated})
}

// Acquire is GetOrCreate with full channel options. An existing connection
// is returned unchanged even if spec differs.
func (r *Registry) Acquire(spec ChannelSpec, extra ...ConnOption) *Conn {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.conns[spec.Name]; ok {
		return c
	}

	cfg := r.cfg
	cfg.Binary = spec.Binary

	var conn *Conn
	opts := make([]ConnOption, 0, len(r.connOpts)+len(extra)+2)
	opts = append(opts, WithConnLogger(r.logger))
	opts = append(opts, r.connOpts...)
	opts = append(opts, extra...)
	opts = append(opts, WithExitFunc(func() { r.release(spec.Name, conn) }))

	conn = NewConn(spec.Name, r.endpoints.URL(spec.Authenticated), cfg, opts...)
	r.conns[spec.Name] = conn

	r.logger.Debug("channel registered",
		"channel", spec.Name,
		"authenticated", spec.Authenticated,
		"url", conn.URL(),
	)
	return conn
}

// Lookup returns the connection registered under name.
func (r *Registry) Lookup(name string) (*Conn, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.conns[name]
	return c, ok
}

// Forward sends payload through the named channel.
func (r *Registry) Forward(ctx context.Context, name string, payload any) error {
	c, ok := r.Lookup(name)
	if !ok {
		return fmt.Errorf("forward to %q: %w", name, ErrChannelNotStarted)
	}
	if err := c.Send(ctx, payload); err != nil {
		return fmt.Errorf("forward to %q: %w", name, err)
	}
	return nil
}

// Remove deregisters name without closing its connection.
func (r *Registry) Remove(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.conns, name)
}

// Names returns the registered channel names, sorted.
func (r *Registry) Names() []string {
	r.mu.Lock()
	names := make([]string, 0, len(r.conns))
	for name := range r.conns {
		names = append(names, name)
	}
	r.mu.Unlock()

	slices.Sort(names)
	return names
}

// Len returns the number of registered channels.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns)
}

// CloseAll closes every registered connection.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	conns := make([]*Conn, 0, len(r.conns))
	for _, c := range r.conns {
		conns = append(conns, c)
	}
	r.mu.Unlock()

	for _, c := range conns {
		c.Close()
	}
}

// release is the exit callback handed to each Conn.
func (r *Registry) release(name string, conn *Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.conns[name] == conn {
		delete(r.conns, name)
		r.logger.Debug("channel deregistered", "channel", name)
	}
}
