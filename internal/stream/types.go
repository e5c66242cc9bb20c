package stream

import (
	"errors"
	"fmt"
	"time"
)

// Errors
var (
	ErrMaxReconnects     = errors.New("maximum reconnect attempts reached")
	ErrChannelNotStarted = errors.New("channel not started")
	ErrRecvTimeout       = errors.New("receive timeout")
	ErrClosed            = errors.New("connection closed")
	ErrNotReady          = errors.New("manager failed to initialise")
	ErrManagerStopped    = errors.New("manager stopped")
	ErrNoCredentials     = errors.New("credentials required for authentication")
)

// Defaults
const (
	DefaultMaxReconnects    = 5
	DefaultMaxReconnectWait = 60 * time.Second
	DefaultReadTimeout      = 60 * time.Second
	DefaultWriteTimeout     = 5 * time.Second
	DefaultHandshakeTimeout = 10 * time.Second
	DefaultQueueSize        = 100
	DefaultRecvTimeout      = 3 * time.Second
	DefaultAuthChannel      = "private_connection"
)

// ChannelError reports a channel that can make no further progress.
type ChannelError struct {
	Name string
	Err  error
}

func (e *ChannelError) Error() string {
	return fmt.Sprintf("channel %s: %v", e.Name, e.Err)
}

func (e *ChannelError) Unwrap() error {
	return e.Err
}

// ChannelSpec identifies a logical channel.
type ChannelSpec struct {
	Name          string
	Authenticated bool // Connect to the private stream
	Binary        bool // Frames are gzip-compressed
}

// ConnConfig configures a Conn.
type ConnConfig struct {
	ReadTimeout      time.Duration // No frame within this window triggers a reconnect
	WriteTimeout     time.Duration // Write deadline for sends
	HandshakeTimeout time.Duration // Dial timeout
	QueueSize        int           // Inbound queue capacity
	MaxReconnects    int           // Consecutive failed attempts before giving up
	MaxReconnectWait time.Duration // Backoff ceiling
	Binary           bool          // Frames are gzip-compressed
}

// DefaultConnConfig returns the stream defaults.
func DefaultConnConfig() ConnConfig {
	return ConnConfig{
		ReadTimeout:      DefaultReadTimeout,
		WriteTimeout:     DefaultWriteTimeout,
		HandshakeTimeout: DefaultHandshakeTimeout,
		QueueSize:        DefaultQueueSize,
		MaxReconnects:    DefaultMaxReconnects,
		MaxReconnectWait: DefaultMaxReconnectWait,
	}
}

// withDefaults fills zero fields from DefaultConnConfig.
func (c ConnConfig) withDefaults() ConnConfig {
	d := DefaultConnConfig()
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = d.ReadTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = d.WriteTimeout
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = d.HandshakeTimeout
	}
	if c.QueueSize <= 0 {
		c.QueueSize = d.QueueSize
	}
	if c.MaxReconnects <= 0 {
		c.MaxReconnects = d.MaxReconnects
	}
	if c.MaxReconnectWait <= 0 {
		c.MaxReconnectWait = d.MaxReconnectWait
	}
	return c
}

// AuthRequest is the private stream authentication event.
type AuthRequest struct {
	ID     string     `json:"id"`
	Event  string     `json:"event"`
	Params AuthParams `json:"params"`
}

// AuthParams carries the signed auth fields.
type AuthParams struct {
	APIKey    string `json:"apikey"`
	Sign      string `json:"sign"`
	Timestamp string `json:"timestamp"` // ms since epoch
}
