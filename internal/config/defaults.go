package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultAPITimeout         = 30 * time.Second
	DefaultMaxRetries         = 3
	DefaultReadTimeout        = 60 * time.Second
	DefaultWriteTimeout       = 5 * time.Second
	DefaultRecvTimeout        = 3 * time.Second
	DefaultQueueSize          = 100
	DefaultMaxReconnects      = 5
	DefaultMaxReconnectWait   = 60 * time.Second
	DefaultAuthChannel        = "private_connection"
	DefaultDBPort             = 5432
	DefaultDBSSLMode          = "prefer"
	DefaultMaxConns           = 4
	DefaultMinConns           = 1
	DefaultRecorderTable      = "stream_messages"
	DefaultRecorderBatchSize  = 500
	DefaultRecorderFlush      = 1 * time.Second
	DefaultRecorderBufferSize = 10000
	DefaultMetricsPort        = 9090
	DefaultMetricsPath        = "/metrics"
	DefaultLogLevel           = "info"
)

// ApplyDefaults fills every zero-valued optional field.
func (c *Config) ApplyDefaults() {
	// API defaults
	if c.API.Timeout == 0 {
		c.API.Timeout = DefaultAPITimeout
	}
	if c.API.MaxRetries == 0 {
		c.API.MaxRetries = DefaultMaxRetries
	}

	// Stream defaults
	if c.Stream.ReadTimeout == 0 {
		c.Stream.ReadTimeout = DefaultReadTimeout
	}
	if c.Stream.WriteTimeout == 0 {
		c.Stream.WriteTimeout = DefaultWriteTimeout
	}
	if c.Stream.RecvTimeout == 0 {
		c.Stream.RecvTimeout = DefaultRecvTimeout
	}
	if c.Stream.QueueSize == 0 {
		c.Stream.QueueSize = DefaultQueueSize
	}
	if c.Stream.MaxReconnects == 0 {
		c.Stream.MaxReconnects = DefaultMaxReconnects
	}
	if c.Stream.MaxReconnectWait == 0 {
		c.Stream.MaxReconnectWait = DefaultMaxReconnectWait
	}
	if c.Stream.AuthChannel == "" {
		c.Stream.AuthChannel = DefaultAuthChannel
	}

	// Database defaults
	if c.Database.Port == 0 {
		c.Database.Port = DefaultDBPort
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = DefaultDBSSLMode
	}
	if c.Database.MaxConns == 0 {
		c.Database.MaxConns = DefaultMaxConns
	}
	if c.Database.MinConns == 0 {
		c.Database.MinConns = DefaultMinConns
	}

	// Recorder defaults
	if c.Recorder.Table == "" {
		c.Recorder.Table = DefaultRecorderTable
	}
	if c.Recorder.BatchSize == 0 {
		c.Recorder.BatchSize = DefaultRecorderBatchSize
	}
	if c.Recorder.FlushInterval == 0 {
		c.Recorder.FlushInterval = DefaultRecorderFlush
	}
	if c.Recorder.BufferSize == 0 {
		c.Recorder.BufferSize = DefaultRecorderBufferSize
	}

	// Metrics defaults
	if c.Metrics.Port == 0 {
		c.Metrics.Port = DefaultMetricsPort
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}

	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
}
