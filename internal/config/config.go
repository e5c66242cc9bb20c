package config

import "time"

// Config is the root configuration for a woostream instance.
type Config struct {
	Account  AccountConfig   `yaml:"account"`
	API      APIConfig       `yaml:"api"`
	Stream   StreamConfig    `yaml:"stream"`
	Channels []ChannelConfig `yaml:"channels"`
	Database DBConfig        `yaml:"database"`
	Recorder RecorderConfig  `yaml:"recorder"`
	Metrics  MetricsConfig   `yaml:"metrics"`
	Log      LogConfig       `yaml:"log"`
}

// AccountConfig identifies the WOO X account and application.
type AccountConfig struct {
	ApplicationID string `yaml:"application_id"`
	APIKey        string `yaml:"api_key"`
	APISecret     string `yaml:"api_secret"`
	APISecretFile string `yaml:"api_secret_file"` // Used when api_secret is empty
}

// APIConfig holds REST settings.
type APIConfig struct {
	RestURL    string        `yaml:"rest_url"` // Overrides the production/sandbox base URL
	Sandbox    bool          `yaml:"sandbox"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
}

// StreamConfig holds websocket settings shared by every channel.
type StreamConfig struct {
	PublicURL        string        `yaml:"public_url"`  // Base URL, application id is appended
	PrivateURL       string        `yaml:"private_url"` // Base URL, application id is appended
	ReadTimeout      time.Duration `yaml:"read_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
	RecvTimeout      time.Duration `yaml:"recv_timeout"`
	QueueSize        int           `yaml:"queue_size"`
	MaxReconnects    int           `yaml:"max_reconnects"`
	MaxReconnectWait time.Duration `yaml:"max_reconnect_wait"`
	AuthChannel      string        `yaml:"auth_channel"`
}

// ChannelConfig describes one logical channel started by the CLI.
type ChannelConfig struct {
	Name          string           `yaml:"name"`
	Authenticated bool             `yaml:"authenticated"`
	Binary        bool             `yaml:"binary"`
	Subscribe     []map[string]any `yaml:"subscribe"` // Payloads sent once the channel starts
}

// DBConfig holds the recorder database connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// RecorderConfig holds message recorder settings.
type RecorderConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Table         string        `yaml:"table"`
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
	BufferSize    int           `yaml:"buffer_size"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Port int    `yaml:"port"`
	Path string `yaml:"path"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}
