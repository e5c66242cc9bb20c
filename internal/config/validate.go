package config

import (
	"errors"
	"fmt"
)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if c.Account.ApplicationID == "" {
		return errors.New("account.application_id is required")
	}

	hasPrivate := false
	seen := make(map[string]struct{}, len(c.Channels))
	for i, ch := range c.Channels {
		if ch.Name == "" {
			return fmt.Errorf("channels[%d].name is required", i)
		}
		if _, dup := seen[ch.Name]; dup {
			return fmt.Errorf("channels[%d].name %q is duplicated", i, ch.Name)
		}
		seen[ch.Name] = struct{}{}
		if ch.Authenticated {
			hasPrivate = true
		}
	}

	if hasPrivate {
		if c.Account.APIKey == "" {
			return errors.New("account.api_key is required for authenticated channels")
		}
		if c.Account.APISecret == "" && c.Account.APISecretFile == "" {
			return errors.New("account.api_secret or account.api_secret_file is required for authenticated channels")
		}
	}

	if c.Stream.QueueSize < 1 {
		return errors.New("stream.queue_size must be >= 1")
	}
	if c.Stream.MaxReconnects < 1 {
		return errors.New("stream.max_reconnects must be >= 1")
	}
	if c.Stream.ReadTimeout <= 0 {
		return errors.New("stream.read_timeout must be positive")
	}
	if c.Stream.RecvTimeout <= 0 {
		return errors.New("stream.recv_timeout must be positive")
	}

	if c.Recorder.Enabled {
		if err := c.Database.validate("database"); err != nil {
			return err
		}
		if c.Recorder.BatchSize < 1 {
			return errors.New("recorder.batch_size must be >= 1")
		}
		if c.Recorder.BufferSize < 1 {
			return errors.New("recorder.buffer_size must be >= 1")
		}
	}

	if c.Metrics.Port < 1 || c.Metrics.Port > 65535 {
		return fmt.Errorf("metrics.port must be between 1 and 65535, got %d", c.Metrics.Port)
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be one of debug, info, warn, error, got %q", c.Log.Level)
	}

	return nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.Password == "" {
		return fmt.Errorf("%s.password is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}
