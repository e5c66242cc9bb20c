package main

import (
	"log/slog"
	"time"

	"github.com/rickgao/woostream/internal/api"
	"github.com/rickgao/woostream/internal/auth"
	"github.com/rickgao/woostream/internal/config"
	"github.com/rickgao/woostream/internal/recorder"
	"github.com/rickgao/woostream/internal/stream"
)

// credentials returns nil when no API key is configured.
func credentials(cfg *config.Config) (*auth.Credentials, error) {
	if cfg.Account.APIKey == "" {
		return nil, nil
	}
	return auth.LoadCredentials(cfg.Account.APIKey, cfg.Account.APISecret, cfg.Account.APISecretFile)
}

func managerConfig(cfg *config.Config, creds *auth.Credentials) stream.ManagerConfig {
	mc := stream.DefaultManagerConfig()
	mc.ApplicationID = cfg.Account.ApplicationID
	mc.Credentials = creds
	mc.Sandbox = cfg.API.Sandbox
	mc.PublicURL = cfg.Stream.PublicURL
	mc.PrivateURL = cfg.Stream.PrivateURL
	mc.RecvTimeout = cfg.Stream.RecvTimeout
	mc.AuthChannel = cfg.Stream.AuthChannel

	mc.Conn.ReadTimeout = cfg.Stream.ReadTimeout
	mc.Conn.WriteTimeout = cfg.Stream.WriteTimeout
	mc.Conn.QueueSize = cfg.Stream.QueueSize
	mc.Conn.MaxReconnects = cfg.Stream.MaxReconnects
	mc.Conn.MaxReconnectWait = cfg.Stream.MaxReconnectWait
	return mc
}

func apiOptions(cfg *config.Config, logger *slog.Logger) []api.ClientOption {
	return []api.ClientOption{
		api.WithSandbox(cfg.API.Sandbox),
		api.WithBaseURL(cfg.API.RestURL),
		api.WithTimeout(cfg.API.Timeout),
		api.WithRetries(cfg.API.MaxRetries, time.Second),
		api.WithLogger(logger),
	}
}

func recorderConfig(cfg *config.Config) recorder.Config {
	rc := recorder.DefaultConfig()
	rc.Table = cfg.Recorder.Table
	rc.BatchSize = cfg.Recorder.BatchSize
	rc.FlushInterval = cfg.Recorder.FlushInterval
	rc.BufferSize = cfg.Recorder.BufferSize
	return rc
}

func channelSpec(ch config.ChannelConfig) stream.ChannelSpec {
	return stream.ChannelSpec{
		Name:          ch.Name,
		Authenticated: ch.Authenticated,
		Binary:        ch.Binary,
	}
}
