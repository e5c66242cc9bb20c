package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rickgao/woostream/internal/config"
	"github.com/rickgao/woostream/internal/stream"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"INFO", slog.LevelInfo, false},
		{"", slog.LevelInfo, false},
		{"warn", slog.LevelWarn, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"trace", slog.LevelInfo, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseLevel(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("parseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func testConfig() *config.Config {
	cfg := &config.Config{
		Account: config.AccountConfig{ApplicationID: "demo"},
		Channels: []config.ChannelConfig{
			{Name: "trades", Subscribe: []map[string]any{{"event": "subscribe", "topic": "SPOT_BTC_USDT@trade"}}},
		},
	}
	cfg.ApplyDefaults()
	return cfg
}

func TestManagerConfig(t *testing.T) {
	cfg := testConfig()
	cfg.API.Sandbox = true
	cfg.Stream.QueueSize = 50
	cfg.Stream.MaxReconnects = 3
	cfg.Stream.PublicURL = "ws://localhost:9000/ws"

	mc := managerConfig(cfg, nil)

	if mc.ApplicationID != "demo" || !mc.Sandbox {
		t.Errorf("unexpected account settings %+v", mc)
	}
	if mc.Conn.QueueSize != 50 || mc.Conn.MaxReconnects != 3 {
		t.Errorf("unexpected connection settings %+v", mc.Conn)
	}
	if mc.PublicURL != "ws://localhost:9000/ws" {
		t.Errorf("unexpected public URL %q", mc.PublicURL)
	}
	if mc.RecvTimeout != config.DefaultRecvTimeout {
		t.Errorf("RecvTimeout = %v, want %v", mc.RecvTimeout, config.DefaultRecvTimeout)
	}
	if mc.AuthChannel != stream.DefaultAuthChannel {
		t.Errorf("AuthChannel = %q, want %q", mc.AuthChannel, stream.DefaultAuthChannel)
	}
}

func TestCredentials(t *testing.T) {
	cfg := testConfig()

	creds, err := credentials(cfg)
	if err != nil || creds != nil {
		t.Fatalf("expected no credentials without api key, got %v, %v", creds, err)
	}

	secretPath := filepath.Join(t.TempDir(), "secret")
	if err := os.WriteFile(secretPath, []byte("s3cret\n"), 0o600); err != nil {
		t.Fatalf("write secret: %v", err)
	}
	cfg.Account.APIKey = "key"
	cfg.Account.APISecretFile = secretPath

	creds, err = credentials(cfg)
	if err != nil {
		t.Fatalf("credentials failed: %v", err)
	}
	if creds.APIKey != "key" || creds.Secret != "s3cret" {
		t.Errorf("unexpected credentials %+v", creds)
	}
}

func TestRecorderConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Recorder.BatchSize = 42

	rc := recorderConfig(cfg)
	if rc.Table != config.DefaultRecorderTable || rc.BatchSize != 42 {
		t.Errorf("unexpected recorder config %+v", rc)
	}
}

type fakePinger struct{ err error }

func (f fakePinger) Ping(ctx context.Context) error { return f.err }

func TestHealthHandler(t *testing.T) {
	mgr, err := stream.NewManager(managerConfig(testConfig(), nil), nil)
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}

	tests := []struct {
		name       string
		db         pinger
		wantCode   int
		wantStatus string
	}{
		{"no database", nil, http.StatusOK, "starting"},
		{"database up", fakePinger{}, http.StatusOK, "starting"},
		{"database down", fakePinger{err: errors.New("refused")}, http.StatusServiceUnavailable, "unhealthy"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHTTPHandler("/metrics", mgr, tt.db, slog.Default())

			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

			if rec.Code != tt.wantCode {
				t.Errorf("status code = %d, want %d", rec.Code, tt.wantCode)
			}

			var resp healthResponse
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp.Status != tt.wantStatus {
				t.Errorf("status = %q, want %q", resp.Status, tt.wantStatus)
			}
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	h := newHTTPHandler("/metrics", nil, nil, slog.Default())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status code = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "go_goroutines") {
		t.Error("expected Go runtime metrics")
	}
}

func TestMessageHandler_Print(t *testing.T) {
	var buf bytes.Buffer
	handler := messageHandler(&buf, nil, slog.Default())

	handler("trades")(stream.Message{"topic": "SPOT_BTC_USDT@trade"})

	var line struct {
		Channel string         `json:"channel"`
		Message map[string]any `json:"message"`
	}
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("output is not JSON: %v (%q)", err, buf.String())
	}
	if line.Channel != "trades" || line.Message["topic"] != "SPOT_BTC_USDT@trade" {
		t.Errorf("unexpected output %+v", line)
	}
}

func TestStartChannels_ShutdownBeforeStart(t *testing.T) {
	mgr, err := stream.NewManager(managerConfig(testConfig(), nil), nil)
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}

	// Never started: StartChannel blocks until the context ends, which is
	// treated as shutdown rather than failure.
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err = startChannels(ctx, mgr, testConfig().Channels, messageHandler(nil, nil, slog.Default()))
	if err != nil {
		t.Errorf("expected nil on shutdown, got %v", err)
	}
}

func TestVersionCmd(t *testing.T) {
	root := newRootCmd()

	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})

	if err := root.Execute(); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !strings.HasPrefix(out.String(), "woostream ") {
		t.Errorf("unexpected output %q", out.String())
	}
}

func TestRootCmd_InvalidLogLevel(t *testing.T) {
	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetArgs([]string{"--log-level", "loud", "version"})

	if err := root.Execute(); err == nil {
		t.Error("expected error for invalid log level")
	}
}
