package stream

import (
	"errors"
	"testing"

	"github.com/rickgao/woostream/internal/api"
)

func TestNewEndpoints(t *testing.T) {
	tests := []struct {
		name        string
		sandbox     bool
		publicBase  string
		privateBase string
		wantPublic  string
		wantPrivate string
	}{
		{
			name:        "production",
			wantPublic:  "wss://wss.woo.network/ws/stream/demo",
			wantPrivate: "wss://wss.woo.network/v2/ws/private/stream/demo",
		},
		{
			name:        "sandbox",
			sandbox:     true,
			wantPublic:  "wss://wss.staging.woo.network/ws/stream/demo",
			wantPrivate: "wss://wss.staging.woo.network/v2/ws/private/stream/demo",
		},
		{
			name:        "overrides",
			publicBase:  "ws://localhost:8080/public/",
			privateBase: "ws://localhost:8080/private",
			wantPublic:  "ws://localhost:8080/public/demo",
			wantPrivate: "ws://localhost:8080/private/demo",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := NewEndpoints("demo", tt.sandbox, tt.publicBase, tt.privateBase)
			if err != nil {
				t.Fatalf("NewEndpoints failed: %v", err)
			}
			if got := e.URL(false); got != tt.wantPublic {
				t.Errorf("public URL = %q, want %q", got, tt.wantPublic)
			}
			if got := e.URL(true); got != tt.wantPrivate {
				t.Errorf("private URL = %q, want %q", got, tt.wantPrivate)
			}
		})
	}
}

func TestNewEndpoints_MissingApplicationID(t *testing.T) {
	_, err := NewEndpoints("", false, "", "")
	if !errors.Is(err, api.ErrNoApplicationID) {
		t.Errorf("expected ErrNoApplicationID, got %v", err)
	}
}
