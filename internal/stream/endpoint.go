package stream

import (
	"strings"

	"github.com/rickgao/woostream/internal/api"
)

// Stream base URLs. The application id is appended as the last path segment.
const (
	PublicStreamURL         = "wss://wss.woo.network/ws/stream"
	PrivateStreamURL        = "wss://wss.woo.network/v2/ws/private/stream"
	SandboxPublicStreamURL  = "wss://wss.staging.woo.network/ws/stream"
	SandboxPrivateStreamURL = "wss://wss.staging.woo.network/v2/ws/private/stream"
)

// Endpoints holds the resolved stream URLs for one application.
type Endpoints struct {
	Public  string
	Private string
}

// NewEndpoints resolves production or sandbox stream URLs for applicationID.
// Non-empty publicBase/privateBase override the built-in hosts.
func NewEndpoints(applicationID string, sandbox bool, publicBase, privateBase string) (Endpoints, error) {
	if applicationID == "" {
		return Endpoints{}, api.ErrNoApplicationID
	}

	pub, priv := PublicStreamURL, PrivateStreamURL
	if sandbox {
		pub, priv = SandboxPublicStreamURL, SandboxPrivateStreamURL
	}
	if publicBase != "" {
		pub = publicBase
	}
	if privateBase != "" {
		priv = privateBase
	}

	return Endpoints{
		Public:  joinURL(pub, applicationID),
		Private: joinURL(priv, applicationID),
	}, nil
}

// URL selects the endpoint for a public or authenticated channel.
func (e Endpoints) URL(authenticated bool) string {
	if authenticated {
		return e.Private
	}
	return e.Public
}

func joinURL(base, applicationID string) string {
	return strings.TrimRight(base, "/") + "/" + applicationID
}
