package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/rickgao/woostream/internal/auth"
)

// Base URLs and default API version.
const (
	ProductionURL = "https://api.woo.network"
	SandboxURL    = "https://api.staging.woo.network"
	APIVersion    = "v1"
)

var (
	// ErrNoApplicationID is returned when a client is built without an application id.
	ErrNoApplicationID = errors.New("application id is required")
	// ErrUnauthenticated is returned when a signed endpoint is called without credentials.
	ErrUnauthenticated = errors.New("signed request requires credentials")
)

// Client provides access to the WOO X REST API.
type Client struct {
	baseURL       string
	applicationID string
	sandbox       bool
	creds         *auth.Credentials
	httpClient    *http.Client
	logger        *slog.Logger

	maxRetries   int
	retryBackoff time.Duration
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// NewClient creates a new REST API client. creds may be nil for public-only use.
func NewClient(applicationID string, creds *auth.Credentials, opts ...ClientOption) (*Client, error) {
	if applicationID == "" {
		return nil, ErrNoApplicationID
	}

	c := &Client{
		baseURL:       ProductionURL,
		applicationID: applicationID,
		creds:         creds,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger:       slog.Default(),
		maxRetries:   3,
		retryBackoff: time.Second,
	}

	for _, opt := range opts {
		opt(c)
	}
	c.baseURL = strings.TrimRight(c.baseURL, "/")

	return c, nil
}

// WithSandbox points the client at the staging environment.
func WithSandbox(sandbox bool) ClientOption {
	return func(c *Client) {
		c.sandbox = sandbox
		if sandbox && c.baseURL == ProductionURL {
			c.baseURL = SandboxURL
		}
	}
}

// WithBaseURL overrides the REST base URL (scheme and host, no version).
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		if baseURL != "" {
			c.baseURL = baseURL
		}
	}
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithRetries sets the retry configuration for idempotent requests.
func WithRetries(max int, backoff time.Duration) ClientOption {
	return func(c *Client) {
		c.maxRetries = max
		c.retryBackoff = backoff
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// ApplicationID returns the application id the client was built for.
func (c *Client) ApplicationID() string {
	return c.applicationID
}

// Sandbox reports whether the client targets the staging environment.
func (c *Client) Sandbox() bool {
	return c.sandbox
}

// Credentials returns the signing credentials, or nil for a public client.
func (c *Client) Credentials() *auth.Credentials {
	return c.creds
}

// Close releases idle HTTP connections held by the client.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}

// URL builds <base>/<version>/<path>. An empty version selects APIVersion.
func (c *Client) URL(version, path string) string {
	if version == "" {
		version = APIVersion
	}
	return c.baseURL + "/" + version + "/" + strings.TrimLeft(path, "/")
}
