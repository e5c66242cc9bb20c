// Package auth provides WOO X API authentication using HMAC-SHA256 signatures.
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Header names carried by every signed REST request.
const (
	HeaderAPIKey    = "x-api-key"
	HeaderSignature = "x-api-signature"
	HeaderTimestamp = "x-api-timestamp"
)

var ErrMissingSecret = errors.New("api secret is required")

// Credentials holds the API key and secret for signing requests.
type Credentials struct {
	APIKey string // API key from the WOO X console
	Secret string // API secret, never sent over the wire
}

// NewCredentials validates and returns credentials.
func NewCredentials(apiKey, secret string) (*Credentials, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if secret == "" {
		return nil, ErrMissingSecret
	}
	return &Credentials{APIKey: apiKey, Secret: secret}, nil
}

// LoadCredentials returns credentials using secret, or the contents of
// secretPath when secret is empty.
func LoadCredentials(apiKey, secret, secretPath string) (*Credentials, error) {
	if secret == "" && secretPath != "" {
		s, err := ReadSecretFile(secretPath)
		if err != nil {
			return nil, fmt.Errorf("load secret: %w", err)
		}
		secret = s
	}
	return NewCredentials(apiKey, secret)
}

// ReadSecretFile reads an API secret from a file, trimming surrounding whitespace.
func ReadSecretFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read secret file: %w", err)
	}
	secret := strings.TrimSpace(string(data))
	if secret == "" {
		return "", ErrMissingSecret
	}
	return secret, nil
}

// Timestamp formats t as milliseconds since the Unix epoch.
func Timestamp(t time.Time) string {
	return strconv.FormatInt(t.UnixMilli(), 10)
}

// SignRequest generates authentication headers for a REST request carrying params.
func (c *Credentials) SignRequest(params map[string]string) map[string]string {
	ts := Timestamp(time.Now())

	return map[string]string{
		HeaderAPIKey:    c.APIKey,
		HeaderSignature: c.Sign(params, ts),
		HeaderTimestamp: ts,
	}
}

// Sign returns the uppercase hex HMAC-SHA256 of the canonical request string.
// Message format: k1=v1&k2=v2...|timestamp, keys sorted lexicographically.
func (c *Credentials) Sign(params map[string]string, ts string) string {
	return strings.ToUpper(c.hmacHex(CanonicalString(params, ts)))
}

// SignWebSocket signs the private stream auth event. The server checks it
// like a REST signature with no parameters: uppercase hex over "|timestamp".
func (c *Credentials) SignWebSocket(ts string) string {
	return c.Sign(nil, ts)
}

// CanonicalString builds the string covered by a REST signature.
func CanonicalString(params map[string]string, ts string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(params[k])
	}
	b.WriteByte('|')
	b.WriteString(ts)
	return b.String()
}

func (c *Credentials) hmacHex(msg string) string {
	mac := hmac.New(sha256.New, []byte(c.Secret))
	mac.Write([]byte(msg))
	return hex.EncodeToString(mac.Sum(nil))
}
