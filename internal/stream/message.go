package stream

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"io"

	"github.com/rickgao/woostream/internal/metrics"
)

// Message is a decoded push message. Payload schemas are exchange specific.
type Message map[string]any

// Event returns the "event" field, e.g. "ping", "subscribe", "auth".
func (m Message) Event() string {
	s, _ := m["event"].(string)
	return s
}

// Topic returns the "topic" field of data messages.
func (m Message) Topic() string {
	s, _ := m["topic"].(string)
	return s
}

// IsPing reports whether the server is asking for a keepalive pong.
func (m Message) IsPing() bool {
	return m.Event() == "ping"
}

// Pong is the keepalive reply.
func Pong() Message {
	return Message{"event": "pong"}
}

// maxInflatedFrame caps the decompressed size of a binary frame.
var maxInflatedFrame int64 = 16 << 20

// decodeFrame turns a raw frame into a Message. On failure it returns the
// drop reason instead.
func decodeFrame(data []byte, binary bool) (Message, string) {
	if binary {
		zr, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, metrics.ReasonDecompress
		}
		data, err = io.ReadAll(io.LimitReader(zr, maxInflatedFrame+1))
		if err != nil || int64(len(data)) > maxInflatedFrame {
			return nil, metrics.ReasonDecompress
		}
	}

	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, metrics.ReasonParse
	}
	if len(msg) == 0 {
		return nil, metrics.ReasonEmpty
	}
	return msg, ""
}
