package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "woostream"

// Drop reasons for MessagesDropped.
const (
	ReasonQueueFull  = "queue_full"
	ReasonDecompress = "decompress"
	ReasonParse      = "parse"
	ReasonEmpty      = "empty"
)

var (
	// Registry holds every woostream collector.
	Registry = prometheus.NewRegistry()

	MessagesReceived = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "messages_received_total",
		Help:      "Decoded messages accepted into a channel queue.",
	}, []string{"channel"})

	MessagesDropped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "messages_dropped_total",
		Help:      "Inbound frames discarded before reaching the consumer.",
	}, []string{"channel", "reason"})

	Reconnects = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reconnects_total",
		Help:      "Reconnect attempts per channel.",
	}, []string{"channel"})

	ChannelFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "channel_failures_total",
		Help:      "Channels that exhausted their reconnect budget.",
	}, []string{"channel"})

	ConnectionState = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "connection_state",
		Help:      "Lifecycle state per channel (0=initialising 1=streaming 2=reconnecting 3=exiting).",
	}, []string{"channel"})

	RecorderRows = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "recorder",
		Name:      "rows_written_total",
		Help:      "Messages persisted by the recorder.",
	})

	RecorderFlushErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "recorder",
		Name:      "flush_errors_total",
		Help:      "Failed recorder batch writes.",
	})

	RecorderDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "recorder",
		Name:      "dropped_total",
		Help:      "Messages discarded because the recorder buffer was full.",
	})
)

func init() {
	Registry.MustRegister(
		MessagesReceived,
		MessagesDropped,
		Reconnects,
		ChannelFailures,
		ConnectionState,
		RecorderRows,
		RecorderFlushErrors,
		RecorderDropped,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// Handler serves the registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{Registry: Registry})
}

// ForgetChannel removes the per-channel series of a stopped channel.
func ForgetChannel(channel string) {
	MessagesReceived.DeletePartialMatch(prometheus.Labels{"channel": channel})
	MessagesDropped.DeletePartialMatch(prometheus.Labels{"channel": channel})
	Reconnects.DeletePartialMatch(prometheus.Labels{"channel": channel})
	ConnectionState.DeletePartialMatch(prometheus.Labels{"channel": channel})
}
