// Package metrics exposes Prometheus counters and gauges instrumenting the
// ami client: throughput, back-pressure drops, and error counts by kind.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	MessagesSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ami_messages_sent_total",
		Help: "Total AMI messages written to the stream.",
	})
	MessagesReceived = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ami_messages_received_total",
		Help: "Total AMI messages decoded from the stream.",
	})
	Replies = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ami_replies_total",
		Help: "Total decoded messages matched to a pending request.",
	})
	Events = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ami_events_total",
		Help: "Total decoded messages published as events (no matching pending request).",
	})
	PendingRequests = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ami_pending_requests",
		Help: "Current number of outstanding publish calls awaiting a reply.",
	})
	Subscribers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ami_subscribers",
		Help: "Current number of active event subscribers.",
	})
	HubDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ami_hub_dropped_total",
		Help: "Total events dropped under the DropOldest back-pressure policy.",
	})
	Errors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ami_errors_total",
		Help: "Error counters by kind.",
	}, []string{"kind"})
	Terminal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ami_terminal_total",
		Help: "Client terminal transitions by cause.",
	}, []string{"cause"})
)

// Error kind label constants (stable values to bound cardinality).
const (
	KindMalformed = "malformed"
	KindEOF       = "eof"
	KindIO        = "io"
	KindDuplicate = "duplicate_action_id"
)

func IncError(kind string)     { Errors.WithLabelValues(kind).Inc() }
func IncTerminal(cause string) { Terminal.WithLabelValues(cause).Inc() }
