package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Push channel metrics
	PushMessagesDelivered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "marketlive_push_messages_delivered_total",
			Help: "Total chat messages delivered over the push channel",
		},
	)

	PushParseFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "marketlive_push_parse_failures_total",
			Help: "Total unrecognized push frames dropped",
		},
	)

	PushDisconnects = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "marketlive_push_disconnects_total",
			Help: "Total remote closes and transport errors",
		},
	)

	// Unread counter metrics
	UnreadIncrements = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "marketlive_unread_increments_total",
			Help: "Total unread counter increments",
		},
	)

	UnreadResets = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketlive_unread_resets_total",
			Help: "Total unread counter resets",
		},
		[]string{"source"}, // "receipt" or "local"
	)

	// REST metrics
	RESTRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketlive_rest_requests_total",
			Help: "Total REST calls issued by the engine",
		},
		[]string{"op", "outcome"},
	)

	ListPollFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "marketlive_list_poll_failures_total",
			Help: "Total transaction list poll ticks that exhausted their retries",
		},
	)
)
