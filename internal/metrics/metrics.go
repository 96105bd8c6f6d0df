// Package metrics exposes prometheus instrumentation for the bridge.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bridge_requests_sent_total",
		Help: "Outbound capability requests.",
	})
	RequestsResolved = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bridge_requests_resolved_total",
		Help: "Requests that received a terminal response.",
	})
	RequestsTimedOut = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bridge_requests_timed_out_total",
		Help: "Requests that hit their deadline before a response arrived.",
	})
	LateResponses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bridge_late_responses_total",
		Help: "Responses discarded because their request was already settled.",
	})
	EventsDispatched = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bridge_events_dispatched_total",
		Help: "Inbound events fanned out to listeners.",
	})
	ListenerPanics = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bridge_listener_panics_total",
		Help: "Event listener panics recovered by the engine.",
	})
	MalformedFrames = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bridge_malformed_frames_total",
		Help: "Inbound frames dropped because they could not be classified.",
	})
	ResponsesEmitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bridge_responses_emitted_total",
		Help: "Responses the capability dispatcher sent back to content.",
	})
	StackDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bridge_page_stack_depth",
		Help: "Confirmed pages in the navigation stack.",
	})
)
