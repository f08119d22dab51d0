// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package eventbus

import "github.com/prometheus/client_golang/prometheus"

// EventsPublished counts published events by Go type.
// Use RegisterMetrics to register this with a Prometheus registry.
var EventsPublished = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "modhost_events_published_total",
		Help: "Total number of events published on the extension bus",
	},
	[]string{"type"},
)

// HandlerFailures counts handlers that returned an error or panicked.
// Use RegisterMetrics to register this with a Prometheus registry.
var HandlerFailures = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "modhost_event_handler_failures_total",
		Help: "Total number of event handler failures by event type",
	},
	[]string{"type"},
)

// RegisterMetrics registers event bus metrics with the given Prometheus registry.
// Panics if registration fails (following prometheus convention).
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(EventsPublished)
	reg.MustRegister(HandlerFailures)
}

func recordPublish(typ string) {
	EventsPublished.WithLabelValues(typ).Inc()
}

func recordHandlerFailure(typ string) {
	HandlerFailures.WithLabelValues(typ).Inc()
}
