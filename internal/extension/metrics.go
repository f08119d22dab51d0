// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package extension

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Lifecycle phase labels for callback failure metrics.
const (
	PhaseResolve    = "resolve"
	PhaseLoad       = "load"
	PhaseEnable     = "enable"
	PhasePostEnable = "post_enable"
)

var (
	// LifecycleTransitions counts extensions entering each lifecycle state.
	LifecycleTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "modhost_extension_transitions_total",
			Help: "Extensions entering each lifecycle state",
		},
		[]string{"state"},
	)

	// CallbackFailures counts absorbed extension failures by phase.
	CallbackFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "modhost_extension_failures_total",
			Help: "Extension failures absorbed by the lifecycle manager, by phase",
		},
		[]string{"phase"},
	)

	// RegisteredExtensions tracks the number of registered extensions.
	RegisteredExtensions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "modhost_extensions_registered",
			Help: "Number of extensions in the registry",
		},
	)
)

// RegisterMetrics registers lifecycle metrics with the given registerer.
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(LifecycleTransitions, CallbackFailures, RegisteredExtensions)
}

func recordTransition(state State) {
	LifecycleTransitions.WithLabelValues(state.String()).Inc()
}

func recordFailure(phase string) {
	CallbackFailures.WithLabelValues(phase).Inc()
}
