// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"io"
	"os"

	"github.com/spf13/pflag"

	"github.com/holomush/modhost/internal/config"
	"github.com/holomush/modhost/internal/extension"
	"github.com/holomush/modhost/internal/extension/native"
	"github.com/holomush/modhost/internal/extension/script"
	"github.com/holomush/modhost/internal/observability"
)

// HostDeps contains injectable dependencies for the run and list commands.
// All fields with nil values will use their default implementations.
type HostDeps struct {
	// ConfigLoader loads the host configuration.
	// Default: config.Load
	ConfigLoader func(path string, flags *pflag.FlagSet) (*config.Config, error)

	// RuntimeFactory returns the runtimes extensions are loaded with.
	// Default: defaultRuntimes
	RuntimeFactory func() []extension.Runtime

	// ObservabilityServerFactory creates an observability server.
	// Default: observability.NewServer
	ObservabilityServerFactory func(addr string, readinessChecker observability.ReadinessChecker, registrations ...observability.Registration) ObservabilityServer

	// Input is read line by line by the console.
	// Default: os.Stdin
	Input io.Reader
}

// ObservabilityServer interface wraps the methods used from observability.Server.
type ObservabilityServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
	Metrics() *observability.Metrics
	SetExtensionStatus(fn observability.StatusFunc)
}

// withDefaults fills unset fields of deps, which may be nil.
func (deps *HostDeps) withDefaults() *HostDeps {
	if deps == nil {
		deps = &HostDeps{}
	}
	if deps.ConfigLoader == nil {
		deps.ConfigLoader = config.Load
	}
	if deps.RuntimeFactory == nil {
		deps.RuntimeFactory = defaultRuntimes
	}
	if deps.ObservabilityServerFactory == nil {
		deps.ObservabilityServerFactory = func(addr string, readinessChecker observability.ReadinessChecker, registrations ...observability.Registration) ObservabilityServer {
			return observability.NewServer(addr, readinessChecker, registrations...)
		}
	}
	if deps.Input == nil {
		deps.Input = os.Stdin
	}
	return deps
}

// defaultRuntimes returns the native plugin runtime and the Lua runtime.
func defaultRuntimes() []extension.Runtime {
	return []extension.Runtime{native.New(), script.New()}
}
