// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package extension

import (
	"context"

	"github.com/holomush/modhost/pkg/modapi"
)

// Runtime loads one family of extension packages, such as Go plugins or Lua
// scripts.
type Runtime interface {
	// Name identifies the runtime in descriptors and logs.
	Name() string
	// Suffixes lists the package file suffixes the runtime claims.
	Suffixes() []string
	// Resolve reads the package at path and produces a candidate. The
	// descriptor's required fields are validated by the caller.
	Resolve(ctx context.Context, path string) (*Candidate, error)
	// NewLoadContext creates a loading context seeded with candidates. The
	// manager calls it once per runtime when contexts are shared, or once per
	// candidate otherwise.
	NewLoadContext(ctx context.Context, candidates []*Candidate) (LoadContext, error)
}

// LoadContext instantiates extensions from the candidates it was seeded with.
type LoadContext interface {
	// Instantiate invokes the candidate's entry point.
	Instantiate(ctx context.Context, c *Candidate) (modapi.Extension, error)
	// Close releases the context once the host shuts down.
	Close() error
}

// Candidate is a discovered package whose metadata has been resolved.
type Candidate struct {
	Descriptor modapi.Descriptor
	// Payload carries runtime-private data from Resolve to Instantiate.
	Payload any
}
