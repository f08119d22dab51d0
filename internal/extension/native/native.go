// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package native loads extensions compiled as Go plugins (.so files).
//
// A native extension is a main package built with -buildmode=plugin that
// exports two symbols:
//
//	var Metadata = modapi.Metadata{Name: "greeter", Version: "1.0.0", Author: "Ada"}
//
//	func New() modapi.Extension { return &Greeter{} }
package native

import (
	"context"
	"plugin"

	"github.com/samber/oops"

	"github.com/holomush/modhost/internal/extension"
	"github.com/holomush/modhost/pkg/modapi"
)

// Exported symbol names.
const (
	MetadataSymbol = "Metadata"
	EntrySymbol    = "New"
)

// Suffix is the package file suffix claimed by the runtime.
const Suffix = ".so"

// SymbolTable resolves exported symbols of an opened package.
type SymbolTable interface {
	Lookup(name string) (any, error)
}

// Opener opens a package file.
type Opener interface {
	Open(path string) (SymbolTable, error)
}

// OpenerFunc adapts a function to Opener.
type OpenerFunc func(path string) (SymbolTable, error)

// Open calls f.
func (f OpenerFunc) Open(path string) (SymbolTable, error) { return f(path) }

// pluginOpener opens packages with the Go plugin loader.
type pluginOpener struct{}

func (pluginOpener) Open(path string) (SymbolTable, error) {
	p, err := plugin.Open(path)
	if err != nil {
		return nil, err
	}
	return pluginTable{p: p}, nil
}

type pluginTable struct {
	p *plugin.Plugin
}

func (t pluginTable) Lookup(name string) (any, error) {
	sym, err := t.p.Lookup(name)
	if err != nil {
		return nil, err
	}
	return sym, nil
}

// Runtime loads Go plugin extensions.
type Runtime struct {
	opener Opener
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithOpener replaces the Go plugin loader, mainly for tests.
func WithOpener(o Opener) Option {
	return func(r *Runtime) {
		r.opener = o
	}
}

// New creates the native runtime.
func New(opts ...Option) *Runtime {
	r := &Runtime{opener: pluginOpener{}}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Name returns "native".
func (r *Runtime) Name() string { return "native" }

// Suffixes returns ".so".
func (r *Runtime) Suffixes() []string { return []string{Suffix} }

// Resolve opens the package and reads its Metadata symbol. The opened
// symbol table travels with the candidate so the package is opened once.
func (r *Runtime) Resolve(_ context.Context, path string) (*extension.Candidate, error) {
	table, err := r.opener.Open(path)
	if err != nil {
		return nil, oops.Code(extension.CodeLoadFailed).
			With("path", path).
			Wrapf(err, "open plugin")
	}

	sym, err := table.Lookup(MetadataSymbol)
	if err != nil {
		return nil, extension.ErrInvalidManifest("metadata", "plugin does not export %s: %v", MetadataSymbol, err)
	}

	var meta modapi.Metadata
	switch v := sym.(type) {
	case *modapi.Metadata:
		if v == nil {
			return nil, extension.ErrInvalidManifest("metadata", "%s is nil", MetadataSymbol)
		}
		meta = *v
	case modapi.Metadata:
		meta = v
	default:
		return nil, extension.ErrInvalidManifest("metadata", "%s has type %T, want modapi.Metadata", MetadataSymbol, sym)
	}

	return &extension.Candidate{
		Descriptor: modapi.Descriptor{
			Name:       meta.Name,
			Version:    meta.Version,
			Author:     meta.Author,
			InfoURL:    meta.InfoURL,
			EntryPoint: EntrySymbol,
		},
		Payload: table,
	}, nil
}

// NewLoadContext returns a context for the given candidates. Go plugins
// share the host's address space and type universe, so every native context
// is equivalent; the candidates are remembered only to reject strangers.
func (r *Runtime) NewLoadContext(_ context.Context, candidates []*extension.Candidate) (extension.LoadContext, error) {
	seeded := make(map[*extension.Candidate]struct{}, len(candidates))
	for _, c := range candidates {
		seeded[c] = struct{}{}
	}
	return &loadContext{seeded: seeded}, nil
}

type loadContext struct {
	seeded map[*extension.Candidate]struct{}
}

func (lc *loadContext) Instantiate(_ context.Context, c *extension.Candidate) (modapi.Extension, error) {
	name := c.Descriptor.Name
	if _, ok := lc.seeded[c]; !ok {
		return nil, oops.Code(extension.CodeLoadFailed).
			With("extension", name).
			Errorf("candidate was not seeded into this loading context")
	}
	table, ok := c.Payload.(SymbolTable)
	if !ok {
		return nil, oops.Code(extension.CodeLoadFailed).
			With("extension", name).
			Errorf("candidate carries no symbol table")
	}

	sym, err := table.Lookup(EntrySymbol)
	if err != nil {
		return nil, oops.Code(extension.CodeLoadFailed).
			With("extension", name).
			Wrapf(err, "entry point %s not found", EntrySymbol)
	}

	var ctor func() modapi.Extension
	switch fn := sym.(type) {
	case func() modapi.Extension:
		ctor = fn
	case *func() modapi.Extension:
		if fn == nil || *fn == nil {
			return nil, extension.ErrInvalidType(name, EntrySymbol+" is nil")
		}
		ctor = *fn
	default:
		return nil, extension.ErrInvalidType(name, EntrySymbol+" must be a func() modapi.Extension")
	}
	return ctor(), nil
}

// Close does nothing: Go plugins cannot be unloaded.
func (lc *loadContext) Close() error { return nil }
