// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package extension

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/holomush/modhost/internal/datafile"
	"github.com/holomush/modhost/internal/permission"
	"github.com/holomush/modhost/pkg/modapi"
)

const fakeSuffix = ".fake"

// journal records lifecycle calls across extensions in order.
type journal struct {
	calls []string
}

func (j *journal) add(s string) { j.calls = append(j.calls, s) }

// testExtension is a configurable extension driven by the fake runtime.
type testExtension struct {
	modapi.Base
	name      string
	journal   *journal
	enableErr error
	panicOn   string // "enable" or "post_enable"
	postErr   error
	onInit    func(h modapi.Host)
	onEnable  func(ctx context.Context, h modapi.Host) error
	onPost    func(ctx context.Context, h modapi.Host) error
}

func (e *testExtension) Init(h modapi.Host) {
	e.Base.Init(h)
	if e.journal != nil {
		e.journal.add("init " + e.name)
	}
	if e.onInit != nil {
		e.onInit(h)
	}
}

func (e *testExtension) Enable(ctx context.Context, h modapi.Host) error {
	if e.journal != nil {
		e.journal.add("enable " + e.name)
	}
	if e.panicOn == PhaseEnable {
		panic("boom")
	}
	if e.onEnable != nil {
		return e.onEnable(ctx, h)
	}
	return e.enableErr
}

func (e *testExtension) PostEnable(ctx context.Context, h modapi.Host) error {
	if e.journal != nil {
		e.journal.add("post " + e.name)
	}
	if e.panicOn == PhasePostEnable {
		panic("late boom")
	}
	if e.onPost != nil {
		return e.onPost(ctx, h)
	}
	return e.postErr
}

// plainExtension has no PostEnable step.
type plainExtension struct {
	enabled bool
}

func (p *plainExtension) Init(modapi.Host) {}

func (p *plainExtension) Enable(context.Context, modapi.Host) error {
	p.enabled = true
	return nil
}

// sliceExtension cannot be used as a map key.
type sliceExtension []string

func (sliceExtension) Init(modapi.Host)                          {}
func (sliceExtension) Enable(context.Context, modapi.Host) error { return nil }

// fakeRuntime resolves ".fake" files by base name from in-memory tables.
type fakeRuntime struct {
	metadata   map[string]modapi.Metadata
	factories  map[string]func() (modapi.Extension, error)
	resolveErr map[string]error
	contextErr error
	contexts   []*fakeContext
}

func newFakeRuntime() *fakeRuntime {
	return &fakeRuntime{
		metadata:   make(map[string]modapi.Metadata),
		factories:  make(map[string]func() (modapi.Extension, error)),
		resolveErr: make(map[string]error),
	}
}

// add declares a package named file with the given metadata and constructor.
func (r *fakeRuntime) add(file string, meta modapi.Metadata, factory func() (modapi.Extension, error)) {
	r.metadata[file] = meta
	r.factories[file] = factory
}

func (r *fakeRuntime) Name() string       { return "fake" }
func (r *fakeRuntime) Suffixes() []string { return []string{fakeSuffix} }

func (r *fakeRuntime) Resolve(_ context.Context, path string) (*Candidate, error) {
	base := strings.TrimSuffix(filepath.Base(path), fakeSuffix)
	if err, ok := r.resolveErr[base]; ok {
		return nil, err
	}
	meta, ok := r.metadata[base]
	if !ok {
		return nil, errors.New("no metadata for " + base)
	}
	return &Candidate{
		Descriptor: modapi.Descriptor{
			Name:       meta.Name,
			Version:    meta.Version,
			Author:     meta.Author,
			InfoURL:    meta.InfoURL,
			EntryPoint: "New",
		},
		Payload: base,
	}, nil
}

func (r *fakeRuntime) NewLoadContext(_ context.Context, candidates []*Candidate) (LoadContext, error) {
	if r.contextErr != nil {
		return nil, r.contextErr
	}
	lc := &fakeContext{runtime: r, seeded: candidates}
	r.contexts = append(r.contexts, lc)
	return lc, nil
}

type fakeContext struct {
	runtime *fakeRuntime
	seeded  []*Candidate
	closed  bool
}

func (c *fakeContext) Instantiate(_ context.Context, cand *Candidate) (modapi.Extension, error) {
	factory, ok := c.runtime.factories[cand.Payload.(string)]
	if !ok {
		return nil, errors.New("entry point missing")
	}
	return factory()
}

func (c *fakeContext) Close() error {
	c.closed = true
	return nil
}

// meta builds complete metadata for name.
func meta(name string) modapi.Metadata {
	return modapi.Metadata{Name: name, Version: "1.0.0", Author: "tester", InfoURL: "https://example.com/" + name}
}

// returns wraps an instance as a constructor.
func returns(ext modapi.Extension) func() (modapi.Extension, error) {
	return func() (modapi.Extension, error) { return ext, nil }
}

// touch creates empty package files under the modules directory.
func touch(t *testing.T, layout datafile.Layout, files ...string) {
	t.Helper()
	for _, f := range files {
		path := filepath.Join(layout.Modules(), f)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
		require.NoError(t, os.WriteFile(path, nil, 0o600))
	}
}

// newTestManager creates a manager with the fake runtime and a captured log.
func newTestManager(t *testing.T, rt Runtime, opts ...Option) (*Manager, datafile.Layout, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	layout := datafile.Layout{Root: t.TempDir()}
	opts = append([]Option{WithRuntime(rt), WithLogger(logger)}, opts...)
	m := NewManager(layout, opts...)
	t.Cleanup(func() { _ = m.Close() })
	return m, layout, &buf
}

// testSender is a command sender with a fixed permission set, falling back
// to a permission registry when one is set.
type testSender struct {
	name     string
	op       bool
	perms    map[string]bool
	registry *permission.Registry
	messages []string
}

func (s *testSender) Name() string     { return s.name }
func (s *testSender) Privileged() bool { return s.op }
func (s *testSender) HasPermission(node string) bool {
	if s.op || s.perms[node] {
		return true
	}
	return s.registry != nil && s.registry.Check(s, node)
}
func (s *testSender) Send(msg string) { s.messages = append(s.messages, msg) }
