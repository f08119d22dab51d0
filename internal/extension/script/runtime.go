// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package script

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/samber/oops"
	lua "github.com/yuin/gopher-lua"

	"github.com/holomush/modhost/internal/extension"
	"github.com/holomush/modhost/pkg/modapi"
)

// Package suffixes claimed by the runtime.
const (
	ScriptSuffix  = ".lua"
	PackageSuffix = ".zip"
)

// Runtime loads Lua extensions.
type Runtime struct{}

// New creates the Lua runtime.
func New() *Runtime {
	return &Runtime{}
}

// Name returns "lua".
func (r *Runtime) Name() string { return "lua" }

// Suffixes returns ".lua" and ".zip".
func (r *Runtime) Suffixes() []string { return []string{ScriptSuffix, PackageSuffix} }

// Resolve reads the metadata of a script or package. Scripts are executed
// in a throwaway state and must return their module table; packages carry a
// module.yml manifest and their entry script is only compiled.
func (r *Runtime) Resolve(_ context.Context, file string) (*extension.Candidate, error) {
	if strings.EqualFold(filepath.Ext(file), PackageSuffix) {
		return r.resolvePackage(file)
	}
	return r.resolveScript(file)
}

func (r *Runtime) resolveScript(file string) (*extension.Candidate, error) {
	src, err := readScript(file)
	if err != nil {
		return nil, err
	}

	L, err := newState()
	if err != nil {
		return nil, oops.Code(extension.CodeLoadFailed).Wrap(err)
	}
	defer L.Close()

	ret, err := runChunk(L, src.code, src.chunkName)
	if err != nil {
		return nil, oops.Code(extension.CodeLoadFailed).
			With("path", file).
			Wrapf(err, "run script")
	}
	module, ok := ret.(*lua.LTable)
	if !ok {
		return nil, extension.ErrInvalidManifest("metadata", "script must return a table, got %s", ret.Type())
	}

	return &extension.Candidate{
		Descriptor: modapi.Descriptor{
			Name:       stringField(module, "name"),
			Version:    stringField(module, "version"),
			Author:     stringField(module, "author"),
			InfoURL:    stringField(module, "info_url"),
			EntryPoint: filepath.Base(file),
		},
		Payload: src,
	}, nil
}

func (r *Runtime) resolvePackage(file string) (*extension.Candidate, error) {
	m, src, err := readPackage(file)
	if err != nil {
		return nil, err
	}

	L, err := newState()
	if err != nil {
		return nil, oops.Code(extension.CodeLoadFailed).Wrap(err)
	}
	defer L.Close()
	if _, err := L.Load(strings.NewReader(src.code), src.chunkName); err != nil {
		return nil, oops.Code(extension.CodeLoadFailed).
			With("path", file).
			With("main", m.Main).
			Wrapf(err, "compile entry script")
	}

	meta := m.Metadata()
	return &extension.Candidate{
		Descriptor: modapi.Descriptor{
			Name:       meta.Name,
			Version:    meta.Version,
			Author:     meta.Author,
			InfoURL:    meta.InfoURL,
			EntryPoint: m.Main,
		},
		Payload: src,
	}, nil
}

// NewLoadContext creates one Lua state for the given candidates. When the
// manager shares contexts, every script of the runtime runs in it and sees
// the same globals.
func (r *Runtime) NewLoadContext(_ context.Context, candidates []*extension.Candidate) (extension.LoadContext, error) {
	L, err := newState()
	if err != nil {
		return nil, oops.Code(extension.CodeLoadFailed).Wrap(err)
	}
	seeded := make(map[*extension.Candidate]struct{}, len(candidates))
	for _, c := range candidates {
		seeded[c] = struct{}{}
	}
	return &loadContext{L: L, seeded: seeded}, nil
}

// loadContext owns one Lua state. Access to the state is not synchronized.
type loadContext struct {
	L      *lua.LState
	seeded map[*extension.Candidate]struct{}
	closed bool
}

// Instantiate runs the candidate's chunk in the context state and wraps the
// returned module table.
func (lc *loadContext) Instantiate(_ context.Context, c *extension.Candidate) (modapi.Extension, error) {
	name := c.Descriptor.Name
	if lc.closed {
		return nil, oops.Code(extension.CodeLoadFailed).With("extension", name).Errorf("loading context is closed")
	}
	if _, ok := lc.seeded[c]; !ok {
		return nil, oops.Code(extension.CodeLoadFailed).
			With("extension", name).
			Errorf("candidate was not seeded into this loading context")
	}
	src, ok := c.Payload.(*source)
	if !ok {
		return nil, oops.Code(extension.CodeLoadFailed).With("extension", name).Errorf("candidate carries no script")
	}

	ret, err := runChunk(lc.L, src.code, src.chunkName)
	if err != nil {
		return nil, oops.Code(extension.CodeLoadFailed).
			With("extension", name).
			Wrapf(err, "run script")
	}
	module, ok := ret.(*lua.LTable)
	if !ok {
		return nil, extension.ErrInvalidType(name, "script must return a table, got "+ret.Type().String())
	}
	return &scriptExtension{L: lc.L, module: module}, nil
}

func (lc *loadContext) Close() error {
	if !lc.closed {
		lc.closed = true
		lc.L.Close()
	}
	return nil
}
