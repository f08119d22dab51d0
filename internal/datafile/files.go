// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package datafile

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/samber/oops"
)

// Directory names under the data root.
const (
	ModulesDir = "modules"
	ConfigDir  = "moduleconfig"
	StorageDir = "modulestorage"
)

// Layout resolves the well-known directories under a data root.
type Layout struct {
	Root string
	// ModulesPath replaces Root/modules as the discovery directory when set.
	ModulesPath string
}

// Modules returns the directory extensions are discovered in.
func (l Layout) Modules() string {
	if l.ModulesPath != "" {
		return l.ModulesPath
	}
	return filepath.Join(l.Root, ModulesDir)
}

// Config returns the directory holding per-extension configuration files.
func (l Layout) Config() string { return filepath.Join(l.Root, ConfigDir) }

// Storage returns the directory holding per-extension data files.
func (l Layout) Storage() string { return filepath.Join(l.Root, StorageDir) }

// Ensure creates every directory of the layout.
func (l Layout) Ensure() error {
	for _, dir := range []string{l.Modules(), l.Config(), l.Storage()} {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return oops.In("datafile").With("dir", dir).Wrap(err)
		}
	}
	return nil
}

// Files hands out the two namespaces of one extension. Each namespace is
// created and read on first access; later calls return the same instance.
type Files struct {
	layout  Layout
	name    string
	config  *Namespace
	storage *Namespace
	mu      sync.Mutex
}

// NewFiles creates the file handler for extension name.
func NewFiles(layout Layout, name string) *Files {
	return &Files{layout: layout, name: name}
}

// ConfigPath returns <root>/moduleconfig/<name>.yml.
func (f *Files) ConfigPath() string {
	return filepath.Join(f.layout.Config(), f.name+".yml")
}

// StoragePath returns <root>/modulestorage/<name>.yml.
func (f *Files) StoragePath() string {
	return filepath.Join(f.layout.Storage(), f.name+".yml")
}

// Config returns the configuration namespace, reading it on first access.
func (f *Files) Config() (*Namespace, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.materialize(&f.config, f.ConfigPath())
}

// Storage returns the data namespace, reading it on first access.
func (f *Files) Storage() (*Namespace, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.materialize(&f.storage, f.StoragePath())
}

func (f *Files) materialize(slot **Namespace, path string) (*Namespace, error) {
	if *slot != nil {
		return *slot, nil
	}
	ns := NewNamespace(path)
	if err := ns.Read(); err != nil {
		return nil, oops.With("extension", f.name).Wrap(err)
	}
	*slot = ns
	return ns, nil
}
