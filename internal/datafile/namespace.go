// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package datafile provides the YAML-backed configuration and storage
// namespaces each extension owns.
package datafile

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/samber/oops"
	"gopkg.in/yaml.v3"

	"github.com/holomush/modhost/pkg/modapi"
)

// CodeNotInitialized is returned by Save before the first Read.
const CodeNotInitialized = "STORAGE_NOT_INITIALIZED"

// Compile-time interface check.
var _ modapi.Store = (*Namespace)(nil)

// Namespace is one YAML file holding a flat mapping of top-level keys.
// It is safe for concurrent use.
type Namespace struct {
	path   string
	values map[string]any
	loaded bool
	mu     sync.RWMutex
}

// NewNamespace creates a namespace backed by path. Nothing is read until Read.
func NewNamespace(path string) *Namespace {
	return &Namespace{
		path:   path,
		values: make(map[string]any),
	}
}

// Path returns the backing file path.
func (n *Namespace) Path() string {
	return n.path
}

// Read loads the backing file, creating it empty if it does not exist, and
// replaces the in-memory values with its top-level keys.
func (n *Namespace) Read() error {
	data, err := os.ReadFile(n.path)
	if errors.Is(err, fs.ErrNotExist) {
		if err := os.MkdirAll(filepath.Dir(n.path), 0o750); err != nil {
			return oops.In("datafile").With("path", n.path).Wrap(err)
		}
		if err := os.WriteFile(n.path, nil, 0o600); err != nil {
			return oops.In("datafile").With("path", n.path).Hint("failed to create file").Wrap(err)
		}
		data = nil
	} else if err != nil {
		return oops.In("datafile").With("path", n.path).Hint("failed to read file").Wrap(err)
	}

	values := make(map[string]any)
	if err := yaml.Unmarshal(data, &values); err != nil {
		return oops.In("datafile").With("path", n.path).Hint("invalid YAML").Wrap(err)
	}
	if values == nil {
		values = make(map[string]any)
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	n.values = values
	n.loaded = true
	return nil
}

// Save writes every in-memory key to the backing file, replacing its
// contents. It fails if Read has never succeeded.
func (n *Namespace) Save() error {
	n.mu.RLock()
	if !n.loaded {
		n.mu.RUnlock()
		return oops.Code(CodeNotInitialized).
			In("datafile").
			With("path", n.path).
			Errorf("save called before read")
	}
	data, err := yaml.Marshal(n.values)
	n.mu.RUnlock()
	if err != nil {
		return oops.In("datafile").With("path", n.path).Hint("failed to encode values").Wrap(err)
	}

	if err := os.WriteFile(n.path, data, 0o600); err != nil {
		return oops.In("datafile").With("path", n.path).Hint("failed to write file").Wrap(err)
	}
	return nil
}

// Loaded reports whether Read has succeeded at least once.
func (n *Namespace) Loaded() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.loaded
}

// Get returns the in-memory value of key.
func (n *Namespace) Get(key string) (any, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	v, ok := n.values[key]
	return v, ok
}

// Set stores value under key in memory.
func (n *Namespace) Set(key string, value any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.values[key] = value
}

// Keys returns the in-memory keys in sorted order.
func (n *Namespace) Keys() []string {
	n.mu.RLock()
	defer n.mu.RUnlock()

	keys := make([]string, 0, len(n.values))
	for k := range n.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
