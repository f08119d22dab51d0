// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package command

import (
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/samber/oops"
)

// Router is the host routing table. Every entry is reachable under its bare
// name and under "namespace:name". It is safe for concurrent use.
type Router struct {
	labels map[string]*Entry
	mu     sync.RWMutex
}

// NewRouter creates an empty routing table.
func NewRouter() *Router {
	return &Router{
		labels: make(map[string]*Entry),
	}
}

// Register adds entry under its bare and namespaced labels.
// An existing command under either label is overwritten and a warning is
// logged: the last registration wins.
func (r *Router) Register(entry Entry) error {
	entry.Name = strings.ToLower(strings.TrimSpace(entry.Name))
	entry.Namespace = strings.ToLower(strings.TrimSpace(entry.Namespace))

	if err := ValidateCommandName(entry.Name); err != nil {
		return err
	}
	if entry.Namespace != "" {
		if err := ValidateNamespace(entry.Namespace); err != nil {
			return err
		}
	}
	if entry.Executor == nil {
		return oops.Code(CodeInvalidEntry).
			With("command", entry.Name).
			Errorf("command %s has no executor", entry.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	stored := &entry
	for _, label := range labelsOf(entry) {
		if existing, ok := r.labels[label]; ok && existing != stored {
			slog.Warn("command conflict: overwriting existing command",
				"command", label,
				"previous_source", existing.Source,
				"new_source", entry.Source)
		}
		r.labels[label] = stored
	}
	return nil
}

func labelsOf(e Entry) []string {
	if e.Namespace == "" {
		return []string{e.Name}
	}
	return []string{e.Name, e.Label()}
}

// Get retrieves the command registered under label.
func (r *Router) Get(label string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.labels[strings.ToLower(label)]
	if !ok {
		return Entry{}, false
	}
	return *entry, true
}

// SetCompleter attaches a completer to the command registered under label.
// Both labels of the entry see the change.
func (r *Router) SetCompleter(label string, c Completer) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.labels[strings.ToLower(label)]
	if !ok {
		return ErrUnknownCommand(label)
	}
	entry.Completer = c
	return nil
}

// Labels returns every registered label in sorted order.
func (r *Router) Labels() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	labels := make([]string, 0, len(r.labels))
	for l := range r.labels {
		labels = append(labels, l)
	}
	sort.Strings(labels)
	return labels
}

// All returns each distinct registered command once, sorted by namespaced
// label. The returned slice is a copy and safe to modify.
func (r *Router) All() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[*Entry]struct{}, len(r.labels))
	entries := make([]Entry, 0, len(r.labels))
	for _, e := range r.labels {
		if _, ok := seen[e]; ok {
			continue
		}
		seen[e] = struct{}{}
		entries = append(entries, *e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Label() < entries[j].Label() })
	return entries
}
