// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package extension

import (
	"reflect"
	"strings"
	"sync"

	"github.com/oklog/ulid/v2"

	"github.com/holomush/modhost/pkg/modapi"
)

// Record is the registry's view of one extension.
type Record struct {
	ID         ulid.ULID
	Descriptor modapi.Descriptor
	Instance   modapi.Extension
	State      State
	Err        error // most recent lifecycle failure
}

// entry is the mutable registry slot behind a Record.
type entry struct {
	Record
	host modapi.Host
}

// Registry maps extension instances to descriptors and back. Names are
// unique ignoring case. It is safe for concurrent use; only the Manager
// writes to it.
type Registry struct {
	order      []*entry
	byInstance map[modapi.Extension]*entry
	byName     map[string]*entry
	mu         sync.RWMutex
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byInstance: make(map[modapi.Extension]*entry),
		byName:     make(map[string]*entry),
	}
}

// hashable reports whether ext can be used as a map key.
func hashable(ext modapi.Extension) bool {
	return ext != nil && reflect.TypeOf(ext).Comparable()
}

// add registers ext under desc in state Initialized.
func (r *Registry) add(ext modapi.Extension, desc modapi.Descriptor, host modapi.Host) (*entry, error) {
	if !hashable(ext) {
		return nil, ErrInvalidType(desc.Name, "instance type is not comparable")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	key := strings.ToLower(desc.Name)
	if existing, ok := r.byName[key]; ok {
		return nil, ErrDuplicate(desc.Name, existing.Descriptor.PackagePath)
	}
	if existing, ok := r.byInstance[ext]; ok {
		return nil, ErrDuplicate(desc.Name, existing.Descriptor.PackagePath)
	}

	e := &entry{
		Record: Record{
			ID:         ulid.Make(),
			Descriptor: desc,
			Instance:   ext,
			State:      StateInitialized,
		},
		host: host,
	}
	r.order = append(r.order, e)
	r.byInstance[ext] = e
	r.byName[key] = e
	return e, nil
}

// setState moves e to state, remembering err when non-nil.
func (r *Registry) setState(e *entry, state State, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e.State = state
	if err != nil {
		e.Err = err
	}
}

// entries returns the registry slots in registration order.
func (r *Registry) entries() []*entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*entry, len(r.order))
	copy(out, r.order)
	return out
}

// All returns the descriptors of every registered extension in registration
// order, including extensions whose Enable failed.
func (r *Registry) All() []modapi.Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]modapi.Descriptor, len(r.order))
	for i, e := range r.order {
		out[i] = e.Descriptor
	}
	return out
}

// Records returns a snapshot of every registry record in registration order.
func (r *Registry) Records() []Record {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Record, len(r.order))
	for i, e := range r.order {
		out[i] = e.Record
	}
	return out
}

// Describe returns the descriptor registered for ext.
func (r *Registry) Describe(ext modapi.Extension) (modapi.Descriptor, bool) {
	if !hashable(ext) {
		return modapi.Descriptor{}, false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.byInstance[ext]
	if !ok {
		return modapi.Descriptor{}, false
	}
	return e.Descriptor, true
}

// Record returns the record registered under name, ignoring case.
func (r *Registry) Record(name string) (Record, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.byName[strings.ToLower(name)]
	if !ok {
		return Record{}, false
	}
	return e.Record, true
}

// Lookup returns the instance registered under name, ignoring case.
func (r *Registry) Lookup(name string) (modapi.Extension, bool) {
	rec, ok := r.Record(name)
	return rec.Instance, ok
}

// IsRegistered reports whether an extension is registered under name.
func (r *Registry) IsRegistered(name string) bool {
	_, ok := r.Record(name)
	return ok
}

// Len returns the number of registered extensions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}
