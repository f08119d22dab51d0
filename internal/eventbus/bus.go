// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package eventbus dispatches in-process events between extensions.
//
// Dispatch is synchronous and keyed by the exact dynamic type of the event.
// A failing or panicking handler is logged and counted; it never prevents
// delivery to the remaining handlers.
package eventbus

import (
	"context"
	"log/slog"
	"reflect"
	"sync"

	"github.com/holomush/modhost/pkg/errutil"
	"github.com/holomush/modhost/pkg/modapi"
)

// registration is a listener together with the handlers discovered when it
// was registered.
type registration struct {
	listener modapi.Listener
	owner    string
	handlers []modapi.Handler
}

// Bus is a synchronous, re-entrant event bus.
// It is safe for concurrent use; handlers run outside the lock so they may
// publish or register from within a dispatch.
type Bus struct {
	regs   []*registration
	mu     sync.RWMutex
	logger *slog.Logger
}

// Option configures a Bus.
type Option func(*Bus)

// WithLogger sets the logger used for handler failures.
func WithLogger(l *slog.Logger) Option {
	return func(b *Bus) {
		b.logger = l
	}
}

// New creates an empty bus.
func New(opts ...Option) *Bus {
	b := &Bus{logger: slog.Default()}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Register subscribes every handler of l. owner names the extension the
// listener belongs to and is used in logs only. Handlers without a type or
// function are skipped with a warning.
func (b *Bus) Register(owner string, l modapi.Listener) {
	if l == nil {
		return
	}

	var handlers []modapi.Handler
	for _, h := range l.Handlers() {
		if h.Type == nil || h.Fn == nil {
			b.logger.Warn("skipping incomplete event handler", "extension", owner)
			continue
		}
		handlers = append(handlers, h)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.regs = append(b.regs, &registration{listener: l, owner: owner, handlers: handlers})
}

// Unregister removes every registration of l. It reports whether anything
// was removed.
func (b *Bus) Unregister(l modapi.Listener) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	kept := b.regs[:0]
	removed := false
	for _, reg := range b.regs {
		if sameListener(reg.listener, l) {
			removed = true
			continue
		}
		kept = append(kept, reg)
	}
	for i := len(kept); i < len(b.regs); i++ {
		b.regs[i] = nil
	}
	b.regs = kept
	return removed
}

// Publish delivers event to every handler registered for its exact type.
// It returns once all handlers have run.
func (b *Bus) Publish(ctx context.Context, event any) modapi.PublishResult {
	var result modapi.PublishResult
	if event == nil {
		return result
	}

	typ := reflect.TypeOf(event)
	typeName := typ.String()

	b.mu.RLock()
	snapshot := make([]*registration, len(b.regs))
	copy(snapshot, b.regs)
	b.mu.RUnlock()

	for _, reg := range snapshot {
		for _, h := range reg.handlers {
			if h.Type != typ {
				continue
			}
			err := errutil.Guard(func() error {
				return h.Fn(ctx, event)
			})
			if err != nil {
				result.Failed++
				recordHandlerFailure(typeName)
				errutil.Log(ctx, b.logger, slog.LevelError, "event handler failed", err,
					"event_type", typeName,
					"extension", reg.owner)
				continue
			}
			result.Delivered++
		}
	}

	recordPublish(typeName)
	return result
}

// Len returns the number of registered listeners.
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.regs)
}

// sameListener compares listeners without panicking on uncomparable types.
func sameListener(a, b modapi.Listener) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ta := reflect.TypeOf(a)
	if ta != reflect.TypeOf(b) || !ta.Comparable() {
		return false
	}
	return a == b
}
