// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package modapi

import (
	"context"
	"reflect"
)

// Handler receives events whose dynamic type is exactly Type.
type Handler struct {
	Type reflect.Type
	Fn   func(ctx context.Context, event any) error
}

// On builds a Handler for events of type T. Delivery is by exact type: a
// handler for an interface type never fires.
func On[T any](fn func(ctx context.Context, event T) error) Handler {
	return Handler{
		Type: reflect.TypeFor[T](),
		Fn: func(ctx context.Context, event any) error {
			return fn(ctx, event.(T))
		},
	}
}

// Listener groups the handlers an extension subscribes together.
type Listener interface {
	Handlers() []Handler
}

// HandlerList is a ready-made Listener.
type HandlerList struct {
	handlers []Handler
}

// Listen bundles handlers into a Listener.
func Listen(handlers ...Handler) *HandlerList {
	return &HandlerList{handlers: handlers}
}

// Handlers returns the bundled handlers.
func (l *HandlerList) Handlers() []Handler {
	return l.handlers
}

// PublishResult reports how a published event was delivered.
type PublishResult struct {
	Delivered int // handlers that returned normally
	Failed    int // handlers that returned an error or panicked
}

// ScriptEvent is the event type exchanged with script extensions, which
// address events by name rather than by Go type.
type ScriptEvent struct {
	Name    string
	Source  string
	Payload map[string]any
}
