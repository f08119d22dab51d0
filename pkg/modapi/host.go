// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package modapi

import (
	"context"
	"log/slog"
)

// Host is the per-extension handle through which an extension reaches the
// host. Each extension receives its own Host; registrations made through it
// are attributed to that extension.
type Host interface {
	// Self returns the descriptor of the extension owning this handle.
	Self() Descriptor
	// Logger returns a logger tagged with the extension name.
	Logger() *slog.Logger

	// Extensions returns descriptors of every registered extension in
	// registration order.
	Extensions() []Descriptor
	// Describe returns the descriptor registered for an instance.
	Describe(ext Extension) (Descriptor, bool)
	// Lookup finds a registered extension by name, ignoring case.
	Lookup(name string) (Extension, bool)
	// IsRegistered reports whether an extension with the name is registered.
	IsRegistered(name string) bool
	// Require looks up an extension and checks its version against a semver
	// constraint such as ">= 1.2".
	Require(name, constraint string) (Extension, error)

	// RegisterCommand registers a command in the namespace of this extension.
	RegisterCommand(name string, cmd Command) error
	// RegisterTabCompleter attaches a completer to a command previously
	// registered through RegisterCommand.
	RegisterTabCompleter(name string, completer TabCompleter) error
	// RegisterPermission declares a permission node. Later declarations of the
	// same node replace earlier ones.
	RegisterPermission(node PermissionNode) error

	// RegisterListener subscribes every handler of the listener.
	RegisterListener(l Listener)
	// Publish delivers an event synchronously to matching handlers.
	Publish(ctx context.Context, event any) PublishResult

	// Config returns the extension's configuration namespace, read from disk
	// on first access.
	Config() (Store, error)
	// Storage returns the extension's data namespace, read from disk on first
	// access.
	Storage() (Store, error)
}
