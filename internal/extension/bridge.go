// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package extension

import (
	"context"

	"github.com/holomush/modhost/internal/command"
	"github.com/holomush/modhost/internal/permission"
	"github.com/holomush/modhost/pkg/modapi"
)

// Bridge registers extension commands and permission nodes into the host's
// routing table and permission registry.
type Bridge struct {
	router *command.Router
	perms  *permission.Registry
}

// NewBridge creates a bridge over the given host registries.
func NewBridge(router *command.Router, perms *permission.Registry) *Bridge {
	return &Bridge{router: router, perms: perms}
}

// commandAdapter is the executor the bridge installs for every extension
// command. Tab completers may only be attached to commands wrapped by it.
type commandAdapter struct {
	owner string
	cmd   modapi.Command
}

func (a *commandAdapter) Run(ctx context.Context, sender modapi.Sender, _ string, args []string) error {
	return a.cmd.Execute(ctx, sender, args)
}

type completerAdapter struct {
	completer modapi.TabCompleter
}

func (a completerAdapter) Complete(ctx context.Context, sender modapi.Sender, _ string, args []string) []string {
	return a.completer.Complete(ctx, sender, args)
}

// RegisterCommand wraps cmd and registers it under name and
// "namespace:name". An existing command under either label is replaced.
func (b *Bridge) RegisterCommand(name string, cmd modapi.Command, namespace string) error {
	if cmd == nil {
		return ErrIllegalRegistration(name, "command is nil")
	}
	return b.router.Register(command.Entry{
		Name:      name,
		Namespace: namespace,
		Executor:  &commandAdapter{owner: namespace, cmd: cmd},
		Source:    namespace,
	})
}

// RegisterTabCompleter attaches completer to the command that namespace
// registered under name, even when another namespace has since taken the
// bare label. Commands owned by another namespace are refused.
func (b *Bridge) RegisterTabCompleter(name string, completer modapi.TabCompleter, namespace string) error {
	if completer == nil {
		return ErrIllegalRegistration(name, "tab completer is nil")
	}

	label := namespace + ":" + name
	entry, ok := b.router.Get(label)
	if !ok {
		label = name
		if entry, ok = b.router.Get(label); !ok {
			return ErrIllegalRegistration(name, "no command is registered under that name")
		}
	}
	adapter, ok := entry.Executor.(*commandAdapter)
	if !ok {
		return ErrIllegalRegistration(name, "command was not registered by an extension")
	}
	if adapter.owner != namespace {
		return ErrIllegalRegistration(name, "command belongs to "+adapter.owner)
	}

	if err := b.router.SetCompleter(label, completerAdapter{completer: completer}); err != nil {
		return ErrIllegalRegistration(name, err.Error())
	}
	return nil
}

// RegisterPermissionNode declares node with defaults applied. A node with
// the same name is replaced.
func (b *Bridge) RegisterPermissionNode(node modapi.PermissionNode) error {
	return b.perms.Add(node)
}
