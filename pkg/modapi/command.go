// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package modapi

import "context"

// Sender is whoever issued a command: the console, a player, a test.
type Sender interface {
	Name() string
	// Privileged reports whether the sender is an operator.
	Privileged() bool
	HasPermission(node string) bool
	Send(message string)
}

// Command executes a registered command. args excludes the command label.
type Command interface {
	Execute(ctx context.Context, sender Sender, args []string) error
}

// CommandFunc adapts a function to Command.
type CommandFunc func(ctx context.Context, sender Sender, args []string) error

// Execute calls f.
func (f CommandFunc) Execute(ctx context.Context, sender Sender, args []string) error {
	return f(ctx, sender, args)
}

// TabCompleter proposes completions for the last element of args.
type TabCompleter interface {
	Complete(ctx context.Context, sender Sender, args []string) []string
}

// CompleterFunc adapts a function to TabCompleter.
type CompleterFunc func(ctx context.Context, sender Sender, args []string) []string

// Complete calls f.
func (f CompleterFunc) Complete(ctx context.Context, sender Sender, args []string) []string {
	return f(ctx, sender, args)
}
