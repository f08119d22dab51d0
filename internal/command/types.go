// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package command provides the host command routing table, the command-line
// parser and dispatch.
package command

import (
	"context"

	"github.com/holomush/modhost/pkg/modapi"
)

// Executor runs a command. label is the text the sender typed to invoke it,
// which may be the namespaced form.
type Executor interface {
	Run(ctx context.Context, sender modapi.Sender, label string, args []string) error
}

// Completer proposes completions for the last element of args.
type Completer interface {
	Complete(ctx context.Context, sender modapi.Sender, label string, args []string) []string
}

// Entry is a command registered in the routing table.
type Entry struct {
	Name       string    // bare name, e.g. "hello"
	Namespace  string    // fallback prefix, e.g. "greeter"
	Executor   Executor  // required
	Completer  Completer // optional
	Permission string    // optional node checked before Run
	Help       string    // short description (one line)
	Usage      string    // usage pattern (e.g., "hello [name]")
	Source     string    // extension name or "core"
}

// Label returns the namespaced label of the entry.
func (e Entry) Label() string {
	if e.Namespace == "" {
		return e.Name
	}
	return e.Namespace + ":" + e.Name
}
