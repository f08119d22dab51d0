// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package extension

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/holomush/modhost/internal/command"
	"github.com/holomush/modhost/pkg/modapi"
)

// Built-in command identifiers.
const (
	BuiltinNamespace     = "modhost"
	ExtensionsCommand    = "extensions"
	ExtensionsPermission = "modhost.extensions"
	HelpCommand          = "help"
)

// RegisterBuiltins installs the host's own commands: "extensions", which
// lists loaded extensions, and "help", which lists the commands a sender
// may run.
func RegisterBuiltins(m *Manager) error {
	if err := m.bridge.RegisterPermissionNode(modapi.PermissionNode{
		Name:        ExtensionsPermission,
		Default:     modapi.DefaultAll,
		Description: "Allows listing loaded extensions",
	}); err != nil {
		return err
	}

	ext := &extensionsCommand{manager: m}
	if err := m.bridge.RegisterCommand(ExtensionsCommand, ext, BuiltinNamespace); err != nil {
		return err
	}
	if err := m.bridge.RegisterTabCompleter(ExtensionsCommand, ext, BuiltinNamespace); err != nil {
		return err
	}
	return m.bridge.RegisterCommand(HelpCommand, &helpCommand{router: m.router}, BuiltinNamespace)
}

type extensionsCommand struct {
	manager *Manager
}

func (c *extensionsCommand) Execute(_ context.Context, sender modapi.Sender, args []string) error {
	if !sender.HasPermission(ExtensionsPermission) {
		return command.ErrPermissionDenied(ExtensionsCommand, ExtensionsPermission)
	}

	if len(args) > 0 {
		rec, ok := c.manager.registry.Record(args[0])
		if !ok {
			sender.Send(fmt.Sprintf("No extension named %q is loaded.", args[0]))
			return nil
		}
		sender.Send(describeRecord(rec))
		return nil
	}

	records := c.manager.Records()
	if len(records) == 0 {
		sender.Send("No extensions are loaded.")
		return nil
	}
	parts := make([]string, len(records))
	for i, rec := range records {
		parts[i] = fmt.Sprintf("%s %s [%s]", rec.Descriptor.Name, rec.Descriptor.Version, rec.State)
	}
	sender.Send(fmt.Sprintf("Extensions (%d): %s", len(records), strings.Join(parts, ", ")))
	return nil
}

func (c *extensionsCommand) Complete(_ context.Context, sender modapi.Sender, args []string) []string {
	if len(args) != 1 || !sender.HasPermission(ExtensionsPermission) {
		return nil
	}
	prefix := strings.ToLower(args[0])

	var out []string
	for _, desc := range c.manager.Extensions() {
		if strings.HasPrefix(strings.ToLower(desc.Name), prefix) {
			out = append(out, desc.Name)
		}
	}
	sort.Strings(out)
	return out
}

func describeRecord(rec Record) string {
	d := rec.Descriptor
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s by %s\n", d.Name, d.Version, d.Author)
	if d.InfoURL != "" {
		fmt.Fprintf(&b, "  info:    %s\n", d.InfoURL)
	}
	fmt.Fprintf(&b, "  state:   %s\n", rec.State)
	if rec.Err != nil {
		fmt.Fprintf(&b, "  error:   %s\n", rec.Err.Error())
	}
	fmt.Fprintf(&b, "  runtime: %s\n", d.Runtime)
	fmt.Fprintf(&b, "  path:    %s", d.PackagePath)
	return b.String()
}

type helpCommand struct {
	router *command.Router
}

func (c *helpCommand) Execute(_ context.Context, sender modapi.Sender, _ []string) error {
	var labels []string
	for _, e := range c.router.All() {
		if e.Permission != "" && !sender.HasPermission(e.Permission) {
			continue
		}
		labels = append(labels, e.Label())
	}
	if len(labels) == 0 {
		sender.Send("No commands are available.")
		return nil
	}
	sender.Send("Commands: " + strings.Join(labels, ", "))
	return nil
}
