// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package main implements an echo extension for modhost.
// It answers the "echo" command and echoes "say" events published by
// other extensions.
//
// Build as a Go plugin and drop it into the modules directory:
//
//	go build -buildmode=plugin -o "$DATA/modules/echo.so" ./extensions/echo
//
// The plugin exports:
//   - Metadata: the extension's identity
//   - New: the constructor the host calls once
package main

import (
	"context"
	"log/slog"
	"strings"

	"github.com/holomush/modhost/pkg/errutil"
	"github.com/holomush/modhost/pkg/modapi"
)

// Metadata identifies the extension to the host.
var Metadata = modapi.Metadata{
	Name:    "echo",
	Version: "1.0.0",
	Author:  "HoloMUSH Contributors",
	InfoURL: "https://github.com/holomush/modhost",
}

// New creates the extension.
func New() modapi.Extension {
	return &Echo{}
}

const defaultPrefix = "Echo: "

// Echo repeats what it is told.
type Echo struct {
	modapi.Base
	prefix string
}

// Enable registers the echo command and the say listener.
// An unreadable config file leaves the default prefix in place.
func (e *Echo) Enable(ctx context.Context, host modapi.Host) error {
	e.prefix = defaultPrefix
	cfg, err := host.Config()
	if err != nil {
		errutil.Log(ctx, host.Logger(), slog.LevelWarn, "config unreadable, using default prefix", err)
	} else if v, ok := cfg.Get("prefix"); ok {
		if s, ok := v.(string); ok {
			e.prefix = s
		}
	}

	if err := host.RegisterCommand("echo", modapi.CommandFunc(e.echo)); err != nil {
		return err
	}
	host.RegisterListener(modapi.Listen(
		modapi.On(e.onSay),
	))
	return nil
}

func (e *Echo) echo(_ context.Context, sender modapi.Sender, args []string) error {
	sender.Send(e.prefix + strings.Join(args, " "))
	return nil
}

// onSay re-publishes say events as echo events. Its own events are ignored.
func (e *Echo) onSay(ctx context.Context, ev modapi.ScriptEvent) error {
	if ev.Name != "say" || ev.Source == Metadata.Name {
		return nil
	}
	msg, _ := ev.Payload["message"].(string)
	e.Host().Publish(ctx, modapi.ScriptEvent{
		Name:    "echo",
		Source:  Metadata.Name,
		Payload: map[string]any{"message": e.prefix + msg},
	})
	return nil
}

func main() {}
