// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package modapi is the contract between modhost and the extensions it loads.
//
// An extension is a value implementing [Extension]. The host drives it
// through three phases:
//
//   - Init hands the extension its [Host] handle. It must not fail.
//   - Enable registers commands, permissions and listeners. Errors and panics
//     are contained by the host and mark only this extension as failed.
//   - PostEnable (optional, see [PostEnabler]) runs after every extension has
//     been enabled, so cross-extension lookups through [Host.Lookup] see the
//     complete set.
//
// Native extensions are Go plugins built with -buildmode=plugin that export a
// Metadata variable and a New constructor:
//
//	package main
//
//	import (
//		"context"
//
//		"github.com/holomush/modhost/pkg/modapi"
//	)
//
//	var Metadata = modapi.Metadata{
//		Name:    "greeter",
//		Version: "1.0.0",
//		Author:  "HoloMUSH Contributors",
//	}
//
//	type Greeter struct{ modapi.Base }
//
//	func (g *Greeter) Enable(_ context.Context, host modapi.Host) error {
//		return host.RegisterCommand("hello", modapi.CommandFunc(
//			func(_ context.Context, s modapi.Sender, _ []string) error {
//				s.Send("hello, " + s.Name())
//				return nil
//			}))
//	}
//
//	func New() modapi.Extension { return &Greeter{} }
package modapi
