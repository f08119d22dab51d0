// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package modapi

import "context"

// Metadata is the identity an extension declares about itself.
// Native extensions export it as a package-level variable named Metadata.
type Metadata struct {
	Name    string `json:"name" yaml:"name"`
	Version string `json:"version" yaml:"version"`
	Author  string `json:"author" yaml:"author"`
	InfoURL string `json:"infourl,omitempty" yaml:"infourl,omitempty"`
}

// Descriptor is the validated, immutable description of a loaded extension.
type Descriptor struct {
	Name        string
	Version     string
	Author      string
	InfoURL     string
	EntryPoint  string // symbol or script that constructs the extension
	PackagePath string // file the extension was discovered at
	Runtime     string // runtime that loaded it, e.g. "native" or "lua"
}

// Metadata returns the declared identity portion of the descriptor.
func (d Descriptor) Metadata() Metadata {
	return Metadata{Name: d.Name, Version: d.Version, Author: d.Author, InfoURL: d.InfoURL}
}

// Extension is implemented by every loadable extension.
//
// Implementations must have a comparable dynamic type; pointer receivers
// are the norm.
type Extension interface {
	// Init receives the host handle. It is called exactly once, before Enable.
	Init(host Host)
	// Enable performs the extension's startup work.
	Enable(ctx context.Context, host Host) error
}

// PostEnabler is implemented by extensions that need a second startup pass
// after every extension has been enabled.
type PostEnabler interface {
	PostEnable(ctx context.Context, host Host) error
}

// Base is embeddable boilerplate: it keeps the host handed to Init and
// provides a no-op PostEnable.
type Base struct {
	host Host
}

// Init stores the host handle.
func (b *Base) Init(host Host) {
	b.host = host
}

// Host returns the handle stored by Init, or nil before Init.
func (b *Base) Host() Host {
	return b.host
}

// PostEnable does nothing.
func (b *Base) PostEnable(context.Context, Host) error {
	return nil
}
