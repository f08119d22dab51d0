// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package modapi

// DefaultPolicy decides who holds a permission when nothing grants it
// explicitly.
type DefaultPolicy string

// Default policies.
const (
	// DefaultAll grants the permission to every sender.
	DefaultAll DefaultPolicy = "all"
	// DefaultPrivileged grants the permission to privileged senders only.
	DefaultPrivileged DefaultPolicy = "privileged"
)

// Valid reports whether p is a known policy.
func (p DefaultPolicy) Valid() bool {
	return p == DefaultAll || p == DefaultPrivileged
}

// PermissionNode declares a permission. An empty Default means
// DefaultPrivileged.
type PermissionNode struct {
	Name        string
	Default     DefaultPolicy
	Description string
	// Children maps child node names to the value they inherit while this
	// node is held.
	Children map[string]bool
}
