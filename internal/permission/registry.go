// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package permission holds the host's permission nodes and decides whether a
// subject holds a permission.
//
// A subject holds a node when, in order:
//  1. one of its explicit grant patterns matches the node name;
//  2. a registered parent node lists the node as a child and the subject
//     holds that parent, in which case the child map value decides (a true
//     value from any held parent wins over false);
//  3. otherwise the node's default policy applies. Unregistered nodes are
//     privileged-only.
package permission

import (
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/samber/oops"

	"github.com/holomush/modhost/pkg/modapi"
)

// Error codes for permission registration failures.
const (
	CodeInvalidNode  = "INVALID_PERMISSION_NODE"
	CodeInvalidGrant = "INVALID_GRANT"
)

// maxDepth bounds parent traversal so cyclic child maps terminate.
const maxDepth = 16

// Subject is anything permissions are evaluated for.
type Subject interface {
	Name() string
	Privileged() bool
}

// Registry stores permission nodes and per-subject grants.
// It is safe for concurrent use.
type Registry struct {
	nodes  map[string]modapi.PermissionNode
	grants map[string][]compiledGrant
	mu     sync.RWMutex
}

// NewRegistry creates an empty permission registry.
func NewRegistry() *Registry {
	return &Registry{
		nodes:  make(map[string]modapi.PermissionNode),
		grants: make(map[string][]compiledGrant),
	}
}

// Normalize applies defaults to a node: privileged-only policy when unset, an
// empty description, and a non-nil copy of the child map. Names are
// lower-cased.
func Normalize(node modapi.PermissionNode) modapi.PermissionNode {
	node.Name = strings.ToLower(strings.TrimSpace(node.Name))
	if node.Default == "" {
		node.Default = modapi.DefaultPrivileged
	}
	children := make(map[string]bool, len(node.Children))
	for k, v := range node.Children {
		children[strings.ToLower(k)] = v
	}
	node.Children = children
	return node
}

// Add registers node, replacing any node with the same name.
func (r *Registry) Add(node modapi.PermissionNode) error {
	node = Normalize(node)
	if node.Name == "" {
		return oops.Code(CodeInvalidNode).Errorf("permission node name cannot be empty")
	}
	if !node.Default.Valid() {
		return oops.Code(CodeInvalidNode).
			With("permission", node.Name).
			With("default", string(node.Default)).
			Errorf("unknown default policy %q", node.Default)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.nodes[node.Name]; ok {
		slog.Debug("replacing permission node", "permission", node.Name)
	}
	r.nodes[node.Name] = node
	return nil
}

// Get returns the node registered under name.
func (r *Registry) Get(name string) (modapi.PermissionNode, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	node, ok := r.nodes[strings.ToLower(name)]
	return node, ok
}

// All returns every registered node sorted by name.
func (r *Registry) All() []modapi.PermissionNode {
	r.mu.RLock()
	defer r.mu.RUnlock()

	nodes := make([]modapi.PermissionNode, 0, len(r.nodes))
	for _, n := range r.nodes {
		nodes = append(nodes, n)
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].Name < nodes[j].Name })
	return nodes
}

// Check reports whether subject holds the permission name.
func (r *Registry) Check(subject Subject, name string) bool {
	name = strings.ToLower(name)
	if subject == nil || name == "" {
		return false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.checkLocked(subject, name, 0)
}

func (r *Registry) checkLocked(subject Subject, name string, depth int) bool {
	if r.grantedLocked(subject.Name(), name) {
		return true
	}

	if depth < maxDepth {
		denied := false
		for parentName, parent := range r.nodes {
			value, ok := parent.Children[name]
			if !ok || parentName == name {
				continue
			}
			if r.checkLocked(subject, parentName, depth+1) {
				if value {
					return true
				}
				denied = true
			}
		}
		if denied {
			return false
		}
	}

	node, ok := r.nodes[name]
	if !ok || node.Default == modapi.DefaultPrivileged {
		return subject.Privileged()
	}
	return true
}
