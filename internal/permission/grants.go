// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package permission

import (
	"github.com/gobwas/glob"
	"github.com/samber/oops"
)

// compiledGrant holds a pattern and its compiled glob for efficient matching.
type compiledGrant struct {
	pattern string
	glob    glob.Glob
}

// SetGrants replaces the explicit grants held by subject. Patterns use
// gobwas/glob with '.' as the separator, so "modhost.*" matches
// "modhost.extensions" but not "modhost.extensions.list", while "modhost.**"
// matches both.
//
// All patterns are compiled before anything changes; an invalid pattern
// leaves the previous grants in place.
func (r *Registry) SetGrants(subject string, patterns []string) error {
	if subject == "" {
		return oops.Code(CodeInvalidGrant).Errorf("subject cannot be empty")
	}

	compiled := make([]compiledGrant, len(patterns))
	for i, pattern := range patterns {
		if pattern == "" {
			return oops.Code(CodeInvalidGrant).With("subject", subject).Errorf("grant %d: empty pattern", i)
		}
		g, err := glob.Compile(pattern, '.')
		if err != nil {
			return oops.Code(CodeInvalidGrant).With("subject", subject).With("pattern", pattern).Wrap(err)
		}
		compiled[i] = compiledGrant{pattern: pattern, glob: g}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.grants[subject] = compiled
	return nil
}

// RemoveGrants drops every explicit grant of subject.
func (r *Registry) RemoveGrants(subject string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.grants, subject)
}

// Grants returns a copy of the patterns granted to subject, or nil.
func (r *Registry) Grants(subject string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	grants, ok := r.grants[subject]
	if !ok {
		return nil
	}
	patterns := make([]string, len(grants))
	for i, g := range grants {
		patterns[i] = g.pattern
	}
	return patterns
}

// grantedLocked reports whether subject holds an explicit grant matching
// name. Callers must hold r.mu.
func (r *Registry) grantedLocked(subject, name string) bool {
	for _, g := range r.grants[subject] {
		if g.glob.Match(name) {
			return true
		}
	}
	return false
}
