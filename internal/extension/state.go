// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package extension

// State is the lifecycle position of an extension.
type State int

// Lifecycle states, in order. Failed is terminal and may be entered from
// Validated, Loaded, Enabled or PostEnabled work.
const (
	StateDiscovered State = iota
	StateValidated
	StateLoaded
	StateInitialized
	StateEnabled
	StatePostEnabled
	StateFailed
)

var stateNames = [...]string{
	StateDiscovered:  "discovered",
	StateValidated:   "validated",
	StateLoaded:      "loaded",
	StateInitialized: "initialized",
	StateEnabled:     "enabled",
	StatePostEnabled: "post_enabled",
	StateFailed:      "failed",
}

// String returns the lower-case name of the state.
func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Active reports whether the extension finished enabling successfully.
func (s State) Active() bool {
	return s == StateEnabled || s == StatePostEnabled
}
