// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package modapi

// Store is a file-backed key/value namespace owned by one extension.
//
// Get and Set operate purely in memory. Read replaces the in-memory state
// with the file contents, creating an empty file if none exists. Save writes
// the in-memory state back and fails if Read has never been called.
type Store interface {
	Read() error
	Save() error
	Get(key string) (any, bool)
	Set(key string, value any)
	Keys() []string
	Path() string
}
