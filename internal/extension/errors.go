// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package extension

import (
	"github.com/samber/oops"
)

// Error codes for extension loading and registration failures.
const (
	CodeDiscoveryFailed     = "DISCOVERY_FAILED"
	CodeInvalidManifest     = "INVALID_MANIFEST"
	CodeLoadFailed          = "LOAD_FAILED"
	CodeInvalidType         = "INVALID_EXTENSION_TYPE"
	CodeDuplicate           = "DUPLICATE_EXTENSION"
	CodeEnableFailed        = "ENABLE_FAILED"
	CodePostEnableFailed    = "POST_ENABLE_FAILED"
	CodeIllegalRegistration = "ILLEGAL_REGISTRATION"
	CodeNotRegistered       = "EXTENSION_NOT_REGISTERED"
	CodeVersionMismatch     = "VERSION_MISMATCH"
	CodeAlreadyLoaded       = "ALREADY_LOADED"
)

// ErrInvalidManifest reports a manifest that fails the required-field or
// schema contract.
func ErrInvalidManifest(field, format string, args ...any) error {
	return oops.Code(CodeInvalidManifest).
		With("field", field).
		Errorf(format, args...)
}

// ErrInvalidType reports an entry point that does not produce a usable
// extension instance.
func ErrInvalidType(name, reason string) error {
	return oops.Code(CodeInvalidType).
		With("extension", name).
		Errorf("invalid extension type: %s", reason)
}

// ErrIllegalRegistration reports a misuse of the registration API.
func ErrIllegalRegistration(command, reason string) error {
	return oops.Code(CodeIllegalRegistration).
		With("command", command).
		Errorf("illegal registration of %q: %s", command, reason)
}

// ErrNotRegistered reports a lookup or caller that is not in the registry.
func ErrNotRegistered(name string) error {
	return oops.Code(CodeNotRegistered).
		With("extension", name).
		Errorf("extension %q is not registered", name)
}

// ErrDuplicate reports a second extension claiming a registered name.
func ErrDuplicate(name, existingPath string) error {
	return oops.Code(CodeDuplicate).
		With("extension", name).
		With("existing", existingPath).
		Errorf("an extension named %q is already loaded from %s", name, existingPath)
}
