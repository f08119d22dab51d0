// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package command

import (
	"github.com/samber/oops"
)

// Error codes for command routing failures.
const (
	CodeUnknownCommand   = "UNKNOWN_COMMAND"
	CodePermissionDenied = "PERMISSION_DENIED"
	CodeEmptyInput       = "EMPTY_INPUT"
	CodeInvalidSyntax    = "INVALID_SYNTAX"
	CodeInvalidName      = "INVALID_NAME"
	CodeInvalidEntry     = "INVALID_ENTRY"
	CodeExecutionFailed  = "EXECUTION_FAILED"
)

// ErrUnknownCommand creates an error for an unknown command.
func ErrUnknownCommand(cmd string) error {
	return oops.Code(CodeUnknownCommand).
		With("command", cmd).
		Errorf("unknown command: %s", cmd)
}

// ErrPermissionDenied creates an error for permission denial.
func ErrPermissionDenied(cmd, permission string) error {
	return oops.Code(CodePermissionDenied).
		With("command", cmd).
		With("permission", permission).
		Errorf("permission denied for command %s", cmd)
}

// SenderMessage extracts a sender-facing message from a dispatch error.
func SenderMessage(err error) string {
	if err == nil {
		return ""
	}
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return "An internal error occurred while running that command."
	}
	switch oopsErr.Code() {
	case CodeUnknownCommand:
		return "Unknown command. Type \"help\" for help."
	case CodePermissionDenied:
		return "You do not have permission to run that command."
	case CodeEmptyInput:
		return ""
	case CodeInvalidSyntax:
		return "Could not parse that command: " + oopsErr.Error()
	default:
		return "An internal error occurred while running that command."
	}
}
