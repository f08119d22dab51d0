// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package command

import (
	"context"

	"github.com/holomush/modhost/pkg/modapi"
)

// testSender records messages and answers permission checks from a set.
type testSender struct {
	name     string
	op       bool
	perms    map[string]bool
	messages []string
}

func (s *testSender) Name() string     { return s.name }
func (s *testSender) Privileged() bool { return s.op }
func (s *testSender) HasPermission(node string) bool {
	return s.op || s.perms[node]
}
func (s *testSender) Send(msg string) { s.messages = append(s.messages, msg) }

// recordingExecutor captures the arguments of its last run.
type recordingExecutor struct {
	calls int
	label string
	args  []string
	err   error
	panic any
}

func (e *recordingExecutor) Run(_ context.Context, s modapi.Sender, label string, args []string) error {
	e.calls++
	e.label = label
	e.args = args
	if e.panic != nil {
		panic(e.panic)
	}
	return e.err
}

type staticCompleter struct {
	out  []string
	args []string
}

func (c *staticCompleter) Complete(_ context.Context, _ modapi.Sender, _ string, args []string) []string {
	c.args = args
	return c.out
}
