// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/holomush/modhost/internal/command"
	"github.com/holomush/modhost/internal/observability"
	"github.com/holomush/modhost/internal/permission"
)

// consoleName is the sender name of the operator console.
const consoleName = "console"

// completePrefix asks the console for completions instead of running a line.
const completePrefix = "?"

var quitCommands = map[string]bool{"quit": true, "exit": true, "stop": true}

// consoleSender is the privileged sender behind the operator console.
// Extensions may Send from event handlers, so writes are serialized.
type consoleSender struct {
	out   io.Writer
	perms *permission.Registry
	mu    sync.Mutex
}

func newConsoleSender(out io.Writer, perms *permission.Registry) *consoleSender {
	return &consoleSender{out: out, perms: perms}
}

func (s *consoleSender) Name() string { return consoleName }

func (s *consoleSender) Privileged() bool { return true }

func (s *consoleSender) HasPermission(node string) bool {
	return s.perms.Check(s, node)
}

func (s *consoleSender) Send(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := fmt.Fprintln(s.out, message); err != nil {
		observability.RecordCommandOutputFailure(consoleName)
		slog.Debug("console write failed", "error", err)
	}
}

// console runs operator input against the command router.
type console struct {
	router  *command.Router
	sender  *consoleSender
	metrics *observability.Metrics // nil when metrics are disabled
}

// Console line outcomes.
const (
	lineOK       = "ok"
	lineError    = "error"
	lineEmpty    = "empty"
	lineComplete = "complete"
)

func (c *console) record(status string) {
	if c.metrics != nil {
		c.metrics.ConsoleLines.WithLabelValues(status).Inc()
	}
}

// handle runs one input line and reports whether the console should stop.
func (c *console) handle(ctx context.Context, line string) bool {
	line = strings.TrimSpace(line)
	switch {
	case line == "":
		c.record(lineEmpty)
		return false
	case quitCommands[strings.ToLower(line)]:
		return true
	case strings.HasPrefix(line, completePrefix):
		c.record(lineComplete)
		options := c.router.Complete(ctx, c.sender, strings.TrimPrefix(line, completePrefix))
		if len(options) == 0 {
			c.sender.Send("(no completions)")
			return false
		}
		c.sender.Send(strings.Join(options, "  "))
		return false
	}

	if err := c.router.Execute(ctx, c.sender, line); err != nil {
		c.record(lineError)
		if msg := command.SenderMessage(err); msg != "" {
			c.sender.Send(msg)
		}
		return false
	}
	c.record(lineOK)
	return false
}

// run reads lines from in until EOF, a quit command or ctx ends.
func (c *console) run(ctx context.Context, in io.Reader) error {
	lines := make(chan string)
	scanErr := make(chan error, 1)

	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				scanErr <- nil
				return
			}
		}
		scanErr <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return <-scanErr
			}
			if c.handle(ctx, line) {
				return nil
			}
		}
	}
}
