// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package command

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/holomush/modhost/pkg/errutil"
	"github.com/holomush/modhost/pkg/modapi"
)

var tracer = otel.Tracer("modhost/command")

// Execute parses input and runs the command it names on behalf of sender.
// Panics raised by the executor are returned as errors.
func (r *Router) Execute(ctx context.Context, sender modapi.Sender, input string) (err error) {
	parsed, err := Parse(input)
	if err != nil {
		return err
	}

	ctx, span := tracer.Start(ctx, "command.execute",
		trace.WithAttributes(
			attribute.String("command.label", parsed.Label),
			attribute.String("command.sender", sender.Name()),
		),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	entry, ok := r.Get(parsed.Label)
	if !ok {
		RecordCommandExecution(parsed.Label, "", StatusNotFound)
		err = ErrUnknownCommand(parsed.Label)
		return err
	}
	span.SetAttributes(attribute.String("command.source", entry.Source))

	if entry.Permission != "" && !sender.HasPermission(entry.Permission) {
		RecordCommandExecution(entry.Label(), entry.Source, StatusPermissionDenied)
		err = ErrPermissionDenied(parsed.Label, entry.Permission)
		return err
	}

	start := time.Now()
	err = errutil.Guard(func() error {
		return entry.Executor.Run(ctx, sender, parsed.Label, parsed.Args)
	})
	RecordCommandDuration(entry.Label(), entry.Source, time.Since(start))

	if err != nil {
		RecordCommandExecution(entry.Label(), entry.Source, StatusError)
		errutil.Log(ctx, slog.Default(), slog.LevelWarn, "command execution failed", err,
			"command", parsed.Label,
			"sender", sender.Name())
		return err
	}
	RecordCommandExecution(entry.Label(), entry.Source, StatusSuccess)
	return nil
}

// Complete returns completions for a partially typed line. While the label
// is being typed, matching labels are proposed; afterwards the command's
// completer, if any, decides. Completer panics yield no completions.
func (r *Router) Complete(ctx context.Context, sender modapi.Sender, input string) []string {
	if strings.TrimSpace(input) == "" {
		return r.completeLabel(sender, "")
	}
	parsed, err := parsePartial(input)
	if err != nil {
		return nil
	}
	if len(parsed.Args) == 0 {
		return r.completeLabel(sender, parsed.Label)
	}

	entry, ok := r.Get(parsed.Label)
	if !ok || entry.Completer == nil {
		return nil
	}
	if entry.Permission != "" && !sender.HasPermission(entry.Permission) {
		return nil
	}

	var out []string
	err = errutil.Guard(func() error {
		out = entry.Completer.Complete(ctx, sender, parsed.Label, parsed.Args)
		return nil
	})
	if err != nil {
		errutil.LogWarn(slog.Default(), "tab completer failed", err, "command", parsed.Label)
		return nil
	}
	return out
}

func (r *Router) completeLabel(sender modapi.Sender, prefix string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []string
	for label, e := range r.labels {
		if !strings.HasPrefix(label, prefix) {
			continue
		}
		if e.Permission != "" && !sender.HasPermission(e.Permission) {
			continue
		}
		out = append(out, label)
	}
	sort.Strings(out)
	return out
}
