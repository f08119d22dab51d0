// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package extension

import (
	"context"
	"log/slog"

	"github.com/Masterminds/semver/v3"
	"github.com/samber/oops"

	"github.com/holomush/modhost/internal/datafile"
	"github.com/holomush/modhost/pkg/modapi"
)

// hostHandle is the modapi.Host given to one extension. Registrations made
// through it are attributed to the owning instance.
type hostHandle struct {
	manager  *Manager
	desc     modapi.Descriptor
	instance modapi.Extension
	files    *datafile.Files
	logger   *slog.Logger
}

func newHost(m *Manager, desc modapi.Descriptor, instance modapi.Extension) *hostHandle {
	return &hostHandle{
		manager:  m,
		desc:     desc,
		instance: instance,
		files:    datafile.NewFiles(m.layout, desc.Name),
		logger:   m.logger.With("extension", desc.Name),
	}
}

func (h *hostHandle) Self() modapi.Descriptor { return h.desc }

func (h *hostHandle) Logger() *slog.Logger { return h.logger }

func (h *hostHandle) Extensions() []modapi.Descriptor { return h.manager.Extensions() }

func (h *hostHandle) Describe(ext modapi.Extension) (modapi.Descriptor, bool) {
	return h.manager.Describe(ext)
}

func (h *hostHandle) Lookup(name string) (modapi.Extension, bool) { return h.manager.Lookup(name) }

func (h *hostHandle) IsRegistered(name string) bool { return h.manager.IsRegistered(name) }

// Require returns the extension registered under name when its version
// satisfies constraint.
func (h *hostHandle) Require(name, constraint string) (modapi.Extension, error) {
	rec, ok := h.manager.registry.Record(name)
	if !ok {
		return nil, ErrNotRegistered(name)
	}

	c, err := semver.NewConstraint(constraint)
	if err != nil {
		return nil, oops.Code(CodeVersionMismatch).
			With("extension", name).
			With("constraint", constraint).
			Wrapf(err, "invalid version constraint")
	}
	v, err := semver.NewVersion(rec.Descriptor.Version)
	if err != nil {
		return nil, oops.Code(CodeVersionMismatch).
			With("extension", name).
			With("version", rec.Descriptor.Version).
			Wrapf(err, "extension version is not semantic")
	}
	if !c.Check(v) {
		return nil, oops.Code(CodeVersionMismatch).
			With("extension", name).
			With("version", rec.Descriptor.Version).
			With("constraint", constraint).
			Errorf("%s %s does not satisfy %s", rec.Descriptor.Name, rec.Descriptor.Version, constraint)
	}
	return rec.Instance, nil
}

func (h *hostHandle) RegisterCommand(name string, cmd modapi.Command) error {
	return h.manager.RegisterCommand(name, cmd, h.instance)
}

func (h *hostHandle) RegisterTabCompleter(name string, completer modapi.TabCompleter) error {
	return h.manager.RegisterTabCompleter(name, completer, h.instance)
}

func (h *hostHandle) RegisterPermission(node modapi.PermissionNode) error {
	return h.manager.RegisterPermissionNode(node)
}

func (h *hostHandle) RegisterListener(l modapi.Listener) {
	h.manager.bus.Register(h.desc.Name, l)
}

func (h *hostHandle) Publish(ctx context.Context, event any) modapi.PublishResult {
	return h.manager.bus.Publish(ctx, event)
}

func (h *hostHandle) Config() (modapi.Store, error) {
	ns, err := h.files.Config()
	if err != nil {
		return nil, err
	}
	return ns, nil
}

func (h *hostHandle) Storage() (modapi.Store, error) {
	ns, err := h.files.Storage()
	if err != nil {
		return nil, err
	}
	return ns, nil
}
