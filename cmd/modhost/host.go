// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/holomush/modhost/internal/config"
	"github.com/holomush/modhost/internal/extension"
)

// newManager assembles an extension manager for cfg and seeds the
// configured permission grants.
func newManager(cfg *config.Config, logger *slog.Logger, runtimes []extension.Runtime) (*extension.Manager, error) {
	opts := []extension.Option{
		extension.WithLogger(logger),
		extension.WithSharedContext(cfg.Extensions.SharedContext),
	}
	for _, rt := range runtimes {
		opts = append(opts, extension.WithRuntime(rt))
	}
	if len(cfg.Extensions.Suffixes) > 0 {
		opts = append(opts, extension.WithSuffixes(cfg.Extensions.Suffixes...))
	}

	manager := extension.NewManager(cfg.Layout(), opts...)

	subjects := make([]string, 0, len(cfg.Permissions.Grants))
	for subject := range cfg.Permissions.Grants {
		subjects = append(subjects, subject)
	}
	sort.Strings(subjects)
	for _, subject := range subjects {
		if err := manager.Permissions().SetGrants(subject, cfg.Permissions.Grants[subject]); err != nil {
			return nil, fmt.Errorf("invalid grants for %q: %w", subject, err)
		}
	}
	return manager, nil
}
