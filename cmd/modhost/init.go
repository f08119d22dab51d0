// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/holomush/modhost/internal/config"
)

// initConfig holds configuration for the init command.
type initConfig struct {
	force bool
}

// NewInitCmd creates the init subcommand.
func NewInitCmd() *cobra.Command {
	cfg := &initConfig{}

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the data directories and a default config file",
		Long: `Create the modules, moduleconfig and modulestorage directories under the
data directory and write the effective configuration to config.yml.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runInit(cfg, cmd, nil)
		},
	}

	cmd.Flags().BoolVar(&cfg.force, "force", false, "overwrite an existing config file")

	return cmd
}

func runInit(cfg *initConfig, cmd *cobra.Command, deps *HostDeps) error {
	deps = deps.withDefaults()

	hostCfg, err := deps.ConfigLoader(configFile, cmd.Flags())
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if err := hostCfg.Layout().Ensure(); err != nil {
		return fmt.Errorf("failed to create data directories: %w", err)
	}

	path := configFile
	if path == "" {
		path = filepath.Join(hostCfg.DataDir, config.FileName)
	}
	if _, err := os.Stat(path); err == nil && !cfg.force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}
	if err := config.Write(path, hostCfg); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	cmd.Printf("Initialized %s\n", hostCfg.DataDir)
	cmd.Printf("Wrote %s\n", path)
	return nil
}
