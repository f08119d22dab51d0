// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/holomush/modhost/internal/extension"
	"github.com/holomush/modhost/internal/logging"
	"github.com/holomush/modhost/pkg/modapi"
)

// PackageInfo describes one resolved extension package.
type PackageInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Author  string `json:"author"`
	InfoURL string `json:"info_url,omitempty"`
	Runtime string `json:"runtime"`
	Path    string `json:"path"`
}

// RejectedInfo describes a package that would not load.
type RejectedInfo struct {
	Path  string `json:"path"`
	Name  string `json:"name,omitempty"`
	Error string `json:"error"`
}

// Listing is the output of the list command.
type Listing struct {
	Extensions []PackageInfo  `json:"extensions"`
	Rejected   []RejectedInfo `json:"rejected"`
}

// listConfig holds configuration for the list command.
type listConfig struct {
	jsonOutput bool
}

// NewListCmd creates the list subcommand.
func NewListCmd() *cobra.Command {
	cfg := &listConfig{}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List extension packages without loading them",
		Long: `Discover and resolve every package in the modules directory and print
its metadata. Extensions are not instantiated or enabled.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runListWithDeps(cmd.Context(), cfg, cmd, nil)
		},
	}

	cmd.Flags().BoolVar(&cfg.jsonOutput, "json", false, "output in JSON format")

	return cmd
}

// runListWithDeps resolves packages with injectable dependencies.
// If deps is nil, default implementations are used.
func runListWithDeps(ctx context.Context, cfg *listConfig, cmd *cobra.Command, deps *HostDeps) error {
	deps = deps.withDefaults()
	if ctx == nil {
		ctx = context.Background()
	}

	hostCfg, err := deps.ConfigLoader(configFile, cmd.Flags())
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	logger := logging.SetDefault(serviceName, version, hostCfg.LogFormat, logging.ParseLevel(hostCfg.LogLevel), cmd.ErrOrStderr())

	manager, err := newManager(hostCfg, logger, deps.RuntimeFactory())
	if err != nil {
		return err
	}
	descs, rejected, err := manager.Resolve(ctx)
	if err != nil {
		return fmt.Errorf("failed to resolve extensions: %w", err)
	}

	listing := newListing(descs, rejected)
	if cfg.jsonOutput {
		data, err := json.MarshalIndent(listing, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal listing: %w", err)
		}
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	}

	_, _ = fmt.Fprint(cmd.OutOrStdout(), formatListing(listing))
	return nil
}

func newListing(descs []modapi.Descriptor, rejected []extension.Rejection) Listing {
	listing := Listing{
		Extensions: make([]PackageInfo, 0, len(descs)),
		Rejected:   make([]RejectedInfo, 0, len(rejected)),
	}
	for _, d := range descs {
		listing.Extensions = append(listing.Extensions, PackageInfo{
			Name:    d.Name,
			Version: d.Version,
			Author:  d.Author,
			InfoURL: d.InfoURL,
			Runtime: d.Runtime,
			Path:    d.PackagePath,
		})
	}
	for _, r := range rejected {
		listing.Rejected = append(listing.Rejected, RejectedInfo{
			Path:  r.Path,
			Name:  r.Name,
			Error: r.Err.Error(),
		})
	}
	return listing
}

// formatListing formats the listing as a human-readable table.
func formatListing(listing Listing) string {
	var buf []byte
	w := tabwriter.NewWriter((*byteWriter)(&buf), 0, 0, 2, ' ', 0)

	_, _ = fmt.Fprintln(w, "NAME\tVERSION\tAUTHOR\tRUNTIME\tPATH")
	_, _ = fmt.Fprintln(w, "----\t-------\t------\t-------\t----")
	for _, p := range listing.Extensions {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", p.Name, p.Version, p.Author, p.Runtime, p.Path)
	}
	_ = w.Flush()

	if len(listing.Rejected) > 0 {
		buf = append(buf, "\nRejected:\n"...)
		for _, r := range listing.Rejected {
			buf = append(buf, fmt.Sprintf("  %s: %s\n", r.Path, r.Error)...)
		}
	}
	return string(buf)
}

// byteWriter is a simple io.Writer that appends to a byte slice.
type byteWriter []byte

func (w *byteWriter) Write(p []byte) (int, error) {
	*w = append(*w, p...)
	return len(p), nil
}
