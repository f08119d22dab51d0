// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package extension

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/samber/oops"
)

// Discover walks root recursively and returns the paths of regular files
// whose names end in one of suffixes, in walk order. root is created if it
// does not exist. Any I/O error aborts discovery; no partial result is
// returned.
func Discover(root string, suffixes []string) ([]string, error) {
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, oops.Code(CodeDiscoveryFailed).
			With("dir", root).
			Hint("failed to create extensions directory").
			Wrap(err)
	}

	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if hasSuffix(d.Name(), suffixes) {
			abs, err := filepath.Abs(path)
			if err != nil {
				return err
			}
			paths = append(paths, abs)
		}
		return nil
	})
	if err != nil {
		return nil, oops.Code(CodeDiscoveryFailed).
			With("dir", root).
			Hint("failed to walk extensions directory").
			Wrap(err)
	}
	return paths, nil
}

func hasSuffix(name string, suffixes []string) bool {
	lower := strings.ToLower(name)
	for _, s := range suffixes {
		if s != "" && strings.HasSuffix(lower, strings.ToLower(s)) {
			return true
		}
	}
	return false
}
