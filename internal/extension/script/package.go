// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package script

import (
	"archive/zip"
	"io"
	"os"
	"path"
	"path/filepath"

	"github.com/samber/oops"

	"github.com/holomush/modhost/internal/extension"
)

// maxEntrySize caps how much of one archive entry is read.
const maxEntrySize = 8 << 20

// source is the Lua code of one extension.
type source struct {
	code      string
	chunkName string
}

func readScript(file string) (*source, error) {
	data, err := os.ReadFile(filepath.Clean(file))
	if err != nil {
		return nil, oops.Code(extension.CodeLoadFailed).
			With("path", file).
			Wrapf(err, "read script")
	}
	return &source{code: string(data), chunkName: file}, nil
}

// readPackage reads the manifest and entry script of a .zip package.
func readPackage(file string) (*extension.Manifest, *source, error) {
	zr, err := zip.OpenReader(file)
	if err != nil {
		return nil, nil, oops.Code(extension.CodeLoadFailed).
			With("path", file).
			Wrapf(err, "open package")
	}
	defer func() { _ = zr.Close() }()

	manifestData, ok, err := readEntry(&zr.Reader, extension.ManifestFile)
	if err != nil {
		return nil, nil, oops.Code(extension.CodeLoadFailed).With("path", file).Wrap(err)
	}
	if !ok {
		return nil, nil, extension.ErrInvalidManifest("manifest", "package has no %s at its root", extension.ManifestFile)
	}

	m, err := extension.ParseManifest(manifestData)
	if err != nil {
		return nil, nil, oops.With("path", file).Wrap(err)
	}

	entry := path.Clean(filepath.ToSlash(m.Main))
	code, ok, err := readEntry(&zr.Reader, entry)
	if err != nil {
		return nil, nil, oops.Code(extension.CodeLoadFailed).With("path", file).Wrap(err)
	}
	if !ok {
		return nil, nil, extension.ErrInvalidManifest("main", "entry script %q is not in the package", m.Main)
	}
	return m, &source{code: string(code), chunkName: file + "!" + entry}, nil
}

// readEntry returns the contents of the archive entry named name.
func readEntry(zr *zip.Reader, name string) ([]byte, bool, error) {
	for _, f := range zr.File {
		if path.Clean(f.Name) != name || f.FileInfo().IsDir() {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, false, err
		}
		defer func() { _ = rc.Close() }()

		data, err := io.ReadAll(io.LimitReader(rc, maxEntrySize+1))
		if err != nil {
			return nil, false, err
		}
		if len(data) > maxEntrySize {
			return nil, false, oops.With("entry", name).Errorf("entry exceeds %d bytes", maxEntrySize)
		}
		return data, true, nil
	}
	return nil, false, nil
}
