// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package extension

import (
	"regexp"
	"strings"

	"github.com/samber/oops"
	"gopkg.in/yaml.v3"

	"github.com/holomush/modhost/pkg/modapi"
)

// ManifestFile is the companion manifest looked up at the root of packaged
// extensions.
const ManifestFile = "module.yml"

// Manifest is the companion manifest of a packaged extension.
type Manifest struct {
	Main    string `json:"main" yaml:"main" jsonschema:"description=Entry script inside the package"`
	Name    string `json:"name" yaml:"name" jsonschema:"description=Unique extension name"`
	Version string `json:"version" yaml:"version" jsonschema:"description=Extension version, preferably semantic"`
	Author  string `json:"author" yaml:"author" jsonschema:"description=Extension author"`
	InfoURL string `json:"infourl,omitempty" yaml:"infourl,omitempty" jsonschema:"description=Where to find more about the extension"`
}

// Metadata returns the declared identity of the manifest.
func (m *Manifest) Metadata() modapi.Metadata {
	return modapi.Metadata{Name: m.Name, Version: m.Version, Author: m.Author, InfoURL: m.InfoURL}
}

// maxNameLength is the maximum allowed length for extension names.
const maxNameLength = 64

// namePattern validates extension names: must start with a letter, followed
// by letters, digits, dots, underscores or hyphens. Names double as command
// namespaces and file names.
var namePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_.-]*$`)

// ParseManifest validates data against the manifest schema and decodes it.
func ParseManifest(data []byte) (*Manifest, error) {
	if err := ValidateSchema(data); err != nil {
		return nil, oops.Code(CodeInvalidManifest).
			Hint(FormatSchemaError(err)).
			Wrap(err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, oops.Code(CodeInvalidManifest).Wrapf(err, "invalid YAML")
	}

	if strings.TrimSpace(m.Main) == "" {
		return nil, ErrInvalidManifest("main", "missing required field %q", "main")
	}
	return &m, nil
}

// ValidateMetadata enforces the required-field contract shared by every
// resolution strategy: name, version and author must be non-blank and the
// name must be usable as a namespace.
func ValidateMetadata(meta modapi.Metadata) error {
	required := []struct{ field, value string }{
		{"name", meta.Name},
		{"version", meta.Version},
		{"author", meta.Author},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return ErrInvalidManifest(r.field, "missing required field %q", r.field)
		}
	}

	if len(meta.Name) > maxNameLength {
		return ErrInvalidManifest("name", "name must be %d characters or less, got %d", maxNameLength, len(meta.Name))
	}
	if !namePattern.MatchString(meta.Name) {
		return ErrInvalidManifest("name", "name %q must start with a letter and contain only letters, digits, '.', '_' and '-'", meta.Name)
	}
	return nil
}
