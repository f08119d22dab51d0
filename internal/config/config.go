// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package config loads the host configuration.
//
// Values are layered, later sources winning: built-in defaults, the YAML
// config file, then command-line flags that were explicitly set.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/holomush/modhost/internal/datafile"
	"github.com/holomush/modhost/internal/xdg"
)

// FileName is the host configuration file looked up under the data root.
const FileName = "config.yml"

// CodeInvalidConfig marks configuration that failed to load or validate.
const CodeInvalidConfig = "INVALID_CONFIG"

// Default values.
const (
	DefaultLogFormat = "json"
	DefaultLogLevel  = "info"
)

// Config is the host configuration.
type Config struct {
	DataDir     string `koanf:"data_dir"`
	LogFormat   string `koanf:"log_format"`
	LogLevel    string `koanf:"log_level"`
	MetricsAddr string `koanf:"metrics_addr"`

	Extensions  ExtensionsConfig  `koanf:"extensions"`
	Permissions PermissionsConfig `koanf:"permissions"`
}

// ExtensionsConfig controls discovery and loading.
type ExtensionsConfig struct {
	// Dir overrides the discovery directory (default <data_dir>/modules).
	Dir string `koanf:"dir"`
	// Suffixes restricts discovery to these file suffixes. Empty means every
	// suffix a configured runtime claims.
	Suffixes []string `koanf:"suffixes"`
	// SharedContext loads all extensions of a runtime into one context.
	SharedContext bool `koanf:"shared_context"`
}

// PermissionsConfig seeds explicit permission grants, keyed by subject.
type PermissionsConfig struct {
	Grants map[string][]string `koanf:"grants"`
}

// Default returns the configuration used when nothing overrides it.
// The data dir is left empty and resolved by Load.
func Default() Config {
	return Config{
		LogFormat: DefaultLogFormat,
		LogLevel:  DefaultLogLevel,
		Extensions: ExtensionsConfig{
			SharedContext: true,
		},
	}
}

// Layout returns the data layout rooted at the data dir.
func (c *Config) Layout() datafile.Layout {
	return datafile.Layout{Root: c.DataDir, ModulesPath: c.Extensions.Dir}
}

// ModulesDir returns the directory extensions are discovered in.
func (c *Config) ModulesDir() string {
	return c.Layout().Modules()
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return oops.Code(CodeInvalidConfig).Errorf("data_dir is required")
	}
	if c.LogFormat != "json" && c.LogFormat != "text" {
		return oops.Code(CodeInvalidConfig).
			With("log_format", c.LogFormat).
			Errorf("log_format must be 'json' or 'text', got %q", c.LogFormat)
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return oops.Code(CodeInvalidConfig).
			With("log_level", c.LogLevel).
			Errorf("log_level must be one of debug, info, warn, error; got %q", c.LogLevel)
	}
	for i, suffix := range c.Extensions.Suffixes {
		if !strings.HasPrefix(suffix, ".") || len(suffix) < 2 {
			return oops.Code(CodeInvalidConfig).
				With("suffix", suffix).
				Errorf("extensions.suffixes[%d]: suffix must start with '.'", i)
		}
	}
	return nil
}

// flagKeys maps command-line flag names to configuration keys.
var flagKeys = map[string]string{
	"data-dir":       "data_dir",
	"log-format":     "log_format",
	"log-level":      "log_level",
	"metrics-addr":   "metrics_addr",
	"extensions-dir": "extensions.dir",
	"suffix":         "extensions.suffixes",
	"shared-context": "extensions.shared_context",
}

// BindFlags adds the flags Load understands to fs.
func BindFlags(fs *pflag.FlagSet) {
	fs.String("data-dir", "", "data directory (default: XDG_DATA_HOME/modhost)")
	fs.String("log-format", "", "log format (json or text)")
	fs.String("log-level", "", "log level (debug, info, warn, error)")
	fs.String("metrics-addr", "", "metrics/health HTTP address (empty = disabled)")
	fs.String("extensions-dir", "", "directory extensions are discovered in (default: <data-dir>/modules)")
	fs.StringSlice("suffix", nil, "file suffix to discover (repeatable)")
	fs.Bool("shared-context", true, "load all extensions of a runtime into one shared context")
}

// Load builds the configuration. path names the config file; when empty,
// <data_dir>/config.yml is used if it exists. flagSet may be nil.
func Load(path string, flagSet *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	flags := flagProvider(flagSet, k)
	// Flags are read once up front so a --data-dir can locate the default
	// config file.
	if err := k.Load(flags, nil); err != nil {
		return nil, oops.Code(CodeInvalidConfig).Wrap(err)
	}

	explicit := path != ""
	if !explicit {
		dataDir := k.String("data_dir")
		if dataDir == "" {
			var err error
			if dataDir, err = xdg.DataDir(); err != nil {
				return nil, oops.Code(CodeInvalidConfig).Wrap(err)
			}
		}
		path = filepath.Join(dataDir, FileName)
	}

	if _, err := os.Stat(path); err == nil || explicit {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code(CodeInvalidConfig).With("path", path).Wrap(err)
		}
	}

	// Explicit flags win over the file.
	if err := k.Load(flags, nil); err != nil {
		return nil, oops.Code(CodeInvalidConfig).Wrap(err)
	}

	cfg := Default()
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, oops.Code(CodeInvalidConfig).With("path", path).Wrap(err)
	}

	if cfg.DataDir == "" {
		dir, err := xdg.DataDir()
		if err != nil {
			return nil, oops.Code(CodeInvalidConfig).Wrap(err)
		}
		cfg.DataDir = dir
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// flagProvider reads only flags the user set, under their config keys.
func flagProvider(flagSet *pflag.FlagSet, k *koanf.Koanf) koanf.Provider {
	if flagSet == nil {
		flagSet = pflag.NewFlagSet("empty", pflag.ContinueOnError)
	}
	return posflag.ProviderWithFlag(flagSet, ".", k, func(f *pflag.Flag) (string, interface{}) {
		key, ok := flagKeys[f.Name]
		if !ok || !f.Changed {
			return "", nil
		}
		return key, flagValue(flagSet, f)
	})
}

func flagValue(flagSet *pflag.FlagSet, f *pflag.Flag) any {
	switch f.Value.Type() {
	case "bool":
		v, err := strconv.ParseBool(f.Value.String())
		if err != nil {
			return f.Value.String()
		}
		return v
	case "stringSlice":
		v, err := flagSet.GetStringSlice(f.Name)
		if err != nil {
			return nil
		}
		return v
	default:
		return f.Value.String()
	}
}

// Write saves cfg as YAML to path, creating parent directories.
func Write(path string, cfg *Config) error {
	k := koanf.New(".")
	values := map[string]any{
		"data_dir":                  cfg.DataDir,
		"log_format":                cfg.LogFormat,
		"log_level":                 cfg.LogLevel,
		"metrics_addr":              cfg.MetricsAddr,
		"extensions.dir":            cfg.Extensions.Dir,
		"extensions.suffixes":       cfg.Extensions.Suffixes,
		"extensions.shared_context": cfg.Extensions.SharedContext,
		"permissions.grants":        cfg.Permissions.Grants,
	}
	for key, v := range values {
		if err := k.Set(key, v); err != nil {
			return oops.With("key", key).Wrap(err)
		}
	}

	data, err := k.Marshal(yaml.Parser())
	if err != nil {
		return oops.With("path", path).Wrap(err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return oops.With("path", path).Wrap(err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return oops.With("path", path).Wrap(err)
	}
	return nil
}
