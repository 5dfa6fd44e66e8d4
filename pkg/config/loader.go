// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// envPrefix namespaces environment overrides. Double underscore separates
// nesting levels, so LOOM_SERVER__PORT=9090 overrides server.port.
const envPrefix = "LOOM_"

// LoaderOptions configures Load.
type LoaderOptions struct {
	// Path is the YAML config file. Empty loads defaults plus environment
	// overrides only.
	Path string

	// Watch reloads the file on change and invokes OnChange.
	Watch bool

	// OnChange receives each successfully reloaded config.
	OnChange func(*Config) error
}

// Loader loads and optionally watches the service configuration.
type Loader struct {
	options LoaderOptions
}

// NewLoader creates a loader.
func NewLoader(opts LoaderOptions) *Loader {
	return &Loader{options: opts}
}

// Load reads the configuration: file values first, then ${VAR} expansion,
// then LOOM_* environment overrides, then defaults and validation.
func (l *Loader) Load() (*Config, error) {
	k := koanf.New(".")

	if l.options.Path != "" {
		provider := file.Provider(l.options.Path)
		if err := k.Load(provider, yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config from %s: %w", l.options.Path, err)
		}
		if err := expandEnvVars(k); err != nil {
			return nil, err
		}
		if l.options.Watch {
			go l.watch(provider)
		}
	}

	if err := loadEnvOverrides(k); err != nil {
		return nil, err
	}

	return unmarshalAndProcess(k)
}

// watch reloads the file on change. Runs until the provider's watcher stops.
func (l *Loader) watch(provider *file.File) {
	err := provider.Watch(func(event interface{}, err error) {
		if err != nil {
			slog.Warn("config watch error", "error", err)
			return
		}

		k := koanf.New(".")
		if err := k.Load(provider, yaml.Parser()); err != nil {
			slog.Warn("failed to reload config", "error", err)
			return
		}
		if err := expandEnvVars(k); err != nil {
			slog.Warn("failed to expand env vars in reloaded config", "error", err)
			return
		}
		if err := loadEnvOverrides(k); err != nil {
			slog.Warn("failed to apply env overrides to reloaded config", "error", err)
			return
		}

		cfg, err := unmarshalAndProcess(k)
		if err != nil {
			slog.Warn("reloaded config is invalid, keeping previous", "error", err)
			return
		}

		if l.options.OnChange != nil {
			if err := l.options.OnChange(cfg); err != nil {
				slog.Warn("config change callback failed", "error", err)
			}
		}
	})
	if err != nil {
		slog.Warn("config watcher stopped", "error", err)
	}
}

// Load is the one-shot convenience entry point.
func Load(path string) (*Config, error) {
	return NewLoader(LoaderOptions{Path: path}).Load()
}

func unmarshalAndProcess(k *koanf.Koanf) (*Config, error) {
	cfg := &Config{}
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "yaml"}); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// loadEnvOverrides overlays LOOM_* environment variables onto the loaded
// keys, mapping LOOM_SERVER__PORT to server.port.
func loadEnvOverrides(k *koanf.Koanf) error {
	provider := env.Provider(envPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, envPrefix)), "__", ".")
	})
	if err := k.Load(provider, nil); err != nil {
		return fmt.Errorf("failed to load environment overrides: %w", err)
	}
	return nil
}

// expandEnvVars rewrites ${VAR} references in every string value and reloads
// the expanded tree.
func expandEnvVars(k *koanf.Koanf) error {
	expanded, ok := expandValue(k.Raw()).(map[string]interface{})
	if !ok {
		return fmt.Errorf("unexpected config shape after env var expansion")
	}
	fresh := koanf.New(".")
	if err := fresh.Load(confmap.Provider(expanded, "."), nil); err != nil {
		return fmt.Errorf("failed to reload expanded config: %w", err)
	}
	*k = *fresh
	return nil
}

func expandValue(v any) any {
	switch val := v.(type) {
	case string:
		return os.ExpandEnv(val)
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for key, inner := range val {
			out[key] = expandValue(inner)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, inner := range val {
			out[i] = expandValue(inner)
		}
		return out
	default:
		return v
	}
}
