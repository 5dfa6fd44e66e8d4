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

// Package config defines the service configuration and its YAML loader.
package config

import (
	"fmt"

	"github.com/kadirpekel/loom/pkg/orchestrator"
	"github.com/kadirpekel/loom/pkg/tool/kbtool"
)

// Store backend types.
const (
	StoreTypeMemory = "memory"
	StoreTypeSQLite = "sqlite"
)

// Config is the root service configuration.
type Config struct {
	Logger       LoggerConfig        `yaml:"logger"`
	Server       ServerConfig        `yaml:"server"`
	Orchestrator orchestrator.Config `yaml:"orchestrator"`
	Store        StoreConfig         `yaml:"store"`
	Tools        ToolsConfig         `yaml:"tools"`
}

// LoggerConfig controls structured logging.
type LoggerConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`

	// Format is "simple", "verbose" or "json".
	Format string `yaml:"format"`

	// File redirects log output; empty means stderr.
	File string `yaml:"file,omitempty"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StoreConfig selects the assistant profile backend.
type StoreConfig struct {
	// Type is "memory" or "sqlite".
	Type string `yaml:"type"`

	// Path is the SQLite database file for the sqlite backend.
	Path string `yaml:"path,omitempty"`

	// AssistantsFile seeds the store from a YAML file of profiles.
	AssistantsFile string `yaml:"assistants_file,omitempty"`
}

// ToolsConfig configures the builtin tools. A zero section disables the
// corresponding tool.
type ToolsConfig struct {
	KnowledgeBase kbtool.Config `yaml:"knowledge_base"`

	// RubricDB is the SQLite database holding grading rubrics.
	RubricDB string `yaml:"rubric_db,omitempty"`

	// FileRoot confines the file lookup tool. Empty disables it.
	FileRoot string `yaml:"file_root,omitempty"`
}

// SetDefaults sets default values for the configuration.
func (c *Config) SetDefaults() {
	if c.Logger.Level == "" {
		c.Logger.Level = "info"
	}
	if c.Logger.Format == "" {
		c.Logger.Format = "simple"
	}
	if c.Server.Host == "" {
		c.Server.Host = "127.0.0.1"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Store.Type == "" {
		c.Store.Type = StoreTypeMemory
	}
	c.Orchestrator.SetDefaults()
	c.Tools.KnowledgeBase.SetDefaults()
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	switch c.Logger.Format {
	case "simple", "verbose", "json":
	default:
		return fmt.Errorf("invalid log format %q (valid: simple, verbose, json)", c.Logger.Format)
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}

	switch c.Store.Type {
	case StoreTypeMemory:
	case StoreTypeSQLite:
		if c.Store.Path == "" {
			return fmt.Errorf("store type sqlite requires a path")
		}
	default:
		return fmt.Errorf("invalid store type %q (valid: memory, sqlite)", c.Store.Type)
	}

	if err := c.Orchestrator.Validate(); err != nil {
		return fmt.Errorf("orchestrator: %w", err)
	}
	return nil
}
