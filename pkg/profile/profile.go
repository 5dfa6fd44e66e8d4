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

// Package profile defines the versioned tool profile attached to an
// assistant and the migration layer that upgrades legacy single-processor
// records to the multi-tool shape on first read.
package profile

import (
	"fmt"
)

// Format versions of the stored assistant record. FormatVersion only ever
// increases; there is no downgrade path.
const (
	FormatVersionLegacy  = 1
	FormatVersionCurrent = 2
)

// ToolConfig attaches a single tool to an assistant. Owned by the assistant
// configuration; read-only to the orchestration core.
type ToolConfig struct {
	// Name must resolve against the tool registry.
	Name string `yaml:"name" json:"name"`

	// Parameters is an opaque key/value map validated against the tool's
	// input schema at resolution time.
	Parameters map[string]any `yaml:"parameters,omitempty" json:"parameters,omitempty"`

	// Enabled controls whether the tool runs. Nil means enabled.
	Enabled *bool `yaml:"enabled,omitempty" json:"enabled,omitempty"`

	// Placeholder overrides the template slot this tool's output fills.
	// Empty means the tool's own output contract decides.
	Placeholder string `yaml:"placeholder,omitempty" json:"placeholder,omitempty"`
}

// IsEnabled reports whether this tool config should execute.
func (c ToolConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// LegacyFields preserves the original version-1 record for audit after
// migration. Processor is the old single-purpose processor identifier;
// Settings carries whatever extra fields rode along with it.
type LegacyFields struct {
	Processor string         `yaml:"processor" json:"processor"`
	Settings  map[string]any `yaml:"settings,omitempty" json:"settings,omitempty"`
}

// Profile is the ordered, versioned set of tool configurations attached to
// one assistant, together with its prompt template.
type Profile struct {
	FormatVersion int           `yaml:"format_version" json:"format_version"`
	Tools         []ToolConfig  `yaml:"tools,omitempty" json:"tools,omitempty"`
	Legacy        *LegacyFields `yaml:"legacy,omitempty" json:"legacy,omitempty"`

	// Template is the prompt template containing named placeholders.
	Template string `yaml:"template,omitempty" json:"template,omitempty"`

	// Verbose enables the redacted per-request diagnostic trace.
	Verbose bool `yaml:"verbose,omitempty" json:"verbose,omitempty"`
}

// MalformedProfileError is the single fatal error class of the pipeline:
// a structurally invalid profile is rejected before any tool runs.
type MalformedProfileError struct {
	Reason string
}

func (e *MalformedProfileError) Error() string {
	return fmt.Sprintf("malformed profile: %s", e.Reason)
}

// Validate checks structural integrity. Tool-level problems (unknown names,
// bad parameters) are NOT structural; they surface later as per-tool error
// results.
func (p *Profile) Validate() error {
	if p == nil {
		return &MalformedProfileError{Reason: "profile is nil"}
	}

	switch p.FormatVersion {
	case FormatVersionLegacy:
		if p.Legacy == nil || p.Legacy.Processor == "" {
			return &MalformedProfileError{Reason: "legacy profile missing processor"}
		}
	case FormatVersionCurrent:
		for i, tc := range p.Tools {
			if tc.Name == "" {
				return &MalformedProfileError{Reason: fmt.Sprintf("tool config %d has empty name", i)}
			}
		}
	default:
		return &MalformedProfileError{Reason: fmt.Sprintf("unsupported format version %d", p.FormatVersion)}
	}

	return nil
}

// EnabledTools returns the enabled tool configs in declared order.
func (p *Profile) EnabledTools() []ToolConfig {
	enabled := make([]ToolConfig, 0, len(p.Tools))
	for _, tc := range p.Tools {
		if tc.IsEnabled() {
			enabled = append(enabled, tc)
		}
	}
	return enabled
}

// Clone returns a deep copy of the profile. Parameter maps are copied one
// level deep, which covers the opaque scalar settings profiles carry.
func (p *Profile) Clone() *Profile {
	if p == nil {
		return nil
	}

	out := &Profile{
		FormatVersion: p.FormatVersion,
		Template:      p.Template,
		Verbose:       p.Verbose,
	}

	if len(p.Tools) > 0 {
		out.Tools = make([]ToolConfig, len(p.Tools))
		for i, tc := range p.Tools {
			out.Tools[i] = ToolConfig{
				Name:        tc.Name,
				Parameters:  cloneMap(tc.Parameters),
				Placeholder: tc.Placeholder,
			}
			if tc.Enabled != nil {
				v := *tc.Enabled
				out.Tools[i].Enabled = &v
			}
		}
	}

	if p.Legacy != nil {
		out.Legacy = &LegacyFields{
			Processor: p.Legacy.Processor,
			Settings:  cloneMap(p.Legacy.Settings),
		}
	}

	return out
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
