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

// Package prompt merges tool execution results into a prompt template.
//
// Templates carry placeholders in brace syntax:
//
//	"Use {context} and {rubric} to answer."
//
// This engine substitutes only tool-owned placeholders. Tokens that no
// configured tool claims (for example a {user_input} slot filled by the
// caller) are left verbatim for an upstream substitution pass.
package prompt

import (
	"regexp"
	"strings"

	"github.com/kadirpekel/loom/pkg/tool"
)

// placeholderRegex matches {variable} tokens, tolerating repeated braces so
// template-authored delimiter markup like {{context}} is removed whole.
var placeholderRegex = regexp.MustCompile(`{+[^{}]*}+`)

// AssemblyResult is the outcome of one assembly pass. Produced once per
// request, handed to the model-invocation collaborator, then discarded.
type AssemblyResult struct {
	// Text is the template with every tool-owned placeholder resolved.
	Text string

	// PlaceholdersFilled names the placeholders substituted with output.
	PlaceholdersFilled []string

	// PlaceholdersRemoved names the template placeholders that had no
	// usable tool output and were removed, delimiters included.
	PlaceholdersRemoved []string
}

// Assemble substitutes tool results into template.
//
// Substitution is total over the tool-owned placeholder set: successful
// results fill their slot, failed results resolve to empty, and no
// recognized token survives verbatim. When two results map to the same
// placeholder the later one in configuration order wins; results must
// therefore already be in configuration order (the orchestrator guarantees
// this even under bounded-parallel execution).
//
// Assemble is a fixed point: running it again on its own output changes
// nothing, because no recognized token remains.
func Assemble(template string, results []tool.ExecutionResult) *AssemblyResult {
	values := make(map[string]string, len(results))
	owned := make(map[string]bool, len(results))
	succeeded := make(map[string]bool, len(results))

	for _, res := range results {
		if res.Placeholder == "" {
			continue
		}
		owned[res.Placeholder] = true
		succeeded[res.Placeholder] = res.OK()
		if res.OK() {
			values[res.Placeholder] = res.Output
		} else {
			// Failure degrades gracefully: the slot resolves empty
			// and the assistant answers without this contribution.
			values[res.Placeholder] = ""
		}
	}

	var out strings.Builder
	var filled, removed []string
	seenFilled := make(map[string]bool)
	seenRemoved := make(map[string]bool)

	lastIndex := 0
	for _, match := range placeholderRegex.FindAllStringIndex(template, -1) {
		start, end := match[0], match[1]
		out.WriteString(template[lastIndex:start])
		lastIndex = end

		token := template[start:end]
		name := strings.TrimSpace(strings.Trim(token, "{}"))

		if !owned[name] {
			// Not a tool-owned slot; leave for the upstream pass.
			out.WriteString(token)
			continue
		}

		out.WriteString(values[name])

		// Classification follows the owning result's status, not the
		// substituted text: a successful tool may legitimately emit
		// nothing and its slot still counts as filled.
		if succeeded[name] {
			if !seenFilled[name] {
				filled = append(filled, name)
				seenFilled[name] = true
			}
		} else {
			if !seenRemoved[name] {
				removed = append(removed, name)
				seenRemoved[name] = true
			}
		}
	}
	out.WriteString(template[lastIndex:])

	return &AssemblyResult{
		Text:                out.String(),
		PlaceholdersFilled:  filled,
		PlaceholdersRemoved: removed,
	}
}

// ListPlaceholders returns the distinct placeholder names found in the
// template, in appearance order.
func ListPlaceholders(template string) []string {
	var names []string
	seen := make(map[string]bool)

	for _, match := range placeholderRegex.FindAllString(template, -1) {
		name := strings.TrimSpace(strings.Trim(match, "{}"))
		if name == "" || seen[name] {
			continue
		}
		names = append(names, name)
		seen[name] = true
	}
	return names
}

// HasPlaceholders reports whether the template contains any placeholder
// tokens.
func HasPlaceholders(template string) bool {
	return placeholderRegex.MatchString(template)
}
