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

package observability

import (
	"fmt"
	"regexp"
)

// RedactedValue replaces any value judged secret-shaped.
const RedactedValue = "[REDACTED]"

// secretKeyPattern matches field names that commonly carry credentials or PII.
var secretKeyPattern = regexp.MustCompile(`(?i)(api[_-]?key|secret|token|password|passwd|credential|authorization|bearer|cookie|ssn|social[_-]?security|email|phone)`)

// secretValuePattern matches values that look like credentials regardless of
// their field name: provider API keys, bearer headers, and JWTs.
var secretValuePattern = regexp.MustCompile(`(?i)(sk-[A-Za-z0-9_\-]{8,}|bearer\s+\S+|eyJ[A-Za-z0-9_\-]{8,}\.[A-Za-z0-9_\-]+\.[A-Za-z0-9_\-]+)`)

// RedactString masks secret-shaped substrings in free text.
func RedactString(s string) string {
	return secretValuePattern.ReplaceAllString(s, RedactedValue)
}

// RedactMap returns a deep copy of m with secret-shaped fields masked.
// The input map is never mutated; verbose traces hold only the copy.
func RedactMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}

	out := make(map[string]any, len(m))
	for k, v := range m {
		if secretKeyPattern.MatchString(k) {
			out[k] = RedactedValue
			continue
		}
		out[k] = redactValue(v)
	}
	return out
}

func redactValue(v any) any {
	switch val := v.(type) {
	case string:
		return RedactString(val)
	case map[string]any:
		return RedactMap(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = redactValue(item)
		}
		return out
	case fmt.Stringer:
		return RedactString(val.String())
	default:
		return v
	}
}
