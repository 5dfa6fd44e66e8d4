package tool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type searchArgs struct {
	Query string `json:"query" jsonschema:"required,description=Search query"`
	TopK  int    `json:"top_k,omitempty" jsonschema:"description=Max results,default=3"`
}

func TestGenerateSchema(t *testing.T) {
	schema, err := GenerateSchema[searchArgs]()
	require.NoError(t, err)

	assert.Equal(t, "object", schema["type"])

	props, ok := schema["properties"].(map[string]any)
	require.True(t, ok, "schema should have properties")
	assert.Contains(t, props, "query")
	assert.Contains(t, props, "top_k")

	required, ok := schema["required"].([]any)
	require.True(t, ok, "schema should mark required fields")
	assert.Contains(t, required, "query")
}

func TestValidateArgs(t *testing.T) {
	schema, err := GenerateSchema[searchArgs]()
	require.NoError(t, err)

	tests := []struct {
		name    string
		args    map[string]any
		wantErr bool
	}{
		{
			name: "valid args",
			args: map[string]any{"query": "grading rubric", "top_k": 2},
		},
		{
			name: "extra keys are tolerated",
			args: map[string]any{"query": "grading rubric", "kb_id": 42},
		},
		{
			name:    "missing required field",
			args:    map[string]any{"top_k": 2},
			wantErr: true,
		},
		{
			name:    "wrong type",
			args:    map[string]any{"query": 42},
			wantErr: true,
		},
		{
			name:    "nil args fail required check",
			args:    nil,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateArgs(schema, tt.args)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateArgs_NilSchemaAcceptsAnything(t *testing.T) {
	assert.NoError(t, ValidateArgs(nil, map[string]any{"anything": true}))
	assert.NoError(t, ValidateArgs(nil, nil))
}
