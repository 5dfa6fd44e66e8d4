package profile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func boolPtr(v bool) *bool { return &v }

func TestProfile_Validate(t *testing.T) {
	tests := []struct {
		name    string
		profile *Profile
		wantErr bool
	}{
		{
			name: "valid current profile",
			profile: &Profile{
				FormatVersion: FormatVersionCurrent,
				Tools:         []ToolConfig{{Name: "kb_lookup"}},
			},
		},
		{
			name: "valid current profile with no tools",
			profile: &Profile{
				FormatVersion: FormatVersionCurrent,
			},
		},
		{
			name: "valid legacy profile",
			profile: &Profile{
				FormatVersion: FormatVersionLegacy,
				Legacy:        &LegacyFields{Processor: "simple_rag"},
			},
		},
		{
			name: "current profile with empty tool name",
			profile: &Profile{
				FormatVersion: FormatVersionCurrent,
				Tools:         []ToolConfig{{Name: ""}},
			},
			wantErr: true,
		},
		{
			name: "legacy profile without processor",
			profile: &Profile{
				FormatVersion: FormatVersionLegacy,
			},
			wantErr: true,
		},
		{
			name:    "unsupported format version",
			profile: &Profile{FormatVersion: 3},
			wantErr: true,
		},
		{
			name:    "nil profile",
			profile: nil,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.profile.Validate()
			if tt.wantErr {
				var malformed *MalformedProfileError
				require.Error(t, err)
				assert.ErrorAs(t, err, &malformed)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestProfile_EnabledTools(t *testing.T) {
	p := &Profile{
		FormatVersion: FormatVersionCurrent,
		Tools: []ToolConfig{
			{Name: "kb_lookup"},
			{Name: "rubric", Enabled: boolPtr(false)},
			{Name: "file_lookup", Enabled: boolPtr(true)},
		},
	}

	enabled := p.EnabledTools()
	require.Len(t, enabled, 2)
	assert.Equal(t, "kb_lookup", enabled[0].Name)
	assert.Equal(t, "file_lookup", enabled[1].Name)
}

func TestProfile_CloneIsIndependent(t *testing.T) {
	p := &Profile{
		FormatVersion: FormatVersionCurrent,
		Template:      "Use {context}.",
		Tools: []ToolConfig{
			{Name: "kb_lookup", Parameters: map[string]any{"top_k": 3}},
		},
	}

	clone := p.Clone()
	clone.Tools[0].Parameters["top_k"] = 99
	clone.Template = "changed"

	assert.Equal(t, 3, p.Tools[0].Parameters["top_k"])
	assert.Equal(t, "Use {context}.", p.Template)
}
