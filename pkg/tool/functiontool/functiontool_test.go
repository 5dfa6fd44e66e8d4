package functiontool

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/loom/pkg/tool"
)

type weatherArgs struct {
	City string `json:"city" jsonschema:"required,description=City to report on"`
	Unit string `json:"unit,omitempty"`
}

func newWeatherTool(t *testing.T) *FunctionTool[weatherArgs] {
	t.Helper()
	wt, err := New("weather", "Reports current weather", "weather",
		func(ctx context.Context, args weatherArgs, conv *tool.ConversationContext) (string, error) {
			if args.City == "Atlantis" {
				return "", errors.New("no station")
			}
			unit := args.Unit
			if unit == "" {
				unit = "C"
			}
			return fmt.Sprintf("18 degrees %s in %s", unit, args.City), nil
		})
	require.NoError(t, err)
	return wt
}

func TestFunctionTool_TypedCall(t *testing.T) {
	wt := newWeatherTool(t)

	out, err := wt.Call(context.Background(), map[string]any{"city": "Berlin", "unit": "F"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "18 degrees F in Berlin", out)
}

func TestFunctionTool_DefaultsApply(t *testing.T) {
	wt := newWeatherTool(t)

	out, err := wt.Call(context.Background(), map[string]any{"city": "Berlin"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "18 degrees C in Berlin", out)
}

func TestFunctionTool_ErrorsPropagate(t *testing.T) {
	wt := newWeatherTool(t)

	_, err := wt.Call(context.Background(), map[string]any{"city": "Atlantis"}, nil)
	require.Error(t, err)
}

func TestFunctionTool_GeneratedSchema(t *testing.T) {
	wt := newWeatherTool(t)

	schema := wt.Schema()
	require.NotNil(t, schema)
	assert.Equal(t, "object", schema["type"])
	assert.Contains(t, schema["required"], "city")

	// Generated schemas plug straight into argument validation.
	assert.Error(t, tool.ValidateArgs(schema, map[string]any{}))
	assert.NoError(t, tool.ValidateArgs(schema, map[string]any{"city": "Berlin"}))
}

func TestFunctionTool_ConstructionErrors(t *testing.T) {
	_, err := New[weatherArgs]("", "desc", "slot", nil)
	assert.Error(t, err)

	_, err = New[weatherArgs]("weather", "desc", "slot", nil)
	assert.Error(t, err)
}

func TestFunctionTool_Contract(t *testing.T) {
	wt := newWeatherTool(t)
	assert.Equal(t, "weather", wt.Name())
	assert.Equal(t, "function", wt.Category())
	assert.Equal(t, "weather", wt.Placeholder())
}
