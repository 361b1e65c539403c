package util

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ----- Schema Tests -----

type sampleArgs struct {
	Query string `json:"query" jsonschema:"description=Search query"`
	Limit int    `json:"limit,omitempty"`
}

func TestCreateSchema(t *testing.T) {
	schema := CreateSchema(sampleArgs{})

	assert.Equal(t, "object", schema["type"])

	props, ok := schema["properties"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, props, "query")
	assert.Contains(t, props, "limit")

	query := props["query"].(map[string]any)
	assert.Equal(t, "string", query["type"])
	assert.Equal(t, "Search query", query["description"])

	assert.ElementsMatch(t, []string{"query"}, RequiredFields(schema))
	assert.ElementsMatch(t, []string{"query", "limit"}, PropertyNames(schema))
}

func TestCreateSchema_Nil(t *testing.T) {
	schema := CreateSchema(nil)
	assert.Equal(t, "object", schema["type"])
	assert.Empty(t, PropertyNames(schema))
}

func TestValidateParameters(t *testing.T) {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"x": map[string]any{"type": "integer"},
		},
		"required": []any{"x"},
	}

	assert.NoError(t, ValidateParameters(map[string]any{"x": 5}, schema))
	assert.NoError(t, ValidateParameters(map[string]any{"x": float64(3)}, schema))

	err := ValidateParameters(map[string]any{}, schema)
	var vErr *ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, "x", vErr.Field)

	err = ValidateParameters(map[string]any{"x": "not-int"}, schema)
	require.True(t, errors.As(err, &vErr))
	assert.Contains(t, vErr.Message, "expected type integer")
}

// ----- Format Tests -----

func TestFormat(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		args    map[string]any
		want    string
		wantErr error
	}{
		{"plain", "no placeholders", nil, "no placeholders", nil},
		{"single", "Hello {input}", map[string]any{"input": "world"}, "Hello world", nil},
		{"multiple", "{a}-{b}-{a}", map[string]any{"a": 1, "b": "x"}, "1-x-1", nil},
		{"escaped", "{{literal}} {v}", map[string]any{"v": 2}, "{literal} 2", nil},
		{"format spec ignored", "{v:>5}", map[string]any{"v": "x"}, "x", nil},
		{"missing", "Hello {missing}", map[string]any{}, "", ErrMissingKey},
		{"positional", "Hello {}", map[string]any{}, "", ErrMalformedTemplate},
		{"unclosed", "Hello {name", map[string]any{"name": "n"}, "", ErrMalformedTemplate},
		{"stray close", "Hello }", map[string]any{}, "", ErrMalformedTemplate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Format(tt.text, tt.args)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
