package openai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentforge/core"
	"github.com/hupe1980/agentforge/model"
)

// ----- Message Conversion Tests -----

func TestBuildMessages_ToolRoundTrip(t *testing.T) {
	req := model.Request{
		Instructions: "be brief",
		Contents: []core.Content{
			core.NewTextContent(core.RoleUser, "weather?"),
			{Role: core.RoleAssistant, Parts: []core.Part{core.FunctionCallPart{FunctionCall: core.FunctionCall{ID: "c1", Name: "weather", Arguments: `{}`}}}},
			{Role: core.RoleTool, Parts: []core.Part{core.FunctionResponsePart{FunctionResponse: core.FunctionResponse{ID: "c1", Name: "weather", Response: "sunny"}}}},
		},
	}

	responses, order := collectToolResponses(req)
	assert.Equal(t, []string{"c1"}, order)
	assert.Equal(t, "sunny", responses["c1"])

	msgs := buildMessages(req, responses, order)
	require.Len(t, msgs, 4)
	assert.NotNil(t, msgs[0].OfSystem)
	assert.NotNil(t, msgs[1].OfUser)
	require.NotNil(t, msgs[2].OfAssistant)
	assert.Len(t, msgs[2].OfAssistant.ToolCalls, 1)
	assert.NotNil(t, msgs[3].OfTool)
}

func TestCollectToolResponses_Error(t *testing.T) {
	req := model.Request{Contents: []core.Content{
		{Role: core.RoleTool, Parts: []core.Part{core.FunctionResponsePart{FunctionResponse: core.FunctionResponse{ID: "c1", Error: "bad input"}}}},
	}}

	responses, _ := collectToolResponses(req)
	assert.Equal(t, "Error: bad input", responses["c1"])
}

func TestBuildParams_ResponseFormat(t *testing.T) {
	m := NewModel(func(o *Options) {
		o.Model = "gpt-5.1"
		o.APIKey = "test"
	})

	params := m.buildParams(model.Request{
		ResponseFormat: &model.ResponseFormat{Name: "summary", Schema: map[string]any{"type": "object"}},
		Tools: []model.ToolDefinition{{Type: "function", Function: model.FunctionDefinition{Name: "search"}}},
	}, nil)

	require.NotNil(t, params.ResponseFormat.OfJSONSchema)
	assert.Equal(t, "summary", params.ResponseFormat.OfJSONSchema.JSONSchema.Name)
	assert.Len(t, params.Tools, 1)
	assert.Equal(t, "openai", m.Info().Provider)
}
