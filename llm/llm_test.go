package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentforge/core"
	"github.com/hupe1980/agentforge/model"
	"github.com/hupe1980/agentforge/tool"
	"github.com/hupe1980/agentforge/tracing"
)

func messages(input string) []core.Message {
	return []core.Message{
		{Role: core.RoleSystem, Content: "You help."},
		{Role: core.RoleUser, Content: input},
	}
}

func newTestHandle(m model.Model) (*Handle, *tracing.Collector) {
	c := tracing.NewCollector()
	return NewHandle(m, "mock-gpt", func(o *HandleOptions) { o.Collector = c }), c
}

type summary struct {
	Title  string   `json:"title"`
	Points []string `json:"points"`
}

// ----- Handle Tests -----

func TestHandle_Invoke(t *testing.T) {
	m := model.NewMockModel("mock-gpt", "test")
	m.QueueText("LLM Response")

	h, c := newTestHandle(m)

	out, err := h.Invoke(context.Background(), messages("input data"), nil)
	require.NoError(t, err)
	assert.Equal(t, "LLM Response", out)

	runs := c.Runs()
	require.Len(t, runs, 1)
	assert.Equal(t, "LLM: mock-gpt", runs[0].Name)
	assert.Equal(t, tracing.KindLLM, runs[0].Kind)
	assert.Equal(t, "invoke", runs[0].Extra["method"])
	assert.Equal(t, "input data", runs[0].Inputs["messages"].([]core.Message)[1].Content)
	assert.Equal(t, "LLM Response", runs[0].Outputs["output"])
}

func TestHandle_InvokeBindsTools(t *testing.T) {
	m := model.NewMockModel("mock-gpt", "test")
	m.QueueText("ok")

	h, _ := newTestHandle(m)
	search := tool.NewFunctionTool("search", "Search the web", nil, func(context.Context, map[string]any) (any, error) { return nil, nil })

	_, err := h.Invoke(context.Background(), messages("x"), []tool.Ref{search})
	require.NoError(t, err)

	req := m.Requests()[0]
	require.Len(t, req.Tools, 1)
	assert.Equal(t, "search", req.Tools[0].Function.Name)
	require.Len(t, req.Contents, 2)
	assert.Equal(t, core.RoleSystem, req.Contents[0].Role)
}

func TestHandle_InvokeErrorRecorded(t *testing.T) {
	boom := errors.New("provider down")

	m := model.NewMockModel("mock-gpt", "test")
	m.QueueError(boom)

	h, c := newTestHandle(m)

	_, err := h.Invoke(context.Background(), messages("x"), nil)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, "provider down", c.Runs()[0].Error)
}

func TestHandle_InvokeStructured(t *testing.T) {
	m := model.NewMockModel("mock-gpt", "test")
	m.QueueText("```json\n{\"title\":\"Go\",\"points\":[\"a\",\"b\"]}\n```")

	h, c := newTestHandle(m)

	var out summary
	require.NoError(t, h.InvokeStructured(context.Background(), messages("x"), nil, &out))
	assert.Equal(t, summary{Title: "Go", Points: []string{"a", "b"}}, out)

	req := m.Requests()[0]
	require.NotNil(t, req.ResponseFormat)
	assert.Equal(t, "summary", req.ResponseFormat.Name)
	assert.Equal(t, "invoke_structured", c.Runs()[0].Extra["method"])
}

func TestHandle_InvokeStructuredParseFailure(t *testing.T) {
	m := model.NewMockModel("mock-gpt", "test")
	m.QueueText("not json")

	h, _ := newTestHandle(m)

	var out summary
	err := h.InvokeStructured(context.Background(), messages("x"), nil, &out)
	assert.ErrorIs(t, err, core.ErrStructuredOutputFailed)

	err = h.InvokeStructured(context.Background(), messages("x"), nil, summary{})
	assert.ErrorIs(t, err, core.ErrStructuredOutputFailed)
}

func TestHandle_InvokeLoop(t *testing.T) {
	m := model.NewMockModel("mock-gpt", "test")
	m.QueueToolCalls(core.FunctionCall{ID: "c1", Name: "add", Arguments: `{"a":2,"b":3}`})
	m.QueueText("The sum is 5")

	add := tool.NewFunctionTool("add", "Adds", map[string]any{
		"type": "object",
		"properties": map[string]any{
			"a": map[string]any{"type": "number"},
			"b": map[string]any{"type": "number"},
		},
		"required": []string{"a", "b"},
	}, func(_ context.Context, args map[string]any) (any, error) {
		return args["a"].(float64) + args["b"].(float64), nil
	})

	h, c := newTestHandle(m)

	out, err := h.InvokeLoop(context.Background(), messages("2+3?"), []tool.Ref{add}, 5, nil)
	require.NoError(t, err)
	assert.Equal(t, "The sum is 5", out)

	second := m.Requests()[1]
	last := second.Contents[len(second.Contents)-1]
	assert.Equal(t, core.RoleTool, last.Role)

	fr := last.Parts[0].(core.FunctionResponsePart).FunctionResponse
	assert.Equal(t, "c1", fr.ID)
	assert.Equal(t, "5", fr.Response)

	llmRuns := c.RunsOfKind(tracing.KindLLM)
	toolRuns := c.RunsOfKind(tracing.KindTool)
	require.Len(t, llmRuns, 1)
	require.Len(t, toolRuns, 1)
	assert.Equal(t, "invoke_agent_loop", llmRuns[0].Extra["method"])
	assert.Equal(t, llmRuns[0].ID, toolRuns[0].ParentID)
	assert.Equal(t, "add", toolRuns[0].Name)
}

func TestHandle_InvokeLoopToolErrorsFedBack(t *testing.T) {
	m := model.NewMockModel("mock-gpt", "test")
	m.QueueToolCalls(core.FunctionCall{ID: "c1", Name: "missing", Arguments: `{}`})
	m.QueueText("sorry")

	h, _ := newTestHandle(m)

	out, err := h.InvokeLoop(context.Background(), messages("x"), nil, 3, nil)
	require.NoError(t, err)
	assert.Equal(t, "sorry", out)

	last := m.Requests()[1].Contents
	fr := last[len(last)-1].Parts[0].(core.FunctionResponsePart).FunctionResponse
	assert.Equal(t, "unknown tool: missing", fr.Error)
}

func TestHandle_InvokeLoopIterationLimit(t *testing.T) {
	m := model.NewMockModel("mock-gpt", "test")
	for range 2 {
		m.QueueToolCalls(core.FunctionCall{ID: "c", Name: "noop"})
	}

	noop := tool.NewFunctionTool("noop", "Does nothing", nil, func(context.Context, map[string]any) (any, error) { return "ok", nil })

	h, _ := newTestHandle(m)

	_, err := h.InvokeLoop(context.Background(), messages("x"), []tool.Ref{noop}, 2, nil)
	assert.ErrorIs(t, err, core.ErrIterationLimit)
}

func TestHandle_InvokeLoopStructuredFinalStep(t *testing.T) {
	m := model.NewMockModel("mock-gpt", "test")
	m.QueueText("Go is great")
	m.QueueText(`{"title":"Go is great","points":[]}`)

	h, _ := newTestHandle(m)

	var out summary
	_, err := h.InvokeLoop(context.Background(), messages("x"), nil, 3, &out)
	require.NoError(t, err)
	assert.Equal(t, "Go is great", out.Title)

	final := m.Requests()[1]
	require.NotNil(t, final.ResponseFormat)
	assert.Equal(t, "Go is great", final.Contents[0].Text())
}

func TestHandle_SuppressedContextRecordsNothing(t *testing.T) {
	m := model.NewMockModel("mock-gpt", "test")
	m.QueueText("ok")

	h, c := newTestHandle(m)

	_, err := h.Invoke(tracing.Suppress(context.Background()), messages("x"), nil)
	require.NoError(t, err)
	assert.Empty(t, c.Runs())
}

// ----- Factory Tests -----

func TestDetectProvider(t *testing.T) {
	tests := map[string]string{
		"gemini-3-pro":      "gemini",
		"claude-3-5-sonnet": "claude",
		"anthropic-x":       "claude",
		"deepseek-chat":     "deepseek",
		"qwen-max":          "qwen",
		"azure-gpt4":        "azure",
		"gpt-5.1":           "openai",
	}

	for in, want := range tests {
		assert.Equal(t, want, DetectProvider(in), in)
	}

	p, n := SplitModelID("anthropic:my-model")
	assert.Equal(t, "anthropic", p)
	assert.Equal(t, "my-model", n)
}

func recordingFactory(t *testing.T, creds Credentials) (*ProviderFactory, *[]ModelSpec) {
	t.Helper()

	var specs []ModelSpec

	record := func(_ context.Context, s ModelSpec) (model.Model, error) {
		specs = append(specs, s)
		return model.NewMockModel(s.Model, s.Provider), nil
	}

	f := NewFactory(func(o *FactoryOptions) {
		o.Credentials = creds
		o.Constructors = map[string]Constructor{
			"openai": record, "azure": record, "gemini": record,
			"anthropic": record, "deepseek": record, "qwen": record,
		}
	})

	return f, &specs
}

func TestFactory_Create(t *testing.T) {
	creds := NewCredentials()
	creds.APIKeys[KeyOpenAI] = "sk-openai"
	creds.APIKeys[KeyDeepSeek] = "sk-deepseek"
	creds.APIKeys["team"] = "sk-team"
	creds.BaseURLs["team"] = "https://proxy.local/v1"

	f, specs := recordingFactory(t, creds)
	maxTokens := 256

	h, err := f.Create(context.Background(), Spec{ModelID: "gpt-5.1", Temperature: 0.3, MaxTokens: &maxTokens})
	require.NoError(t, err)
	assert.Equal(t, "gpt-5.1", h.(*Handle).Name())

	_, err = f.Create(context.Background(), Spec{ModelID: "deepseek-chat"})
	require.NoError(t, err)

	_, err = f.Create(context.Background(), Spec{ModelID: "openai:gpt-5-mini", Profile: "team"})
	require.NoError(t, err)

	require.Len(t, *specs, 3)
	assert.Equal(t, ModelSpec{Provider: "openai", Model: "gpt-5.1", Temperature: 0.3, MaxTokens: &maxTokens, APIKey: "sk-openai", Timeout: DefaultTimeout}, (*specs)[0])
	assert.Equal(t, DeepSeekBaseURL, (*specs)[1].BaseURL)
	assert.Equal(t, "sk-deepseek", (*specs)[1].APIKey)
	assert.Equal(t, "sk-team", (*specs)[2].APIKey)
	assert.Equal(t, "https://proxy.local/v1", (*specs)[2].BaseURL)
	assert.Equal(t, "gpt-5-mini", (*specs)[2].Model)
}

func TestFactory_Errors(t *testing.T) {
	f, _ := recordingFactory(t, NewCredentials())

	_, err := f.Create(context.Background(), Spec{ModelID: "claude-3-5-sonnet"})
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrProviderConfiguration)
	assert.Contains(t, err.Error(), "provider anthropic (profile default)")

	_, err = f.Create(context.Background(), Spec{ModelID: "mistral:large"})
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrUnknownProvider)
	assert.Equal(t, "unknown llm provider: mistral", err.Error())

	var perr *core.ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "mistral", perr.Provider)
}

// ----- Credentials Tests -----

func TestCredentialsFromEnv(t *testing.T) {
	env := map[string]string{
		"OPENAI_API_KEY":        "sk-1",
		"GEMINI_API_KEY":        "g-1",
		"AZURE_OPENAI_ENDPOINT": "https://x.openai.azure.com",
	}

	c := credentialsFrom(func(k string) string { return env[k] })
	assert.Equal(t, "sk-1", c.APIKey(KeyOpenAI, ""))
	assert.Equal(t, "g-1", c.APIKey(KeyGoogle, "missing-profile"))
	assert.Equal(t, "https://x.openai.azure.com", c.BaseURL(KeyAzure, "", ""))
	assert.Equal(t, "fallback", c.BaseURL(KeyQwen, "fallback", ""))

	merged := c.Merge(Credentials{APIKeys: map[string]string{KeyOpenAI: "sk-2"}})
	assert.Equal(t, "sk-2", merged.APIKey(KeyOpenAI, ""))
	assert.Equal(t, "sk-1", c.APIKey(KeyOpenAI, ""))
}
