// Package llm turns provider models into stateless handles that agents call
// with a message sequence and a tool list, and builds those handles from a
// model identifier through a provider detecting Factory.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/hupe1980/agentforge/core"
	"github.com/hupe1980/agentforge/internal/util"
	"github.com/hupe1980/agentforge/logging"
	"github.com/hupe1980/agentforge/metrics"
	"github.com/hupe1980/agentforge/model"
	"github.com/hupe1980/agentforge/tool"
	"github.com/hupe1980/agentforge/tracing"
)

// Method names recorded in the "method" extra of llm runs.
const (
	MethodInvoke           = "invoke"
	MethodInvokeStructured = "invoke_structured"
	MethodInvokeLoop       = "invoke_agent_loop"
)

// LLM is a stateless model handle.
type LLM interface {
	// Invoke sends messages with tools bound and returns the text answer.
	Invoke(ctx context.Context, messages []core.Message, tools []tool.Ref) (string, error)
	// InvokeStructured parses the answer into out, a non-nil pointer.
	InvokeStructured(ctx context.Context, messages []core.Message, tools []tool.Ref, out any) error
	// InvokeLoop runs a bounded tool-use loop. A non-nil out receives a
	// structured rendition of the final answer.
	InvokeLoop(ctx context.Context, messages []core.Message, tools []tool.Ref, maxIterations int, out any) (string, error)
}

// HandleOptions configures a Handle.
type HandleOptions struct {
	Collector *tracing.Collector
	Metrics   *metrics.Metrics
	Logger    logging.Logger
}

// Handle is the LLM implementation over a model.Model.
type Handle struct {
	model     model.Model
	name      string
	collector *tracing.Collector
	metrics   *metrics.Metrics
	logger    logging.Logger
}

var _ LLM = (*Handle)(nil)

// NewHandle wraps m. name is the model id used in run names.
func NewHandle(m model.Model, name string, optFns ...func(o *HandleOptions)) *Handle {
	opts := HandleOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}

	if name == "" {
		name = m.Info().Name
	}

	return &Handle{
		model:     m,
		name:      name,
		collector: opts.Collector,
		metrics:   opts.Metrics,
		logger:    logging.OrNoOp(opts.Logger),
	}
}

// Name returns the model id of the handle.
func (h *Handle) Name() string { return h.name }

// Invoke implements LLM.
func (h *Handle) Invoke(ctx context.Context, messages []core.Message, tools []tool.Ref) (string, error) {
	return traced(ctx, h, MethodInvoke, messages, func(ctx context.Context) (string, error) {
		resp, err := model.Collect(ctx, h.model, newRequest(messages, tools))
		if err != nil {
			return "", err
		}

		return resp.Content.Text(), nil
	})
}

// InvokeStructured implements LLM. The JSON schema sent to the provider is
// reflected from out.
func (h *Handle) InvokeStructured(ctx context.Context, messages []core.Message, _ []tool.Ref, out any) error {
	_, err := traced(ctx, h, MethodInvokeStructured, messages, func(ctx context.Context) (string, error) {
		if err := h.structured(ctx, core.ContentsFromMessages(messages), out); err != nil {
			return "", err
		}

		return fmt.Sprintf("%+v", derefValue(out)), nil
	})

	return err
}

// InvokeLoop implements LLM. Each model turn may request tool calls; their
// results are fed back until the model answers without calls. Running out of
// iterations fails with core.ErrIterationLimit.
func (h *Handle) InvokeLoop(ctx context.Context, messages []core.Message, tools []tool.Ref, maxIterations int, out any) (string, error) {
	return traced(ctx, h, MethodInvokeLoop, messages, func(ctx context.Context) (string, error) {
		final, err := h.loop(ctx, messages, tools, maxIterations)
		if err != nil {
			return "", err
		}

		if out == nil {
			return final, nil
		}

		if err := h.structured(ctx, []core.Content{core.NewTextContent(core.RoleUser, final)}, out); err != nil {
			return "", err
		}

		return fmt.Sprintf("%+v", derefValue(out)), nil
	})
}

func (h *Handle) loop(ctx context.Context, messages []core.Message, tools []tool.Ref, maxIterations int) (string, error) {
	if maxIterations < 1 {
		maxIterations = core.DefaultMaxIterations
	}

	byName := make(map[string]tool.Ref, len(tools))
	for _, t := range tools {
		if _, dup := byName[t.Name()]; !dup {
			byName[t.Name()] = t
		}
	}

	req := newRequest(messages, tools)

	for range maxIterations {
		resp, err := model.Collect(ctx, h.model, req)
		if err != nil {
			return "", err
		}

		calls := resp.Content.FunctionCalls()
		if len(calls) == 0 {
			return resp.Content.Text(), nil
		}

		req.Contents = append(req.Contents, resp.Content)

		results := make([]core.Part, 0, len(calls))
		for _, call := range calls {
			results = append(results, core.FunctionResponsePart{FunctionResponse: h.callTool(ctx, byName, call)})
		}

		req.Contents = append(req.Contents, core.Content{Role: core.RoleTool, Parts: results})
	}

	return "", fmt.Errorf("%w: %d iterations", core.ErrIterationLimit, maxIterations)
}

// callTool executes one requested call inside a tool run. Failures are
// reported back to the model rather than aborting the loop.
func (h *Handle) callTool(ctx context.Context, tools map[string]tool.Ref, call core.FunctionCall) core.FunctionResponse {
	resp := core.FunctionResponse{ID: call.ID, Name: call.Name}

	t, ok := tools[call.Name]
	if !ok {
		resp.Error = fmt.Sprintf("unknown tool: %s", call.Name)
		return resp
	}

	args := map[string]any{}
	if strings.TrimSpace(call.Arguments) != "" {
		if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
			resp.Error = fmt.Sprintf("invalid arguments: %v", err)
			return resp
		}
	}

	start := time.Now()

	result, err := tracing.Trace(ctx, h.collector, call.Name, tracing.KindTool, args, map[string]any{"kind": t.Kind().String()},
		func(ctx context.Context) (any, error) {
			return t.Call(ctx, args)
		})

	h.metrics.ObserveTool(call.Name, err)

	if ol, ok := h.logger.(logging.OutcomeLogger); ok {
		ol.LogToolCall(call.Name, time.Since(start), err)
	}

	if err != nil {
		resp.Error = err.Error()
		return resp
	}

	resp.Response = stringify(result)

	return resp
}

func (h *Handle) structured(ctx context.Context, contents []core.Content, out any) error {
	if out == nil || reflect.ValueOf(out).Kind() != reflect.Pointer {
		return fmt.Errorf("%w: target must be a non-nil pointer, got %T", core.ErrStructuredOutputFailed, out)
	}

	req := model.Request{
		Contents: contents,
		ResponseFormat: &model.ResponseFormat{
			Name:   schemaName(out),
			Schema: util.CreateSchema(out),
		},
	}

	resp, err := model.Collect(ctx, h.model, req)
	if err != nil {
		return err
	}

	return ParseStructured(resp.Content.Text(), out)
}

var fence = regexp.MustCompile("(?s)^```(?:json)?\\s*(.*?)\\s*```$")

// ParseStructured decodes a JSON answer into out. Markdown code fences around
// the document are tolerated.
func ParseStructured(text string, out any) error {
	text = strings.TrimSpace(text)
	if m := fence.FindStringSubmatch(text); m != nil {
		text = m[1]
	}

	if err := json.Unmarshal([]byte(text), out); err != nil {
		return fmt.Errorf("%w: %w", core.ErrStructuredOutputFailed, err)
	}

	return nil
}

func traced(ctx context.Context, h *Handle, method string, messages []core.Message, fn func(ctx context.Context) (string, error)) (string, error) {
	start := time.Now()

	res, err := tracing.Trace(ctx, h.collector, "LLM: "+h.name, tracing.KindLLM,
		map[string]any{"messages": messages},
		map[string]any{"method": method},
		fn,
	)

	dur := time.Since(start)
	h.metrics.ObserveLLM(h.name, method, dur, err)

	if ol, ok := h.logger.(logging.OutcomeLogger); ok {
		ol.LogLLMCall(h.name, method, dur, err)
		return res, err
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		h.logger.Warn("llm.call.failed", "model", h.name, "method", method, "duration_ms", dur.Milliseconds(), "error", err.Error())
	} else {
		h.logger.Debug("llm.call.completed", "model", h.name, "method", method, "duration_ms", dur.Milliseconds())
	}

	return res, err
}

func newRequest(messages []core.Message, tools []tool.Ref) model.Request {
	req := model.Request{Contents: core.ContentsFromMessages(messages)}

	for _, d := range tool.Definitions(tools) {
		req.Tools = append(req.Tools, model.ToolDefinition{
			Type: "function",
			Function: model.FunctionDefinition{
				Name:        d.Name,
				Description: d.Description,
				Parameters:  d.Parameters,
			},
		})
	}

	return req
}

var nonIdent = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

func schemaName(v any) string {
	t := reflect.TypeOf(v)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	name := nonIdent.ReplaceAllString(t.Name(), "_")
	if name == "" {
		return "output"
	}

	return name
}

func derefValue(v any) any {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer && !rv.IsNil() {
		rv = rv.Elem()
	}

	return rv.Interface()
}

func stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case fmt.Stringer:
		return x.String()
	}

	if data, err := json.Marshal(v); err == nil {
		return string(data)
	}

	return fmt.Sprintf("%v", v)
}
