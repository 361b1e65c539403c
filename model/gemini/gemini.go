// Package gemini provides an implementation of model.Model using the Google
// Gen AI SDK.
package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"google.golang.org/genai"

	"github.com/hupe1980/agentforge/core"
	"github.com/hupe1980/agentforge/model"
)

// Options configures the Gemini model adapter.
type Options struct {
	Model       string
	Temperature float64
	// MaxOutputTokens of zero leaves the limit to the provider.
	MaxOutputTokens int32
	APIKey          string
	BaseURL         string
	Timeout         time.Duration
}

// Model wraps the Gemini generateContent API behind the generic model.Model interface.
type Model struct {
	client *genai.Client
	opts   Options
}

// NewModel creates a Gemini model backed by a new genai client.
func NewModel(ctx context.Context, optFns ...func(o *Options)) (*Model, error) {
	opts := Options{
		Model:       "gemini-2.5-flash",
		Temperature: 0.7,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	cfg := &genai.ClientConfig{
		APIKey:  opts.APIKey,
		Backend: genai.BackendGeminiAPI,
	}

	if opts.BaseURL != "" {
		cfg.HTTPOptions.BaseURL = opts.BaseURL
	}

	if opts.Timeout > 0 {
		timeout := opts.Timeout
		cfg.HTTPOptions.Timeout = &timeout
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	return &Model{client: client, opts: opts}, nil
}

// Generate adapts generateContent into model.Response events. Streaming
// requests are served by a single final response.
func (m *Model) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	out := make(chan model.Response, 32)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		contents, system := buildContents(req)

		resp, err := m.client.Models.GenerateContent(ctx, m.opts.Model, contents, m.buildConfig(req, system))
		if err != nil {
			errCh <- fmt.Errorf("gemini api error: %w", err)
			return
		}

		out <- toResponse(resp)
	}()

	return out, errCh
}

func (m *Model) buildConfig(req model.Request, system *genai.Content) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: system,
		Temperature:       genai.Ptr(float32(m.opts.Temperature)),
	}

	if m.opts.MaxOutputTokens > 0 {
		cfg.MaxOutputTokens = m.opts.MaxOutputTokens
	}

	if len(req.Tools) > 0 {
		decls := make([]*genai.FunctionDeclaration, 0, len(req.Tools))
		for _, t := range req.Tools {
			decls = append(decls, &genai.FunctionDeclaration{
				Name:                 t.Function.Name,
				Description:          t.Function.Description,
				ParametersJsonSchema: t.Function.Parameters,
			})
		}

		cfg.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
	}

	if rf := req.ResponseFormat; rf != nil {
		cfg.ResponseMIMEType = "application/json"
		cfg.ResponseJsonSchema = rf.Schema
	}

	return cfg
}

func buildContents(req model.Request) ([]*genai.Content, *genai.Content) {
	var (
		contents    []*genai.Content
		systemParts []*genai.Part
	)

	if req.Instructions != "" {
		systemParts = append(systemParts, &genai.Part{Text: req.Instructions})
	}

	for _, c := range req.Contents {
		if c.Role == core.RoleSystem {
			if text := c.Text(); text != "" {
				systemParts = append(systemParts, &genai.Part{Text: text})
			}

			continue
		}

		var parts []*genai.Part

		for _, p := range c.Parts {
			switch part := p.(type) {
			case core.TextPart:
				if part.Text != "" {
					parts = append(parts, &genai.Part{Text: part.Text})
				}
			case core.FunctionCallPart:
				args := map[string]any{}
				if part.FunctionCall.Arguments != "" {
					_ = json.Unmarshal([]byte(part.FunctionCall.Arguments), &args)
				}

				parts = append(parts, &genai.Part{FunctionCall: &genai.FunctionCall{
					ID:   part.FunctionCall.ID,
					Name: part.FunctionCall.Name,
					Args: args,
				}})
			case core.FunctionResponsePart:
				fr := part.FunctionResponse

				response := map[string]any{"result": fr.Response}
				if fr.Error != "" {
					response = map[string]any{"error": fr.Error}
				}

				parts = append(parts, &genai.Part{FunctionResponse: &genai.FunctionResponse{
					ID:       fr.ID,
					Name:     fr.Name,
					Response: response,
				}})
			}
		}

		if len(parts) == 0 {
			continue
		}

		role := "user"
		if c.Role == core.RoleAssistant {
			role = "model"
		}

		contents = append(contents, &genai.Content{Role: role, Parts: parts})
	}

	var system *genai.Content
	if len(systemParts) > 0 {
		system = &genai.Content{Parts: systemParts}
	}

	return contents, system
}

func toResponse(resp *genai.GenerateContentResponse) model.Response {
	var (
		parts  []core.Part
		finish = "stop"
	)

	if len(resp.Candidates) > 0 {
		cand := resp.Candidates[0]

		if cand.Content != nil {
			for _, p := range cand.Content.Parts {
				if p.Text != "" && !p.Thought {
					parts = append(parts, core.TextPart{Text: p.Text})
				}

				if fc := p.FunctionCall; fc != nil {
					id := fc.ID
					if id == "" {
						id = "call-" + uuid.NewString()
					}

					args, _ := json.Marshal(fc.Args)
					parts = append(parts, core.FunctionCallPart{FunctionCall: core.FunctionCall{
						ID:        id,
						Name:      fc.Name,
						Arguments: string(args),
					}})
				}
			}
		}

		if cand.FinishReason != "" {
			finish = string(cand.FinishReason)
		}
	}

	out := model.Response{
		ID:           resp.ResponseID,
		Content:      core.Content{Role: core.RoleAssistant, Parts: parts},
		FinishReason: finish,
	}

	if u := resp.UsageMetadata; u != nil {
		out.Usage = &model.TokenUsage{
			PromptTokens:     int(u.PromptTokenCount),
			CompletionTokens: int(u.CandidatesTokenCount),
			TotalTokens:      int(u.TotalTokenCount),
		}
	}

	return out
}

// Info returns metadata describing this Gemini model implementation.
func (m *Model) Info() model.Info {
	return model.Info{
		Name:          m.opts.Model,
		Provider:      "gemini",
		SupportsTools: true,
	}
}
