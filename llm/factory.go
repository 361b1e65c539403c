package llm

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/hupe1980/agentforge/core"
	"github.com/hupe1980/agentforge/logging"
	"github.com/hupe1980/agentforge/metrics"
	"github.com/hupe1980/agentforge/model"
	anthropicmodel "github.com/hupe1980/agentforge/model/anthropic"
	"github.com/hupe1980/agentforge/model/gemini"
	"github.com/hupe1980/agentforge/model/openai"
	"github.com/hupe1980/agentforge/tracing"
)

// DefaultTimeout bounds every provider request.
const DefaultTimeout = 60 * time.Second

// Default base URLs of OpenAI compatible providers.
const (
	DeepSeekBaseURL = "https://api.deepseek.com/v1"
	QwenBaseURL     = "https://dashscope.aliyuncs.com/compatible-mode/v1"
)

// Spec selects and parameterizes a model handle.
type Spec struct {
	// ModelID is a model name, optionally prefixed "provider:".
	ModelID     string
	Temperature float64
	// MaxTokens of nil leaves the limit to the provider.
	MaxTokens *int
	// Profile names a credential/base-url profile.
	Profile string
}

// Factory creates model handles.
type Factory interface {
	Create(ctx context.Context, spec Spec) (LLM, error)
}

// FactoryFunc adapts a function to Factory.
type FactoryFunc func(ctx context.Context, spec Spec) (LLM, error)

// Create implements Factory.
func (f FactoryFunc) Create(ctx context.Context, spec Spec) (LLM, error) { return f(ctx, spec) }

// ModelSpec is what a provider constructor receives.
type ModelSpec struct {
	Provider    string
	Model       string
	Temperature float64
	MaxTokens   *int
	APIKey      string
	BaseURL     string
	Timeout     time.Duration
}

// Constructor builds a provider model.
type Constructor func(ctx context.Context, spec ModelSpec) (model.Model, error)

// FactoryOptions configures NewFactory.
type FactoryOptions struct {
	Credentials Credentials
	Timeout     time.Duration
	Collector   *tracing.Collector
	Metrics     *metrics.Metrics
	Logger      logging.Logger
	// Constructors replaces the provider constructors by canonical provider
	// name (openai, azure, gemini, anthropic, deepseek, qwen).
	Constructors map[string]Constructor
	// CircuitBreaker wraps every model with model.WithCircuitBreaker.
	CircuitBreaker bool
	// RequestsPerMinute > 0 wraps every model with model.WithRateLimit.
	RequestsPerMinute float64
	Burst             int
}

// ProviderFactory is the default Factory. It detects the provider from the
// model id and builds the matching adapter.
type ProviderFactory struct {
	opts FactoryOptions
}

var _ Factory = (*ProviderFactory)(nil)

// NewFactory creates a ProviderFactory.
func NewFactory(optFns ...func(o *FactoryOptions)) *ProviderFactory {
	opts := FactoryOptions{
		Credentials: NewCredentials(),
		Timeout:     DefaultTimeout,
		Logger:      logging.NoOpLogger{},
		Burst:       1,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	opts.Logger = logging.OrNoOp(opts.Logger)

	return &ProviderFactory{opts: opts}
}

// canonical maps accepted provider names onto constructor keys and the
// credential key each requires.
var canonical = map[string]struct{ provider, key string }{
	"openai":    {"openai", KeyOpenAI},
	"azure":     {"azure", KeyAzure},
	"gemini":    {"gemini", KeyGoogle},
	"google":    {"gemini", KeyGoogle},
	"claude":    {"anthropic", KeyAnthropic},
	"anthropic": {"anthropic", KeyAnthropic},
	"deepseek":  {"deepseek", KeyDeepSeek},
	"qwen":      {"qwen", KeyQwen},
}

// DetectProvider derives a provider name from a bare model name.
func DetectProvider(modelName string) string {
	name := strings.ToLower(modelName)

	switch {
	case strings.Contains(name, "gemini"):
		return "gemini"
	case strings.Contains(name, "claude"), strings.Contains(name, "anthropic"):
		return "claude"
	case strings.Contains(name, "deepseek"):
		return "deepseek"
	case strings.Contains(name, "qwen"):
		return "qwen"
	case strings.Contains(name, "azure"):
		return "azure"
	default:
		return "openai"
	}
}

// SplitModelID separates an explicit "provider:model" prefix.
func SplitModelID(id string) (provider, name string) {
	if p, n, ok := strings.Cut(id, ":"); ok {
		return p, n
	}

	return DetectProvider(id), id
}

// Create implements Factory.
func (f *ProviderFactory) Create(ctx context.Context, spec Spec) (LLM, error) {
	providerName, modelName := SplitModelID(spec.ModelID)

	entry, ok := canonical[strings.ToLower(providerName)]
	if !ok {
		return nil, core.NewUnknownProviderError(providerName)
	}

	key := f.opts.Credentials.APIKey(entry.key, spec.Profile)
	if key == "" {
		return nil, core.NewMissingCredentialError(entry.key, spec.Profile)
	}

	ms := ModelSpec{
		Provider:    entry.provider,
		Model:       modelName,
		Temperature: spec.Temperature,
		MaxTokens:   spec.MaxTokens,
		APIKey:      key,
		BaseURL:     f.opts.Credentials.BaseURL(entry.key, defaultBaseURL(entry.provider), spec.Profile),
		Timeout:     f.opts.Timeout,
	}

	construct := f.opts.Constructors[entry.provider]
	if construct == nil {
		construct = builtin[entry.provider]
	}

	m, err := construct(ctx, ms)
	if err != nil {
		return nil, err
	}

	if f.opts.CircuitBreaker {
		m = model.WithCircuitBreaker(m, func(o *model.CircuitBreakerOptions) { o.Logger = f.opts.Logger })
	}

	if f.opts.RequestsPerMinute > 0 {
		m = model.WithRateLimit(m, f.opts.RequestsPerMinute, f.opts.Burst)
	}

	f.opts.Logger.Debug("llm.factory.created", "provider", entry.provider, "model", modelName, "profile", spec.Profile)

	return NewHandle(m, modelName, func(o *HandleOptions) {
		o.Collector = f.opts.Collector
		o.Metrics = f.opts.Metrics
		o.Logger = f.opts.Logger
	}), nil
}

func defaultBaseURL(provider string) string {
	switch provider {
	case "deepseek":
		return DeepSeekBaseURL
	case "qwen":
		return QwenBaseURL
	default:
		return ""
	}
}

var builtin = map[string]Constructor{
	"openai":    newOpenAI,
	"deepseek":  newOpenAI,
	"qwen":      newOpenAI,
	"azure":     newAzure,
	"anthropic": newAnthropic,
	"gemini":    newGemini,
}

func newOpenAI(_ context.Context, s ModelSpec) (model.Model, error) {
	return openai.NewModel(func(o *openai.Options) {
		o.Model = s.Model
		o.Temperature = s.Temperature
		o.APIKey = s.APIKey
		o.BaseURL = s.BaseURL
		o.Timeout = s.Timeout
		o.Provider = s.Provider

		if s.MaxTokens != nil {
			o.MaxCompletionTokens = int64(*s.MaxTokens)
		}
	}), nil
}

func newAzure(_ context.Context, s ModelSpec) (model.Model, error) {
	return openai.NewModel(func(o *openai.Options) {
		o.Model = s.Model
		o.Temperature = s.Temperature
		o.APIKey = s.APIKey
		o.AzureEndpoint = s.BaseURL
		o.AzureAPIVersion = os.Getenv("AZURE_OPENAI_API_VERSION")
		o.Timeout = s.Timeout
		o.Provider = s.Provider

		if s.MaxTokens != nil {
			o.MaxCompletionTokens = int64(*s.MaxTokens)
		}
	}), nil
}

func newAnthropic(_ context.Context, s ModelSpec) (model.Model, error) {
	return anthropicmodel.NewModel(func(o *anthropicmodel.Options) {
		o.Model = anthropic.Model(s.Model)
		o.Temperature = s.Temperature
		o.APIKey = s.APIKey
		o.BaseURL = s.BaseURL
		o.Timeout = s.Timeout

		if s.MaxTokens != nil {
			o.MaxTokens = int64(*s.MaxTokens)
		}
	}), nil
}

func newGemini(ctx context.Context, s ModelSpec) (model.Model, error) {
	return gemini.NewModel(ctx, func(o *gemini.Options) {
		o.Model = s.Model
		o.Temperature = s.Temperature
		o.APIKey = s.APIKey
		o.BaseURL = s.BaseURL
		o.Timeout = s.Timeout

		if s.MaxTokens != nil {
			o.MaxOutputTokens = int32(*s.MaxTokens)
		}
	})
}
