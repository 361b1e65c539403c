// Package tracing records a causally linked tree of runs (agent, llm and tool
// spans) in memory. The current parent run travels explicitly through
// context.Context. When an OpenTelemetry tracer is configured every run is
// mirrored as an OTel span.
package tracing

import (
	"context"
	"fmt"
	"maps"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/hupe1980/agentforge/logging"
)

// Kind classifies a run.
type Kind string

// Run kinds.
const (
	KindAgent Kind = "agent"
	KindLLM   Kind = "llm"
	KindTool  Kind = "tool"
)

// Run is one recorded span.
type Run struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Kind      Kind           `json:"run_type"`
	Inputs    map[string]any `json:"inputs"`
	ParentID  string         `json:"parent_id,omitempty"`
	StartTime time.Time      `json:"start_time"`
	EndTime   *time.Time     `json:"end_time,omitempty"`
	Outputs   map[string]any `json:"outputs,omitempty"`
	Error     string         `json:"error,omitempty"`
	Extra     map[string]any `json:"extra"`
}

// Ended reports whether EndRun was called for the run.
func (r Run) Ended() bool { return r.EndTime != nil }

// Options configures a Collector.
type Options struct {
	// Tracer mirrors runs as OpenTelemetry spans when set.
	Tracer trace.Tracer
	Logger logging.Logger
	// Now is the clock used for timestamps.
	Now func() time.Time
}

// Collector is an in-memory, process-lifetime list of runs.
type Collector struct {
	mu     sync.Mutex
	runs   []*Run
	spans  map[string]trace.Span
	tracer trace.Tracer
	logger logging.Logger
	now    func() time.Time
}

// NewCollector creates an empty Collector.
func NewCollector(optFns ...func(o *Options)) *Collector {
	opts := Options{
		Logger: logging.NoOpLogger{},
		Now:    time.Now,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Collector{
		spans:  map[string]trace.Span{},
		tracer: opts.Tracer,
		logger: logging.OrNoOp(opts.Logger),
		now:    opts.Now,
	}
}

type parentKey struct{}

type suppressKey struct{}

// ParentID returns the id of the run carried by ctx.
func ParentID(ctx context.Context) string {
	id, _ := ctx.Value(parentKey{}).(string)
	return id
}

// WithParent returns ctx carrying id as the current run.
func WithParent(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, parentKey{}, id)
}

// Suppress returns ctx under which no runs are recorded.
func Suppress(ctx context.Context) context.Context {
	return context.WithValue(ctx, suppressKey{}, true)
}

// Unsuppress re-enables recording below ctx.
func Unsuppress(ctx context.Context) context.Context {
	return context.WithValue(ctx, suppressKey{}, false)
}

// Suppressed reports whether recording is disabled for ctx.
func Suppressed(ctx context.Context) bool {
	s, _ := ctx.Value(suppressKey{}).(bool)
	return s
}

// StartRun opens a run whose parent is the run carried by ctx and returns a
// context carrying the new run. A nil collector or a suppressed ctx records
// nothing and returns an empty id.
func (c *Collector) StartRun(ctx context.Context, name string, kind Kind, inputs, extra map[string]any) (context.Context, string) {
	if c == nil || Suppressed(ctx) {
		return ctx, ""
	}

	if extra == nil {
		extra = map[string]any{}
	}

	run := &Run{
		ID:        uuid.NewString(),
		Name:      name,
		Kind:      kind,
		Inputs:    inputs,
		ParentID:  ParentID(ctx),
		StartTime: c.now(),
		Extra:     extra,
	}

	if c.tracer != nil {
		var span trace.Span

		ctx, span = c.tracer.Start(ctx, name, trace.WithAttributes(
			attribute.String("agentforge.run.id", run.ID),
			attribute.String("agentforge.run.kind", string(kind)),
		))

		c.mu.Lock()
		c.spans[run.ID] = span
		c.mu.Unlock()
	}

	c.mu.Lock()
	c.runs = append(c.runs, run)
	c.mu.Unlock()

	return WithParent(ctx, run.ID), run.ID
}

// EndRun closes the run with the given id, searching the most recently
// opened runs first. A non-nil err is recorded instead of outputs.
func (c *Collector) EndRun(id string, outputs any, err error) {
	if c == nil || id == "" {
		return
	}

	c.mu.Lock()

	var found *Run

	for i := len(c.runs) - 1; i >= 0; i-- {
		if c.runs[i].ID == id {
			found = c.runs[i]
			break
		}
	}

	if found == nil || found.EndTime != nil {
		c.mu.Unlock()
		return
	}

	end := c.now()
	found.EndTime = &end

	if err != nil {
		found.Error = err.Error()
	} else {
		found.Outputs = NormalizeOutputs(outputs)
	}

	span, hasSpan := c.spans[id]
	delete(c.spans, id)
	c.mu.Unlock()

	if hasSpan {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}

		span.End()
	}
}

// Runs returns a snapshot of all recorded runs in start order.
func (c *Collector) Runs() []Run {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Run, 0, len(c.runs))
	for _, r := range c.runs {
		cp := *r
		cp.Inputs = maps.Clone(r.Inputs)
		cp.Outputs = maps.Clone(r.Outputs)
		cp.Extra = maps.Clone(r.Extra)
		out = append(out, cp)
	}

	return out
}

// RunsOfKind returns the recorded runs of one kind.
func (c *Collector) RunsOfKind(kind Kind) []Run {
	var out []Run

	for _, r := range c.Runs() {
		if r.Kind == kind {
			out = append(out, r)
		}
	}

	return out
}

// Clear drops every recorded run. Open OTel spans are ended.
func (c *Collector) Clear() {
	c.mu.Lock()
	n := len(c.runs)
	c.runs = nil
	spans := c.spans
	c.spans = map[string]trace.Span{}
	c.mu.Unlock()

	for _, s := range spans {
		s.End()
	}

	c.logger.Debug("tracing.cleared", "runs", n)
}

// Trace runs fn inside a run and closes it with fn's result.
func Trace[T any](ctx context.Context, c *Collector, name string, kind Kind, inputs, extra map[string]any, fn func(ctx context.Context) (T, error)) (T, error) {
	ctx, id := c.StartRun(ctx, name, kind, inputs, extra)

	res, err := fn(ctx)
	if err != nil {
		c.EndRun(id, nil, err)
		return res, err
	}

	c.EndRun(id, res, nil)

	return res, nil
}

func (r Run) String() string {
	return fmt.Sprintf("%s[%s] %s", r.Kind, r.ID, r.Name)
}
