package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"
	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/agentforge/core"
	"github.com/hupe1980/agentforge/logging"
)

// WorkflowMapReduce is the only supported workflow type.
const WorkflowMapReduce = "map_reduce"

// NoWorkerResult is the result of a task no worker could be selected for.
const NoWorkerResult = "Error: No worker found"

// TaskItem is one unit of work produced by the splitter.
type TaskItem struct {
	WorkerType string         `json:"worker_type" jsonschema:"description=The type of worker agent to handle this task"`
	Arguments  map[string]any `json:"arguments" jsonschema:"description=The structured arguments/payload for the worker"`
}

// SplitterOutput is the structured answer expected from the splitter.
type SplitterOutput struct {
	Tasks []TaskItem `json:"tasks" jsonschema:"description=The list of tasks to be distributed"`
}

// MapReduceParams are the workflow_parameters of a map_reduce agent.
type MapReduceParams struct {
	Type     string            `mapstructure:"type"`
	Splitter string            `mapstructure:"splitter"`
	Reducer  string            `mapstructure:"reducer"`
	Mapper   string            `mapstructure:"mapper"`
	Mappers  map[string]string `mapstructure:"mappers"`
}

// DecodeMapReduceParams decodes and checks workflow parameters. Unknown keys
// are ignored.
func DecodeMapReduceParams(raw map[string]any) (MapReduceParams, error) {
	var p MapReduceParams

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &p,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return p, err
	}

	if err := dec.Decode(raw); err != nil {
		return p, fmt.Errorf("%w: %w", core.ErrWorkflowConfiguration, err)
	}

	if p.Splitter == "" || p.Reducer == "" {
		return p, fmt.Errorf("%w: map_reduce requires 'splitter' and 'reducer'", core.ErrWorkflowConfiguration)
	}

	return p, nil
}

// Worker selects the agent for a task: the mapping for workerType, else the
// default mapper. Empty means no worker.
func (p MapReduceParams) Worker(workerType string) string {
	if w := p.Mappers[workerType]; w != "" {
		return w
	}

	return p.Mapper
}

func (e *Engine) runWorkflow(ctx context.Context, cfg core.AgentConfig, args map[string]any) (string, error) {
	switch t := cfg.WorkflowType(); t {
	case WorkflowMapReduce:
		return e.mapReduce(ctx, cfg, workflowInput(args))
	default:
		return "", fmt.Errorf("%w: %s", core.ErrUnknownWorkflowType, t)
	}
}

func workflowInput(args map[string]any) string {
	if v, ok := args["input"]; ok {
		return fmt.Sprint(v)
	}

	return fmt.Sprint(args)
}

// mapReduce splits input into tasks, runs every task on its worker under the
// limiter and reduces the joined results. Task results keep the splitter's
// order.
func (e *Engine) mapReduce(ctx context.Context, cfg core.AgentConfig, input string) (string, error) {
	params, err := DecodeMapReduceParams(cfg.WorkflowParameters)
	if err != nil {
		return "", err
	}

	start := e.now()

	splitter, ok := e.Agent(ctx, params.Splitter)
	if !ok {
		return "", fmt.Errorf("%w: splitter agent %q not found", core.ErrWorkflowConfiguration, params.Splitter)
	}

	var split SplitterOutput
	if err := splitter.RunStructured(ctx, input, &split); err != nil {
		return "", err
	}

	results := make([]string, len(split.Tasks))

	g, gctx := errgroup.WithContext(ctx)

	for i, task := range split.Tasks {
		g.Go(func() error {
			res, err := e.runTask(gctx, cfg.Name, params, task)
			if err != nil {
				return err
			}

			results[i] = res

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		e.logger.Warn("engine.workflow.failed", "workflow", cfg.Name, "stage", "map", "error", err.Error())
		return "", err
	}

	reducer, ok := e.Agent(ctx, params.Reducer)
	if !ok {
		return "", fmt.Errorf("%w: reducer agent %q not found", core.ErrWorkflowConfiguration, params.Reducer)
	}

	out, err := reducer.Run(leaveAsyncScope(ctx), strings.Join(results, "\n\n"))
	if err != nil {
		return "", err
	}

	if ol, ok := e.logger.(logging.OutcomeLogger); ok {
		ol.LogWorkflow(WorkflowMapReduce, len(split.Tasks), e.now().Sub(start), nil)
		return out, nil
	}

	e.logger.Info("engine.workflow.completed",
		"workflow", cfg.Name,
		"tasks", len(split.Tasks),
		"duration_ms", e.now().Sub(start).Milliseconds(),
	)

	return out, nil
}

func (e *Engine) runTask(ctx context.Context, workflow string, params MapReduceParams, task TaskItem) (string, error) {
	var (
		res string
		err error
	)

	switch name := params.Worker(task.WorkerType); {
	case name == "":
		res = NoWorkerResult
	default:
		worker, ok := e.Agent(ctx, name)
		if !ok {
			res = fmt.Sprintf("Error: worker %s not found", name)
			break
		}

		err = e.limiter.Do(ctx, func(ctx context.Context) error {
			out, runErr := worker.RunWithArgs(leaveAsyncScope(ctx), task.Arguments)
			res = out

			return runErr
		})
	}

	e.metrics.ObserveTask(workflow, err)

	if err != nil {
		return "", err
	}

	if cbErr := e.callbacks.ExecuteCallbacks(ctx, CallbackAfterTask, &CallbackContext{
		Agent:    workflow,
		Args:     task.Arguments,
		Result:   res,
		Metadata: map[string]any{"worker_type": task.WorkerType},
	}); cbErr != nil {
		e.logger.Warn("engine.callback.failed", "callback", string(CallbackAfterTask), "error", cbErr.Error())
	}

	return res, nil
}
