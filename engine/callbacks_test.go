package engine

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentforge/core"
	"github.com/hupe1980/agentforge/logging"
)

// ----- CallbackManager Tests -----

func TestCallbackManager_OrderAndStop(t *testing.T) {
	cm := NewCallbackManager()

	var order []string

	cm.RegisterCallback(NewFunctionCallback(CallbackBeforeAgent, func(context.Context, *CallbackContext) error {
		order = append(order, "first")
		return nil
	}))
	cm.RegisterCallback(NewFunctionCallback(CallbackBeforeAgent, func(context.Context, *CallbackContext) error {
		order = append(order, "second")
		return errors.New("stop")
	}))
	cm.RegisterCallback(NewFunctionCallback(CallbackBeforeAgent, func(context.Context, *CallbackContext) error {
		order = append(order, "third")
		return nil
	}))

	err := cm.ExecuteCallbacks(context.Background(), CallbackBeforeAgent, &CallbackContext{})
	require.EqualError(t, err, "stop")
	assert.Equal(t, []string{"first", "second"}, order)

	require.NoError(t, cm.ExecuteCallbacks(context.Background(), CallbackAfterAgent, &CallbackContext{}))

	var nilManager *CallbackManager
	require.NoError(t, nilManager.ExecuteCallbacks(context.Background(), CallbackAfterAgent, &CallbackContext{}))
}

func TestCallbacks_BeforeAgentAborts(t *testing.T) {
	f := newFixture(t)

	f.engine.callbacks.RegisterCallback(NewFunctionCallback(CallbackBeforeAgent, func(_ context.Context, c *CallbackContext) error {
		if c.Agent == "blocked" {
			return errors.New("blocked by policy")
		}

		return nil
	}))

	a := f.declare(t, invokeIface("blocked"), nil)

	_, err := a.Run(context.Background(), "x")
	require.EqualError(t, err, "blocked by policy")
	assert.Empty(t, f.Specs())
}

func TestCallbacks_AfterAgentAndOnError(t *testing.T) {
	f := newFixture(t)
	f.stub.reply = func([]core.Message) string { return "fine" }

	var (
		results []any
		errs    []error
	)

	f.engine.callbacks.RegisterCallback(NewFunctionCallback(CallbackAfterAgent, func(_ context.Context, c *CallbackContext) error {
		results = append(results, c.Result)
		return errors.New("ignored")
	}))
	f.engine.callbacks.RegisterCallback(NewFunctionCallback(CallbackOnError, func(_ context.Context, c *CallbackContext) error {
		errs = append(errs, c.Err)
		return nil
	}))

	a := f.declare(t, invokeIface("greeter"), nil)

	out, err := a.Run(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, "fine", out)
	assert.Equal(t, []any{"fine"}, results)

	f.stub.err = errors.New("down")

	_, err = a.Run(context.Background(), "x")
	require.Error(t, err)
	require.Len(t, errs, 1)
	assert.EqualError(t, errs[0], "down")
}

func TestLoggingCallback(t *testing.T) {
	var buf bytes.Buffer

	logger := logging.NewSlogAdapter(slog.New(slog.NewJSONHandler(&buf, nil)))
	cb := NewLoggingCallback(CallbackOnError, logger)

	assert.Equal(t, CallbackOnError, cb.Type())
	require.NoError(t, cb.Execute(context.Background(), &CallbackContext{Agent: "greeter", Method: "invoke", Err: errors.New("boom")}))

	assert.Contains(t, buf.String(), `"agent":"greeter"`)
	assert.Contains(t, buf.String(), `"error":"boom"`)
	assert.Contains(t, buf.String(), `"level":"WARN"`)
}
