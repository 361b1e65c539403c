package model

import (
	"context"
	"errors"
	"testing"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentforge/core"
)

func textRequest(text string) Request {
	return Request{Contents: []core.Content{core.NewTextContent(core.RoleUser, text)}}
}

// ----- MockModel Tests -----

func TestMockModel_Scripted(t *testing.T) {
	m := NewMockModel("mock", "test")
	m.QueueToolCalls(core.FunctionCall{ID: "1", Name: "search", Arguments: `{"q":"go"}`})
	m.QueueText("done")

	first, err := Collect(context.Background(), m, textRequest("hi"))
	require.NoError(t, err)
	assert.Equal(t, "tool_calls", first.FinishReason)
	require.Len(t, first.Content.FunctionCalls(), 1)
	assert.Equal(t, "search", first.Content.FunctionCalls()[0].Name)

	second, err := Collect(context.Background(), m, textRequest("hi"))
	require.NoError(t, err)
	assert.Equal(t, "done", second.Content.Text())

	third, err := Collect(context.Background(), m, textRequest("hi"))
	require.NoError(t, err)
	assert.Equal(t, "Mock response to: hi", third.Content.Text())

	assert.Len(t, m.Requests(), 3)
}

func TestMockModel_CannedAndStreaming(t *testing.T) {
	m := NewMockModel("mock", "test")
	m.AddResponse("ping", "pong")

	req := textRequest("ping")
	req.Stream = true

	respCh, errCh := m.Generate(context.Background(), req)

	var partial string

	var final Response

	for r := range respCh {
		if r.Partial {
			partial += r.Content.Text()
		} else {
			final = r
		}
	}

	require.NoError(t, <-errCh)
	assert.Equal(t, "pong", partial)
	assert.Equal(t, "pong", final.Content.Text())
}

func TestCollect_Error(t *testing.T) {
	m := NewMockModel("mock", "test")
	m.QueueError(errors.New("provider down"))

	_, err := Collect(context.Background(), m, textRequest("x"))
	assert.EqualError(t, err, "provider down")
}

// ----- Middleware Tests -----

func TestWithCircuitBreaker_Opens(t *testing.T) {
	m := NewMockModel("flaky", "test")
	for range 3 {
		m.QueueError(errors.New("boom"))
	}

	wrapped := WithCircuitBreaker(m, func(o *CircuitBreakerOptions) { o.MaxFailures = 2 })

	for range 2 {
		_, err := Collect(context.Background(), wrapped, textRequest("x"))
		assert.EqualError(t, err, "boom")
	}

	_, err := Collect(context.Background(), wrapped, textRequest("x"))
	require.Error(t, err)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Len(t, m.Requests(), 2)
	assert.Equal(t, "flaky", wrapped.Info().Name)
}

func TestWithCircuitBreaker_ForwardsSuccess(t *testing.T) {
	m := NewMockModel("ok", "test")
	m.QueueText("fine")

	res, err := Collect(context.Background(), WithCircuitBreaker(m), textRequest("x"))
	require.NoError(t, err)
	assert.Equal(t, "fine", res.Content.Text())
}

func TestWithRateLimit(t *testing.T) {
	m := NewMockModel("ok", "test")
	m.QueueText("a")

	wrapped := WithRateLimit(m, 60, 1)

	res, err := Collect(context.Background(), wrapped, textRequest("x"))
	require.NoError(t, err)
	assert.Equal(t, "a", res.Content.Text())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = Collect(ctx, wrapped, textRequest("x"))
	assert.Error(t, err)
}
