package tool

import (
	"context"
	"fmt"

	"github.com/hupe1980/agentforge/internal/util"
)

// Handler is the executable part of a tool class.
type Handler interface {
	Call(ctx context.Context, args map[string]any) (any, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, args map[string]any) (any, error)

// Call implements Handler.
func (f HandlerFunc) Call(ctx context.Context, args map[string]any) (any, error) { return f(ctx, args) }

// Class is a declared tool carrying its metadata statically. It is
// registered once and instantiated each time an agent resolves it.
type Class struct {
	Name        string
	Description string
	// Args is a prototype struct the argument schema is reflected from.
	Args any
	// New builds a fresh handler instance.
	New func() (Handler, error)
}

// SourceName implements Source.
func (c *Class) SourceName() string { return c.Name }

func (*Class) isSource() {}

// Instantiate creates a Wrapper around a fresh handler.
func (c *Class) Instantiate() (*Wrapper, error) {
	if c.New == nil {
		return nil, fmt.Errorf("tool %s must provide a handler constructor", c.Name)
	}

	h, err := c.New()
	if err != nil {
		return nil, fmt.Errorf("instantiate tool %s: %w", c.Name, err)
	}

	if h == nil {
		return nil, fmt.Errorf("tool %s constructor returned nil handler", c.Name)
	}

	return &Wrapper{class: c, handler: h, schema: util.CreateSchema(c.Args)}, nil
}

// Wrapper is an instantiated tool class in uniform tool shape.
type Wrapper struct {
	class   *Class
	handler Handler
	schema  map[string]any
}

// Name implements Tool.
func (w *Wrapper) Name() string { return w.class.Name }

// Description implements Tool.
func (w *Wrapper) Description() string { return w.class.Description }

// Parameters implements Tool.
func (w *Wrapper) Parameters() map[string]any { return w.schema }

// Call implements Tool.
func (w *Wrapper) Call(ctx context.Context, args map[string]any) (any, error) {
	return invoke(ctx, w.class.Name, w.schema, args, w.handler.Call)
}

// Kind implements Ref.
func (*Wrapper) Kind() Kind { return KindPrimitive }

// SourceName implements Source.
func (w *Wrapper) SourceName() string { return w.class.Name }

func (*Wrapper) isSource() {}
