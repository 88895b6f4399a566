package engine

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// FetchFunc is the callback type wrapped by FuncEngine.
type FetchFunc func(ctx context.Context, req *FetchRequest) *AttemptResult

// FuncEngine adapts a plain function to the Engine interface. It lets
// callers plug a tier in without importing its package.
type FuncEngine struct {
	name string
	fn   FetchFunc
}

// NewFuncEngine creates a FuncEngine.
func NewFuncEngine(name string, fn FetchFunc) *FuncEngine {
	return &FuncEngine{name: name, fn: fn}
}

func (e *FuncEngine) Name() string { return e.name }

func (e *FuncEngine) Fetch(ctx context.Context, req *FetchRequest) *AttemptResult {
	start := time.Now()
	var res *AttemptResult
	if e.fn == nil {
		res = failure(StatusHardFailure, ErrRenderingFailed, Metadata{},
			fmt.Errorf("%s: fetch func not configured", e.name))
	} else {
		res = e.fn(ctx, req)
	}
	if res == nil {
		res = failure(StatusHardFailure, ErrRenderingFailed, Metadata{},
			fmt.Errorf("%s: no result", e.name))
	}
	if res.Meta.Engine == "" {
		res.Meta.Engine = e.name
	}
	if res.Meta.Elapsed == 0 {
		res.Meta.Elapsed = time.Since(start)
	}
	return res
}

// ErrRenderingDisabled is reported by DisabledRenderer.
var ErrRenderingDisabled = errors.New("browser rendering is disabled")

// DisabledRenderer is a renderer tier that always fails. Used when the
// browser is turned off in configuration.
func DisabledRenderer() *FuncEngine {
	return NewFuncEngine("rod", func(_ context.Context, _ *FetchRequest) *AttemptResult {
		return failure(StatusHardFailure, ErrRenderingFailed, Metadata{}, ErrRenderingDisabled)
	})
}
