// Package dispatch routes negotiated tool traffic to the registry: lookup,
// argument validation, handler invocation and response packaging.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/SystemSolution21/adk-mcp/internal/logctx"
	"github.com/SystemSolution21/adk-mcp/internal/validation"
	"github.com/SystemSolution21/adk-mcp/protocol"
	"github.com/SystemSolution21/adk-mcp/registry"
)

// ErrCallTimeout is the cause attached to handler contexts that exceed the
// configured per-call timeout.
var ErrCallTimeout = errors.New("tool call timed out")

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger overrides the logger (default slog.Default()).
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.log = l
		}
	}
}

// WithCallTimeout bounds every handler invocation. Zero disables the bound.
func WithCallTimeout(timeout time.Duration) Option {
	return func(d *Dispatcher) { d.timeout = timeout }
}

// Dispatcher executes calls against a registry. It holds no per-session
// state and is safe for concurrent use.
type Dispatcher struct {
	reg     *registry.Registry
	log     *slog.Logger
	timeout time.Duration
}

// New returns a Dispatcher over reg.
func New(reg *registry.Registry, opts ...Option) *Dispatcher {
	d := &Dispatcher{reg: reg, log: slog.Default()}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// ListTools answers a list_tools request, echoing its id.
func (d *Dispatcher) ListTools(ctx context.Context, req *protocol.ToolListRequest) *protocol.ToolListResponse {
	tools := d.reg.List()
	d.log.DebugContext(ctx, "dispatch.list_tools.ok", slog.Int("tool_count", len(tools)))
	return &protocol.ToolListResponse{ID: req.ID, Tools: tools}
}

// Call executes req and returns exactly one response correlated to req.ID.
// Every failure is reported in the response; none is session-fatal.
func (d *Dispatcher) Call(ctx context.Context, req *protocol.CallRequest) *protocol.CallResponse {
	start := time.Now()
	ctx = logctx.WithToolCallData(ctx, &logctx.ToolCallData{ToolName: req.Tool})

	desc, h, err := d.reg.Lookup(req.Tool)
	if err != nil {
		d.log.InfoContext(ctx, "dispatch.call.unknown_tool", slog.Int64("dur_ms", time.Since(start).Milliseconds()))
		return protocol.Failure(req.ID, err)
	}

	if err := validation.Check(req.Tool, desc.InputSchema, req.Arguments); err != nil {
		d.log.InfoContext(ctx, "dispatch.call.invalid", slog.String("err", err.Error()), slog.Int64("dur_ms", time.Since(start).Milliseconds()))
		return protocol.Failure(req.ID, err)
	}

	v, err := d.invoke(ctx, req.Tool, h, req.Arguments)
	if err != nil {
		d.log.ErrorContext(ctx, "dispatch.call.fail", slog.String("err", err.Error()), slog.Int64("dur_ms", time.Since(start).Milliseconds()))
		return protocol.Failure(req.ID, err)
	}

	d.log.InfoContext(ctx, "dispatch.call.ok", slog.Int64("dur_ms", time.Since(start).Milliseconds()))
	return protocol.Success(req.ID, v)
}

func (d *Dispatcher) invoke(ctx context.Context, tool string, h registry.Handler, args protocol.Arguments) (v protocol.Value, err error) {
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeoutCause(ctx, d.timeout, ErrCallTimeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			d.log.ErrorContext(ctx, "dispatch.call.panic", slog.Any("panic", r), slog.String("stack", string(debug.Stack())))
			v, err = protocol.Value{}, &protocol.DomainError{Tool: tool, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	v, err = h.Call(ctx, args)
	if err == nil {
		return v, nil
	}
	if cause := context.Cause(ctx); errors.Is(cause, ErrCallTimeout) {
		err = fmt.Errorf("%w: %w", ErrCallTimeout, err)
	}
	// Handlers may report a validation problem themselves; keep that
	// classification. Everything else is a domain failure.
	var ave *protocol.ArgumentValidationError
	if errors.As(err, &ave) {
		return protocol.Value{}, err
	}
	return protocol.Value{}, &protocol.DomainError{Tool: tool, Err: err}
}
