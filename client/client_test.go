package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/SystemSolution21/adk-mcp/internal/logctx"
	"github.com/SystemSolution21/adk-mcp/protocol"
	"github.com/SystemSolution21/adk-mcp/registry"
	"github.com/SystemSolution21/adk-mcp/stdio"
)

const helperEnv = "ADK_MCP_CLIENT_HELPER"

func TestMain(m *testing.M) {
	if os.Getenv(helperEnv) == "1" {
		os.Exit(runHelperServer())
	}
	os.Exit(m.Run())
}

// runHelperServer serves the echo registry over the process's stdio; used as
// the subprocess in TestLaunch.
func runHelperServer() int {
	reg, err := testRegistry()
	if err != nil {
		return 2
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if err := stdio.NewHandler(reg, stdio.WithLogger(logger)).Serve(context.Background()); err != nil {
		return 1
	}
	return 0
}

func testRegistry() (*registry.Registry, error) {
	type echoArgs struct {
		Text string `json:"text"`
	}
	return registry.New(
		registry.NewTool("echo", func(_ context.Context, a echoArgs) (any, error) {
			return a.Text, nil
		}, registry.WithDescription("Echo the input text")),
		registry.NewTool("fail", func(_ context.Context, _ struct{}) (any, error) {
			return nil, errors.New("always fails")
		}),
	)
}

// newPair connects a Client to an in-process stdio server.
func newPair(t *testing.T, opts ...stdio.Option) *Client {
	t.Helper()
	reg, err := testRegistry()
	require.NoError(t, err)

	inR, inW := io.Pipe()
	outR, outW := io.Pipe()

	h := stdio.NewHandler(reg, append([]stdio.Option{
		stdio.WithIO(inR, outW),
		stdio.WithUserProvider(stdio.StaticUserProvider("tester")),
	}, opts...)...)

	served := make(chan error, 1)
	go func() {
		served <- h.Serve(context.Background())
		_ = outW.Close()
	}()

	c := New(outR, inW, withCloser(func() error {
		select {
		case err := <-served:
			return err
		case <-time.After(2 * time.Second):
			return errors.New("server did not stop")
		}
	}))
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestClient_InitializeListCall(t *testing.T) {
	ctx := context.Background()
	c := newPair(t)

	ack, err := c.Initialize(ctx, "1.0")
	require.NoError(t, err)
	require.Equal(t, "1.0", ack.ProtocolVersion)
	require.Equal(t, []string{"tools"}, ack.ServerCapabilities)
	require.Len(t, ack.Tools, 2)
	require.Same(t, ack, c.Negotiated())

	tools, err := c.ListTools(ctx)
	require.NoError(t, err)
	require.Equal(t, ack.Tools, tools)

	v, err := c.Call(ctx, "echo", protocol.Arguments{"text": protocol.String("hi")})
	require.NoError(t, err)
	s, ok := v.AsString()
	require.True(t, ok)
	require.Equal(t, "hi", s)

	require.NoError(t, c.Close())
}

func TestClient_CallErrors(t *testing.T) {
	ctx := context.Background()
	c := newPair(t)
	_, err := c.Initialize(ctx, "1.0")
	require.NoError(t, err)

	tests := []struct {
		tool string
		args protocol.Arguments
		kind protocol.ErrorKind
	}{
		{tool: "missing", kind: protocol.KindUnknownTool},
		{tool: "echo", args: protocol.Arguments{"text": protocol.Int(1)}, kind: protocol.KindArgumentValidation},
		{tool: "fail", kind: protocol.KindDomain},
	}
	for _, tt := range tests {
		t.Run(tt.tool, func(t *testing.T) {
			_, err := c.Call(ctx, tt.tool, tt.args)
			var ce *CallError
			require.True(t, errors.As(err, &ce), "got %v", err)
			require.Equal(t, tt.kind, ce.ErrorKind)
			require.Equal(t, tt.tool, ce.Tool)
			require.Equal(t, tt.kind, protocol.KindOf(err))
		})
	}
}

func TestClient_RequiresInitialize(t *testing.T) {
	c := newPair(t)
	_, err := c.Call(context.Background(), "echo", nil)
	require.ErrorIs(t, err, ErrNotInitialized)
	_, err = c.ListTools(context.Background())
	require.ErrorIs(t, err, ErrNotInitialized)
}

func TestClient_VersionMismatch(t *testing.T) {
	c := newPair(t)
	_, err := c.Initialize(context.Background(), "9.0")

	var ne *NoticeError
	require.True(t, errors.As(err, &ne), "got %v", err)
	require.Equal(t, protocol.KindVersionMismatch, ne.ErrorKind)

	_, err = c.Initialize(context.Background(), "1.0")
	require.ErrorIs(t, err, ErrAlreadyInitialized)
}

func TestClient_ConcurrentCallsPipelined(t *testing.T) {
	ctx := context.Background()
	c := newPair(t, stdio.WithPipelining(4))
	ack, err := c.Initialize(ctx, "1.0", protocol.CapabilityTools, protocol.CapabilityPipelining)
	require.NoError(t, err)
	require.Contains(t, ack.ServerCapabilities, protocol.CapabilityPipelining)

	var wg sync.WaitGroup
	for i := range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			want := fmt.Sprintf("msg-%d", i)
			v, err := c.Call(ctx, "echo", protocol.Arguments{"text": protocol.String(want)})
			if err != nil {
				t.Errorf("call %d: %v", i, err)
				return
			}
			if got, _ := v.AsString(); got != want {
				t.Errorf("call %d: got %q", i, got)
			}
		}()
	}
	wg.Wait()
}

func TestClient_CloseFailsLaterCalls(t *testing.T) {
	ctx := context.Background()
	c := newPair(t)
	_, err := c.Initialize(ctx, "1.0")
	require.NoError(t, err)

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	_, err = c.Call(ctx, "echo", protocol.Arguments{"text": protocol.String("late")})
	require.ErrorIs(t, err, ErrClosed)
}

func TestLaunch(t *testing.T) {
	if testing.Short() {
		t.Skip("spawns a subprocess")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	c, err := Launch(ctx, os.Args[0], nil, WithEnv(helperEnv+"=1"), WithStderr(io.Discard))
	require.NoError(t, err)

	_, err = c.Initialize(ctx, "1.0")
	require.NoError(t, err)

	v, err := c.Call(ctx, "echo", protocol.Arguments{"text": protocol.String("from subprocess")})
	require.NoError(t, err)
	s, _ := v.AsString()
	require.Equal(t, "from subprocess", s)

	require.NoError(t, c.Close())
}

func TestLaunch_MissingBinary(t *testing.T) {
	_, err := Launch(context.Background(), "/nonexistent/adk-mcp-server", nil)
	require.Error(t, err)
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

func TestClient_NoticeLoggedWithMessage(t *testing.T) {
	var logs strings.Builder
	logger := slog.New(logctx.Handler{Handler: slog.NewJSONHandler(&logs, nil)})

	in := strings.NewReader(`{"type":"error","id":"7","error":{"kind":"ProtocolSequenceError","message":"bad"}}` + "\n")
	c := New(in, nopWriteCloser{io.Discard}, WithLogger(logger))
	require.NoError(t, c.Close())

	out := logs.String()
	require.Contains(t, out, `"msg":"client.notice"`)
	require.Contains(t, out, `"msg":{"type":"error","id":"7"}`)
}
