// Package client speaks the tool protocol to a server over a byte stream,
// typically the stdin/stdout of a server subprocess started with Launch.
//
// Requests may be issued concurrently; responses are correlated by id, so a
// Client works the same against sequential and pipelined servers.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"github.com/oklog/ulid/v2"
	"golang.org/x/sync/errgroup"

	"github.com/SystemSolution21/adk-mcp/internal/framing"
	"github.com/SystemSolution21/adk-mcp/internal/logctx"
	"github.com/SystemSolution21/adk-mcp/protocol"
)

var (
	// ErrClosed indicates the client is closed.
	ErrClosed = errors.New("client closed")
	// ErrNotInitialized is returned by requests issued before Initialize.
	ErrNotInitialized = errors.New("client not initialized")
	// ErrAlreadyInitialized is returned by a second Initialize.
	ErrAlreadyInitialized = errors.New("client already initialized")
)

// Option configures a Client.
type Option func(*Client)

// WithLogger overrides the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// WithMaxFrameSize bounds the size of a single inbound frame.
func WithMaxFrameSize(n int) Option {
	return func(c *Client) { c.maxFrameSize = n }
}

// withCloser runs fn during Close, after the request stream is closed.
func withCloser(fn func() error) Option {
	return func(c *Client) { c.closer = fn }
}

// initKey keys the pending handshake; init carries no correlation id.
var initKey = protocol.ID{}

type pendingCall struct {
	respCh chan protocol.Message
	errCh  chan error
}

// Client is a protocol client. It is safe for concurrent use.
type Client struct {
	w            io.WriteCloser
	enc          *framing.Encoder
	dec          *framing.Decoder
	log          *slog.Logger
	maxFrameSize int
	closer       func() error

	mu          sync.Mutex
	pending     map[protocol.ID]*pendingCall
	initialized bool
	ack         *protocol.HandshakeResponse

	g        errgroup.Group
	closed   atomic.Bool
	closeErr error
	closeMu  sync.Once
}

// New constructs a Client reading responses from r and writing requests to
// w. Closing the client closes w, which signals EOF to the server.
func New(r io.Reader, w io.WriteCloser, opts ...Option) *Client {
	c := &Client{
		w:            w,
		enc:          framing.NewEncoder(w),
		log:          slog.Default(),
		maxFrameSize: framing.DefaultMaxFrameSize,
		pending:      make(map[protocol.ID]*pendingCall),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.dec = framing.NewDecoder(r, framing.WithMaxFrameSize(c.maxFrameSize))
	c.g.Go(c.readLoop)
	return c
}

// Initialize performs the handshake and returns the server's init_ack.
func (c *Client) Initialize(ctx context.Context, version string, capabilities ...string) (*protocol.HandshakeResponse, error) {
	c.mu.Lock()
	if c.initialized {
		c.mu.Unlock()
		return nil, ErrAlreadyInitialized
	}
	c.initialized = true
	c.mu.Unlock()

	if capabilities == nil {
		capabilities = []string{protocol.CapabilityTools}
	}
	msg, err := c.roundTrip(ctx, initKey, &protocol.HandshakeRequest{ProtocolVersion: version, ClientCapabilities: capabilities})
	if err != nil {
		return nil, err
	}
	ack, ok := msg.(*protocol.HandshakeResponse)
	if !ok {
		return nil, fmt.Errorf("unexpected %s response to init", msg.MessageType())
	}
	c.mu.Lock()
	c.ack = ack
	c.mu.Unlock()
	return ack, nil
}

// Negotiated returns the server's init_ack, or nil before Initialize completes.
func (c *Client) Negotiated() *protocol.HandshakeResponse {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ack
}

// ListTools fetches the server's catalog.
func (c *Client) ListTools(ctx context.Context) ([]protocol.ToolDescriptor, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	id := newID()
	msg, err := c.roundTrip(ctx, id, &protocol.ToolListRequest{ID: id})
	if err != nil {
		return nil, err
	}
	res, ok := msg.(*protocol.ToolListResponse)
	if !ok {
		return nil, fmt.Errorf("unexpected %s response to list_tools", msg.MessageType())
	}
	return res.Tools, nil
}

// Call invokes tool with args. A response with ok:false is returned as a
// *CallError.
func (c *Client) Call(ctx context.Context, tool string, args protocol.Arguments) (protocol.Value, error) {
	if err := c.ready(); err != nil {
		return protocol.Value{}, err
	}
	if args == nil {
		args = protocol.Arguments{}
	}
	id := newID()
	msg, err := c.roundTrip(ctx, id, &protocol.CallRequest{ID: id, Tool: tool, Arguments: args})
	if err != nil {
		return protocol.Value{}, err
	}
	res, ok := msg.(*protocol.CallResponse)
	if !ok {
		return protocol.Value{}, fmt.Errorf("unexpected %s response to call", msg.MessageType())
	}
	if !res.OK {
		return protocol.Value{}, &CallError{ID: id.String(), Tool: tool, ErrorKind: res.Error.Kind, Message: res.Error.Message}
	}
	return res.Value, nil
}

// Close closes the request stream, waits for the server to close its side
// and fails any pending requests with ErrClosed. It is safe to call more
// than once.
func (c *Client) Close() error {
	var err error
	c.closeMu.Do(func() {
		werr := c.w.Close()
		var cerr error
		if c.closer != nil {
			cerr = c.closer()
		}
		rerr := c.g.Wait()
		c.fail(ErrClosed)
		if cerr != nil {
			err = cerr
			return
		}
		if rerr != nil {
			err = rerr
			return
		}
		err = werr
	})
	return err
}

func (c *Client) ready() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ack == nil {
		return ErrNotInitialized
	}
	return nil
}

func (c *Client) roundTrip(ctx context.Context, id protocol.ID, req protocol.Message) (protocol.Message, error) {
	pc := &pendingCall{respCh: make(chan protocol.Message, 1), errCh: make(chan error, 1)}
	c.mu.Lock()
	if c.closed.Load() {
		c.mu.Unlock()
		return nil, c.closedErr()
	}
	c.pending[id] = pc
	c.mu.Unlock()

	if err := c.enc.Encode(req); err != nil {
		c.forget(id)
		return nil, fmt.Errorf("send %s: %w", req.MessageType(), err)
	}

	select {
	case resp := <-pc.respCh:
		return resp, nil
	case err := <-pc.errCh:
		return nil, err
	case <-ctx.Done():
		c.forget(id)
		return nil, ctx.Err()
	}
}

func (c *Client) forget(id protocol.ID) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

func (c *Client) readLoop() error {
	for {
		msg, err := c.dec.Next()
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, os.ErrClosed) {
				c.fail(ErrClosed)
				return nil
			}
			c.fail(err)
			return err
		}
		c.deliver(c.logContext(msg), msg)
	}
}

// logContext decorates records about msg with its type and id.
func (c *Client) logContext(msg protocol.Message) context.Context {
	var id protocol.ID
	switch m := msg.(type) {
	case *protocol.ToolListResponse:
		id = m.ID
	case *protocol.CallResponse:
		id = m.ID
	case *protocol.ErrorNotice:
		id = m.ID
	}
	return logctx.WithMessage(context.Background(), &logctx.Message{Type: string(msg.MessageType()), ID: id.String()})
}

func (c *Client) deliver(ctx context.Context, msg protocol.Message) {
	var id protocol.ID
	switch m := msg.(type) {
	case *protocol.HandshakeResponse:
		id = initKey
	case *protocol.ToolListResponse:
		id = m.ID
	case *protocol.CallResponse:
		id = m.ID
	case *protocol.ErrorNotice:
		// A notice ends the session; fail everything waiting.
		c.log.WarnContext(ctx, "client.notice", slog.String("kind", string(m.Error.Kind)), slog.String("message", m.Error.Message))
		c.fail(&NoticeError{ErrorKind: m.Error.Kind, Message: m.Error.Message})
		return
	default:
		c.log.WarnContext(ctx, "client.unexpected_message", slog.String("type", string(msg.MessageType())))
		return
	}

	c.mu.Lock()
	pc, ok := c.pending[id]
	if ok {
		delete(c.pending, id)
	}
	c.mu.Unlock()
	if !ok {
		c.log.DebugContext(ctx, "client.unmatched_response", slog.String("id", id.String()))
		return
	}
	pc.respCh <- msg
}

// fail cancels all pending requests with err and prevents new ones.
func (c *Client) fail(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed.CompareAndSwap(false, true) {
		c.closeErr = err
	}
	for id, pc := range c.pending {
		delete(c.pending, id)
		pc.errCh <- err
	}
}

func (c *Client) closedErr() error {
	if c.closeErr != nil {
		return c.closeErr
	}
	return ErrClosed
}

func newID() protocol.ID {
	return protocol.NewID(ulid.Make().String())
}
