package stdio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/SystemSolution21/adk-mcp/internal/dispatch"
	"github.com/SystemSolution21/adk-mcp/internal/framing"
	"github.com/SystemSolution21/adk-mcp/internal/handshake"
	"github.com/SystemSolution21/adk-mcp/internal/logctx"
	"github.com/SystemSolution21/adk-mcp/journal"
	"github.com/SystemSolution21/adk-mcp/protocol"
	"github.com/SystemSolution21/adk-mcp/registry"
)

// DefaultMaxInFlight bounds concurrent calls in pipelined sessions.
const DefaultMaxInFlight = 8

// ErrAlreadyServed is returned by a second call to Serve.
var ErrAlreadyServed = errors.New("stdio: handler already served its session")

// State is the lifecycle position of the session.
type State int32

const (
	StateAwaitingHandshake State = iota
	StateReady
	StateDraining
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateAwaitingHandshake:
		return "awaiting_handshake"
	case StateReady:
		return "ready"
	case StateDraining:
		return "draining"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Handler is a single-connection stdio transport that reads protocol frames
// from an io.Reader and writes responses to an io.Writer. By default, it uses
// os.Stdin and os.Stdout.
type Handler struct {
	reg *registry.Registry

	r            io.Reader
	w            io.Writer
	l            *slog.Logger
	userProvider UserProvider

	maxFrameSize int
	pipelining   bool
	maxInFlight  int
	callTimeout  time.Duration
	journal      journal.Journal
	version      protocol.Version

	state  atomic.Int32
	served atomic.Bool
}

// NewHandler constructs a stdio Handler serving reg and applies options.
func NewHandler(reg *registry.Registry, opts ...Option) *Handler {
	h := &Handler{
		reg:          reg,
		r:            os.Stdin,
		w:            os.Stdout,
		l:            slog.Default(),
		userProvider: OSUserProvider{},
		maxFrameSize: framing.DefaultMaxFrameSize,
		maxInFlight:  DefaultMaxInFlight,
		version:      protocol.CurrentVersion,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// State reports the session state.
func (h *Handler) State() State { return State(h.state.Load()) }

// Serve runs the session until EOF on the reader, a fatal protocol error or
// cancellation of ctx. It is safe to call at most once per Handler. The
// registry is sealed before the first frame is read.
//
// A clean EOF returns nil. Framing faults are returned without notifying the
// peer; sequence and version faults are reported to the peer with an error
// notice first.
func (h *Handler) Serve(ctx context.Context) error {
	if !h.served.CompareAndSwap(false, true) {
		return ErrAlreadyServed
	}
	h.reg.Seal()

	s := &session{
		h:   h,
		id:  uuid.NewString(),
		log: h.l,
		enc: framing.NewEncoder(h.w),
		dec: framing.NewDecoder(h.r, framing.WithMaxFrameSize(h.maxFrameSize)),
	}
	caps := []string{}
	if h.pipelining {
		caps = append(caps, protocol.CapabilityPipelining)
	}
	s.coord = handshake.New(handshake.WithVersion(h.version), handshake.WithCapabilities(caps...))
	s.disp = dispatch.New(h.reg, dispatch.WithLogger(h.l), dispatch.WithCallTimeout(h.callTimeout))

	if uid, err := h.userProvider.CurrentUserID(); err == nil {
		s.userID = uid
	} else {
		h.l.WarnContext(ctx, "session.user.fail", slog.String("err", err.Error()))
	}

	start := time.Now()
	h.l.InfoContext(s.logContext(ctx), "session.start", slog.Int("tool_count", h.reg.Len()))

	err := s.run(ctx)
	h.state.Store(int32(StateClosed))

	if err != nil {
		h.l.ErrorContext(s.logContext(ctx), "session.end.fail", slog.String("err", err.Error()), slog.Int64("dur_ms", time.Since(start).Milliseconds()))
		return err
	}
	h.l.InfoContext(s.logContext(ctx), "session.end.ok", slog.Int64("dur_ms", time.Since(start).Milliseconds()))
	return nil
}

type frame struct {
	msg protocol.Message
	err error
}

// session holds the state of one Serve call. Fields other than pipe's
// internals are owned by the run goroutine.
type session struct {
	h      *Handler
	id     string
	userID string
	log    *slog.Logger

	enc   *framing.Encoder
	dec   *framing.Decoder
	coord *handshake.Coordinator
	disp  *dispatch.Dispatcher

	version string
	base    context.Context // run context, before per-message decoration
	cancel  context.CancelCauseFunc
	pipe    *pipeline
}

func (s *session) setState(st State) { s.h.state.Store(int32(st)) }

func (s *session) logContext(ctx context.Context) context.Context {
	return logctx.WithSessionData(ctx, &logctx.SessionData{
		SessionID:       s.id,
		UserID:          s.userID,
		ProtocolVersion: s.version,
		State:           s.h.State().String(),
	})
}

func (s *session) run(ctx context.Context) error {
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	s.base, s.cancel = ctx, cancel
	s.setState(StateAwaitingHandshake)

	frames := make(chan frame)
	go s.readLoop(ctx, frames)

	for {
		var f frame
		select {
		case <-ctx.Done():
			err := context.Cause(ctx)
			s.abort(err)
			return err
		case f = <-frames:
		}

		if f.err != nil {
			if errors.Is(f.err, io.EOF) {
				return s.drain(ctx)
			}
			s.abort(f.err)
			return f.err
		}

		if err := s.route(ctx, f.msg); err != nil {
			if !peerFault(err) {
				s.abort(err)
				return err
			}
			// The stream is still intact: answer every call already
			// dispatched, then report the fault.
			if derr := s.drain(ctx); derr != nil {
				return errors.Join(err, derr)
			}
			s.notify(ctx, f.msg, err)
			return err
		}
	}
}

func (s *session) readLoop(ctx context.Context, out chan<- frame) {
	for {
		msg, err := s.dec.Next()
		select {
		case out <- frame{msg: msg, err: err}:
		case <-ctx.Done():
			return
		}
		if err != nil {
			return
		}
	}
}

func (s *session) route(ctx context.Context, msg protocol.Message) error {
	ctx = logctx.WithMessage(s.logContext(ctx), &logctx.Message{
		Type: string(msg.MessageType()),
		ID:   idOf(msg).String(),
	})

	if s.h.State() == StateAwaitingHandshake {
		return s.handshake(ctx, msg)
	}
	if err := s.coord.Check(msg); err != nil {
		return err
	}

	switch m := msg.(type) {
	case *protocol.ToolListRequest:
		return s.respond(s.disp.ListTools(ctx, m))
	case *protocol.CallRequest:
		if s.pipe != nil {
			return s.pipe.submit(ctx, m)
		}
		start := time.Now()
		res := s.disp.Call(ctx, m)
		s.record(ctx, m, res, start)
		return s.respond(res)
	default:
		return &protocol.ProtocolSequenceError{
			State:  s.h.State().String(),
			Got:    msg.MessageType(),
			Detail: "message type is only sent by servers",
		}
	}
}

func (s *session) handshake(ctx context.Context, msg protocol.Message) error {
	start := time.Now()
	ack, err := s.coord.Accept(msg, s.h.reg.List())
	if err != nil {
		s.log.InfoContext(ctx, "session.handshake.fail", slog.String("err", err.Error()), slog.Int64("dur_ms", time.Since(start).Milliseconds()))
		return err
	}

	res, _ := s.coord.Result()
	s.version = res.Version.String()
	s.setState(StateReady)
	if err := s.enc.Encode(ack); err != nil {
		return fmt.Errorf("write init_ack: %w", err)
	}
	if res.Has(protocol.CapabilityPipelining) {
		s.pipe = newPipeline(s.base, s, s.h.maxInFlight)
	}

	s.log.InfoContext(s.logContext(ctx), "session.handshake.ok",
		slog.Any("capabilities", res.Capabilities),
		slog.Bool("pipelining", s.pipe != nil),
		slog.Int64("dur_ms", time.Since(start).Milliseconds()),
	)
	return nil
}

// respond writes m directly, or queues it behind in-flight calls when
// pipelining.
func (s *session) respond(m protocol.Message) error {
	if s.pipe != nil {
		s.pipe.enqueue(m)
		return nil
	}
	if err := s.enc.Encode(m); err != nil {
		return fmt.Errorf("write %s: %w", m.MessageType(), err)
	}
	return nil
}

func (s *session) record(ctx context.Context, req *protocol.CallRequest, res *protocol.CallResponse, start time.Time) {
	if s.h.journal == nil {
		return
	}
	e := journal.EntryFor(s.id, req, res, start)
	if err := s.h.journal.Record(context.WithoutCancel(ctx), e); err != nil {
		s.log.WarnContext(ctx, "session.journal.fail", slog.String("err", err.Error()))
	}
}

// drain waits for in-flight calls and writes their responses in order.
func (s *session) drain(ctx context.Context) error {
	if s.pipe == nil {
		return nil
	}
	s.setState(StateDraining)
	s.log.InfoContext(s.logContext(ctx), "session.drain")
	return s.pipe.close()
}

// abort cancels handler contexts and discards responses not yet written.
func (s *session) abort(cause error) {
	s.cancel(cause)
	if s.pipe != nil {
		s.pipe.aborted.Store(true)
		_ = s.pipe.close()
	}
}

// notify sends a best-effort error notice for faults the peer can act on.
func (s *session) notify(ctx context.Context, msg protocol.Message, err error) {
	if !peerFault(err) {
		return
	}
	n := &protocol.ErrorNotice{ID: idOf(msg), Error: *protocol.InfoFor(err)}
	if werr := s.enc.Encode(n); werr != nil {
		s.log.WarnContext(s.logContext(ctx), "session.notify.fail", slog.String("err", werr.Error()))
	}
}

// peerFault reports whether err is a session-fatal fault caused by the peer
// on a stream that is still usable. Framing faults get no notice: the stream
// is no longer trustworthy.
func peerFault(err error) bool {
	k := protocol.KindOf(err)
	return k.Fatal() && k != protocol.KindFraming
}

func idOf(msg protocol.Message) protocol.ID {
	switch m := msg.(type) {
	case *protocol.CallRequest:
		return m.ID
	case *protocol.ToolListRequest:
		return m.ID
	default:
		return protocol.ID{}
	}
}
