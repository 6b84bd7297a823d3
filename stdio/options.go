package stdio

import (
	"io"
	"log/slog"
	"time"

	"github.com/SystemSolution21/adk-mcp/journal"
	"github.com/SystemSolution21/adk-mcp/protocol"
)

// Option customizes a Handler.
type Option func(*Handler)

// WithIO sets the reader and writer for the handler.
func WithIO(r io.Reader, w io.Writer) Option {
	return func(h *Handler) {
		WithReader(r)(h)
		WithWriter(w)(h)
	}
}

// WithReader overrides the input stream.
func WithReader(r io.Reader) Option {
	return func(h *Handler) {
		if r != nil {
			h.r = r
		}
	}
}

// WithWriter overrides the output stream.
func WithWriter(w io.Writer) Option {
	return func(h *Handler) {
		if w != nil {
			h.w = w
		}
	}
}

// WithLogger overrides the logger.
func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) {
		if l != nil {
			h.l = l
		}
	}
}

// WithUserProvider overrides the user provider used to label the session.
func WithUserProvider(up UserProvider) Option {
	return func(h *Handler) {
		if up != nil {
			h.userProvider = up
		}
	}
}

// WithMaxFrameSize bounds the size of a single inbound frame.
func WithMaxFrameSize(n int) Option {
	return func(h *Handler) {
		if n > 0 {
			h.maxFrameSize = n
		}
	}
}

// WithPipelining offers the "pipelining" capability. When the client also
// requests it, up to maxInFlight calls run concurrently; responses are still
// written in arrival order. A non-positive maxInFlight selects
// DefaultMaxInFlight.
func WithPipelining(maxInFlight int) Option {
	return func(h *Handler) {
		h.pipelining = true
		if maxInFlight > 0 {
			h.maxInFlight = maxInFlight
		}
	}
}

// WithCallTimeout bounds each handler invocation.
func WithCallTimeout(d time.Duration) Option {
	return func(h *Handler) { h.callTimeout = d }
}

// WithJournal records every completed call into j.
func WithJournal(j journal.Journal) Option {
	return func(h *Handler) { h.journal = j }
}

// WithServerVersion overrides the protocol version the server speaks.
func WithServerVersion(v protocol.Version) Option {
	return func(h *Handler) { h.version = v }
}
