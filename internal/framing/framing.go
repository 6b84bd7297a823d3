// Package framing implements newline-delimited JSON framing for protocol
// messages. Each frame is one JSON object terminated by '\n'.
package framing

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"iter"
	"sync"

	"github.com/SystemSolution21/adk-mcp/protocol"
)

// DefaultMaxFrameSize bounds a single inbound frame.
const DefaultMaxFrameSize = 4 * 1024 * 1024 // 4MB

// Encoder writes frames to an io.Writer. It is safe for concurrent use; each
// Encode call writes exactly one complete frame.
type Encoder struct {
	mu sync.Mutex
	w  io.Writer
}

// NewEncoder returns an Encoder writing to w.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w}
}

// Encode writes m as a single frame.
func (e *Encoder) Encode(m protocol.Message) error {
	b, err := protocol.Marshal(m)
	if err != nil {
		return err
	}
	b = append(b, '\n')

	e.mu.Lock()
	defer e.mu.Unlock()
	if _, err := e.w.Write(b); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// Decoder reads frames from an io.Reader. Frames may arrive split across any
// number of reads; Next only returns once a full frame is buffered.
type Decoder struct {
	r   *bufio.Reader
	max int
	buf []byte
}

// DecoderOption configures a Decoder.
type DecoderOption func(*Decoder)

// WithMaxFrameSize overrides DefaultMaxFrameSize. Non-positive values are ignored.
func WithMaxFrameSize(n int) DecoderOption {
	return func(d *Decoder) {
		if n > 0 {
			d.max = n
		}
	}
}

// NewDecoder returns a Decoder reading from r.
func NewDecoder(r io.Reader, opts ...DecoderOption) *Decoder {
	d := &Decoder{max: DefaultMaxFrameSize}
	for _, opt := range opts {
		opt(d)
	}
	d.r = bufio.NewReaderSize(r, min(d.max, 64*1024))
	return d
}

// Next returns the next message. It returns io.EOF when the stream ends on a
// frame boundary and a *protocol.FramingError for malformed, oversized or
// truncated frames. Other errors come from the underlying reader.
func (d *Decoder) Next() (protocol.Message, error) {
	for {
		line, err := d.readFrame()
		if err != nil {
			return nil, err
		}
		line = bytes.TrimRight(line, "\r")
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		return protocol.Unmarshal(line)
	}
}

// All yields messages until the stream ends. A clean EOF ends the sequence
// without an error; any other error is yielded once and ends the sequence.
func (d *Decoder) All() iter.Seq2[protocol.Message, error] {
	return func(yield func(protocol.Message, error) bool) {
		for {
			msg, err := d.Next()
			if errors.Is(err, io.EOF) {
				return
			}
			if !yield(msg, err) || err != nil {
				return
			}
		}
	}
}

func (d *Decoder) readFrame() ([]byte, error) {
	d.buf = d.buf[:0]
	for {
		chunk, err := d.r.ReadSlice('\n')
		if len(d.buf)+len(chunk) > d.max+1 {
			// Framing is lost; the rest of the stream cannot be trusted.
			return nil, &protocol.FramingError{Reason: fmt.Sprintf("frame exceeds %d bytes", d.max)}
		}
		d.buf = append(d.buf, chunk...)
		switch {
		case err == nil:
			return d.buf[:len(d.buf)-1], nil
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		case errors.Is(err, io.EOF):
			if len(bytes.TrimSpace(d.buf)) == 0 {
				return nil, io.EOF
			}
			return nil, &protocol.FramingError{Reason: "truncated frame at end of stream", Err: io.ErrUnexpectedEOF}
		default:
			return nil, err
		}
	}
}
