package stdio

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/SystemSolution21/adk-mcp/protocol"
)

// slot reserves a response position in arrival order.
type slot struct {
	id      protocol.ID
	tracked bool
	done    chan protocol.Message
}

// pipeline runs calls concurrently and writes their responses in the order
// the requests arrived.
type pipeline struct {
	s   *session
	ctx context.Context

	calls    errgroup.Group
	order    chan *slot
	writeErr chan error
	aborted  atomic.Bool
	closed   bool

	mu       sync.Mutex
	inFlight map[protocol.ID]struct{}
}

func newPipeline(ctx context.Context, s *session, maxInFlight int) *pipeline {
	p := &pipeline{
		s:        s,
		ctx:      ctx,
		order:    make(chan *slot, maxInFlight),
		writeErr: make(chan error, 1),
		inFlight: make(map[protocol.ID]struct{}),
	}
	p.calls.SetLimit(maxInFlight)
	go p.writeLoop()
	return p
}

// submit starts req. Reusing the id of a call whose response has not been
// written yet is a sequence error.
func (p *pipeline) submit(ctx context.Context, req *protocol.CallRequest) error {
	p.mu.Lock()
	if _, dup := p.inFlight[req.ID]; dup {
		p.mu.Unlock()
		return &protocol.ProtocolSequenceError{
			State:  StateReady.String(),
			Got:    protocol.TypeCall,
			Detail: fmt.Sprintf("duplicate in-flight id %q", req.ID.String()),
		}
	}
	p.inFlight[req.ID] = struct{}{}
	p.mu.Unlock()

	sl := &slot{id: req.ID, tracked: true, done: make(chan protocol.Message, 1)}
	p.order <- sl

	p.calls.Go(func() error {
		start := time.Now()
		res := p.s.disp.Call(ctx, req)
		p.s.record(ctx, req, res, start)
		sl.done <- res
		return nil
	})
	return nil
}

// enqueue places an already complete response in line.
func (p *pipeline) enqueue(m protocol.Message) {
	sl := &slot{done: make(chan protocol.Message, 1)}
	sl.done <- m
	p.order <- sl
}

func (p *pipeline) writeLoop() {
	var err error
	for sl := range p.order {
		msg := <-sl.done
		if sl.tracked {
			p.mu.Lock()
			delete(p.inFlight, sl.id)
			p.mu.Unlock()
		}
		if err != nil || p.aborted.Load() {
			continue
		}
		if werr := p.s.enc.Encode(msg); werr != nil {
			err = fmt.Errorf("write %s: %w", msg.MessageType(), werr)
			p.s.log.ErrorContext(p.s.logContext(p.ctx), "session.write.fail", slog.String("err", werr.Error()))
			p.s.cancel(err)
		}
	}
	p.writeErr <- err
}

// close waits for every submitted call and for its response to be written.
// It is called once, from the session loop.
func (p *pipeline) close() error {
	if p.closed {
		return nil
	}
	p.closed = true
	close(p.order)
	_ = p.calls.Wait()
	return <-p.writeErr
}
