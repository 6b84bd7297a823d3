// Package journal records completed tool calls. A session appends one Entry
// per call response; failures to record are logged by the caller and never
// reach the peer.
package journal

import (
	"context"
	"time"

	"github.com/SystemSolution21/adk-mcp/protocol"
)

// Journal stores call entries in arrival order.
type Journal interface {
	// Record appends e.
	Record(ctx context.Context, e Entry) error

	// Recent returns up to n entries, newest first.
	Recent(ctx context.Context, n int) ([]Entry, error)
}

// Entry describes one completed call.
type Entry struct {
	Session  string             `json:"session"`
	ID       string             `json:"id"`
	Tool     string             `json:"tool"`
	OK       bool               `json:"ok"`
	Kind     protocol.ErrorKind `json:"kind,omitempty"`
	Duration time.Duration      `json:"duration_ns"`
	At       time.Time          `json:"at"`
}

// EntryFor builds the entry for a response to req.
func EntryFor(session string, req *protocol.CallRequest, res *protocol.CallResponse, started time.Time) Entry {
	e := Entry{
		Session:  session,
		ID:       req.ID.String(),
		Tool:     req.Tool,
		OK:       res.OK,
		Duration: time.Since(started),
		At:       started.UTC(),
	}
	if res.Error != nil {
		e.Kind = res.Error.Kind
	}
	return e
}
