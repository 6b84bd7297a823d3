// Package memory provides an in-memory implementation of journal.Journal
// backed by a fixed-size ring. It is suitable for single-process servers and
// tests.
package memory

import (
	"context"
	"sync"

	"github.com/SystemSolution21/adk-mcp/journal"
)

// DefaultCapacity is used when New is given a non-positive capacity.
const DefaultCapacity = 1024

// Journal keeps the most recent entries; older entries are overwritten.
type Journal struct {
	mu    sync.RWMutex
	ring  []journal.Entry
	next  int
	count int
}

var _ journal.Journal = (*Journal)(nil)

// New creates a journal holding at most capacity entries.
func New(capacity int) *Journal {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Journal{ring: make([]journal.Entry, capacity)}
}

// Record implements journal.Journal.
func (j *Journal) Record(ctx context.Context, e journal.Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	j.ring[j.next] = e
	j.next = (j.next + 1) % len(j.ring)
	if j.count < len(j.ring) {
		j.count++
	}
	return nil
}

// Recent implements journal.Journal.
func (j *Journal) Recent(ctx context.Context, n int) ([]journal.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	j.mu.RLock()
	defer j.mu.RUnlock()
	if n <= 0 || n > j.count {
		n = j.count
	}
	out := make([]journal.Entry, 0, n)
	idx := j.next
	for range n {
		idx = (idx - 1 + len(j.ring)) % len(j.ring)
		out = append(out, j.ring[idx])
	}
	return out, nil
}

// Len returns the number of retained entries.
func (j *Journal) Len() int {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.count
}
