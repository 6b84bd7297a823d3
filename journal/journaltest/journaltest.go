// Package journaltest is a conformance suite for journal.Journal
// implementations.
package journaltest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/SystemSolution21/adk-mcp/journal"
	"github.com/SystemSolution21/adk-mcp/protocol"
)

// Factory creates an empty journal for one test.
type Factory func(t *testing.T) journal.Journal

// RunJournalTests runs the complete journal test suite against the provided factory.
func RunJournalTests(t *testing.T, factory Factory) {
	t.Run("RecordAndRecent", func(t *testing.T) {
		testRecordAndRecent(t, factory)
	})
	t.Run("RecentLimit", func(t *testing.T) {
		testRecentLimit(t, factory)
	})
	t.Run("EmptyJournal", func(t *testing.T) {
		testEmptyJournal(t, factory)
	})
	t.Run("ConcurrentRecord", func(t *testing.T) {
		testConcurrentRecord(t, factory)
	})
}

func entry(i int) journal.Entry {
	e := journal.Entry{
		Session:  "sess-1",
		ID:       fmt.Sprintf("call-%d", i),
		Tool:     "echo",
		OK:       i%2 == 0,
		Duration: time.Duration(i) * time.Millisecond,
		At:       time.Date(2024, 1, 1, 0, 0, i, 0, time.UTC),
	}
	if !e.OK {
		e.Kind = protocol.KindDomain
	}
	return e
}

func sameEntry(a, b journal.Entry) bool {
	at, bt := a.At, b.At
	a.At, b.At = time.Time{}, time.Time{}
	return a == b && at.Equal(bt)
}

func testRecordAndRecent(t *testing.T, factory Factory) {
	j := factory(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for i := range 3 {
		if err := j.Record(ctx, entry(i)); err != nil {
			t.Fatalf("record %d: %v", i, err)
		}
	}

	got, err := j.Recent(ctx, 0)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(got))
	}
	for i, e := range got {
		want := entry(2 - i)
		if !sameEntry(e, want) {
			t.Fatalf("entry %d: expected %+v, got %+v", i, want, e)
		}
	}
}

func testRecentLimit(t *testing.T, factory Factory) {
	j := factory(t)
	ctx := context.Background()

	for i := range 5 {
		if err := j.Record(ctx, entry(i)); err != nil {
			t.Fatalf("record %d: %v", i, err)
		}
	}

	got, err := j.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(got) != 2 || got[0].ID != "call-4" || got[1].ID != "call-3" {
		t.Fatalf("unexpected entries: %+v", got)
	}
}

func testEmptyJournal(t *testing.T, factory Factory) {
	j := factory(t)
	got, err := j.Recent(context.Background(), 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no entries, got %d", len(got))
	}
}

func testConcurrentRecord(t *testing.T, factory Factory) {
	j := factory(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := j.Record(ctx, entry(i)); err != nil {
				t.Errorf("record %d: %v", i, err)
			}
		}()
	}
	wg.Wait()

	got, err := j.Recent(ctx, 0)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(got) != 20 {
		t.Fatalf("expected 20 entries, got %d", len(got))
	}
}
