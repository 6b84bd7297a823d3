package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/SystemSolution21/adk-mcp/journal"
	"github.com/SystemSolution21/adk-mcp/journal/journaltest"
)

func TestMemoryJournal(t *testing.T) {
	journaltest.RunJournalTests(t, func(t *testing.T) journal.Journal {
		return New(64)
	})
}

func TestRingOverwritesOldest(t *testing.T) {
	j := New(3)
	ctx := context.Background()
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		require.NoError(t, j.Record(ctx, journal.Entry{ID: id}))
	}
	require.Equal(t, 3, j.Len())

	got, err := j.Recent(ctx, 0)
	require.NoError(t, err)
	ids := make([]string, len(got))
	for i, e := range got {
		ids[i] = e.ID
	}
	require.Equal(t, []string{"e", "d", "c"}, ids)
}

func TestCancelledContext(t *testing.T) {
	j := New(0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, j.Record(ctx, journal.Entry{}), context.Canceled)
	require.Equal(t, 0, j.Len())
}
