package audit_test

import (
	"context"
	"path/filepath"
	"testing"

	"hushd/internal/audit"

	"github.com/stretchr/testify/require"
)

func TestRecordAndRecent(t *testing.T) {
	t.Parallel()

	log, err := audit.Open(filepath.Join(t.TempDir(), "audit.sqlite"))
	require.NoError(t, err, "Open error")
	t.Cleanup(func() { _ = log.Close() })

	ctx := context.Background()

	log.Record(ctx, audit.Event{Action: audit.ActionUpload, FileID: "0123456789abc", RemoteIP: "203.0.113.7", OK: true})
	log.Record(ctx, audit.Event{Action: audit.ActionDeleteDenied, FileID: "0123456789abc", RemoteIP: "198.51.100.2"})
	log.Record(ctx, audit.Event{Action: audit.ActionDelete, FileID: "0123456789abc", RemoteIP: "203.0.113.7", OK: true})

	events, err := log.Recent(ctx, 10)
	require.NoError(t, err, "Recent error")
	require.Len(t, events, 3, "expected all recorded events")

	// Newest first.
	require.Equal(t, audit.ActionDelete, events[0].Action, "latest event")
	require.Equal(t, audit.ActionDeleteDenied, events[1].Action)
	require.False(t, events[1].OK, "denied delete is not OK")
	require.Equal(t, audit.ActionUpload, events[2].Action, "oldest event")
	require.False(t, events[2].At.IsZero(), "timestamp should be filled in")
}

func TestRecentLimit(t *testing.T) {
	t.Parallel()

	log, err := audit.Open(filepath.Join(t.TempDir(), "audit.sqlite"))
	require.NoError(t, err, "Open error")
	t.Cleanup(func() { _ = log.Close() })

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		log.Record(ctx, audit.Event{Action: audit.ActionFetch, FileID: "0123456789abc", OK: true})
	}

	events, err := log.Recent(ctx, 2)
	require.NoError(t, err, "Recent error")
	require.Len(t, events, 2, "limit should cap the result")
}

func TestNilLogIsNoop(t *testing.T) {
	t.Parallel()

	var log *audit.Log
	log.Record(context.Background(), audit.Event{Action: audit.ActionUpload, FileID: "0123456789abc"})

	events, err := log.Recent(context.Background(), 10)
	require.NoError(t, err, "Recent on nil log")
	require.Empty(t, events, "nil log records nothing")
	require.NoError(t, log.Close(), "Close on nil log")
}
