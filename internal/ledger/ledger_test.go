package ledger

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonimelisma/expedientes-go/internal/expediente"
)

// newTestLedger opens a ledger in a temp dir with a controllable clock.
func newTestLedger(t *testing.T) (*Ledger, *time.Time) {
	t.Helper()

	l, err := Open(context.Background(), filepath.Join(t.TempDir(), "data", "ledger.db"), slog.Default())
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, l.Close()) })

	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	l.nowFunc = func() time.Time { return now }

	return l, &now
}

func sampleOrphan(expID string) expediente.Orphan {
	return expediente.Orphan{
		ExpID:    expID,
		Codigo:   "C100",
		FolderID: "folder-" + expID,
		Stage:    expediente.StageUpload,
		Uploaded: 2,
		Err:      "connection reset",
	}
}

func TestRecordAndList(t *testing.T) {
	l, now := newTestLedger(t)
	ctx := context.Background()

	require.NoError(t, l.RecordOrphan(ctx, sampleOrphan("EXP-1")))

	*now = now.Add(time.Minute)
	o := sampleOrphan("EXP-2")
	o.Stage = expediente.StageAppend
	require.NoError(t, l.RecordOrphan(ctx, o))

	entries, err := l.List(ctx, false)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	first := entries[0]
	assert.NotEmpty(t, first.ID)
	assert.Equal(t, "EXP-1", first.ExpID)
	assert.Equal(t, "C100", first.Codigo)
	assert.Equal(t, "folder-EXP-1", first.FolderID)
	assert.Equal(t, expediente.StageUpload, first.Stage)
	assert.Equal(t, 2, first.Uploaded)
	assert.Equal(t, "connection reset", first.Error)
	assert.True(t, first.CreatedAt.Equal(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)))
	assert.False(t, first.Resolved())

	assert.Equal(t, expediente.StageAppend, entries[1].Stage)
}

func TestList_SameTimestampKeepsInsertionOrder(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()

	ids := []string{"EXP-1", "EXP-2", "EXP-3", "EXP-4", "EXP-5", "EXP-6"}
	for _, id := range ids {
		require.NoError(t, l.RecordOrphan(ctx, sampleOrphan(id)))
	}

	entries, err := l.List(ctx, true)
	require.NoError(t, err)
	require.Len(t, entries, len(ids))

	got := make([]string, 0, len(entries))
	for _, e := range entries {
		got = append(got, e.ExpID)
	}

	assert.Equal(t, ids, got)
}

func TestList_Empty(t *testing.T) {
	l, _ := newTestLedger(t)

	entries, err := l.List(context.Background(), true)
	require.NoError(t, err)
	assert.NotNil(t, entries)
	assert.Empty(t, entries)
}

func TestResolve(t *testing.T) {
	l, now := newTestLedger(t)
	ctx := context.Background()

	require.NoError(t, l.RecordOrphan(ctx, sampleOrphan("EXP-1")))
	require.NoError(t, l.RecordOrphan(ctx, sampleOrphan("EXP-2")))

	*now = now.Add(time.Hour)
	require.NoError(t, l.Resolve(ctx, "EXP-1"))

	open, err := l.List(ctx, false)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, "EXP-2", open[0].ExpID)

	all, err := l.List(ctx, true)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.True(t, all[0].Resolved())
	assert.True(t, all[0].ResolvedAt.Equal(*now))

	err = l.Resolve(ctx, "EXP-1")
	require.ErrorIs(t, err, ErrNotFound, "already resolved")
}

func TestGet(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()

	require.NoError(t, l.RecordOrphan(ctx, sampleOrphan("EXP-1")))

	e, err := l.Get(ctx, "EXP-1")
	require.NoError(t, err)
	assert.Equal(t, "folder-EXP-1", e.FolderID)

	_, err = l.Get(ctx, "EXP-404")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestOpen_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	ctx := context.Background()

	l, err := Open(ctx, path, nil)
	require.NoError(t, err)
	require.NoError(t, l.RecordOrphan(ctx, sampleOrphan("EXP-1")))
	require.NoError(t, l.Close())

	// Migrations are idempotent and data survives.
	l, err = Open(ctx, path, nil)
	require.NoError(t, err)
	defer l.Close()

	entries, err := l.List(ctx, false)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestLedger_ImplementsOrphanRecorder(t *testing.T) {
	var _ expediente.OrphanRecorder = (*Ledger)(nil)
}
