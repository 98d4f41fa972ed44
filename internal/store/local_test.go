package store_test

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"hushd/internal/store"

	"github.com/stretchr/testify/require"
)

func newLocal(t *testing.T) *store.Local {
	t.Helper()

	s, err := store.NewLocal(t.TempDir())
	require.NoError(t, err, "NewLocal error")
	return s
}

func TestLocalCreateAndReadBack(t *testing.T) {
	t.Parallel()

	s := newLocal(t)
	ctx := context.Background()

	rec := store.Record{DeletePassword: "secret", ClientIP: "203.0.113.7"}
	require.NoError(t, s.Create(ctx, "0123456789abc", []byte("payload"), []byte("meta"), rec), "Create error")

	exists, err := s.Exists(ctx, "0123456789abc")
	require.NoError(t, err, "Exists error")
	require.True(t, exists, "object should exist after Create")

	for part, want := range map[store.Part]string{
		store.Ciphertext: "payload",
		store.Metadata:   "meta",
	} {
		rc, err := s.ReadPart(ctx, "0123456789abc", part)
		require.NoErrorf(t, err, "ReadPart %s error", part)
		data, err := io.ReadAll(rc)
		require.NoError(t, err, "reading part stream")
		require.NoError(t, rc.Close(), "closing part stream")
		require.Equalf(t, want, string(data), "part %s content", part)
	}

	got, err := s.ReadRecord(ctx, "0123456789abc")
	require.NoError(t, err, "ReadRecord error")
	require.Equal(t, rec, got, "server record round trip")
}

func TestLocalCreateExclusive(t *testing.T) {
	t.Parallel()

	s := newLocal(t)
	ctx := context.Background()

	rec := store.Record{DeletePassword: "pw"}
	require.NoError(t, s.Create(ctx, "aaaaaaaaaaaaa", []byte("a"), []byte("b"), rec), "first Create error")

	err := s.Create(ctx, "aaaaaaaaaaaaa", []byte("c"), []byte("d"), rec)
	require.ErrorIs(t, err, store.ErrExists, "second Create should report ErrExists")

	// The original object must be untouched by the losing Create.
	rc, err := s.ReadPart(ctx, "aaaaaaaaaaaaa", store.Ciphertext)
	require.NoError(t, err, "ReadPart error")
	data, err := io.ReadAll(rc)
	require.NoError(t, err, "reading part stream")
	rc.Close()
	require.Equal(t, "a", string(data), "first write should win")
}

func TestLocalCreateConcurrentSameID(t *testing.T) {
	t.Parallel()

	s := newLocal(t)
	ctx := context.Background()

	const workers = 16
	var wg sync.WaitGroup
	errs := make([]error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = s.Create(ctx, "bbbbbbbbbbbbb", []byte("x"), []byte("y"), store.Record{})
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		require.ErrorIs(t, err, store.ErrExists, "losers must observe ErrExists")
	}
	require.Equal(t, 1, wins, "exactly one concurrent Create may succeed")
}

func TestLocalReadMissing(t *testing.T) {
	t.Parallel()

	s := newLocal(t)
	ctx := context.Background()

	exists, err := s.Exists(ctx, "eeeeeeeeeeeee")
	require.NoError(t, err, "Exists error")
	require.False(t, exists, "unknown id should not exist")

	_, err = s.ReadPart(ctx, "eeeeeeeeeeeee", store.Ciphertext)
	require.ErrorIs(t, err, store.ErrNotFound, "ReadPart of unknown id")

	_, err = s.ReadRecord(ctx, "eeeeeeeeeeeee")
	require.ErrorIs(t, err, store.ErrNotFound, "ReadRecord of unknown id")

	err = s.Delete(ctx, "eeeeeeeeeeeee")
	require.ErrorIs(t, err, store.ErrNotFound, "Delete of unknown id")
}

func TestLocalDeleteRemovesContainer(t *testing.T) {
	t.Parallel()

	dataDir := t.TempDir()
	s, err := store.NewLocal(dataDir)
	require.NoError(t, err, "NewLocal error")
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, "ccccccccccccc", []byte("x"), []byte("y"), store.Record{DeletePassword: "pw"}), "Create error")
	require.NoError(t, s.Delete(ctx, "ccccccccccccc"), "Delete error")

	exists, err := s.Exists(ctx, "ccccccccccccc")
	require.NoError(t, err, "Exists error")
	require.False(t, exists, "object should be gone after Delete")

	_, err = os.Stat(filepath.Join(dataDir, "ccccccccccccc"))
	require.True(t, os.IsNotExist(err), "container directory should be removed")

	err = s.Delete(ctx, "ccccccccccccc")
	require.ErrorIs(t, err, store.ErrNotFound, "second Delete should report ErrNotFound")
}

func TestLocalDeleteToleratesMissingParts(t *testing.T) {
	t.Parallel()

	dataDir := t.TempDir()
	s, err := store.NewLocal(dataDir)
	require.NoError(t, err, "NewLocal error")
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, "ddddddddddddd", []byte("x"), []byte("y"), store.Record{}), "Create error")

	// Simulate a partial container left behind by a failed write.
	require.NoError(t, os.Remove(filepath.Join(dataDir, "ddddddddddddd", "metadata.dat")), "removing part")

	require.NoError(t, s.Delete(ctx, "ddddddddddddd"), "Delete of partial object should succeed")

	exists, err := s.Exists(ctx, "ddddddddddddd")
	require.NoError(t, err, "Exists error")
	require.False(t, exists, "partial object should be gone after Delete")
}

func TestLocalRejectsHostileIDs(t *testing.T) {
	t.Parallel()

	s := newLocal(t)
	ctx := context.Background()

	for _, id := range []string{"", "../escape", "a/b", "UPPER", "0123456789abc\x00"} {
		exists, err := s.Exists(ctx, id)
		require.NoErrorf(t, err, "Exists(%q) error", id)
		require.Falsef(t, exists, "hostile id %q must not exist", id)

		_, err = s.ReadPart(ctx, id, store.Ciphertext)
		require.ErrorIsf(t, err, store.ErrNotFound, "ReadPart(%q)", id)

		err = s.Create(ctx, id, []byte("x"), []byte("y"), store.Record{})
		require.Errorf(t, err, "Create(%q) must be rejected", id)
		require.NotErrorIsf(t, err, store.ErrExists, "Create(%q) is invalid, not a collision", id)
	}
}

func TestLocalUnknownPart(t *testing.T) {
	t.Parallel()

	s := newLocal(t)
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, "fffffffffffff", []byte("x"), []byte("y"), store.Record{}), "Create error")

	// The server record must not be readable as a part.
	_, err := s.ReadPart(ctx, "fffffffffffff", store.Part("serverdata.json"))
	require.Error(t, err, "server record must not be exposed via ReadPart")
	require.False(t, errors.Is(err, store.ErrNotFound), "unknown part is an error, not absence")
}
