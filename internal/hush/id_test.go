package hush

import (
	"context"
	"io"
	"testing"

	"hushd/internal/store"

	"github.com/stretchr/testify/require"
)

// stubStore is an ObjectStore whose existence answer is fixed, for
// exercising the allocator without a filesystem.
type stubStore struct {
	exists bool
}

func (s *stubStore) Create(context.Context, string, []byte, []byte, store.Record) error {
	return nil
}

func (s *stubStore) Exists(context.Context, string) (bool, error) {
	return s.exists, nil
}

func (s *stubStore) ReadPart(context.Context, string, store.Part) (io.ReadCloser, error) {
	return nil, store.ErrNotFound
}

func (s *stubStore) ReadRecord(context.Context, string) (store.Record, error) {
	return store.Record{}, store.ErrNotFound
}

func (s *stubStore) Delete(context.Context, string) error {
	return store.ErrNotFound
}

func TestAllocateTokenFormat(t *testing.T) {
	t.Parallel()

	alloc := NewAllocator(&stubStore{})

	id, err := alloc.Allocate(context.Background())
	require.NoError(t, err, "Allocate error")
	require.Len(t, id, idLength, "identifier length")
	for _, c := range id {
		require.Truef(t, (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f'),
			"identifier %q contains non-hex character %q", id, c)
	}
}

func TestAllocateUnique(t *testing.T) {
	t.Parallel()

	alloc := NewAllocator(&stubStore{})
	ctx := context.Background()

	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id, err := alloc.Allocate(ctx)
		require.NoError(t, err, "Allocate error")
		require.Falsef(t, seen[id], "identifier %q allocated twice", id)
		seen[id] = true
	}
}

func TestAllocateExhausted(t *testing.T) {
	t.Parallel()

	// Every candidate collides, so the retry bound must trip instead
	// of looping forever.
	alloc := NewAllocator(&stubStore{exists: true})

	_, err := alloc.Allocate(context.Background())
	require.ErrorIs(t, err, ErrAllocationExhausted, "expected exhaustion past the retry bound")
}
