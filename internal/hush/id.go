package hush

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"

	"hushd/internal/store"

	"github.com/google/uuid"
)

const (
	// idLength matches the original service: a random UUID rendered
	// as hex and truncated to 13 characters, about 52 bits of
	// entropy.
	idLength = 13

	// maxAllocateAttempts bounds collision retries. At this entropy
	// the bound is never reached in practice; hitting it means the
	// namespace or the randomness source is broken.
	maxAllocateAttempts = 100
)

// ErrAllocationExhausted is returned when no collision-free
// identifier could be found within the retry bound.
var ErrAllocationExhausted = errors.New("identifier allocation exhausted")

// Allocator hands out identifiers that do not collide with any
// object already present in the store.
type Allocator struct {
	store store.ObjectStore
}

func NewAllocator(st store.ObjectStore) *Allocator {
	return &Allocator{store: st}
}

// newToken returns a fresh random identifier candidate.
func newToken() string {
	u := uuid.New()
	return hex.EncodeToString(u[:])[:idLength]
}

// Allocate returns an identifier with no existing container. The
// existence check cannot by itself defend against a concurrent
// allocation of the same token; callers must rely on the store's
// exclusive Create and retry on store.ErrExists.
func (a *Allocator) Allocate(ctx context.Context) (string, error) {
	for i := 0; i < maxAllocateAttempts; i++ {
		id := newToken()

		exists, err := a.store.Exists(ctx, id)
		if err != nil {
			return "", fmt.Errorf("check candidate id: %w", err)
		}
		if !exists {
			return id, nil
		}
	}
	return "", ErrAllocationExhausted
}
