// Package store owns the persisted layout of one logical drop
// object: a container keyed by the object's identifier, holding the
// client's encrypted payload, the client's opaque metadata, and a
// server-private record. The presence of the container alone defines
// whether an object exists.
package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
)

// Part selects one of the client-readable components of an object.
type Part string

const (
	Ciphertext Part = "cryptofile"
	Metadata   Part = "metadata"
)

// File names inside a container. The server record is not reachable
// through ReadPart; it is only exposed via ReadRecord.
const (
	ciphertextFile = "cryptofile.dat"
	metadataFile   = "metadata.dat"
	recordFile     = "serverdata.json"
)

var (
	// ErrExists is returned by Create when a container for the id is
	// already present. The identifier allocator relies on this as its
	// collision-detection primitive.
	ErrExists = errors.New("object already exists")

	// ErrNotFound is returned when no container exists for the id.
	ErrNotFound = errors.New("object not found")

	// Identifiers are short lowercase hex tokens. Anything else is
	// rejected before it can reach the underlying storage paths.
	idPattern = regexp.MustCompile(`^[0-9a-f]{1,64}$`)
)

// WriteError reports a failed write of a single part during Create.
// Parts written before the failure are not rolled back, so a
// WriteError can leave a partial container behind.
type WriteError struct {
	Part string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("unable to write %s: %v", e.Part, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// Record is the server-private part of an object. It is never served
// to clients except through the explicit uploader-address lookup.
type Record struct {
	DeletePassword string `json:"deletepassword"`
	ClientIP       string `json:"clientip"`
}

// ObjectStore is a storage backend for drop objects.
//
// Objects are immutable once created: there is no update operation,
// only Create, reads, and Delete. Concurrent reads are safe; a read
// racing a delete may observe a vanishing container and surfaces
// that as ErrNotFound or a stream error, never as corrupt data.
type ObjectStore interface {
	// Create allocates the container for id and writes all three
	// parts. It returns ErrExists if the container is already
	// present; two concurrent creates of the same id can never both
	// succeed. A *WriteError from a later part does not undo parts
	// already written.
	Create(ctx context.Context, id string, ciphertext, metadata []byte, rec Record) error

	// Exists reports whether the container for id is present,
	// regardless of whether all parts inside it are intact.
	Exists(ctx context.Context, id string) (bool, error)

	// ReadPart opens a finite, single-pass stream over the requested
	// part. It returns ErrNotFound when the container or the part is
	// absent.
	ReadPart(ctx context.Context, id string, part Part) (io.ReadCloser, error)

	// ReadRecord returns the server-private record for id.
	ReadRecord(ctx context.Context, id string) (Record, error)

	// Delete removes the object's parts and then its container.
	// Missing parts are tolerated; deleting an absent container
	// returns ErrNotFound.
	Delete(ctx context.Context, id string) error
}

// filename maps a client-readable part to its container file name.
func (p Part) filename() (string, error) {
	switch p {
	case Ciphertext:
		return ciphertextFile, nil
	case Metadata:
		return metadataFile, nil
	}
	return "", fmt.Errorf("unknown part: %q", string(p))
}

func validID(id string) bool {
	return idPattern.MatchString(id)
}
