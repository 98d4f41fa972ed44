package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Local is an ObjectStore that keeps each object in its own
// directory under dataDir. The directory is the container: its
// presence defines existence, and the exclusive os.Mkdir that
// creates it is the atomic primitive that keeps two concurrent
// creates of the same id from both succeeding.
type Local struct {
	dataDir string
}

// NewLocal creates a Local store rooted at dataDir, creating the
// directory if necessary.
func NewLocal(dataDir string) (*Local, error) {
	if dataDir == "" {
		return nil, errors.New("dataDir must not be empty")
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &Local{dataDir: dataDir}, nil
}

func (s *Local) containerPath(id string) string {
	return filepath.Join(s.dataDir, id)
}

func (s *Local) Create(ctx context.Context, id string, ciphertext, metadata []byte, rec Record) error {
	if !validID(id) {
		return fmt.Errorf("invalid object id: %q", id)
	}

	dir := s.containerPath(id)
	if err := os.Mkdir(dir, 0o755); err != nil {
		if os.IsExist(err) {
			return ErrExists
		}
		return fmt.Errorf("create container: %w", err)
	}

	if err := os.WriteFile(filepath.Join(dir, ciphertextFile), ciphertext, 0o644); err != nil {
		return &WriteError{Part: "cryptofile", Err: err}
	}
	if err := os.WriteFile(filepath.Join(dir, metadataFile), metadata, 0o644); err != nil {
		return &WriteError{Part: "metadata", Err: err}
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return &WriteError{Part: "serverdatafile", Err: err}
	}
	if err := os.WriteFile(filepath.Join(dir, recordFile), data, 0o644); err != nil {
		return &WriteError{Part: "serverdatafile", Err: err}
	}

	return nil
}

func (s *Local) Exists(ctx context.Context, id string) (bool, error) {
	if !validID(id) {
		return false, nil
	}

	_, err := os.Stat(s.containerPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("stat container: %w", err)
	}
	return true, nil
}

func (s *Local) ReadPart(ctx context.Context, id string, part Part) (io.ReadCloser, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}

	name, err := part.filename()
	if err != nil {
		return nil, err
	}

	f, err := os.Open(filepath.Join(s.containerPath(id), name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("open part %s: %w", name, err)
	}
	return f, nil
}

func (s *Local) ReadRecord(ctx context.Context, id string) (Record, error) {
	if !validID(id) {
		return Record{}, ErrNotFound
	}

	data, err := os.ReadFile(filepath.Join(s.containerPath(id), recordFile))
	if err != nil {
		if os.IsNotExist(err) {
			return Record{}, ErrNotFound
		}
		return Record{}, fmt.Errorf("read server record: %w", err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, fmt.Errorf("parse server record: %w", err)
	}
	return rec, nil
}

// Delete removes the three part files and then the container
// directory. A part that is already gone is tolerated so that a
// partially written object can still be deleted; a failure to remove
// the container itself is reported.
func (s *Local) Delete(ctx context.Context, id string) error {
	if !validID(id) {
		return ErrNotFound
	}

	dir := s.containerPath(id)
	if _, err := os.Stat(dir); err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return fmt.Errorf("stat container: %w", err)
	}

	for _, name := range []string{recordFile, metadataFile, ciphertextFile} {
		if err := os.Remove(filepath.Join(dir, name)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove %s: %w", name, err)
		}
	}

	if err := os.Remove(dir); err != nil {
		if os.IsNotExist(err) {
			// Deleted concurrently; the end state is the same.
			return ErrNotFound
		}
		return fmt.Errorf("remove container: %w", err)
	}
	return nil
}
