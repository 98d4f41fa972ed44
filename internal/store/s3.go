package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// S3Config holds the connection settings for an S3-backed store.
type S3Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Secure    bool
}

// S3 is an ObjectStore that keeps each object under its own key
// prefix in a MinIO/S3 bucket. The container is the prefix: an
// object exists while any key below "<id>/" is present.
//
// S3 has no exclusive-create primitive, so Create checks for the
// prefix and then writes. That check-then-write is not atomic the
// way Local's os.Mkdir is; with 52 bits of identifier entropy a lost
// race is vanishingly unlikely and this backend accepts it.
type S3 struct {
	client *minio.Client
	bucket string
}

// NewS3 connects to the configured endpoint and ensures the bucket
// exists.
func NewS3(ctx context.Context, cfg S3Config) (*S3, error) {
	if cfg.Endpoint == "" || cfg.Bucket == "" {
		return nil, errors.New("s3 endpoint and bucket must not be empty")
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.Secure,
	})
	if err != nil {
		return nil, fmt.Errorf("create s3 client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %q: %w", cfg.Bucket, err)
		}
	}

	return &S3{client: client, bucket: cfg.Bucket}, nil
}

func (s *S3) key(id, name string) string {
	return id + "/" + name
}

func (s *S3) putPart(ctx context.Context, id, name, part string, data []byte) error {
	_, err := s.client.PutObject(ctx, s.bucket, s.key(id, name),
		bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: "application/octet-stream"})
	if err != nil {
		return &WriteError{Part: part, Err: err}
	}
	return nil
}

func (s *S3) Create(ctx context.Context, id string, ciphertext, metadata []byte, rec Record) error {
	if !validID(id) {
		return fmt.Errorf("invalid object id: %q", id)
	}

	exists, err := s.Exists(ctx, id)
	if err != nil {
		return err
	}
	if exists {
		return ErrExists
	}

	if err := s.putPart(ctx, id, ciphertextFile, "cryptofile", ciphertext); err != nil {
		return err
	}
	if err := s.putPart(ctx, id, metadataFile, "metadata", metadata); err != nil {
		return err
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return &WriteError{Part: "serverdatafile", Err: err}
	}
	return s.putPart(ctx, id, recordFile, "serverdatafile", data)
}

func (s *S3) Exists(ctx context.Context, id string) (bool, error) {
	if !validID(id) {
		return false, nil
	}

	objects := s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:  id + "/",
		MaxKeys: 1,
	})
	for obj := range objects {
		if obj.Err != nil {
			return false, fmt.Errorf("list container: %w", obj.Err)
		}
		return true, nil
	}
	return false, nil
}

func (s *S3) ReadPart(ctx context.Context, id string, part Part) (io.ReadCloser, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}

	name, err := part.filename()
	if err != nil {
		return nil, err
	}

	obj, err := s.client.GetObject(ctx, s.bucket, s.key(id, name), minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("open part %s: %w", name, err)
	}

	// GetObject is lazy; force the first request so a missing key
	// surfaces here instead of on the first Read.
	if _, err := obj.Stat(); err != nil {
		_ = obj.Close()
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("stat part %s: %w", name, err)
	}
	return obj, nil
}

func (s *S3) ReadRecord(ctx context.Context, id string) (Record, error) {
	if !validID(id) {
		return Record{}, ErrNotFound
	}

	obj, err := s.client.GetObject(ctx, s.bucket, s.key(id, recordFile), minio.GetObjectOptions{})
	if err != nil {
		return Record{}, fmt.Errorf("open server record: %w", err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
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

func (s *S3) Delete(ctx context.Context, id string) error {
	if !validID(id) {
		return ErrNotFound
	}

	exists, err := s.Exists(ctx, id)
	if err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}

	for _, name := range []string{recordFile, metadataFile, ciphertextFile} {
		err := s.client.RemoveObject(ctx, s.bucket, s.key(id, name), minio.RemoveObjectOptions{})
		if err != nil && minio.ToErrorResponse(err).Code != "NoSuchKey" {
			return fmt.Errorf("remove %s: %w", name, err)
		}
	}
	return nil
}
