// Package blob stores file content behind a small S3-like interface.
//
// Drivers: fs (local directory, the default), s3 (AWS S3 or MinIO) and
// memory (tests). Keys are slash-separated relative paths.
package blob

import (
	"context"
	"errors"
	"io"
	"time"
)

// Driver identifies a blob backend.
type Driver string

const (
	DriverFilesystem Driver = "fs"
	DriverS3         Driver = "s3"
	DriverMemory     Driver = "memory"
)

// PutOptions configures a write.
type PutOptions struct {
	ContentType string
	Metadata    map[string]string
}

// SignedURLOptions configures a presigned download URL.
type SignedURLOptions struct {
	Expiry time.Duration // default 15m
	// Filename, when set, asks the backend to serve the object as an attachment with this name.
	Filename string
}

// Info describes a stored blob.
type Info struct {
	Key          string            `json:"key"`
	Size         int64             `json:"size_bytes"`
	ContentType  string            `json:"content_type,omitempty"`
	ETag         string            `json:"etag,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	LastModified time.Time         `json:"last_modified"`
}

// Store is implemented by every driver.
type Store interface {
	Put(ctx context.Context, key string, r io.Reader, opts PutOptions) (Info, error)
	Get(ctx context.Context, key string) (Info, io.ReadCloser, error)
	Head(ctx context.Context, key string) (Info, error)
	// Delete reports whether the blob existed.
	Delete(ctx context.Context, key string) (bool, error)
	PresignURL(ctx context.Context, key string, opts SignedURLOptions) (string, error)
	Driver() Driver
}

var (
	// ErrNotFound is returned for keys with no blob.
	ErrNotFound = errors.New("blob: not found")
	// ErrExists is returned when Put targets an existing key.
	ErrExists = errors.New("blob: already exists")
	// ErrUnsupported is returned when a driver lacks an optional capability.
	ErrUnsupported = errors.New("blob: unsupported operation")
)

const defaultPresignExpiry = 15 * time.Minute

func cloneMetadata(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
