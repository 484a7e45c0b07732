package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
)

var (
	// ErrNotFound is returned when a blob does not exist. It matches
	// os.ErrNotExist.
	ErrNotFound = os.ErrNotExist

	// ErrInvalidName is returned for blob names that escape the store root.
	ErrInvalidName = errors.New("blobstore: invalid blob name")

	// ErrClosed is returned when writing to a finished blob.
	ErrClosed = errors.New("blobstore: blob already finished")
)

// BlobStore holds archived runs as immutable blobs addressed by slash
// separated names. Implementations must be safe for concurrent use.
type BlobStore interface {
	// Open returns a reader over the whole blob.
	Open(ctx context.Context, name string) (Blob, error)

	// Create starts a blob. It becomes visible on Close and is discarded on
	// Abort.
	Create(ctx context.Context, name string) (WritableBlob, error)

	// Put stores data as one blob, replacing any previous one.
	Put(ctx context.Context, name string, data []byte) error

	// Delete removes a blob. Deleting a missing blob is not an error.
	Delete(ctx context.Context, name string) error

	// List returns the sorted names of all blobs starting with prefix.
	List(ctx context.Context, prefix string) ([]string, error)
}

// Blob is an open blob. Read yields its content from the start.
type Blob interface {
	io.ReadCloser

	// Size is the length of the blob in bytes.
	Size() int64
}

// WritableBlob is a blob being written.
type WritableBlob interface {
	io.WriteCloser

	// Abort discards everything written. Abort after Close is a no-op.
	Abort() error
}

// ReadAll returns the content of the blob called name.
func ReadAll(ctx context.Context, store BlobStore, name string) ([]byte, error) {
	b, err := store.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	defer func() { _ = b.Close() }()

	data, err := io.ReadAll(b)
	if err != nil {
		return nil, fmt.Errorf("blobstore: read %s: %w", name, err)
	}

	return data, nil
}
