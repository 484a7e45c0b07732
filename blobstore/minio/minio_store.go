package minio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"slices"
	"strings"

	"github.com/minio/minio-go/v7"

	"github.com/hupe1980/chunkcpd/blobstore"
)

// Store keeps archived runs as objects below a key prefix of one bucket.
type Store struct {
	client *minio.Client
	bucket string
	root   string
}

var _ blobstore.BlobStore = (*Store)(nil)

// NewStore returns a store writing below root in bucket.
func NewStore(client *minio.Client, bucket, root string) *Store {
	return &Store{client: client, bucket: bucket, root: strings.Trim(root, "/")}
}

func (s *Store) objectKey(name string) string {
	return path.Join(s.root, name)
}

func (s *Store) blobName(key string) string {
	if s.root == "" {
		return key
	}

	return strings.TrimPrefix(key, s.root+"/")
}

func notFound(err error) bool {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NotFound":
		return true
	default:
		return false
	}
}

// Open fetches the object. GetObject is lazy, so the stat surfaces a missing
// run before the first read.
func (s *Store) Open(ctx context.Context, name string) (blobstore.Blob, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, s.objectKey(name), minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}

	info, err := obj.Stat()
	if err != nil {
		_ = obj.Close()

		if notFound(err) {
			return nil, fmt.Errorf("%w: %s", blobstore.ErrNotFound, name)
		}

		return nil, err
	}

	return &object{Object: obj, size: info.Size}, nil
}

func (s *Store) Put(ctx context.Context, name string, data []byte) error {
	_, err := s.client.PutObject(ctx, s.bucket, s.objectKey(name), bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{})
	return err
}

// Create pipes the written bytes into a PutObject of unknown length.
func (s *Store) Create(ctx context.Context, name string) (blobstore.WritableBlob, error) {
	pr, pw := io.Pipe()
	u := &upload{pw: pw, done: make(chan error, 1)}

	go func() {
		_, err := s.client.PutObject(ctx, s.bucket, s.objectKey(name), pr, -1, minio.PutObjectOptions{})
		_ = pr.CloseWithError(err)
		u.done <- err
	}()

	return u, nil
}

func (s *Store) Delete(ctx context.Context, name string) error {
	err := s.client.RemoveObject(ctx, s.bucket, s.objectKey(name), minio.RemoveObjectOptions{})
	if err != nil && !notFound(err) {
		return err
	}

	return nil
}

func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	full := prefix
	if s.root != "" {
		full = s.root + "/" + prefix
	}

	names := []string{}

	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: full, Recursive: true}) {
		if obj.Err != nil {
			return nil, obj.Err
		}

		names = append(names, s.blobName(obj.Key))
	}

	slices.Sort(names)

	return names, nil
}

type object struct {
	*minio.Object
	size int64
}

func (o *object) Size() int64 { return o.size }

var errAborted = errors.New("minio: upload aborted")

type upload struct {
	pw   *io.PipeWriter
	done chan error
	over bool
}

func (u *upload) Write(p []byte) (int, error) {
	if u.over {
		return 0, blobstore.ErrClosed
	}

	return u.pw.Write(p)
}

func (u *upload) Close() error {
	if u.over {
		return blobstore.ErrClosed
	}

	u.over = true
	_ = u.pw.Close()

	return <-u.done
}

// Abort fails the PutObject so the run is never stored.
func (u *upload) Abort() error {
	if u.over {
		return nil
	}

	u.over = true
	_ = u.pw.CloseWithError(errAborted)
	<-u.done

	return nil
}
