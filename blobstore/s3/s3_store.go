package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"slices"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/hupe1980/chunkcpd/blobstore"
)

// Client is the part of the S3 API the store needs. *s3.Client satisfies it.
type Client interface {
	manager.UploadAPIClient
	s3.ListObjectsV2APIClient
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

var _ Client = (*s3.Client)(nil)

// UploadConfig tunes the multipart upload of large runs.
type UploadConfig struct {
	// PartSize is the size of one upload part. Default: 8MiB.
	PartSize int64

	// Concurrency is the number of parts uploaded in parallel. Default: 5.
	Concurrency int
}

// DefaultUploadConfig returns the default upload settings.
func DefaultUploadConfig() UploadConfig {
	return UploadConfig{PartSize: 8 << 20, Concurrency: 5}
}

// Store keeps archived runs as objects under a key prefix of one bucket.
type Store struct {
	client   Client
	bucket   string
	root     string
	uploader *manager.Uploader
}

var _ blobstore.BlobStore = (*Store)(nil)

// NewStore returns a store writing below root in bucket.
func NewStore(client Client, bucket, root string) *Store {
	return NewStoreWithConfig(client, bucket, root, DefaultUploadConfig())
}

// NewStoreWithConfig is NewStore with explicit upload settings.
func NewStoreWithConfig(client Client, bucket, root string, cfg UploadConfig) *Store {
	up := manager.NewUploader(client, func(u *manager.Uploader) {
		if cfg.PartSize > 0 {
			u.PartSize = cfg.PartSize
		}

		if cfg.Concurrency > 0 {
			u.Concurrency = cfg.Concurrency
		}
	})

	return &Store{client: client, bucket: bucket, root: strings.Trim(root, "/"), uploader: up}
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
	var nsk *types.NoSuchKey
	var nf *types.NotFound

	return errors.As(err, &nsk) || errors.As(err, &nf)
}

// Open starts a GET of the whole object.
func (s *Store) Open(ctx context.Context, name string) (blobstore.Blob, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(name)),
	})
	if err != nil {
		if notFound(err) {
			return nil, fmt.Errorf("%w: %s", blobstore.ErrNotFound, name)
		}

		return nil, err
	}

	return &object{ReadCloser: out.Body, size: aws.ToInt64(out.ContentLength)}, nil
}

func (s *Store) upload(ctx context.Context, name string, body io.Reader) error {
	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(name)),
		Body:   body,
	})

	return err
}

func (s *Store) Put(ctx context.Context, name string, data []byte) error {
	return s.upload(ctx, name, bytes.NewReader(data))
}

// Create streams the written bytes into an upload that completes on Close.
// Abort fails the upload, so no object is created.
func (s *Store) Create(ctx context.Context, name string) (blobstore.WritableBlob, error) {
	pr, pw := io.Pipe()
	u := &upload{pw: pw, done: make(chan error, 1)}

	go func() {
		err := s.upload(ctx, name, pr)
		_ = pr.CloseWithError(err)
		u.done <- err
	}()

	return u, nil
}

func (s *Store) Delete(ctx context.Context, name string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(name)),
	})
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

	pages := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(full),
	})

	for pages.HasMorePages() {
		page, err := pages.NextPage(ctx)
		if err != nil {
			return nil, err
		}

		for _, obj := range page.Contents {
			names = append(names, s.blobName(aws.ToString(obj.Key)))
		}
	}

	slices.Sort(names)

	return names, nil
}

type object struct {
	io.ReadCloser
	size int64
}

func (o *object) Size() int64 { return o.size }

var errAborted = errors.New("s3: upload aborted")

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

func (u *upload) Abort() error {
	if u.over {
		return nil
	}

	u.over = true
	_ = u.pw.CloseWithError(errAborted)
	<-u.done

	return nil
}
