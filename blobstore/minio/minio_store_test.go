package minio

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/chunkcpd/blobstore"
)

const runBlob = "CPDA\x01\x00\x04json" + `{"change_points":[300,650]}`

func TestObjectKeys(t *testing.T) {
	s := NewStore(nil, "runs", "/plant-7/")
	assert.Equal(t, "plant-7/runs/a.cpd", s.objectKey("runs/a.cpd"))
	assert.Equal(t, "runs/a.cpd", s.blobName("plant-7/runs/a.cpd"))

	bare := NewStore(nil, "runs", "")
	assert.Equal(t, "runs/a.cpd", bare.objectKey("runs/a.cpd"))
	assert.Equal(t, "runs/a.cpd", bare.blobName("runs/a.cpd"))
}

func TestNotFound(t *testing.T) {
	assert.True(t, notFound(minio.ErrorResponse{Code: "NoSuchKey"}))
	assert.True(t, notFound(minio.ErrorResponse{Code: "NotFound"}))
	assert.False(t, notFound(minio.ErrorResponse{Code: "AccessDenied"}))
	assert.False(t, notFound(errors.New("connection refused")))
}

// TestStoreRuns needs a MinIO server; MINIO_ENDPOINT defaults to
// localhost:9000 with the minioadmin credentials.
func TestStoreRuns(t *testing.T) {
	endpoint := os.Getenv("MINIO_ENDPOINT")
	if endpoint == "" {
		endpoint = "localhost:9000"
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds: credentials.NewStaticV4("minioadmin", "minioadmin", ""),
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if _, err := client.ListBuckets(ctx); err != nil {
		t.Skipf("MinIO not available: %v", err)
	}

	const bucket = "chunkcpd-runs"

	ok, err := client.BucketExists(ctx, bucket)
	require.NoError(t, err)

	if !ok {
		require.NoError(t, client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}))
	}

	store := NewStore(client, bucket, fmt.Sprintf("test-%d", time.Now().UnixNano()))

	w, err := store.Create(ctx, "runs/a.cpd")
	require.NoError(t, err)
	_, err = w.Write([]byte(runBlob))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	require.NoError(t, store.Put(ctx, "runs/b.cpd", []byte(runBlob)))

	aborted, err := store.Create(ctx, "runs/c.cpd")
	require.NoError(t, err)
	_, err = aborted.Write([]byte("CPDA"))
	require.NoError(t, err)
	require.NoError(t, aborted.Abort())

	names, err := store.List(ctx, "runs/")
	require.NoError(t, err)
	assert.Equal(t, []string{"runs/a.cpd", "runs/b.cpd"}, names)

	got, err := blobstore.ReadAll(ctx, store, "runs/a.cpd")
	require.NoError(t, err)
	assert.Equal(t, runBlob, string(got))

	for _, name := range names {
		require.NoError(t, store.Delete(ctx, name))
	}

	_, err = store.Open(ctx, "runs/a.cpd")
	require.ErrorIs(t, err, blobstore.ErrNotFound)
}
