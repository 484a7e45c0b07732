package main

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/hupe1980/chunkcpd/blobstore"
	minioblob "github.com/hupe1980/chunkcpd/blobstore/minio"
	s3blob "github.com/hupe1980/chunkcpd/blobstore/s3"
)

// openStore resolves a store location:
//
//	results                       local directory
//	file:///var/lib/chunkcpd      local directory
//	s3://bucket/prefix            AWS S3, default credential chain
//	minio://host:9000/bucket/pre  MinIO, MINIO_ACCESS_KEY and MINIO_SECRET_KEY
//
// MinIO locations accept ?secure=true for TLS.
func openStore(ctx context.Context, location string) (blobstore.BlobStore, error) {
	if !strings.Contains(location, "://") {
		return blobstore.NewLocalStore(location), nil
	}

	u, err := url.Parse(location)
	if err != nil {
		return nil, fmt.Errorf("invalid store location %q: %w", location, err)
	}

	switch u.Scheme {
	case "file":
		return blobstore.NewLocalStore(u.Path), nil
	case "s3":
		if u.Host == "" {
			return nil, fmt.Errorf("invalid store location %q: missing bucket", location)
		}

		cfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("load AWS config: %w", err)
		}

		return s3blob.NewStore(s3.NewFromConfig(cfg), u.Host, strings.Trim(u.Path, "/")), nil
	case "minio":
		bucket, prefix, _ := strings.Cut(strings.Trim(u.Path, "/"), "/")
		if u.Host == "" || bucket == "" {
			return nil, fmt.Errorf("invalid store location %q: need host and bucket", location)
		}

		client, err := minio.New(u.Host, &minio.Options{
			Creds:  credentials.NewStaticV4(os.Getenv("MINIO_ACCESS_KEY"), os.Getenv("MINIO_SECRET_KEY"), ""),
			Secure: u.Query().Get("secure") == "true",
		})
		if err != nil {
			return nil, err
		}

		return minioblob.NewStore(client, bucket, prefix), nil
	default:
		return nil, fmt.Errorf("unsupported store scheme %q", u.Scheme)
	}
}
