// Package s3 provides an S3 implementation of the blobstore.BlobStore interface.
//
// # Usage
//
//	cfg, _ := config.LoadDefaultConfig(ctx)
//	store := s3.NewStore(awss3.NewFromConfig(cfg), "my-bucket", "segmentations/")
//
//	arc := archive.New(store)
//
// # Features
//
//   - Multipart uploads through the SDK upload manager
//   - Automatic pagination for listing
//   - Configurable prefix for multi-tenant isolation
package s3
