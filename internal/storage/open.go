package storage

import (
	"context"
	"fmt"

	"github.com/mind-engage/reshuffle/internal/config"
)

// Open builds the object store selected by BLOB_DRIVER.
func Open(ctx context.Context, cfg config.Config) (ObjectStore, error) {
	switch cfg.BlobDriver {
	case "", "fs":
		return NewFSStore(cfg.BlobBasePath)
	case "gcs":
		return NewGCSStore(ctx, cfg.BlobBucket)
	case "s3", "minio":
		return NewS3Store(S3Config{
			Bucket:    cfg.BlobBucket,
			Endpoint:  cfg.S3Endpoint,
			Region:    cfg.S3Region,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			PathStyle: cfg.S3PathStyle,
		})
	default:
		return nil, fmt.Errorf("unsupported blob driver: %s", cfg.BlobDriver)
	}
}
