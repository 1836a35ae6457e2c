package storage

import (
	"context"
	"errors"
	"strings"

	gcs "cloud.google.com/go/storage"
)

// BucketChecker reports whether the media bucket is reachable with the service credentials.
type BucketChecker struct {
	client *gcs.Client
	bucket string
}

// NewBucketChecker binds a Cloud Storage client to the bucket to probe.
func NewBucketChecker(client *gcs.Client, bucket string) (*BucketChecker, error) {
	if client == nil {
		return nil, errors.New("storage: client is required")
	}
	bucket = strings.TrimSpace(bucket)
	if bucket == "" {
		return nil, errors.New("storage: bucket name is required")
	}
	return &BucketChecker{client: client, bucket: bucket}, nil
}

// Check fetches bucket metadata.
func (c *BucketChecker) Check(ctx context.Context) error {
	_, err := c.client.Bucket(c.bucket).Attrs(ctx)
	return err
}
