package storage

import "context"

// UploadOptions conveys archive destination metadata.
type UploadOptions struct {
	Bucket    string
	KeyPrefix string
}

// Service stores purge archives in remote object storage.
type Service interface {
	// UploadArchive writes payload under the configured prefix and returns
	// the resulting object location (s3://bucket/key).
	UploadArchive(ctx context.Context, name string, payload []byte, opts UploadOptions) (string, error)
}
