package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrUnsafeKey is returned for object keys that would resolve outside the
// temp dir, such as absolute keys or keys with ".." segments.
var ErrUnsafeKey = errors.New("object key escapes temp dir")

// UploadOptions tweaks how an object is written.
type UploadOptions struct {
	PublicRead  bool
	ContentType string
}

// MoveOptions controls Move. An empty NewBucket keeps the object in its bucket.
type MoveOptions struct {
	NewBucket    string
	KeepOriginal bool
}

// ObjectStorage captures the S3-compatible operations the sync pipeline needs.
type ObjectStorage interface {
	Download(ctx context.Context, bucket, key, destPath string) error
	Upload(ctx context.Context, bucket, key, srcPath string, opts UploadOptions) error
	Copy(ctx context.Context, srcBucket, srcKey, dstBucket, dstKey string) error
	Delete(ctx context.Context, bucket, key string) error
}

// DownloadToTemp downloads bucket/key below tempDir, following the folder
// layout of the key: "archive/a_file.txt" lands in tempDir/archive/a_file.txt.
func DownloadToTemp(ctx context.Context, store ObjectStorage, tempDir, bucket, key string) (string, error) {
	if tempDir == "" {
		return "", fmt.Errorf("temp dir is required")
	}

	local := filepath.FromSlash(key)
	if !filepath.IsLocal(local) {
		return "", fmt.Errorf("%w: %q", ErrUnsafeKey, key)
	}

	destPath := filepath.Join(tempDir, local)
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return "", fmt.Errorf("failed creating directory for %s: %w", destPath, err)
	}

	if err := store.Download(ctx, bucket, key, destPath); err != nil {
		return "", fmt.Errorf("download %s/%s: %w", bucket, key, err)
	}
	return destPath, nil
}

// Move copies key to newKey and removes the source unless opts.KeepOriginal is set.
func Move(ctx context.Context, store ObjectStorage, key, newKey, bucket string, opts MoveOptions) error {
	dstBucket := opts.NewBucket
	if dstBucket == "" {
		dstBucket = bucket
	}

	if err := store.Copy(ctx, bucket, key, dstBucket, newKey); err != nil {
		return fmt.Errorf("copy %s/%s to %s/%s: %w", bucket, key, dstBucket, newKey, err)
	}

	if opts.KeepOriginal {
		return nil
	}

	if err := store.Delete(ctx, bucket, key); err != nil {
		return fmt.Errorf("delete %s/%s: %w", bucket, key, err)
	}
	return nil
}
