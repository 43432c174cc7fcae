package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog/log"
)

// MinioConfig encapsulates the connection info for S3-compatible storage
// (AWS S3, MinIO, Sevalla).
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Region    string
	UseSSL    bool
}

// MinioClient implements ObjectStorage on top of minio-go.
type MinioClient struct {
	client *minio.Client
}

// NewMinioClient builds a MinioClient. Without static keys it falls back to the
// usual AWS credential chain (env, shared credentials file, IAM role).
func NewMinioClient(cfg MinioConfig) (*MinioClient, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("storage endpoint must be provided")
	}

	secure := cfg.UseSSL
	switch {
	case strings.HasPrefix(endpoint, "https://"):
		secure = true
		endpoint = strings.TrimPrefix(endpoint, "https://")
	case strings.HasPrefix(endpoint, "http://"):
		secure = false
		endpoint = strings.TrimPrefix(endpoint, "http://")
	}
	endpoint = strings.TrimSuffix(endpoint, "/")

	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "us-east-1"
	}

	var creds *credentials.Credentials
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		creds = credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, "")
	} else {
		log.Debug().Str("endpoint", endpoint).Msg("no static storage keys, using AWS credential chain")
		creds = credentials.NewChainCredentials([]credentials.Provider{
			&credentials.EnvAWS{},
			&credentials.FileAWSCredentials{},
			&credentials.IAM{},
		})
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  creds,
		Secure: secure,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	return &MinioClient{client: client}, nil
}

// Download writes bucket/key to destPath.
func (c *MinioClient) Download(ctx context.Context, bucket, key, destPath string) error {
	if err := c.client.FGetObject(ctx, bucket, key, destPath, minio.GetObjectOptions{}); err != nil {
		return fmt.Errorf("storage get failed: %w", err)
	}
	return nil
}

// Upload puts the local file srcPath at bucket/key.
func (c *MinioClient) Upload(ctx context.Context, bucket, key, srcPath string, opts UploadOptions) error {
	putOpts := minio.PutObjectOptions{ContentType: opts.ContentType}
	if putOpts.ContentType == "" && strings.HasSuffix(strings.ToLower(key), ".csv") {
		putOpts.ContentType = "text/csv"
	}
	if opts.PublicRead {
		putOpts.UserMetadata = map[string]string{"x-amz-acl": "public-read"}
	}

	if _, err := c.client.FPutObject(ctx, bucket, key, srcPath, putOpts); err != nil {
		return fmt.Errorf("storage put failed: %w", err)
	}
	return nil
}

// Copy server-side copies srcBucket/srcKey to dstBucket/dstKey.
func (c *MinioClient) Copy(ctx context.Context, srcBucket, srcKey, dstBucket, dstKey string) error {
	_, err := c.client.CopyObject(ctx,
		minio.CopyDestOptions{Bucket: dstBucket, Object: dstKey},
		minio.CopySrcOptions{Bucket: srcBucket, Object: srcKey},
	)
	if err != nil {
		return fmt.Errorf("storage copy failed: %w", err)
	}
	return nil
}

// Delete removes bucket/key.
func (c *MinioClient) Delete(ctx context.Context, bucket, key string) error {
	if err := c.client.RemoveObject(ctx, bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("storage delete failed: %w", err)
	}
	return nil
}

var _ ObjectStorage = (*MinioClient)(nil)
