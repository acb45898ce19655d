// Package s3 stores engram files in an S3 bucket or any S3-compatible
// object store (MinIO, R2, OSS).
package s3

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/papercomputeco/engram/pkg/backend"
	"github.com/papercomputeco/engram/pkg/logger"
)

const defaultRegion = "us-east-1"

type Config struct {
	// Endpoint is set for S3-compatible stores and switches to path-style
	// addressing. Empty means AWS.
	Endpoint string

	Region    string
	Bucket    string
	AccessKey string
	SecretKey string

	// Prefix is prepended to every object key.
	Prefix string

	Logger *slog.Logger
}

type Backend struct {
	client *s3.Client
	bucket string
	prefix string
	logger *slog.Logger
}

func New(c Config) (*Backend, error) {
	if c.Bucket == "" {
		return nil, errors.New("s3 backend requires a bucket")
	}
	if c.AccessKey == "" || c.SecretKey == "" {
		return nil, errors.New("s3 backend requires an access key and a secret key")
	}

	region := c.Region
	if region == "" {
		region = defaultRegion
	}

	log := c.Logger
	if log == nil {
		log = logger.Nop()
	}

	cfg := aws.Config{
		Region:           region,
		Credentials:      credentials.NewStaticCredentialsProvider(c.AccessKey, c.SecretKey, ""),
		HTTPClient:       &http.Client{Timeout: backend.Timeout},
		RetryMaxAttempts: 1,

		// Many S3-compatible stores reject the SDK's default trailing checksums.
		RequestChecksumCalculation: aws.RequestChecksumCalculationWhenRequired,
		ResponseChecksumValidation: aws.ResponseChecksumValidationWhenRequired,
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if c.Endpoint != "" {
			o.BaseEndpoint = aws.String(c.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &Backend{
		client: client,
		bucket: c.Bucket,
		prefix: strings.Trim(c.Prefix, "/"),
		logger: log.With("backend", backend.NameS3),
	}, nil
}

func (b *Backend) Name() string {
	return backend.NameS3
}

func (b *Backend) key(localPath, remoteName string) string {
	name := backend.RemoteName(localPath, remoteName)
	if b.prefix == "" {
		return name
	}
	return path.Join(b.prefix, name)
}

func (b *Backend) Upload(ctx context.Context, localPath, remoteName string) bool {
	key := b.key(localPath, remoteName)

	f, err := os.Open(localPath)
	if err != nil {
		b.logger.Warn("upload failed", "key", key, "error", err)
		return false
	}
	defer f.Close()

	_, err = b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
		Body:   f,
	})
	if err != nil {
		b.logger.Warn("upload failed", "key", key, "error", err)
		return false
	}
	return true
}

func (b *Backend) Download(ctx context.Context, localPath, remoteName string) bool {
	key := b.key(localPath, remoteName)

	out, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		b.logger.Warn("download failed", "key", key, "error", err)
		return false
	}
	defer out.Body.Close()

	if err := backend.ReplaceFile(localPath, out.Body); err != nil {
		b.logger.Warn("download failed", "key", key, "error", err)
		return false
	}
	return true
}

func (b *Backend) TestConnection(ctx context.Context) bool {
	_, err := b.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(b.bucket)})
	if err != nil {
		b.logger.Warn("connection test failed", "bucket", b.bucket, "error", err)
		return false
	}
	return true
}

var _ backend.Backend = (*Backend)(nil)
