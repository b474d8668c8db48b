// Package storage uploads lab documents to an S3-compatible bucket and hands
// back publicly addressable URLs for the lab record.
package storage

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/docuveda/lab-service/pkg/config"
)

// Client is the S3 surface the uploader needs.
type Client interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// Uploader stores uploaded files in a single bucket. Object keys are
// timestamp-prefixed original filenames.
type Uploader struct {
	client   Client
	bucket   string
	region   string
	endpoint string
}

// MaxUploadSize is the per-file limit enforced by the upload handlers.
const MaxUploadSize = 10 << 20 // 10 MiB

var uploader *Uploader

// InitUploader builds the global uploader from configuration.
func InitUploader(ctx context.Context, cfg *config.StorageConfig) (*Uploader, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("storage bucket is required")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load storage credentials: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.PathStyle {
			o.UsePathStyle = true
		}
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})

	uploader = NewUploader(client, cfg.Bucket, cfg.Region, cfg.Endpoint)
	return uploader, nil
}

// NewUploader creates an uploader on top of an existing client.
func NewUploader(client Client, bucket, region, endpoint string) *Uploader {
	return &Uploader{client: client, bucket: bucket, region: region, endpoint: endpoint}
}

// GetUploader returns the global uploader instance.
func GetUploader() *Uploader {
	return uploader
}

// Upload stores the file and returns its public URL.
func (u *Uploader) Upload(ctx context.Context, filename, contentType string, body io.Reader) (string, error) {
	key := fmt.Sprintf("%d-%s", time.Now().UnixMilli(), filename)

	input := &s3.PutObjectInput{
		Bucket: aws.String(u.bucket),
		Key:    aws.String(key),
		Body:   body,
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	if _, err := u.client.PutObject(ctx, input); err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", filename, err)
	}

	return u.publicURL(key), nil
}

// Ping verifies the bucket is reachable.
func (u *Uploader) Ping(ctx context.Context) error {
	_, err := u.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(u.bucket)})
	return err
}

func (u *Uploader) publicURL(key string) string {
	if u.endpoint != "" {
		return fmt.Sprintf("%s/%s/%s", strings.TrimRight(u.endpoint, "/"), u.bucket, key)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", u.bucket, u.region, key)
}
