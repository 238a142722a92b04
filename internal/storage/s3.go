package storage

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Uploader is what the upload handler needs from the blob store.
type Uploader interface {
	Upload(ctx context.Context, key string, body []byte, contentType string) (string, error)
	Bucket() string
}

// S3Uploader stores uploaded files in an S3 bucket.
type S3Uploader struct {
	client    *s3.Client
	bucket    string
	publicURL string
}

// NewS3Uploader builds the uploader. bucket may be empty in dev; Enabled
// reports whether uploads can be served.
func NewS3Uploader(ctx context.Context, bucket, region, publicURL string) (*S3Uploader, error) {
	if bucket == "" {
		return &S3Uploader{}, nil
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return &S3Uploader{
		client:    s3.NewFromConfig(cfg),
		bucket:    bucket,
		publicURL: strings.TrimSuffix(publicURL, "/"),
	}, nil
}

func (u *S3Uploader) Enabled() bool { return u != nil && u.client != nil && u.bucket != "" }

func (u *S3Uploader) Bucket() string { return u.bucket }

// Upload puts the object and returns its public URL.
func (u *S3Uploader) Upload(ctx context.Context, key string, body []byte, contentType string) (string, error) {
	if !u.Enabled() {
		return "", fmt.Errorf("blob store not configured")
	}
	_, err := u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      &u.bucket,
		Key:         &key,
		Body:        bytes.NewReader(body),
		ContentType: &contentType,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload object: %w", err)
	}
	if u.publicURL != "" {
		return u.publicURL + "/" + key, nil
	}
	return fmt.Sprintf("https://%s.s3.amazonaws.com/%s", u.bucket, key), nil
}
