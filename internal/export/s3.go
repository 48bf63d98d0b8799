package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/star/closeapproach/internal/cad"
)

// ErrS3NotConfigured is returned when an upload is requested without a bucket.
var ErrS3NotConfigured = errors.New("s3 export is not configured")

// S3Config holds settings for CSV uploads.
type S3Config struct {
	Bucket string
	// Prefix is prepended to every object key, e.g. "exports/".
	Prefix string
	// Region is the AWS region for the bucket.
	Region string
	// Endpoint is an optional custom endpoint (MinIO, LocalStack).
	Endpoint string
	// UsePathStyle enables path-style addressing (required for MinIO).
	UsePathStyle bool
}

// putObjectAPI is the subset of *s3.Client used for uploads.
type putObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Uploader writes CSV exports to a bucket.
type S3Uploader struct {
	client putObjectAPI
	cfg    S3Config
}

// NewS3Uploader creates an uploader using the default AWS credential chain.
func NewS3Uploader(ctx context.Context, cfg S3Config) (*S3Uploader, error) {
	if cfg.Bucket == "" {
		return nil, ErrS3NotConfigured
	}

	var opts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}
	if cfg.UsePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	return &S3Uploader{client: s3.NewFromConfig(awsCfg, s3Opts...), cfg: cfg}, nil
}

// Bucket returns the destination bucket.
func (u *S3Uploader) Bucket() string {
	return u.cfg.Bucket
}

// ObjectKey returns the key an export of body taken at ts is stored under.
func (u *S3Uploader) ObjectKey(body cad.Body, ts time.Time) string {
	name := fmt.Sprintf("close_approaches_%s_%s.csv", body.Code, ts.UTC().Format("20060102T150405Z"))
	return path.Join(u.cfg.Prefix, name)
}

// Upload stores rows as CSV under key and returns the s3:// location.
func (u *S3Uploader) Upload(ctx context.Context, key string, rows cad.RowSet) (string, error) {
	data, err := Bytes(rows)
	if err != nil {
		return "", err
	}

	_, err = u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.cfg.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(ContentType),
	})
	if err != nil {
		return "", fmt.Errorf("uploading %s: %w", key, err)
	}

	return fmt.Sprintf("s3://%s/%s", u.cfg.Bucket, key), nil
}
