// Package archive uploads rendered documents to S3-compatible object storage
// (AWS S3 or Cloudflare R2).
package archive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/diewo77/go-backoffice/internal/config"
)

// ErrNotConfigured is returned by NullArchive.
var ErrNotConfigured = errors.New("archive not configured")

// Archive stores a rendered file and returns where it went.
type Archive interface {
	Put(ctx context.Context, key string, body []byte, contentType string) (string, error)
}

type objectPutter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Archive writes objects into a single bucket.
type S3Archive struct {
	client objectPutter
	bucket string
	prefix string
}

// NewS3Archive builds a client from cfg. Static credentials are used when both
// keys are set, otherwise the default AWS credential chain applies. A custom
// Endpoint points the client at R2 or another S3-compatible service.
func NewS3Archive(ctx context.Context, cfg config.ArchiveConfig) (*S3Archive, error) {
	if cfg.Bucket == "" {
		return nil, ErrNotConfigured
	}
	region := cfg.Region
	if region == "" {
		region = "auto"
	}
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return &S3Archive{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix}, nil
}

func (a *S3Archive) Put(ctx context.Context, key string, body []byte, contentType string) (string, error) {
	full := key
	if a.prefix != "" {
		full = path.Join(a.prefix, key)
	}
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(full),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("archive put %s: %w", full, err)
	}
	return "s3://" + a.bucket + "/" + full, nil
}

// NullArchive is used when no bucket is configured.
type NullArchive struct{}

func (NullArchive) Put(context.Context, string, []byte, string) (string, error) {
	return "", ErrNotConfigured
}

var unsafeKeyChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// DocumentKey names the object for a rendered document:
// users/{uid}/{yyyy}/{mm}/{number}-{timestamp}.{ext}
func DocumentKey(userID uint, number, ext string, at time.Time) string {
	name := strings.Trim(unsafeKeyChars.ReplaceAllString(number, "_"), "_")
	if name == "" {
		name = "document"
	}
	at = at.UTC()
	return fmt.Sprintf("users/%d/%s/%s-%s.%s",
		userID, at.Format("2006/01"), name, at.Format("20060102T150405Z"), strings.TrimPrefix(ext, "."))
}
