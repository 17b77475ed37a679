// Package storage uploads the precompiled blog cache to an
// S3-compatible bucket (Cloudflare R2) so edge deployments can serve
// it without a local build.
package storage

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/spf13/afero"
)

// objectPutter is the slice of the S3 API the publisher needs.
type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// R2Config holds the credentials and target bucket for cache uploads.
type R2Config struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	// Prefix is prepended to every object key, e.g. "blog-cache".
	Prefix string
}

// Enabled reports whether the config is complete enough to publish.
func (c R2Config) Enabled() bool {
	return c.AccountID != "" && c.AccessKeyID != "" && c.SecretAccessKey != "" && c.Bucket != ""
}

// Publisher uploads cache artifacts to a bucket.
type Publisher struct {
	client objectPutter
	fs     afero.Fs
	bucket string
	prefix string
}

// NewPublisher builds a publisher against Cloudflare R2 using its
// S3-compatible endpoint.
func NewPublisher(ctx context.Context, cfg R2Config) (*Publisher, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("incomplete R2 configuration")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID, cfg.SecretAccessKey, "")),
		awsconfig.WithRegion("auto"),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	endpoint := fmt.Sprintf("https://%s.r2.cloudflarestorage.com", cfg.AccountID)
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
	})

	return &Publisher{
		client: client,
		fs:     afero.NewOsFs(),
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
	}, nil
}

// newPublisherWithClient is the test constructor.
func newPublisherWithClient(client objectPutter, fsys afero.Fs, bucket, prefix string) *Publisher {
	return &Publisher{client: client, fs: fsys, bucket: bucket, prefix: strings.Trim(prefix, "/")}
}

// PublishDir uploads every .json file under dir, keyed by its path
// relative to dir. Returns the number of uploaded objects.
func (p *Publisher) PublishDir(ctx context.Context, dir string) (int, error) {
	uploaded := 0
	err := afero.Walk(p.fs, dir, func(filePath string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !strings.HasSuffix(info.Name(), ".json") {
			return nil
		}

		rel, err := filepath.Rel(dir, filePath)
		if err != nil {
			return fmt.Errorf("relativize %s: %w", filePath, err)
		}

		if err := p.publishFile(ctx, filePath, rel); err != nil {
			return err
		}
		uploaded++
		return nil
	})
	if err != nil {
		return uploaded, fmt.Errorf("publish %s: %w", dir, err)
	}
	return uploaded, nil
}

func (p *Publisher) publishFile(ctx context.Context, filePath, rel string) error {
	data, err := afero.ReadFile(p.fs, filePath)
	if err != nil {
		return fmt.Errorf("read %s: %w", filePath, err)
	}

	key := path.Join(p.prefix, filepath.ToSlash(rel))
	_, err = p.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(p.bucket),
		Key:         aws.String(key),
		Body:        strings.NewReader(string(data)),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("upload %s: %w", key, err)
	}
	return nil
}

// timestampKey is used for build marker objects.
func timestampKey(prefix string, t time.Time) string {
	return path.Join(prefix, "builds", t.UTC().Format("20060102T150405Z")+".json")
}

// PublishMarker writes a small object recording when the cache was
// last published, useful for monitoring stale deployments.
func (p *Publisher) PublishMarker(ctx context.Context, t time.Time) error {
	body := fmt.Sprintf(`{"publishedAt":%q}`, t.UTC().Format(time.RFC3339))
	key := timestampKey(p.prefix, t)
	_, err := p.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(p.bucket),
		Key:         aws.String(key),
		Body:        strings.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("upload marker: %w", err)
	}
	return nil
}
