package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

var (
	ErrNotConfigured = errors.New("s3: uploader is not configured")
	errKeyRequired   = errors.New("s3: object key is required")
)

// Uploader stores an attachment and returns the URL clients fetch it from.
type Uploader interface {
	Upload(ctx context.Context, key string, reader io.Reader, contentType string) (publicURL string, err error)
}

type Options struct {
	Endpoint string
	// PublicEndpoint is the base clients use to fetch objects. Defaults to Endpoint.
	PublicEndpoint string
	AccessKey      string
	SecretKey      string
	Bucket         string
	UseSSL         bool
}

// Client uploads attachments to a MinIO or S3 bucket that is readable anonymously.
type Client struct {
	bucket     string
	publicBase string
	api        *minio.Client
	logger     *slog.Logger

	mu          sync.Mutex
	bucketReady bool
}

func NewClient(opts Options, logger *slog.Logger) (*Client, error) {
	endpoint := strings.TrimSpace(opts.Endpoint)
	if endpoint == "" {
		return nil, errors.New("s3: endpoint is required")
	}
	bucket := strings.TrimSpace(opts.Bucket)
	if bucket == "" {
		return nil, errors.New("s3: bucket is required")
	}
	api, err := minio.New(hostOf(endpoint), &minio.Options{
		Creds:  credentials.NewStaticV4(strings.TrimSpace(opts.AccessKey), strings.TrimSpace(opts.SecretKey), ""),
		Secure: opts.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("s3: create client: %w", err)
	}
	return &Client{
		bucket:     bucket,
		publicBase: publicBase(opts),
		api:        api,
		logger:     logger,
	}, nil
}

func (c *Client) Upload(ctx context.Context, key string, reader io.Reader, contentType string) (string, error) {
	if reader == nil {
		return "", errors.New("s3: reader is required")
	}
	key = strings.Trim(strings.TrimSpace(key), "/")
	if key == "" {
		return "", errKeyRequired
	}
	if err := c.ensureBucket(ctx); err != nil {
		return "", err
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	info, err := c.api.PutObject(ctx, c.bucket, key, reader, -1, minio.PutObjectOptions{
		ContentType:  contentType,
		CacheControl: "public, max-age=31536000, immutable",
	})
	if err != nil {
		return "", fmt.Errorf("s3: put object: %w", err)
	}
	publicURL := c.ObjectURL(key)
	if c.logger != nil {
		c.logger.Info("attachment stored", "bucket", c.bucket, "key", key, "size", info.Size)
	}
	return publicURL, nil
}

// Ping reports whether the bucket is reachable; used by readiness checks.
func (c *Client) Ping(ctx context.Context) error {
	if _, err := c.api.BucketExists(ctx, c.bucket); err != nil {
		return fmt.Errorf("s3: ping: %w", err)
	}
	return nil
}

func (c *Client) ObjectURL(key string) string {
	return fmt.Sprintf("%s/%s/%s", c.publicBase, c.bucket, strings.TrimLeft(key, "/"))
}

// ensureBucket creates the bucket with an anonymous read policy the first time it is
// needed. A failed attempt is retried on the next upload.
func (c *Client) ensureBucket(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.bucketReady {
		return nil
	}
	exists, err := c.api.BucketExists(ctx, c.bucket)
	if err != nil {
		return fmt.Errorf("s3: check bucket: %w", err)
	}
	if !exists {
		if err := c.api.MakeBucket(ctx, c.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("s3: create bucket: %w", err)
		}
	}
	if err := c.api.SetBucketPolicy(ctx, c.bucket, readPolicy(c.bucket)); err != nil {
		return fmt.Errorf("s3: set bucket policy: %w", err)
	}
	c.bucketReady = true
	return nil
}

func readPolicy(bucket string) string {
	return fmt.Sprintf(`{"Version":"2012-10-17","Statement":[{"Effect":"Allow","Principal":{"AWS":["*"]},"Action":["s3:GetObject"],"Resource":["arn:aws:s3:::%s/*"]}]}`, bucket)
}

// NoopUploader rejects every upload. It stands in when no bucket is configured.
type NoopUploader struct{}

func (NoopUploader) Upload(context.Context, string, io.Reader, string) (string, error) {
	return "", ErrNotConfigured
}

func publicBase(opts Options) string {
	base := strings.TrimSpace(opts.PublicEndpoint)
	if base == "" {
		base = strings.TrimSpace(opts.Endpoint)
	}
	if !strings.Contains(base, "://") {
		scheme := "http"
		if opts.UseSSL {
			scheme = "https"
		}
		base = scheme + "://" + base
	}
	return strings.TrimRight(base, "/")
}

// hostOf strips the scheme from endpoints written as URLs; minio wants host[:port].
func hostOf(endpoint string) string {
	if parsed, err := url.Parse(endpoint); err == nil && parsed.Host != "" {
		return parsed.Host
	}
	return endpoint
}

var (
	_ Uploader = (*Client)(nil)
	_ Uploader = NoopUploader{}
)
