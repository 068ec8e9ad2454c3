package storage

import (
	"context"
	"fmt"
	"io/fs"
	"path"
	"path/filepath"
	"strings"

	"github.com/dunamismax/enlarge/internal/domain"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type Config struct {
	Endpoint string
	Access   string
	Secret   string
	Bucket   string
	UseSSL   bool
}

type Client struct {
	minio  *minio.Client
	bucket string
}

func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, fmt.Errorf("bucket is required")
	}

	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.Access, cfg.Secret, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	return &Client{
		minio:  mc,
		bucket: cfg.Bucket,
	}, nil
}

func (c *Client) Bucket() string {
	return c.bucket
}

func (c *Client) EnsureBucket(ctx context.Context) error {
	exists, err := c.minio.BucketExists(ctx, c.bucket)
	if err != nil {
		return fmt.Errorf("check bucket existence: %w", err)
	}
	if exists {
		return nil
	}

	if err := c.minio.MakeBucket(ctx, c.bucket, minio.MakeBucketOptions{}); err != nil {
		exists, checkErr := c.minio.BucketExists(ctx, c.bucket)
		if checkErr == nil && exists {
			return nil
		}
		return fmt.Errorf("create bucket %s: %w", c.bucket, err)
	}

	return nil
}

func (c *Client) UploadFile(ctx context.Context, objectKey, filePath string) (int64, error) {
	info, err := c.minio.FPutObject(ctx, c.bucket, objectKey, filePath, minio.PutObjectOptions{
		ContentType: contentTypeForName(filePath),
	})
	if err != nil {
		return 0, fmt.Errorf("put object %s: %w", objectKey, err)
	}
	return info.Size, nil
}

// PublishTree uploads every regular file under root to prefix/<relative path>
// and returns the number of objects written.
func (c *Client) PublishTree(ctx context.Context, root, prefix string) (int, error) {
	uploaded := 0
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		if _, err := c.UploadFile(ctx, ObjectKey(prefix, rel), p); err != nil {
			return err
		}
		uploaded++
		return nil
	})
	if err != nil {
		return uploaded, fmt.Errorf("publish %s: %w", root, err)
	}
	return uploaded, nil
}

// ObjectKey joins prefix and a relative OS path into a slash separated key.
func ObjectKey(prefix, rel string) string {
	return path.Join(strings.Trim(prefix, "/"), filepath.ToSlash(rel))
}

func contentTypeForName(name string) string {
	if kind, ok := domain.Classify(name); ok {
		return kind.ContentType()
	}
	if domain.IsArchive(name) {
		return "application/zip"
	}
	return "application/octet-stream"
}
