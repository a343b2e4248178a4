package storage

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"peopleapi/internal/config"
)

const bucketCheckTimeout = 10 * time.Second

// exportStore keeps people exports in one MinIO bucket. Safe for concurrent use.
type exportStore struct {
	client *minio.Client
	bucket string
}

// NewMinIO connects to the export bucket, creating it on first start.
func NewMinIO(ctx context.Context, cfg config.MinIOConfig) (Storage, error) {
	if err := validateMinIO(cfg); err != nil {
		return nil, err
	}

	cli, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:     credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure:    cfg.UseSSL,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	})
	if err != nil {
		return nil, fmt.Errorf("create export storage client: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, bucketCheckTimeout)
	defer cancel()

	exists, err := cli.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check export bucket %q: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := cli.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create export bucket %q: %w", cfg.Bucket, err)
		}
	}

	return &exportStore{client: cli, bucket: cfg.Bucket}, nil
}

func validateMinIO(cfg config.MinIOConfig) error {
	var missing []string
	if cfg.Endpoint == "" {
		missing = append(missing, "MINIO_ENDPOINT")
	}
	if cfg.AccessKey == "" {
		missing = append(missing, "MINIO_ACCESS_KEY")
	}
	if cfg.SecretKey == "" {
		missing = append(missing, "MINIO_SECRET_KEY")
	}
	if cfg.Bucket == "" {
		missing = append(missing, "MINIO_BUCKET")
	}
	if len(missing) > 0 {
		return fmt.Errorf("invalid export storage config: missing %s", strings.Join(missing, ", "))
	}
	return nil
}

// Put streams an export into the bucket.
func (m *exportStore) Put(ctx context.Context, key string, r io.Reader, opt PutObjectOptions) (ObjectInfo, error) {
	info, err := m.client.PutObject(ctx, m.bucket, key, r, opt.Size, minio.PutObjectOptions{
		ContentType:  opt.ContentType,
		UserMetadata: opt.Metadata,
	})
	if err != nil {
		return ObjectInfo{}, err
	}
	return ObjectInfo{
		Key:         key,
		Size:        info.Size,
		ETag:        info.ETag,
		ContentType: opt.ContentType,
		Metadata:    opt.Metadata,
	}, nil
}

func (m *exportStore) Delete(ctx context.Context, key string) error {
	return m.client.RemoveObject(ctx, m.bucket, key, minio.RemoveObjectOptions{})
}

// PresignGet signs a download link that saves the export under its own file name.
func (m *exportStore) PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error) {
	u, err := m.client.PresignedGetObject(ctx, m.bucket, key, expiry, downloadParams(key))
	if err != nil {
		return "", err
	}
	return u.String(), nil
}

// downloadParams overrides the response headers of a presigned export download.
func downloadParams(key string) url.Values {
	return url.Values{
		"response-content-disposition": {mime.FormatMediaType("attachment", map[string]string{"filename": path.Base(key)})},
	}
}
