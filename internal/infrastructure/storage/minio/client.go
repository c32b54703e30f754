package minio

import (
	"context"
	"path"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/Sira-Clinica/backend/internal/config"
	"github.com/Sira-Clinica/backend/internal/infrastructure/monitoring/logging"
	"github.com/Sira-Clinica/backend/pkg/errors"
)

// ObjectAPI is the subset of *minio.Client the artifact store uses.
type ObjectAPI interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	ListObjects(ctx context.Context, bucketName string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo
	FGetObject(ctx context.Context, bucketName, objectName, filePath string, opts minio.GetObjectOptions) error
	FPutObject(ctx context.Context, bucketName, objectName, filePath string, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// Client binds an ObjectAPI to the configured bucket and prefix.
type Client struct {
	api    ObjectAPI
	config config.MinIOConfig
	logger logging.Logger
}

// NewClient connects to MinIO and checks that the artifact bucket exists.
func NewClient(cfg config.MinIOConfig, log logging.Logger) (*Client, error) {
	if !cfg.Enabled() {
		return nil, errors.Configuration("minio endpoint is not configured")
	}
	api, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfiguration, "failed to create minio client").WithDetail(cfg.Endpoint)
	}

	c := NewClientWithAPI(api, cfg, log)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := c.HealthCheck(ctx); err != nil {
		return nil, err
	}

	c.logger.Info("MinIO client connected",
		logging.String("endpoint", cfg.Endpoint),
		logging.String("bucket", cfg.Bucket),
		logging.Bool("ssl", cfg.UseSSL))
	return c, nil
}

// NewClientWithAPI wraps an existing ObjectAPI.
func NewClientWithAPI(api ObjectAPI, cfg config.MinIOConfig, log logging.Logger) *Client {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &Client{api: api, config: cfg, logger: log.Named("minio")}
}

// HealthCheck verifies the bucket is reachable.  A missing bucket is a
// configuration error.
func (c *Client) HealthCheck(ctx context.Context) error {
	exists, err := c.api.BucketExists(ctx, c.config.Bucket)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeStorageError, "failed to reach minio").WithDetail(c.config.Endpoint)
	}
	if !exists {
		return errors.New(errors.ErrCodeConfiguration, "artifact bucket not found").WithDetail(c.config.Bucket)
	}
	return nil
}

// Bucket returns the artifact bucket.
func (c *Client) Bucket() string { return c.config.Bucket }

// ObjectKey returns the key of artifact name under the configured prefix.
func (c *Client) ObjectKey(name string) string {
	p := strings.Trim(c.config.Prefix, "/")
	if p == "" {
		return name
	}
	return path.Join(p, name)
}

func (c *Client) listPrefix() string {
	p := strings.Trim(c.config.Prefix, "/")
	if p == "" {
		return ""
	}
	return p + "/"
}
