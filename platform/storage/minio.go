package storage

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"csv_stream_backend/pkg/errs"
	"csv_stream_backend/pkg/logging"
)

type MinioConfig struct {
	Endpoint  string
	AccessID  string
	AccessKey string
	Bucket    string
	Region    string
	UseSSL    bool
	// PublicBaseURL, when set, is used for direct links instead of presigning.
	PublicBaseURL string
	PresignExpiry time.Duration
}

// MinioBackend stores results in any S3-compatible bucket (MinIO, Spaces).
type MinioBackend struct {
	Client *minio.Client
	cfg    MinioConfig
}

func NewMinioBackend(ctx context.Context, cfg MinioConfig) (*MinioBackend, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket must be specified for minio storage")
	}
	if cfg.PresignExpiry <= 0 {
		cfg.PresignExpiry = time.Hour
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessID, cfg.AccessKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, err
	}
	b := &MinioBackend{Client: client, cfg: cfg}
	if err := b.EnsureBucketExists(ctx); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *MinioBackend) Kind() string { return TypeMinio }

func (b *MinioBackend) EnsureBucketExists(ctx context.Context) error {
	exists, err := b.Client.BucketExists(ctx, b.cfg.Bucket)
	if err != nil {
		logging.Logger.Error("fail EnsureBucketExists", "error", err)
		return err
	}
	if exists {
		logging.Logger.Info("Bucket already exists", "bucket", b.cfg.Bucket)
		return nil
	}
	err = b.Client.MakeBucket(ctx, b.cfg.Bucket, minio.MakeBucketOptions{
		Region: b.cfg.Region,
	})
	if err != nil {
		logging.Logger.Error("fail EnsureBucketExists", "error", err)
		return err
	}
	logging.Logger.Info("Bucket created successfully", "bucket", b.cfg.Bucket)
	return nil
}

func (b *MinioBackend) Save(ctx context.Context, logicalPath string, content []byte) (string, error) {
	key, err := objectKey(logicalPath)
	if err != nil {
		return "", errs.Wrap(err, errs.CodeInvalidInput, "MinioBackend.Save", "object key")
	}
	_, err = b.Client.PutObject(ctx, b.cfg.Bucket, key, bytes.NewReader(content), int64(len(content)), minio.PutObjectOptions{
		ContentType: "text/csv",
	})
	if err != nil {
		logging.Logger.Error("fail PutObject", "bucket", b.cfg.Bucket, "key", key, "error", err)
		return "", errs.Wrap(err, errs.CodeStorage, "MinioBackend.Save", "put object")
	}
	return key, nil
}

func (b *MinioBackend) Exists(ctx context.Context, logicalPath string) (bool, error) {
	key, err := objectKey(logicalPath)
	if err != nil {
		return false, errs.Wrap(err, errs.CodeInvalidInput, "MinioBackend.Exists", "object key")
	}
	_, err = b.Client.StatObject(ctx, b.cfg.Bucket, key, minio.StatObjectOptions{})
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return false, nil
		}
		return false, errs.Wrap(err, errs.CodeStorage, "MinioBackend.Exists", "stat object")
	}
	return true, nil
}

// URLFor prefers a direct public link and falls back to a presigned GET.
func (b *MinioBackend) URLFor(ctx context.Context, logicalPath string) (string, error) {
	key, err := objectKey(logicalPath)
	if err != nil {
		return "", errs.Wrap(err, errs.CodeInvalidInput, "MinioBackend.URLFor", "object key")
	}
	if direct := b.publicURL(key); direct != "" {
		return direct, nil
	}
	presignedURL, err := b.Client.PresignedGetObject(ctx, b.cfg.Bucket, key, b.cfg.PresignExpiry, url.Values{})
	if err != nil {
		logging.Logger.Error("fail PresignedGetObject", "error", err)
		return fmt.Sprintf("s3://%s/%s", b.cfg.Bucket, key), nil
	}
	return presignedURL.String(), nil
}

func (b *MinioBackend) publicURL(key string) string {
	if b.cfg.PublicBaseURL != "" {
		return strings.TrimRight(b.cfg.PublicBaseURL, "/") + "/" + key
	}
	if strings.Contains(b.cfg.Endpoint, "digitaloceanspaces") {
		return fmt.Sprintf("https://%s.%s.digitaloceanspaces.com/%s", b.cfg.Bucket, b.cfg.Region, key)
	}
	return ""
}
