package storage

import (
	"context"
	"fmt"
	"path"
	"strings"

	"csv_stream_backend/config"
	"csv_stream_backend/pkg/logging"
)

const (
	TypeLocal = "local"
	TypeMinio = "minio"
	TypeS3    = "s3"
)

// Backend persists finished result files. Logical paths are slash separated
// and relative; each implementation maps them to its own namespace.
type Backend interface {
	Save(ctx context.Context, logicalPath string, content []byte) (string, error)
	Exists(ctx context.Context, logicalPath string) (bool, error)
	URLFor(ctx context.Context, logicalPath string) (string, error)
	Kind() string
}

// InitStorageService builds the backend named by cfg.StorageType.
// An empty type means results are written straight to cfg.ResultsDir and
// no backend is returned.
func InitStorageService(ctx context.Context, cfg *config.Config) (Backend, error) {
	var (
		backend Backend
		err     error
	)
	switch cfg.StorageType {
	case "":
		return nil, nil
	case TypeLocal:
		backend, err = NewLocalBackend(cfg.ResultsDir)
	case TypeMinio:
		backend, err = NewMinioBackend(ctx, MinioConfig{
			Endpoint:      cfg.BucketEndpoint,
			AccessID:      cfg.BucketAccessID,
			AccessKey:     cfg.BucketAccessKey,
			Bucket:        cfg.BucketName,
			Region:        cfg.BucketRegion,
			UseSSL:        cfg.UseSSL,
			PublicBaseURL: cfg.BucketPublicBaseURL,
			PresignExpiry: cfg.PresignExpiry,
		})
	case TypeS3:
		backend, err = NewS3Backend(ctx, S3Config{
			Endpoint:      cfg.BucketEndpoint,
			AccessID:      cfg.BucketAccessID,
			AccessKey:     cfg.BucketAccessKey,
			Bucket:        cfg.BucketName,
			Region:        cfg.BucketRegion,
			PresignExpiry: cfg.PresignExpiry,
		})
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.StorageType)
	}
	if err != nil {
		logging.Logger.Error("fail InitStorageService", "type", cfg.StorageType, "error", err)
		return nil, err
	}
	logging.Logger.Info("Storage service initialized",
		"type", cfg.StorageType,
		"bucket", cfg.BucketName,
		"region", cfg.BucketRegion,
	)
	return backend, nil
}

// objectKey normalizes a logical path into an object key.
func objectKey(logicalPath string) (string, error) {
	key := strings.TrimPrefix(path.Clean("/"+strings.ReplaceAll(logicalPath, "\\", "/")), "/")
	if key == "" || key == "." {
		return "", fmt.Errorf("empty object key for %q", logicalPath)
	}
	return key, nil
}
