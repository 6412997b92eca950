package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"csv_stream_backend/pkg/errs"
	"csv_stream_backend/pkg/logging"
)

type S3Config struct {
	// Endpoint overrides the AWS endpoint for S3-compatible services.
	Endpoint      string
	AccessID      string
	AccessKey     string
	Bucket        string
	Region        string
	PresignExpiry time.Duration
}

// S3Backend stores results in AWS S3.
type S3Backend struct {
	client  *s3.Client
	presign *s3.PresignClient
	cfg     S3Config
}

func NewS3Backend(ctx context.Context, cfg S3Config) (*S3Backend, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("S3 bucket must be specified for S3 storage")
	}
	if cfg.PresignExpiry <= 0 {
		cfg.PresignExpiry = time.Hour
	}

	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessID != "" && cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessID, cfg.AccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		})
	}
	client := s3.NewFromConfig(awsCfg, s3Opts...)

	return &S3Backend{
		client:  client,
		presign: s3.NewPresignClient(client),
		cfg:     cfg,
	}, nil
}

func (b *S3Backend) Kind() string { return TypeS3 }

func (b *S3Backend) Save(ctx context.Context, logicalPath string, content []byte) (string, error) {
	key, err := objectKey(logicalPath)
	if err != nil {
		return "", errs.Wrap(err, errs.CodeInvalidInput, "S3Backend.Save", "object key")
	}
	_, err = b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(b.cfg.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(content),
		ContentType: aws.String("text/csv"),
	})
	if err != nil {
		logging.Logger.Error("fail PutObject", "bucket", b.cfg.Bucket, "key", key, "error", err)
		return "", errs.Wrap(err, errs.CodeStorage, "S3Backend.Save", "put object")
	}
	return key, nil
}

func (b *S3Backend) Exists(ctx context.Context, logicalPath string) (bool, error) {
	key, err := objectKey(logicalPath)
	if err != nil {
		return false, errs.Wrap(err, errs.CodeInvalidInput, "S3Backend.Exists", "object key")
	}
	_, err = b.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(b.cfg.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var notFound *types.NotFound
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &notFound) || errors.As(err, &noSuchKey) {
			return false, nil
		}
		return false, errs.Wrap(err, errs.CodeStorage, "S3Backend.Exists", "head object")
	}
	return true, nil
}

// URLFor returns a presigned GET, or the s3:// locator when presigning fails.
func (b *S3Backend) URLFor(ctx context.Context, logicalPath string) (string, error) {
	key, err := objectKey(logicalPath)
	if err != nil {
		return "", errs.Wrap(err, errs.CodeInvalidInput, "S3Backend.URLFor", "object key")
	}
	resp, err := b.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.cfg.Bucket),
		Key:    aws.String(key),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = b.cfg.PresignExpiry
	})
	if err != nil {
		logging.Logger.Error("fail PresignGetObject", "error", err)
		return fmt.Sprintf("s3://%s/%s", b.cfg.Bucket, key), nil
	}
	return resp.URL, nil
}
