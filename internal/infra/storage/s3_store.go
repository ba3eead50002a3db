// Package storage holds the object storage backend for attachments.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/buildledger/api/internal/config"
	"github.com/buildledger/api/pkg/domain/shared"
	"github.com/buildledger/api/pkg/logger"
)

// S3Store implements attachment.Store on S3 or any S3-compatible
// service (MinIO in development).
type S3Store struct {
	client  *s3.Client
	presign *s3.PresignClient
	bucket  string
	logger  *logger.Logger
}

// NewS3Store creates a store from storage configuration. Static keys
// take precedence; with no keys configured, the default AWS credential
// chain applies (env, shared config, IAM role).
func NewS3Store(ctx context.Context, cfg *config.StorageConfig, log *logger.Logger) (*S3Store, error) {
	if cfg == nil {
		return nil, errors.New("storage config is required")
	}
	if cfg.Bucket == "" {
		return nil, errors.New("storage bucket is required")
	}
	if log == nil {
		return nil, errors.New("logger is required")
	}

	awsOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" {
		awsOpts = append(awsOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	s3Opts := []func(*s3.Options){}
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = cfg.ForcePathStyle
		})
	}

	client := s3.NewFromConfig(awsCfg, s3Opts...)

	log.Info("object storage configured",
		"bucket", cfg.Bucket,
		"region", cfg.Region,
		"endpoint", cfg.Endpoint,
	)

	return &S3Store{
		client:  client,
		presign: s3.NewPresignClient(client),
		bucket:  cfg.Bucket,
		logger:  log,
	}, nil
}

// Put uploads an object.
func (s *S3Store) Put(ctx context.Context, key, contentType string, size int64, body io.Reader) error {
	if key == "" {
		return errors.New("key is required")
	}

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          body,
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(size),
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", key, err)
	}

	s.logger.Debug("object uploaded", "key", key, "size", size)
	return nil
}

// Get downloads an object. The caller owns the returned body.
func (s *S3Store) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	if key == "" {
		return nil, errors.New("key is required")
	}

	resp, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, fmt.Errorf("object %s %w", key, shared.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get %s: %w", key, err)
	}

	return resp.Body, nil
}

// Delete removes an object. Deleting a missing key is not an error;
// S3 treats it as a no-op and so do we.
func (s *S3Store) Delete(ctx context.Context, key string) error {
	if key == "" {
		return errors.New("key is required")
	}

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}

	s.logger.Debug("object deleted", "key", key)
	return nil
}

// PresignGet returns a time-limited download URL. The API never proxies
// attachment bytes; clients download straight from storage.
func (s *S3Store) PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error) {
	if key == "" {
		return "", errors.New("key is required")
	}
	if expiry <= 0 {
		return "", errors.New("expiry must be positive")
	}

	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(expiry))
	if err != nil {
		return "", fmt.Errorf("failed to presign %s: %w", key, err)
	}

	return req.URL, nil
}
