package blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3Config holds S3 blob store configuration.
type S3Config struct {
	Region    string
	Bucket    string
	Prefix    string
	Endpoint  string // custom endpoint for S3-compatible storage
	AccessKey string
	SecretKey string
}

// S3Store stores blobs as S3 objects. The locator is the full object
// key including the configured prefix.
type S3Store struct {
	config S3Config
	client *s3.Client
	logger *slog.Logger
}

// NewS3Store creates an S3-backed blob store.
func NewS3Store(ctx context.Context, cfg S3Config, logger *slog.Logger) (*S3Store, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}

	// Use static credentials if provided
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	s3Opts := []func(*s3.Options){}

	// Custom endpoint for S3-compatible storage
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		})
	}

	store := &S3Store{
		config: cfg,
		client: s3.NewFromConfig(awsCfg, s3Opts...),
		logger: logger.With("component", "s3-blob"),
	}

	store.logger.Info("connected to S3",
		"region", cfg.Region,
		"bucket", cfg.Bucket,
		"prefix", cfg.Prefix)

	return store, nil
}

// Put uploads data under the prefixed key and returns the object key as
// the locator.
func (s *S3Store) Put(ctx context.Context, key string, data []byte) (string, error) {
	objectKey := path.Join(s.config.Prefix, key)

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.config.Bucket),
		Key:    aws.String(objectKey),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload blob to S3: %w", err)
	}

	s.logger.Debug("uploaded blob", "key", objectKey, "bytes", len(data))

	return objectKey, nil
}

// Get downloads the object stored under locator.
func (s *S3Store) Get(ctx context.Context, locator string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.config.Bucket),
		Key:    aws.String(locator),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to download blob from S3: %w", err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read blob body: %w", err)
	}

	return data, nil
}
