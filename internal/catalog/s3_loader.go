package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
)

// s3Loader implements Loader for reading the catalog file from AWS S3.
type s3Loader struct {
	client *s3.Client
	bucket string
	logger zerolog.Logger
}

// NewS3Loader creates a new S3-based catalog loader.
func NewS3Loader(ctx context.Context, bucket, region string, logger zerolog.Logger) (Loader, error) {
	logger = logger.With().Str("component", "s3-catalog-loader").Logger()

	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		logger.Error().Err(err).Msg("failed to load AWS configuration")
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}

	client := s3.NewFromConfig(cfg)

	logger.Info().
		Str("bucket", bucket).
		Str("region", region).
		Msg("S3 catalog loader initialised")

	return &s3Loader{
		client: client,
		bucket: bucket,
		logger: logger,
	}, nil
}

// Load fetches the catalog object from S3 and parses it. The path is the
// object key within the configured bucket.
func (l *s3Loader) Load(ctx context.Context, path string) (*Catalog, error) {
	l.logger.Info().
		Str("bucket", l.bucket).
		Str("key", path).
		Msg("loading catalog from S3")

	output, err := l.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(l.bucket),
		Key:    aws.String(path),
	})
	if err != nil {
		l.logger.Error().
			Err(err).
			Str("bucket", l.bucket).
			Str("key", path).
			Msg("failed to get catalog object from S3")
		return nil, fmt.Errorf("failed to get s3://%s/%s: %w", l.bucket, path, err)
	}
	defer output.Body.Close()

	data, err := io.ReadAll(output.Body)
	if err != nil {
		l.logger.Error().Err(err).Str("key", path).Msg("failed to read catalog object body")
		return nil, fmt.Errorf("failed to read catalog object %s: %w", path, err)
	}

	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		l.logger.Error().Err(err).Str("key", path).Msg("failed to parse catalog object")
		return nil, fmt.Errorf("failed to parse catalog object %s: %w", path, err)
	}

	c := New(entries)
	l.logger.Info().
		Str("key", path).
		Int("entries", c.Size()).
		Msg("catalog loaded from S3")

	return c, nil
}
