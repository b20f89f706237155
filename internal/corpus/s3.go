package corpus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ObjectGetter is the subset of *s3.Client used by S3Source.
type ObjectGetter interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Source reads the corpus from a JSONL object in S3-compatible storage (R2).
type S3Source struct {
	Client ObjectGetter
	Bucket string
	Key    string
}

// R2Config holds the settings for an R2 (or other S3-compatible) client.
type R2Config struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
}

// NewR2Client creates an S3 client for R2.
func NewR2Client(cfg R2Config) (*s3.Client, error) {
	if cfg.AccessKeyID == "" {
		return nil, errors.New("access key ID is required")
	}
	if cfg.SecretAccessKey == "" {
		return nil, errors.New("secret access key is required")
	}
	if cfg.Endpoint == "" {
		return nil, errors.New("endpoint is required")
	}

	return s3.New(s3.Options{
		Region: "auto", // R2 uses auto region
		Credentials: aws.NewCredentialsCache(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"", // No session token for R2
		)),
		BaseEndpoint: aws.String(cfg.Endpoint),
		UsePathStyle: true, // R2 requires path-style addressing
	}), nil
}

// Load fetches and decodes the object.
func (s S3Source) Load(ctx context.Context) ([]Record, error) {
	out, err := s.Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(s.Key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get object: %w", err)
	}
	defer out.Body.Close()

	records, err := DecodeJSONL(out.Body)
	if err != nil {
		return nil, fmt.Errorf("s3://%s/%s: %w", s.Bucket, s.Key, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("s3://%s/%s: %w", s.Bucket, s.Key, ErrEmptyCorpus)
	}

	slog.Info("loaded provider corpus", "source", "s3", "bucket", s.Bucket, "key", s.Key, "count", len(records))
	return records, nil
}
