package shelterboard

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// s3Getter is the slice of the S3 client the source uses, abstracted for
// test injection.
type s3Getter interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Source fetches the dataset object from S3 or an S3-compatible store.
type S3Source struct {
	client  s3Getter
	bucket  string
	key     string
	retryer *Retryer
}

// NewS3Source creates a source for the configured bucket and key. With no
// static credentials the default AWS credential chain applies; Endpoint and
// UsePathStyle support MinIO and similar stores.
func NewS3Source(cfg S3SourceConfig, retry RetryConfig) (*S3Source, error) {
	if cfg.Bucket == "" || cfg.Key == "" {
		return nil, errors.New("source: s3 bucket and key are required")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	var opts []func(*config.LoadOptions) error
	opts = append(opts, config.WithRegion(region))
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("source: load AWS config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = cfg.UsePathStyle
		})
	}

	return &S3Source{
		client:  s3.NewFromConfig(awsCfg, s3Opts...),
		bucket:  cfg.Bucket,
		key:     cfg.Key,
		retryer: NewRetryer(retry),
	}, nil
}

// Fetch downloads the object with retries.
func (s *S3Source) Fetch(ctx context.Context) ([]byte, error) {
	var payload []byte
	err := s.retryer.Do(ctx, func() error {
		resp, err := s.client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(s.key),
		})
		if err != nil {
			return fmt.Errorf("S3 get object: %w", err)
		}
		defer func() { _ = resp.Body.Close() }()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("S3 read body: %w", err)
		}
		if len(data) == 0 {
			return errors.New("S3 object is empty")
		}
		payload = data
		return nil
	})
	if err != nil {
		return nil, newLoadError(LoadErrorTypeFetch, "fetch dataset", s.Describe(), err)
	}
	return payload, nil
}

// Describe returns the object location as an s3:// URL.
func (s *S3Source) Describe() string {
	return fmt.Sprintf("s3://%s/%s", s.bucket, s.key)
}
