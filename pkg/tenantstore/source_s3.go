package tenantstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// S3Client is the subset of the S3 API used by S3Source.
type S3Client interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

// S3Config locates the configuration object.
type S3Config struct {
	Bucket         string        `env:"TENANTS_S3_BUCKET"`
	Key            string        `env:"TENANTS_S3_KEY" envDefault:"tenants.yaml"`
	Region         string        `env:"TENANTS_S3_REGION" envDefault:"us-east-1"`
	AccessKeyID    string        `env:"TENANTS_S3_ACCESS_KEY_ID"`
	SecretKey      string        `env:"TENANTS_S3_SECRET_KEY"`
	Endpoint       string        `env:"TENANTS_S3_ENDPOINT"` // Optional: for S3-compatible services
	ForcePathStyle bool          `env:"TENANTS_S3_FORCE_PATH_STYLE" envDefault:"false"`
	PollInterval   time.Duration `env:"TENANTS_S3_POLL_INTERVAL" envDefault:"30s"`
}

// S3Source reads the configuration document from an S3 object and reports
// changes by polling its ETag.
type S3Source struct {
	client   S3Client
	bucket   string
	key      string
	interval time.Duration
	logger   *slog.Logger

	mu   sync.Mutex
	etag string
}

// S3Option configures S3Source.
type S3Option func(*S3Source)

// WithS3Client sets a pre-configured client. Useful for testing with mocks.
func WithS3Client(client S3Client) S3Option {
	return func(s *S3Source) {
		s.client = client
	}
}

// WithS3Logger sets the source logger.
func WithS3Logger(logger *slog.Logger) S3Option {
	return func(s *S3Source) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewS3Source builds a source for cfg. Without WithS3Client the default AWS
// credential chain is used, overridden by static keys when both are set.
func NewS3Source(ctx context.Context, cfg S3Config, opts ...S3Option) (*S3Source, error) {
	if cfg.Bucket == "" || cfg.Key == "" {
		return nil, ErrInvalidS3Config
	}

	s := &S3Source{
		bucket:   cfg.Bucket,
		key:      cfg.Key,
		interval: cfg.PollInterval,
		logger:   slog.New(slog.DiscardHandler),
	}
	if s.interval <= 0 {
		s.interval = 30 * time.Second
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.client != nil {
		return s, nil
	}

	awsOptions := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" && cfg.SecretKey != "" {
		awsOptions = append(awsOptions,
			config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
				cfg.AccessKeyID,
				cfg.SecretKey,
				"",
			)),
		)
	}

	awsConfig, err := config.LoadDefaultConfig(ctx, awsOptions...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidS3Config, err)
	}

	s.client = s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.ForcePathStyle
	})
	return s, nil
}

func (s *S3Source) Load(ctx context.Context) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
	})
	if err != nil {
		return nil, classifyS3Error(err, s.bucket, s.key)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read s3://%s/%s: %w", s.bucket, s.key, err)
	}

	s.mu.Lock()
	s.etag = aws.ToString(out.ETag)
	s.mu.Unlock()
	return data, nil
}

// Watch polls the object's ETag and calls onChange when it differs from the
// last loaded version.
func (s *S3Source) Watch(ctx context.Context, onChange func()) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			changed, err := s.changed(ctx)
			if err != nil {
				s.logger.WarnContext(ctx, "tenant config poll failed",
					slog.String("bucket", s.bucket),
					slog.String("key", s.key),
					slog.Any("error", err),
				)
				continue
			}
			if changed {
				onChange()
			}
		}
	}
}

func (s *S3Source) changed(ctx context.Context) (bool, error) {
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
	})
	if err != nil {
		return false, classifyS3Error(err, s.bucket, s.key)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return aws.ToString(out.ETag) != s.etag, nil
}

func classifyS3Error(err error, bucket, key string) error {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return fmt.Errorf("%w: s3://%s/%s not found", ErrSourceUnavailable, bucket, key)
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound", "NoSuchBucket":
			return fmt.Errorf("%w: s3://%s/%s not found", ErrSourceUnavailable, bucket, key)
		default:
			return fmt.Errorf("s3://%s/%s (code: %s): %w", bucket, key, apiErr.ErrorCode(), err)
		}
	}
	return fmt.Errorf("s3://%s/%s: %w", bucket, key, err)
}
