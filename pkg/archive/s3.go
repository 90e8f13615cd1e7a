package archive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// S3Client is the subset of *s3.Client the archive uses.
type S3Client interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Archive writes payloads to a bucket. It is safe for concurrent use.
type S3Archive struct {
	client S3Client
	bucket string
	prefix string
	now    func() time.Time
}

// Option configures S3Archive.
type Option func(*S3Archive)

// WithS3Client sets a pre-configured client. Useful for testing with mocks.
func WithS3Client(c S3Client) Option {
	return func(a *S3Archive) {
		a.client = c
	}
}

// WithNow overrides the clock used for object keys.
func WithNow(fn func() time.Time) Option {
	return func(a *S3Archive) {
		if fn != nil {
			a.now = fn
		}
	}
}

// New creates an S3Archive from cfg.
func New(ctx context.Context, cfg Config, opts ...Option) (*S3Archive, error) {
	if cfg.Bucket == "" || cfg.Region == "" {
		return nil, ErrInvalidConfig
	}
	a := &S3Archive{
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.client != nil {
		return a, nil
	}

	awsOptions := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" && cfg.SecretKey != "" {
		awsOptions = append(awsOptions, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretKey, ""),
		))
	}
	awsConfig, err := config.LoadDefaultConfig(ctx, awsOptions...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFailedToLoadConfig, err)
	}
	a.client = s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.ForcePathStyle
	})
	return a, nil
}

var unsafeKeyChars = regexp.MustCompile(`[^A-Za-z0-9._-]`)

// Key returns the object key of an event received at t.
func (a *S3Archive) Key(provider, eventID string, t time.Time) string {
	t = t.UTC()
	return path.Join(
		a.prefix,
		unsafeKeyChars.ReplaceAllString(provider, "_"),
		t.Format("2006/01/02"),
		unsafeKeyChars.ReplaceAllString(eventID, "_")+".json",
	)
}

// ArchiveEvent stores payload under the event's key.
func (a *S3Archive) ArchiveEvent(ctx context.Context, provider, eventID string, payload []byte) error {
	if eventID == "" {
		return ErrEmptyEventID
	}
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(a.Key(provider, eventID, a.now())),
		Body:        bytes.NewReader(payload),
		ContentType: aws.String("application/json"),
		Metadata: map[string]string{
			"provider": provider,
			"event-id": eventID,
		},
	})
	return classify(err)
}

func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return err
	}
	var nsb *types.NoSuchBucket
	if errors.As(err, &nsb) {
		return ErrBucketNotFound
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "AccessDenied":
			return fmt.Errorf("%w: %v", ErrAccessDenied, err)
		case "NoSuchBucket":
			return ErrBucketNotFound
		case "SlowDown", "ServiceUnavailable", "RequestTimeout":
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}
	return fmt.Errorf("archive: put object: %w", err)
}
