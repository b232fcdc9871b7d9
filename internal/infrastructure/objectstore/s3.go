package objectstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"

	"SelfLetter/internal/config"
	"SelfLetter/internal/domain"
	"SelfLetter/internal/infrastructure/markdown"
	"SelfLetter/internal/ports"
)

const maxKeyAttempts = 100

// objectAPI is the part of the S3 client the sink uses.
type objectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

// S3Sink uploads each summary as a Markdown object keyed like the file tree.
type S3Sink struct {
	client objectAPI
	bucket string
	prefix string
	loc    *time.Location
	logger *slog.Logger
}

var _ ports.SummarySink = (*S3Sink)(nil)

// NewS3Sink creates the SDK client from the default AWS configuration chain
// with optional region and endpoint overrides.
func NewS3Sink(ctx context.Context, cfg config.S3Config, loc *time.Location, log *slog.Logger) (*S3Sink, error) {
	var loadOpts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.Region))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return newS3Sink(client, cfg.Bucket, cfg.Prefix, loc, log), nil
}

func newS3Sink(client objectAPI, bucket, prefix string, loc *time.Location, log *slog.Logger) *S3Sink {
	prefix = strings.Trim(prefix, "/")
	if loc == nil {
		loc = time.UTC
	}
	return &S3Sink{client: client, bucket: bucket, prefix: prefix, loc: loc, logger: log}
}

// Save uploads the rendered document under a free key.
func (s *S3Sink) Save(ctx context.Context, result domain.SummaryResult) error {
	doc, err := markdown.Render(result)
	if err != nil {
		return err
	}

	key, err := s.freeKey(ctx, markdown.RelativePath(result, s.loc))
	if err != nil {
		return err
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(doc),
		ContentType: aws.String("text/markdown; charset=utf-8"),
	})
	if err != nil {
		return fmt.Errorf("put s3://%s/%s: %w", s.bucket, key, err)
	}
	if s.logger != nil {
		s.logger.Info("summary uploaded", "bucket", s.bucket, "key", key)
	}
	return nil
}

func (s *S3Sink) key(rel string) string {
	if s.prefix == "" {
		return rel
	}
	return s.prefix + "/" + rel
}

// freeKey appends -N to the slug until no object exists under the key.
func (s *S3Sink) freeKey(ctx context.Context, rel string) (string, error) {
	base := strings.TrimSuffix(rel, ".md")
	candidate := s.key(rel)
	for n := 1; n <= maxKeyAttempts; n++ {
		exists, err := s.exists(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("head s3://%s/%s: %w", s.bucket, candidate, err)
		}
		if !exists {
			return candidate, nil
		}
		candidate = s.key(fmt.Sprintf("%s-%d.md", base, n))
	}
	return "", fmt.Errorf("no free key for %s", rel)
}

func (s *S3Sink) exists(ctx context.Context, key string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		return true, nil
	}

	var respErr *awshttp.ResponseError
	if errors.As(err, &respErr) && respErr.HTTPStatusCode() == 404 {
		return false, nil
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && apiErr.ErrorCode() == "NotFound" {
		return false, nil
	}

	return false, err
}
