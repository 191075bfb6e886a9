package templates

import (
	"context"
	"errors"
	"fmt"
	"io"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// s3API defines the subset of the S3 client interface used by S3Source.
type s3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Source reads templates from <prefix><language>/<name>.txt in a bucket.
type S3Source struct {
	client s3API
	bucket string
	prefix string
}

// NewS3Source creates an S3Source with the given client, bucket, and key prefix.
func NewS3Source(client s3API, bucket, prefix string) *S3Source {
	return &S3Source{client: client, bucket: bucket, prefix: prefix}
}

// NewS3SourceFromConfig builds a real AWS S3 client from cfg. Custom
// endpoints switch to path-style addressing.
func NewS3SourceFromConfig(ctx context.Context, cfg Config) (*S3Source, error) {
	optFns := []func(*awsconfig.LoadOptions) error{}
	if cfg.S3Region != "" {
		optFns = append(optFns, awsconfig.WithRegion(cfg.S3Region))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, optFns...)
	if err != nil {
		return nil, fmt.Errorf("templates: load aws config: %w", err)
	}

	s3OptFns := []func(*s3.Options){}
	if cfg.S3Endpoint != "" {
		endpoint := cfg.S3Endpoint
		s3OptFns = append(s3OptFns, func(o *s3.Options) {
			o.BaseEndpoint = &endpoint
			o.UsePathStyle = true
		})
	}

	return NewS3Source(s3.NewFromConfig(awsCfg, s3OptFns...), cfg.S3Bucket, cfg.S3Prefix), nil
}

func (s *S3Source) key(name, language string) string {
	return s.prefix + language + "/" + name + ".txt"
}

// Load implements Source.
func (s *S3Source) Load(ctx context.Context, name, language string) (string, error) {
	if err := validateKey(name, language); err != nil {
		return "", err
	}

	k := s.key(name, language)
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &s.bucket,
		Key:    &k,
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return "", ErrTemplateNotFound
		}
		return "", fmt.Errorf("templates: s3 get: %w", err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return "", fmt.Errorf("templates: s3 read body: %w", err)
	}
	return string(data), nil
}
