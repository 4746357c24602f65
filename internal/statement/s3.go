package statement

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Config selects the bucket. Endpoint points at an S3-compatible service such
// as MinIO and switches to path-style addressing.
type S3Config struct {
	Bucket   string
	Region   string
	Endpoint string
}

// S3Store writes statements to one bucket.
type S3Store struct {
	client *s3.Client
	bucket string
}

// NewS3 loads credentials from the default AWS chain.
func NewS3(ctx context.Context, cfg S3Config, optFns ...func(*config.LoadOptions) error) (*S3Store, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("statement bucket is required")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	loadOpts := append([]func(*config.LoadOptions) error{config.WithRegion(region)}, optFns...)
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return NewS3FromClient(client, cfg.Bucket), nil
}

func NewS3FromClient(client *s3.Client, bucket string) *S3Store {
	return &S3Store{client: client, bucket: bucket}
}

// Put writes the object with If-None-Match so an existing key is never replaced.
func (s *S3Store) Put(ctx context.Context, obj Object) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(obj.Key),
		Body:        bytes.NewReader(obj.Body),
		ContentType: aws.String(obj.ContentType),
		IfNoneMatch: aws.String("*"),
	})
	if err != nil {
		return fmt.Errorf("put statement: %w", err)
	}
	return nil
}
