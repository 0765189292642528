package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/filevault/backend/internal/config"
	"github.com/filevault/backend/pkg/logger"
)

type S3Client struct {
	client  *s3.Client
	bucket  string
	region  string
	baseURL string
}

func NewS3Client(ctx context.Context, cfg config.S3Config) (*S3Client, error) {
	options := []func(*awsConfig.LoadOptions) error{
		awsConfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		options = append(options, awsConfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsConfig.LoadDefaultConfig(ctx, options...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	pathStyle := cfg.ForcePathStyle || cfg.Endpoint != ""
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = pathStyle
	})

	return &S3Client{
		client:  client,
		bucket:  cfg.Bucket,
		region:  cfg.Region,
		baseURL: publicBaseURL(cfg, pathStyle),
	}, nil
}

// publicBaseURL is the prefix object paths are appended to when building URLs.
func publicBaseURL(cfg config.S3Config, pathStyle bool) string {
	switch {
	case cfg.PublicURL != "":
		return strings.TrimRight(cfg.PublicURL, "/")
	case cfg.Endpoint != "":
		return strings.TrimRight(cfg.Endpoint, "/") + "/" + cfg.Bucket
	case pathStyle:
		return fmt.Sprintf("https://s3.%s.amazonaws.com/%s", cfg.Region, cfg.Bucket)
	default:
		return fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Bucket, cfg.Region)
	}
}

func (s *S3Client) Put(ctx context.Context, objectPath string, reader io.Reader, size int64, contentType string) (*Blob, error) {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(objectPath),
		Body:          reader,
		ContentLength: aws.Int64(size),
		ContentType:   aws.String(contentType),
	})
	details := map[string]interface{}{
		"object_name":  objectPath,
		"size":         size,
		"content_type": contentType,
		"bucket":       s.bucket,
	}
	if err != nil {
		logger.Error("s3_upload_failed", err, details)
		return nil, err
	}
	logger.Info("s3_upload_success", details)

	return blobFor(s.objectURL(objectPath), objectPath), nil
}

func (s *S3Client) Delete(ctx context.Context, objectPath string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectPath),
	})
	details := map[string]interface{}{
		"object_name": objectPath,
		"bucket":      s.bucket,
	}
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			logger.Info("s3_delete_missing", details)
			return nil
		}
		logger.Error("s3_delete_failed", err, details)
		return err
	}
	logger.Info("s3_delete_success", details)
	return nil
}

func (s *S3Client) EnsureBucket(ctx context.Context) error {
	if _, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)}); err == nil {
		return nil
	}

	input := &s3.CreateBucketInput{Bucket: aws.String(s.bucket)}
	if s.region != "" && s.region != "us-east-1" {
		input.CreateBucketConfiguration = &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(s.region),
		}
	}
	if _, err := s.client.CreateBucket(ctx, input); err != nil {
		var owned *types.BucketAlreadyOwnedByYou
		if errors.As(err, &owned) {
			return nil
		}
		return fmt.Errorf("failed creating bucket %s: %w", s.bucket, err)
	}
	return nil
}

func (s *S3Client) objectURL(objectPath string) string {
	segments := strings.Split(objectPath, "/")
	for i, segment := range segments {
		segments[i] = url.PathEscape(segment)
	}
	return s.baseURL + "/" + strings.Join(segments, "/")
}
