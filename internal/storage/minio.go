package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"

	"github.com/filevault/backend/internal/config"
	"github.com/filevault/backend/pkg/logger"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type MinIOClient struct {
	client         *minio.Client
	bucket         string
	publicEndpoint string
	secure         bool
}

func NewMinIOClient(cfg config.MinIOConfig) (*MinIOClient, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, err
	}

	publicEndpoint := cfg.PublicEndpoint
	if publicEndpoint == "" {
		publicEndpoint = cfg.Endpoint
	}

	return &MinIOClient{
		client:         client,
		bucket:         cfg.Bucket,
		publicEndpoint: publicEndpoint,
		secure:         cfg.UseSSL,
	}, nil
}

func (m *MinIOClient) Put(ctx context.Context, objectPath string, reader io.Reader, size int64, contentType string) (*Blob, error) {
	_, err := m.client.PutObject(ctx, m.bucket, objectPath, reader, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	details := map[string]interface{}{
		"object_name":  objectPath,
		"size":         size,
		"content_type": contentType,
		"bucket":       m.bucket,
	}
	if err != nil {
		logger.Error("minio_upload_failed", err, details)
		return nil, err
	}
	logger.Info("minio_upload_success", details)

	return blobFor(m.objectURL(objectPath), objectPath), nil
}

func (m *MinIOClient) Delete(ctx context.Context, objectPath string) error {
	err := m.client.RemoveObject(ctx, m.bucket, objectPath, minio.RemoveObjectOptions{})
	details := map[string]interface{}{
		"object_name": objectPath,
		"bucket":      m.bucket,
	}
	if err != nil {
		logger.Error("minio_delete_failed", err, details)
		return err
	}
	logger.Info("minio_delete_success", details)
	return nil
}

func (m *MinIOClient) EnsureBucket(ctx context.Context) error {
	exists, err := m.client.BucketExists(ctx, m.bucket)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	if err := m.client.MakeBucket(ctx, m.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("failed creating bucket %s: %w", m.bucket, err)
	}
	return nil
}

func (m *MinIOClient) objectURL(objectPath string) string {
	scheme := "http"
	if m.secure {
		scheme = "https"
	}
	u := url.URL{Scheme: scheme, Host: m.publicEndpoint, Path: "/" + m.bucket + "/" + objectPath}
	return u.String()
}
