package storage

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"billflow/desk/internal/config"
	"billflow/desk/internal/utils"
)

// MinioSink stores documents in the same MinIO deployment the backend keeps user objects in.
type MinioSink struct {
	client     *minio.Client
	bucket     string
	presignTTL time.Duration
}

// NewMinioSink connects to MinIO and creates the bucket when missing.
func NewMinioSink(ctx context.Context, cfg *config.Config) (*MinioSink, error) {
	client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessKey, cfg.MinioSecretKey, ""),
		Secure: cfg.MinioUseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client for %s: %w", cfg.MinioEndpoint, err)
	}

	exists, err := client.BucketExists(ctx, cfg.MinioBucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket %s: %w", cfg.MinioBucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.MinioBucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket %s: %w", cfg.MinioBucket, err)
		}
		log.Printf("Created MinIO bucket: %s", cfg.MinioBucket)
	}

	return &MinioSink{client: client, bucket: cfg.MinioBucket, presignTTL: cfg.PresignTTL}, nil
}

// Save uploads data under key and returns a presigned URL, or the object path when presigning is off.
func (s *MinioSink) Save(ctx context.Context, key, contentType string, data []byte) (string, error) {
	key, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	disposition := utils.AttachmentDisposition(downloadName(key))
	_, err = s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType, ContentDisposition: disposition})
	if err != nil {
		return "", fmt.Errorf("failed to put object %s/%s: %w", s.bucket, key, err)
	}

	if s.presignTTL <= 0 {
		return fmt.Sprintf("minio://%s/%s", s.bucket, key), nil
	}
	params := url.Values{}
	params.Set("response-content-disposition", disposition)
	u, err := s.client.PresignedGetObject(ctx, s.bucket, key, s.presignTTL, params)
	if err != nil {
		return "", fmt.Errorf("failed to presign %s/%s: %w", s.bucket, key, err)
	}
	return u.String(), nil
}
