package storage

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	aws_config "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"billflow/desk/internal/config"
	"billflow/desk/internal/utils"
)

// IS3API is the part of the S3 client the sink needs.
type IS3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Sink stores documents in an S3 bucket and returns a presigned GET URL.
type S3Sink struct {
	bucket     string
	prefix     string
	presignTTL time.Duration
	client     IS3API
	presign    *s3.PresignClient
}

// NewS3Sink creates an S3 sink from static credentials in cfg.
func NewS3Sink(cfg *config.Config) (*S3Sink, error) {
	if cfg.AwsS3Bucket == "" {
		return nil, fmt.Errorf("AWS_S3_BUCKET is required for the s3 sink")
	}
	awsCfg, err := aws_config.LoadDefaultConfig(context.TODO(),
		aws_config.WithRegion(cfg.AwsRegion),
		aws_config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AwsAccessKeyID,
			cfg.AwsSecretAccessKey,
			"", // session token
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	s3Client := s3.NewFromConfig(awsCfg)
	return &S3Sink{
		bucket:     cfg.AwsS3Bucket,
		prefix:     cfg.AwsS3Prefix,
		presignTTL: cfg.PresignTTL,
		client:     s3Client,
		presign:    s3.NewPresignClient(s3Client),
	}, nil
}

func (s *S3Sink) objectKey(rel string) string {
	return path.Join(s.prefix, rel)
}

// Save uploads data under prefix/key and returns a presigned download URL, or the s3:// URI
// when presigning is off.
func (s *S3Sink) Save(ctx context.Context, docKey, contentType string, data []byte) (string, error) {
	rel, err := cleanKey(docKey)
	if err != nil {
		return "", err
	}
	key := s.objectKey(rel)
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:             aws.String(s.bucket),
		Key:                aws.String(key),
		Body:               bytes.NewReader(data),
		ContentType:        aws.String(contentType),
		ContentDisposition: aws.String(utils.AttachmentDisposition(downloadName(rel))),
	})
	if err != nil {
		return "", fmt.Errorf("failed to put object %s: %w", key, err)
	}

	if s.presign == nil || s.presignTTL <= 0 {
		return fmt.Sprintf("s3://%s/%s", s.bucket, key), nil
	}
	presignedReq, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.presignTTL))
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned GET URL for key %s: %w", key, err)
	}

	fmt.Printf("Stored invoice document at s3://%s/%s\n", s.bucket, key)
	return presignedReq.URL, nil
}
