package service

import (
	"context"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/Areen-09/legal-doc-demystifier/config"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ProgressFunc receives the running count of bytes handed to storage
type ProgressFunc func(transferred int64)

type MinioService struct {
	client *minio.Client
	bucket string
	config *config.MinioConfig
}

func NewMinioService(cfg *config.MinioConfig) (*MinioService, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	return &MinioService{
		client: client,
		bucket: cfg.Bucket,
		config: cfg,
	}, nil
}

// Bucket is the bucket name reported to the analysis service
func (s *MinioService) Bucket() string {
	return s.bucket
}

// EnsureBucket creates the bucket if it doesn't exist
func (s *MinioService) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket: %w", err)
	}

	if !exists {
		err = s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.config.Region})
		if err != nil {
			return fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	return nil
}

// UploadResumable streams the file to objectName. Large files go up as a
// multipart upload; onProgress sees the bytes consumed so far.
func (s *MinioService) UploadResumable(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string, onProgress ProgressFunc) error {
	opts := minio.PutObjectOptions{
		ContentType: contentType,
	}
	if onProgress != nil {
		opts.Progress = &progressReader{fn: onProgress}
	}

	_, err := s.client.PutObject(ctx, s.bucket, objectName, reader, size, opts)
	if err != nil {
		return fmt.Errorf("failed to upload file: %w", err)
	}

	return nil
}

// ResolveDownloadURL generates a presigned URL for the object with expiration
func (s *MinioService) ResolveDownloadURL(ctx context.Context, objectName string) (string, error) {
	expiry := time.Duration(s.config.ExpireDays) * 24 * time.Hour
	url, err := s.client.PresignedGetObject(ctx, s.bucket, objectName, expiry, nil)
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned URL: %w", err)
	}

	return url.String(), nil
}

// progressReader is handed to minio as PutObjectOptions.Progress: minio
// "reads" len(p) from it for every chunk it has consumed. Parts may be sent
// in parallel, so the count is atomic.
type progressReader struct {
	total atomic.Int64
	fn    ProgressFunc
}

func (p *progressReader) Read(b []byte) (int, error) {
	p.fn(p.total.Add(int64(len(b))))
	return len(b), nil
}
