package service

import (
	"context"
	"fmt"
	"io"
	"time"

	"cloud.google.com/go/storage"
	"github.com/Areen-09/legal-doc-demystifier/config"
	"google.golang.org/api/option"
)

// GCSService uploads document binaries to a Cloud Storage bucket through the
// resumable upload protocol.
type GCSService struct {
	client    *storage.Client
	bucket    string
	chunkSize int
	urlExpiry time.Duration
}

func NewGCSService(ctx context.Context, cfg *config.GCSConfig, opts ...option.ClientOption) (*GCSService, error) {
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	opts = append(opts, option.WithScopes(storage.ScopeReadWrite))

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	return &GCSService{
		client:    client,
		bucket:    cfg.Bucket,
		chunkSize: chunkSizeBytes(cfg.ChunkSizeMB),
		urlExpiry: cfg.URLExpiry(),
	}, nil
}

const googleDefaultChunk = 16 << 20

// chunkSizeBytes rounds to the 256 KiB multiple the resumable protocol needs
func chunkSizeBytes(mb int) int {
	const quantum = 256 << 10
	if mb <= 0 {
		return googleDefaultChunk
	}
	n := mb << 20
	return (n / quantum) * quantum
}

func (s *GCSService) Bucket() string {
	return s.bucket
}

// UploadResumable writes the file in chunks; onProgress sees the bytes the
// service has acknowledged. The object only exists once Close succeeds.
func (s *GCSService) UploadResumable(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string, onProgress ProgressFunc) error {
	w := s.client.Bucket(s.bucket).Object(objectName).NewWriter(ctx)
	w.ContentType = contentType
	w.ChunkSize = s.chunkSize
	if onProgress != nil {
		w.ProgressFunc = onProgress
	}

	if _, err := io.Copy(w, reader); err != nil {
		_ = w.Close()
		return fmt.Errorf("failed to write data to GCS: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close GCS writer: %w", err)
	}
	if onProgress != nil {
		onProgress(w.Attrs().Size)
	}
	return nil
}

// ResolveDownloadURL signs a short-lived V4 GET URL for the object
func (s *GCSService) ResolveDownloadURL(ctx context.Context, objectName string) (string, error) {
	url, err := s.client.Bucket(s.bucket).SignedURL(objectName, &storage.SignedURLOptions{
		Scheme:  storage.SigningSchemeV4,
		Method:  "GET",
		Expires: time.Now().Add(s.urlExpiry),
	})
	if err != nil {
		return "", fmt.Errorf("failed to sign URL: %w", err)
	}
	return url, nil
}

func (s *GCSService) Close() error {
	return s.client.Close()
}
