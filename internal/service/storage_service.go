package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const (
	maxImportFileSize  = 10 * 1024 * 1024 // 10 MB
	importPresignedTTL = 15 * time.Minute
	importPathPrefix   = "imports"
)

var (
	ErrImportFileTooBig     = errors.New("import file exceeds 10MB limit")
	ErrBucketCreationFailed = errors.New("failed to create storage bucket")
	ErrUploadFailed         = errors.New("failed to upload file")
	ErrURLGenerationFailed  = errors.New("failed to generate presigned URL")
)

// ImportArchive keeps the raw uploaded import files so a job's input can be
// inspected after the fact.
type ImportArchive interface {
	// ArchiveImportFile stores the upload under the job id and returns the
	// object key.
	ArchiveImportFile(ctx context.Context, jobID string, file io.Reader, fileSize int64) (string, error)

	// ImportFileURL generates a short-lived presigned URL for the archived
	// upload.
	ImportFileURL(ctx context.Context, jobID string) (string, error)
}

// MinIOImportArchive implements ImportArchive on S3-compatible storage.
type MinIOImportArchive struct {
	client     *minio.Client
	bucketName string
	initOnce   sync.Once
	initErr    error
}

// NewMinIOImportArchive creates a MinIO-backed archive. Bucket creation is
// deferred until the first operation to avoid blocking app startup.
func NewMinIOImportArchive(endpoint, accessKey, secretKey, bucketName string, useSSL bool) (*MinIOImportArchive, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	return &MinIOImportArchive{
		client:     client,
		bucketName: bucketName,
	}, nil
}

// lazyInit ensures the bucket exists on first use.
func (s *MinIOImportArchive) lazyInit(ctx context.Context) error {
	s.initOnce.Do(func() {
		exists, err := s.client.BucketExists(ctx, s.bucketName)
		if err != nil {
			s.initErr = fmt.Errorf("%w: %v", ErrBucketCreationFailed, err)
			return
		}
		if exists {
			return
		}
		if err := s.client.MakeBucket(ctx, s.bucketName, minio.MakeBucketOptions{}); err != nil {
			s.initErr = fmt.Errorf("%w: %v", ErrBucketCreationFailed, err)
		}
	})
	return s.initErr
}

func importObjectKey(jobID string) string {
	return fmt.Sprintf("%s/%s.csv", importPathPrefix, jobID)
}

func (s *MinIOImportArchive) ArchiveImportFile(ctx context.Context, jobID string, file io.Reader, fileSize int64) (string, error) {
	if fileSize > maxImportFileSize {
		return "", ErrImportFileTooBig
	}
	if err := s.lazyInit(ctx); err != nil {
		return "", err
	}

	var buf bytes.Buffer
	n, err := io.Copy(&buf, io.LimitReader(file, maxImportFileSize+1))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	if n > maxImportFileSize {
		return "", ErrImportFileTooBig
	}

	objectKey := importObjectKey(jobID)
	_, err = s.client.PutObject(ctx, s.bucketName, objectKey, &buf, n, minio.PutObjectOptions{
		ContentType: "text/csv",
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	return objectKey, nil
}

func (s *MinIOImportArchive) ImportFileURL(ctx context.Context, jobID string) (string, error) {
	if err := s.lazyInit(ctx); err != nil {
		return "", err
	}
	u, err := s.client.PresignedGetObject(ctx, s.bucketName, importObjectKey(jobID), importPresignedTTL, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrURLGenerationFailed, err)
	}
	return u.String(), nil
}

// NoopImportArchive is used when object storage is not configured; uploads
// are processed but not retained.
type NoopImportArchive struct{}

func (NoopImportArchive) ArchiveImportFile(context.Context, string, io.Reader, int64) (string, error) {
	return "", nil
}

func (NoopImportArchive) ImportFileURL(context.Context, string) (string, error) {
	return "", nil
}
