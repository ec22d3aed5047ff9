package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path"
	"strconv"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/projectplus/apiserver/config"
)

const (
	// Profile images are replaced under a stable key, so they are cached
	// briefly; documents and certificates are revalidated on every fetch.
	profileImageCacheControl = "public, max-age=300"
	uploadCacheControl       = "no-cache"
)

// MinioBackend keeps uploads in a MinIO (or other S3-compatible) bucket.
type MinioBackend struct {
	client *minio.Client
	bucket string
	region string
}

// NewMinioBackend connects to the MinIO endpoint named by cfg.
func NewMinioBackend(cfg config.MinioConfig) (*MinioBackend, error) {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return nil, errors.New("minio endpoint is required")
	}
	if strings.TrimSpace(cfg.AccessKey) == "" || strings.TrimSpace(cfg.SecretKey) == "" {
		return nil, errors.New("minio access key and secret key are required")
	}
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, errors.New("minio bucket is required")
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}

	return &MinioBackend{
		client: client,
		bucket: cfg.Bucket,
		region: cfg.Region,
	}, nil
}

// EnsureBucket creates the upload bucket in the configured region when it
// is missing. Losing a creation race to another replica is not an error.
func (m *MinioBackend) EnsureBucket(ctx context.Context) error {
	exists, err := m.client.BucketExists(ctx, m.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", m.bucket, err)
	}
	if exists {
		return nil
	}
	err = m.client.MakeBucket(ctx, m.bucket, minio.MakeBucketOptions{Region: m.region})
	switch minio.ToErrorResponse(err).Code {
	case "BucketAlreadyOwnedByYou", "BucketAlreadyExists":
		return nil
	}
	return err
}

// Put stores an upload with the headers the files endpoint serves it with.
func (m *MinioBackend) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	_, err := m.client.PutObject(ctx, m.bucket, key, r, size, uploadOptions(key, contentType))
	return err
}

// Get opens an upload. GetObject is lazy, so the first Stat surfaces a
// missing key before any body is streamed.
func (m *MinioBackend) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	object, err := m.client.GetObject(ctx, m.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, mapMinioError(err)
	}
	if _, err := object.Stat(); err != nil {
		object.Close()
		return nil, mapMinioError(err)
	}
	return object, nil
}

// Delete removes an upload. A key that is already gone is not an error.
func (m *MinioBackend) Delete(ctx context.Context, key string) error {
	err := m.client.RemoveObject(ctx, m.bucket, key, minio.RemoveObjectOptions{})
	if errors.Is(mapMinioError(err), ErrObjectNotFound) {
		return nil
	}
	return err
}

// Bucket returns the upload bucket name.
func (m *MinioBackend) Bucket() string {
	return m.bucket
}

func uploadOptions(key, contentType string) minio.PutObjectOptions {
	if contentType == "" || contentType == "application/octet-stream" {
		if byExt := mime.TypeByExtension(path.Ext(key)); byExt != "" {
			contentType = byExt
		}
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	opts := minio.PutObjectOptions{
		ContentType:        contentType,
		ContentDisposition: "inline; filename=" + strconv.Quote(path.Base(key)),
		CacheControl:       uploadCacheControl,
	}
	if strings.HasPrefix(key, profileImagesDir+"/") {
		opts.CacheControl = profileImageCacheControl
	}
	return opts
}

func mapMinioError(err error) error {
	if err == nil {
		return nil
	}
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return ErrObjectNotFound
	}
	return err
}
