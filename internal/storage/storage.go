package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"

	"github.com/projectplus/apiserver/config"
	"github.com/projectplus/apiserver/types"
)

// PublicPrefix is the URL prefix under which stored objects are served.
const PublicPrefix = "/uploads/"

// ErrObjectNotFound is returned when a key does not exist in the backend.
var ErrObjectNotFound = errors.New("object not found")

// ObjectStorage defines common object operations across backends.
type ObjectStorage interface {
	EnsureBucket(ctx context.Context) error
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	Bucket() string
}

// Storage wraps an ObjectStorage backend and maps object keys to the public
// paths persisted in the database.
type Storage struct {
	backend ObjectStorage
}

// NewStorage constructs a Storage wrapper for the provided backend.
func NewStorage(backend ObjectStorage) *Storage {
	return &Storage{backend: backend}
}

// NewBackend builds the backend selected by cfg.Backend.
func NewBackend(ctx context.Context, cfg config.StorageConfig) (ObjectStorage, error) {
	switch cfg.Backend {
	case "", "local":
		return NewLocalDisk(cfg.LocalDir)
	case "minio":
		return NewMinioBackend(cfg.Minio)
	case "gcs":
		return NewGCSClient(ctx, cfg.GCS)
	default:
		return nil, fmt.Errorf("unsupported storage backend %q", cfg.Backend)
	}
}

// EnsureBucket ensures the configured bucket exists.
func (s *Storage) EnsureBucket(ctx context.Context) error {
	return s.backend.EnsureBucket(ctx)
}

// Save writes the upload under key and returns its public path.
func (s *Storage) Save(ctx context.Context, key string, upload types.Upload) (string, error) {
	if err := s.backend.Put(ctx, key, bytes.NewReader(upload.Data), int64(len(upload.Data)), upload.ContentType); err != nil {
		return "", fmt.Errorf("store %s: %w", key, err)
	}
	return PublicPath(key), nil
}

// Open opens a reader for an object key.
func (s *Storage) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	return s.backend.Get(ctx, key)
}

// Remove deletes the object behind a public path. Paths outside the upload
// prefix are ignored.
func (s *Storage) Remove(ctx context.Context, publicPath string) error {
	key, ok := KeyFromPath(publicPath)
	if !ok {
		return nil
	}
	return s.backend.Delete(ctx, key)
}

// Bucket returns the configured bucket name.
func (s *Storage) Bucket() string {
	return s.backend.Bucket()
}

// PublicPath returns the path clients use to fetch key.
func PublicPath(key string) string {
	return PublicPrefix + key
}

// KeyFromPath extracts the object key from a public path.
func KeyFromPath(publicPath string) (string, bool) {
	if !strings.HasPrefix(publicPath, PublicPrefix) {
		return "", false
	}
	key := path.Clean(strings.TrimPrefix(publicPath, PublicPrefix))
	if key == "." || key == ".." || strings.HasPrefix(key, "../") || strings.HasPrefix(key, "/") {
		return "", false
	}
	return key, true
}

// Top-level directories of the upload bucket.
const (
	profileImagesDir = "profileImages"
	certificatesDir  = "certificates"
	documentationDir = "documentation"
)

// ProfileImageKey is the key of a user's profile image.
func ProfileImageKey(charusatID, filename string) string {
	return profileImagesDir + "/" + segment(charusatID) + "_profileImage" + strings.ToLower(filepath.Ext(filename))
}

// CertificateKey is the key of an uploaded certificate.
func CertificateKey(charusatID, filename string) string {
	return certificatesDir + "/" + segment(charusatID) + "_" + segment(filename)
}

// DocumentationKey is the key of a project document.
func DocumentationKey(institute, department, host, projectName, filename string) string {
	return path.Join(
		documentationDir,
		segment(institute),
		segment(department),
		segment(host),
		segment(projectName),
		segment(filename),
	)
}

// segment makes s safe to use as one path element.
func segment(s string) string {
	s = strings.TrimSpace(filepath.Base(strings.ReplaceAll(s, "\\", "/")))
	s = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', 0:
			return '_'
		}
		return r
	}, s)
	if s == "" || s == "." || s == ".." {
		return "_"
	}
	return s
}
