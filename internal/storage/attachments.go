package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	apperrors "github.com/spec-kit/support-chat/pkg/util"
)

// DefaultMaxSizeBytes caps uploads when no explicit limit is configured.
const DefaultMaxSizeBytes int64 = 5 * 1024 * 1024

// allowedMimeTypes lists the upload content types accepted by the service.
var allowedMimeTypes = map[string]struct{}{
	"image/png":          {},
	"image/jpeg":         {},
	"image/jpg":          {},
	"image/gif":          {},
	"application/pdf":    {},
	"application/msword": {},
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": {},
	"text/plain": {},
}

// Metadata describes an incoming upload.
type Metadata struct {
	FileName  string
	MimeType  string
	SizeBytes int64
}

// StoredObject identifies a persisted upload.
type StoredObject struct {
	URL        string
	ExternalID string
}

// AttachmentStore persists uploaded files and hands back a stable reference.
type AttachmentStore interface {
	Store(ctx context.Context, r io.Reader, meta Metadata) (*StoredObject, error)
	Remove(ctx context.Context, externalID string) error
}

// LocalStore writes uploads to a directory on local disk and serves them
// under a configured base URL.
type LocalStore struct {
	dir     string
	baseURL string
	maxSize int64
}

// NewLocalStore prepares the upload directory and returns the store.
func NewLocalStore(dir, baseURL string, maxSize int64) (*LocalStore, error) {
	if dir == "" {
		dir = "uploads"
	}
	if maxSize <= 0 {
		maxSize = DefaultMaxSizeBytes
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &LocalStore{
		dir:     dir,
		baseURL: strings.TrimRight(baseURL, "/"),
		maxSize: maxSize,
	}, nil
}

// Store validates and writes one upload. The on-disk name is a generated id
// plus the original extension so collisions between same-named files cannot
// happen.
func (s *LocalStore) Store(ctx context.Context, r io.Reader, meta Metadata) (*StoredObject, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, ok := allowedMimeTypes[strings.ToLower(meta.MimeType)]; !ok {
		return nil, apperrors.NewValidationError("unsupported file type", map[string]any{"mime_type": meta.MimeType})
	}
	if meta.SizeBytes > s.maxSize {
		return nil, apperrors.NewValidationError("file exceeds maximum size", map[string]any{
			"size_bytes": meta.SizeBytes,
			"max_bytes":  s.maxSize,
		})
	}

	externalID := uuid.NewString() + sanitizedExt(meta.FileName)
	path := filepath.Join(s.dir, externalID)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, fmt.Errorf("create upload file: %w", err)
	}

	// LimitReader enforces the cap even when the declared size lies.
	written, err := io.Copy(f, io.LimitReader(r, s.maxSize+1))
	closeErr := f.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(path)
		return nil, fmt.Errorf("write upload file: %w", err)
	}
	if written > s.maxSize {
		_ = os.Remove(path)
		return nil, apperrors.NewValidationError("file exceeds maximum size", map[string]any{"max_bytes": s.maxSize})
	}

	return &StoredObject{
		URL:        s.baseURL + "/" + externalID,
		ExternalID: externalID,
	}, nil
}

// Remove deletes a previously stored upload. Missing files are not an error.
func (s *LocalStore) Remove(ctx context.Context, externalID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	clean := filepath.Base(externalID)
	if clean == "." || clean == ".." || clean != externalID {
		return apperrors.NewValidationError("invalid attachment id", nil)
	}
	err := os.Remove(filepath.Join(s.dir, clean))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove upload file: %w", err)
	}
	return nil
}

// Dir reports the backing directory, used to mount a static file route.
func (s *LocalStore) Dir() string {
	return s.dir
}

func sanitizedExt(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if len(ext) > 10 {
		return ""
	}
	for _, r := range ext {
		if r != '.' && (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return ""
		}
	}
	return ext
}
