// Package storage keeps the card images of locations. LocalStorage writes to
// disk for development; R2Storage writes to Cloudflare R2 or any other
// S3-compatible bucket.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Storage is an object store addressed by slash separated keys.
type Storage interface {
	// Put stores data under key, replacing any existing object.
	Put(ctx context.Context, key string, data io.Reader, opts PutOptions) error

	// Delete removes key. A missing key is not an error.
	Delete(ctx context.Context, key string) error

	// URL returns where the widget can load key from. Backends without a
	// public base URL presign it for expires.
	URL(ctx context.Context, key string, expires time.Duration) (string, error)
}

// PutOptions configures how an object is stored.
type PutOptions struct {
	// ContentType defaults to the type of the key's extension.
	ContentType string

	// MaxSize rejects larger data with ErrTooLarge. Zero means no limit.
	MaxSize int64

	// Public objects are served straight to browsers with a long cache
	// lifetime. Keys are never reused, so this is safe.
	Public bool
}

// LocalConfig configures LocalStorage.
type LocalConfig struct {
	BasePath string // directory holding the files
	BaseURL  string // for example http://localhost:8080/files
}

// R2Config configures R2Storage.
type R2Config struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string

	// PublicURL is the custom domain of a public bucket. Without it every
	// URL is presigned.
	PublicURL string

	// Region defaults to "auto".
	Region string

	// Endpoint replaces the R2 endpoint derived from AccountID, for other
	// S3-compatible services.
	Endpoint string
}

// Storage providers accepted by STORAGE_PROVIDER.
const (
	ProviderLocal = "local"
	ProviderR2    = "r2"
)

var (
	ErrNotFound     = errors.New("object not found")
	ErrInvalidKey   = errors.New("invalid storage key")
	ErrTooLarge     = errors.New("object exceeds maximum size")
	ErrAccessDenied = errors.New("access denied")
)

// StorageError records the operation and key of a failed call.
type StorageError struct {
	Op  string
	Key string
	Err error
}

func (e *StorageError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("storage %s %q: %v", e.Op, e.Key, e.Err)
	}
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// IsTooLarge reports whether err wraps ErrTooLarge.
func IsTooLarge(err error) bool {
	return errors.Is(err, ErrTooLarge)
}

// LocationImageKey returns a new key locations/{locationID}/{random}.jpg.
// Each upload gets a fresh key so cached copies of an old image never
// shadow the new one.
func LocationImageKey(locationID uuid.UUID) string {
	return fmt.Sprintf("locations/%s/%s.jpg", locationID, uuid.New())
}

// checkKey rejects keys that are empty, absolute or climb out of the root.
func checkKey(key string) error {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, `\`) {
		return ErrInvalidKey
	}
	if clean := path.Clean(key); clean != key || strings.HasPrefix(clean, "..") {
		return ErrInvalidKey
	}
	return nil
}

// DetectContentType returns the MIME type of the key's extension, or
// application/octet-stream.
func DetectContentType(key string) string {
	if contentType := mime.TypeByExtension(strings.ToLower(filepath.Ext(key))); contentType != "" {
		return contentType
	}
	return "application/octet-stream"
}

// AllowedImageTypes are the declared upload types accepted for location
// images. image/jpg is sent by some older clients.
var AllowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/jpg":  true,
	"image/png":  true,
	"image/webp": true,
}

// IsAllowedImageType checks a declared Content-Type, ignoring parameters.
func IsAllowedImageType(contentType string) bool {
	base, _, _ := strings.Cut(contentType, ";")
	return AllowedImageTypes[strings.ToLower(strings.TrimSpace(base))]
}
