package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// LocalStorage keeps objects as files below a directory and serves them
// itself through Handler. It is meant for development.
type LocalStorage struct {
	basePath string
	baseURL  string
	logger   *slog.Logger
}

func NewLocalStorage(cfg LocalConfig, logger *slog.Logger) (*LocalStorage, error) {
	base, err := filepath.Abs(cfg.BasePath)
	if err != nil {
		return nil, fmt.Errorf("resolve storage path: %w", err)
	}
	if err := os.MkdirAll(base, 0o755); err != nil {
		return nil, fmt.Errorf("create storage directory: %w", err)
	}

	s := &LocalStorage{basePath: base, baseURL: strings.TrimSuffix(cfg.BaseURL, "/"), logger: logger}
	logger.Info("initialized local storage", "base_path", s.basePath, "base_url", s.baseURL)
	return s, nil
}

// Put writes to a temporary file in the target directory and renames it, so
// the file server never hands out half an image.
func (s *LocalStorage) Put(ctx context.Context, key string, data io.Reader, opts PutOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dst, err := s.resolvePath(key)
	if err != nil {
		return &StorageError{Op: "Put", Key: key, Err: err}
	}

	size, err := writeAtomic(dst, data, opts.MaxSize)
	if err != nil {
		return &StorageError{Op: "Put", Key: key, Err: err}
	}
	s.logger.Debug("stored file", "key", key, "size", size, "content_type", opts.ContentType)
	return nil
}

func writeAtomic(dst string, data io.Reader, maxSize int64) (int64, error) {
	dir := filepath.Dir(dst)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, err
	}
	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return 0, err
	}
	defer os.Remove(tmp.Name())

	src := data
	if maxSize > 0 {
		src = io.LimitReader(data, maxSize+1)
	}
	n, err := io.Copy(tmp, src)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	switch {
	case err != nil:
		return n, err
	case maxSize > 0 && n > maxSize:
		return n, ErrTooLarge
	}
	return n, os.Rename(tmp.Name(), dst)
}

func (s *LocalStorage) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	file, err := s.resolvePath(key)
	if err != nil {
		return &StorageError{Op: "Delete", Key: key, Err: err}
	}
	if err := os.Remove(file); err != nil && !os.IsNotExist(err) {
		return &StorageError{Op: "Delete", Key: key, Err: err}
	}
	return nil
}

// URL ignores expires; local files are always public.
func (s *LocalStorage) URL(ctx context.Context, key string, expires time.Duration) (string, error) {
	if err := checkKey(key); err != nil {
		return "", &StorageError{Op: "URL", Key: key, Err: err}
	}
	return s.baseURL + "/" + key, nil
}

// Handler serves stored files below the path of the base URL, which the
// caller strips. Directory listings and temporary uploads are hidden.
func (s *LocalStorage) Handler() http.Handler {
	files := http.FileServer(http.Dir(s.basePath))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/") || strings.Contains(r.URL.Path, "/.") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Cache-Control", "public, max-age=86400")
		files.ServeHTTP(w, r)
	})
}

func (s *LocalStorage) resolvePath(key string) (string, error) {
	if err := checkKey(key); err != nil {
		return "", err
	}
	file := filepath.Join(s.basePath, filepath.FromSlash(key))
	if !strings.HasPrefix(file, s.basePath+string(filepath.Separator)) {
		return "", ErrInvalidKey
	}
	return file, nil
}
