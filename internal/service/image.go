package service

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/DukeRupert/storefinder/internal/domain"
	"github.com/DukeRupert/storefinder/internal/repository"
	"github.com/DukeRupert/storefinder/internal/storage"
	"github.com/google/uuid"
)

// imageURLExpiry applies only to backends without a public URL.
const imageURLExpiry = 7 * 24 * time.Hour

// ImageService manages the single card photo of a location.
type ImageService interface {
	// Upload scales the photo down and replaces the current one. Unsupported
	// formats are EINVALID and files over domain.MaxImageSize ETOOLARGE.
	Upload(ctx context.Context, locationID uuid.UUID, filename string, data io.Reader, size int64) (*domain.Location, error)
	Delete(ctx context.Context, locationID uuid.UUID) (*domain.Location, error)
}

type imageService struct {
	store      Store
	storage    storage.Storage
	thumbnails ThumbnailProcessor
	logger     *slog.Logger
}

func NewImageService(store Store, files storage.Storage, thumbnails ThumbnailProcessor, logger *slog.Logger) ImageService {
	return &imageService{store: store, storage: files, thumbnails: thumbnails, logger: logger}
}

// Upload stores a new location image.
func (s *imageService) Upload(ctx context.Context, locationID uuid.UUID, filename string, data io.Reader, size int64) (*domain.Location, error) {
	const op = "ImageService.Upload"

	current, err := s.store.GetLocationByID(ctx, locationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound(op, "location", locationID.String())
		}
		s.logger.Error("failed to get location", "error", err, "op", op, "location_id", locationID)
		return nil, domain.Store(err, op)
	}

	if err := domain.ValidateImageSize(size); err != nil {
		return nil, err
	}

	// One byte past the limit catches an understated size
	fileData, err := io.ReadAll(io.LimitReader(data, domain.MaxImageSize+1))
	if err != nil {
		return nil, domain.Internal(err, op, "failed to read file data")
	}
	if err := domain.ValidateImageSize(int64(len(fileData))); err != nil {
		return nil, err
	}

	contentType := http.DetectContentType(fileData)
	if !domain.IsValidImageContentType(contentType) {
		return nil, domain.Invalid(op, fmt.Sprintf("Unsupported image type: %s. Only JPEG, PNG and WebP are supported.", contentType))
	}

	thumb, err := s.thumbnails.Thumbnail(bytes.NewReader(fileData), domain.ThumbnailMaxWidth, domain.ThumbnailMaxHeight)
	if err != nil {
		return nil, domain.Invalid(op, "The image could not be decoded")
	}

	key := storage.LocationImageKey(locationID)
	if err := s.storage.Put(ctx, key, bytes.NewReader(thumb.JPEG), storage.PutOptions{
		ContentType: "image/jpeg",
		MaxSize:     domain.MaxImageSize,
		Public:      true,
	}); err != nil {
		s.logger.Error("failed to store location image", "error", err, "op", op, "key", key)
		return nil, domain.Internal(err, op, "failed to store image")
	}

	url, err := s.storage.URL(ctx, key, imageURLExpiry)
	if err != nil {
		_ = s.storage.Delete(ctx, key)
		s.logger.Error("failed to build image URL", "error", err, "op", op, "key", key)
		return nil, domain.Internal(err, op, "failed to build image URL")
	}

	row, err := s.store.SetLocationImage(ctx, repository.SetLocationImageParams{
		ID:       locationID,
		ImageKey: toNullString(key),
		ImageUrl: toNullString(url),
	})
	if err != nil {
		_ = s.storage.Delete(ctx, key)
		s.logger.Error("failed to save location image", "error", err, "op", op, "location_id", locationID)
		return nil, domain.Store(err, op)
	}

	s.removeObject(ctx, current.ImageKey)
	s.logger.Info("location image uploaded",
		"location_id", locationID,
		"filename", filename,
		"source_width", thumb.SourceWidth,
		"source_height", thumb.SourceHeight,
	)
	return s.withServices(ctx, op, row)
}

// Delete clears the image of a location.
func (s *imageService) Delete(ctx context.Context, locationID uuid.UUID) (*domain.Location, error) {
	const op = "ImageService.Delete"

	current, err := s.store.GetLocationByID(ctx, locationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound(op, "location", locationID.String())
		}
		s.logger.Error("failed to get location", "error", err, "op", op, "location_id", locationID)
		return nil, domain.Store(err, op)
	}

	row, err := s.store.SetLocationImage(ctx, repository.SetLocationImageParams{ID: locationID})
	if err != nil {
		s.logger.Error("failed to clear location image", "error", err, "op", op, "location_id", locationID)
		return nil, domain.Store(err, op)
	}

	s.removeObject(ctx, current.ImageKey)
	return s.withServices(ctx, op, row)
}

// removeObject deletes a replaced image. Storage failures only leave an
// orphaned object behind.
func (s *imageService) removeObject(ctx context.Context, key sql.NullString) {
	if !key.Valid || key.String == "" {
		return
	}
	if err := s.storage.Delete(ctx, key.String); err != nil {
		s.logger.Warn("failed to delete old location image", "error", err, "key", key.String)
	}
}

func (s *imageService) withServices(ctx context.Context, op string, row repository.Location) (*domain.Location, error) {
	locs := []domain.Location{repoLocationToDomain(row)}
	if err := attachServices(ctx, s.store, locs); err != nil {
		s.logger.Error("failed to load location services", "error", err, "op", op, "location_id", row.ID)
		return nil, domain.Store(err, op)
	}
	return &locs[0], nil
}
