package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"strings"

	"github.com/DukeRupert/storefinder/internal/domain"
	"github.com/DukeRupert/storefinder/internal/i18n"
	"github.com/DukeRupert/storefinder/internal/repository"
	"github.com/google/uuid"
)

// ServiceTypeService manages capability tags and their translations.
type ServiceTypeService interface {
	// List returns all tags ordered by sort order, with their translations.
	List(ctx context.Context) ([]domain.ServiceType, error)

	// Create creates a tag.
	Create(ctx context.Context, params domain.ServiceTypeParams) (*domain.ServiceType, error)

	// Update replaces a tag's name, icon and sort order. Translations that
	// are present in params are upserted.
	Update(ctx context.Context, id uuid.UUID, params domain.ServiceTypeParams) (*domain.ServiceType, error)

	// Delete deletes a tag. Its location links go with it.
	Delete(ctx context.Context, id uuid.UUID) error
}

type serviceTypeService struct {
	store  TxStore
	logger *slog.Logger
}

// NewServiceTypeService creates a new ServiceTypeService.
func NewServiceTypeService(store TxStore, logger *slog.Logger) ServiceTypeService {
	return &serviceTypeService{store: store, logger: logger}
}

// List returns all tags with their translations.
func (s *serviceTypeService) List(ctx context.Context) ([]domain.ServiceType, error) {
	const op = "ServiceTypeService.List"

	rows, err := s.store.ListServiceTypes(ctx)
	if err != nil {
		s.logger.Error("failed to list service types", "error", err, "op", op)
		return nil, domain.Store(err, op)
	}

	types := make([]domain.ServiceType, 0, len(rows))
	for _, r := range rows {
		st := repoServiceTypeToDomain(r)
		st.Translations = map[string]string{}
		types = append(types, st)
	}

	for _, lang := range i18n.Supported {
		if lang == i18n.Default {
			continue
		}
		names := translatedNames(ctx, s.store, lang, s.logger)
		for i := range types {
			if v, ok := names[types[i].ID]; ok {
				types[i].Translations[string(lang)] = v
			}
		}
	}
	return types, nil
}

// Create creates a tag with its translations.
func (s *serviceTypeService) Create(ctx context.Context, params domain.ServiceTypeParams) (*domain.ServiceType, error) {
	const op = "ServiceTypeService.Create"

	if err := params.Validate(op); err != nil {
		return nil, err
	}

	var row repository.ServiceType
	err := s.store.InTx(ctx, func(tx Store) error {
		var err error
		row, err = tx.CreateServiceType(ctx, repository.CreateServiceTypeParams{
			Name:      strings.TrimSpace(params.Name),
			Icon:      strings.TrimSpace(params.Icon),
			SortOrder: int32(params.SortOrder),
		})
		if err != nil {
			return err
		}
		return upsertTranslations(ctx, tx, row.ID, params.Translations)
	})
	if err != nil {
		s.logger.Error("failed to create service type", "error", err, "op", op)
		return nil, domain.Store(err, op)
	}

	st := repoServiceTypeToDomain(row)
	st.Translations = params.Translations
	s.logger.Info("service type created", "service_type_id", st.ID, "name", st.Name)
	return &st, nil
}

// Update replaces a tag's fields.
func (s *serviceTypeService) Update(ctx context.Context, id uuid.UUID, params domain.ServiceTypeParams) (*domain.ServiceType, error) {
	const op = "ServiceTypeService.Update"

	if err := params.Validate(op); err != nil {
		return nil, err
	}

	var row repository.ServiceType
	err := s.store.InTx(ctx, func(tx Store) error {
		var err error
		row, err = tx.UpdateServiceType(ctx, repository.UpdateServiceTypeParams{
			ID:        id,
			Name:      strings.TrimSpace(params.Name),
			Icon:      strings.TrimSpace(params.Icon),
			SortOrder: int32(params.SortOrder),
		})
		if err != nil {
			return err
		}
		return upsertTranslations(ctx, tx, id, params.Translations)
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound(op, "service type", id.String())
		}
		s.logger.Error("failed to update service type", "error", err, "op", op, "service_type_id", id)
		return nil, domain.Store(err, op)
	}

	st := repoServiceTypeToDomain(row)
	st.Translations = params.Translations
	return &st, nil
}

// Delete deletes a tag.
func (s *serviceTypeService) Delete(ctx context.Context, id uuid.UUID) error {
	const op = "ServiceTypeService.Delete"

	n, err := s.store.DeleteServiceType(ctx, id)
	if err != nil {
		s.logger.Error("failed to delete service type", "error", err, "op", op, "service_type_id", id)
		return domain.Store(err, op)
	}
	if n == 0 {
		return domain.NotFound(op, "service type", id.String())
	}
	s.logger.Info("service type deleted", "service_type_id", id)
	return nil
}

func upsertTranslations(ctx context.Context, tx Store, id uuid.UUID, translations map[string]string) error {
	for lang, value := range translations {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		err := tx.UpsertTranslation(ctx, repository.Translation{
			TableName: domain.TranslationTableServiceTypes,
			RowID:     id,
			FieldName: domain.TranslationFieldName,
			Language:  lang,
			Value:     value,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// translatedNames loads the tag names for lang. A failed lookup yields an
// empty map so callers fall back to the base names.
func translatedNames(ctx context.Context, store Store, lang i18n.Language, logger *slog.Logger) map[uuid.UUID]string {
	names := map[uuid.UUID]string{}
	if lang == i18n.Default {
		return names
	}
	rows, err := store.ListTranslations(ctx, repository.ListTranslationsParams{
		TableName: domain.TranslationTableServiceTypes,
		FieldName: domain.TranslationFieldName,
		Language:  string(lang),
	})
	if err != nil {
		logger.Warn("failed to load translations, using default names", "error", err, "language", lang)
		return names
	}
	for _, r := range rows {
		if r.Value != "" {
			names[r.RowID] = r.Value
		}
	}
	return names
}
