package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

const listServiceTypes = `-- name: ListServiceTypes :many
SELECT id, name, icon, sort_order, created_at
FROM service_types
ORDER BY sort_order, lower(name)`

func (q *Queries) ListServiceTypes(ctx context.Context) ([]ServiceType, error) {
	rows, err := q.db.QueryContext(ctx, listServiceTypes)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ServiceType
	for rows.Next() {
		var i ServiceType
		if err := rows.Scan(&i.ID, &i.Name, &i.Icon, &i.SortOrder, &i.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const createServiceType = `-- name: CreateServiceType :one
INSERT INTO service_types (name, icon, sort_order)
VALUES ($1, $2, $3)
RETURNING id, name, icon, sort_order, created_at`

type CreateServiceTypeParams struct {
	Name      string `json:"name"`
	Icon      string `json:"icon"`
	SortOrder int32  `json:"sort_order"`
}

func (q *Queries) CreateServiceType(ctx context.Context, arg CreateServiceTypeParams) (ServiceType, error) {
	row := q.db.QueryRowContext(ctx, createServiceType, arg.Name, arg.Icon, arg.SortOrder)
	var i ServiceType
	err := row.Scan(&i.ID, &i.Name, &i.Icon, &i.SortOrder, &i.CreatedAt)
	return i, err
}

const updateServiceType = `-- name: UpdateServiceType :one
UPDATE service_types
SET name = $2, icon = $3, sort_order = $4
WHERE id = $1
RETURNING id, name, icon, sort_order, created_at`

type UpdateServiceTypeParams struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Icon      string    `json:"icon"`
	SortOrder int32     `json:"sort_order"`
}

func (q *Queries) UpdateServiceType(ctx context.Context, arg UpdateServiceTypeParams) (ServiceType, error) {
	row := q.db.QueryRowContext(ctx, updateServiceType, arg.ID, arg.Name, arg.Icon, arg.SortOrder)
	var i ServiceType
	err := row.Scan(&i.ID, &i.Name, &i.Icon, &i.SortOrder, &i.CreatedAt)
	return i, err
}

const deleteServiceType = `-- name: DeleteServiceType :execrows
DELETE FROM service_types WHERE id = $1`

func (q *Queries) DeleteServiceType(ctx context.Context, id uuid.UUID) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteServiceType, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const countServiceTypesByIDs = `-- name: CountServiceTypesByIDs :one
SELECT count(*) FROM service_types WHERE id = ANY($1::uuid[])`

func (q *Queries) CountServiceTypesByIDs(ctx context.Context, ids []uuid.UUID) (int64, error) {
	row := q.db.QueryRowContext(ctx, countServiceTypesByIDs, pq.Array(uuidStrings(ids)))
	var count int64
	err := row.Scan(&count)
	return count, err
}

const listLocationServices = `-- name: ListLocationServices :many
SELECT ls.location_id, st.id, st.name, st.icon, st.sort_order
FROM location_services ls
JOIN service_types st ON st.id = ls.service_type_id
WHERE ls.location_id = ANY($1::uuid[])
ORDER BY ls.location_id, ls.position, st.sort_order`

type ListLocationServicesRow struct {
	LocationID uuid.UUID `json:"location_id"`
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	Icon       string    `json:"icon"`
	SortOrder  int32     `json:"sort_order"`
}

func (q *Queries) ListLocationServices(ctx context.Context, locationIDs []uuid.UUID) ([]ListLocationServicesRow, error) {
	rows, err := q.db.QueryContext(ctx, listLocationServices, pq.Array(uuidStrings(locationIDs)))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ListLocationServicesRow
	for rows.Next() {
		var i ListLocationServicesRow
		if err := rows.Scan(&i.LocationID, &i.ID, &i.Name, &i.Icon, &i.SortOrder); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const deleteLocationServices = `-- name: DeleteLocationServices :exec
DELETE FROM location_services WHERE location_id = $1`

func (q *Queries) DeleteLocationServices(ctx context.Context, locationID uuid.UUID) error {
	_, err := q.db.ExecContext(ctx, deleteLocationServices, locationID)
	return err
}

const insertLocationService = `-- name: InsertLocationService :exec
INSERT INTO location_services (location_id, service_type_id, position)
VALUES ($1, $2, $3)`

type InsertLocationServiceParams struct {
	LocationID    uuid.UUID `json:"location_id"`
	ServiceTypeID uuid.UUID `json:"service_type_id"`
	Position      int32     `json:"position"`
}

func (q *Queries) InsertLocationService(ctx context.Context, arg InsertLocationServiceParams) error {
	_, err := q.db.ExecContext(ctx, insertLocationService, arg.LocationID, arg.ServiceTypeID, arg.Position)
	return err
}

const listTranslations = `-- name: ListTranslations :many
SELECT table_name, row_id, field_name, language, value
FROM translations
WHERE table_name = $1 AND field_name = $2 AND language = $3`

type ListTranslationsParams struct {
	TableName string `json:"table_name"`
	FieldName string `json:"field_name"`
	Language  string `json:"language"`
}

func (q *Queries) ListTranslations(ctx context.Context, arg ListTranslationsParams) ([]Translation, error) {
	rows, err := q.db.QueryContext(ctx, listTranslations, arg.TableName, arg.FieldName, arg.Language)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Translation
	for rows.Next() {
		var i Translation
		if err := rows.Scan(&i.TableName, &i.RowID, &i.FieldName, &i.Language, &i.Value); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const upsertTranslation = `-- name: UpsertTranslation :exec
INSERT INTO translations (table_name, row_id, field_name, language, value)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (table_name, row_id, field_name, language)
DO UPDATE SET value = EXCLUDED.value`

func (q *Queries) UpsertTranslation(ctx context.Context, arg Translation) error {
	_, err := q.db.ExecContext(ctx, upsertTranslation,
		arg.TableName, arg.RowID, arg.FieldName, arg.Language, arg.Value)
	return err
}

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
