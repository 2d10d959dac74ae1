package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

const locationColumns = `id, name, street, house_number, postal_code, city, country, phone,
    emergency_phone, email, website, image_key, image_url, latitude, longitude,
    status, opening_hours_type, opening_hours_from, opening_hours_to, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanLocation(row rowScanner) (Location, error) {
	var i Location
	err := row.Scan(
		&i.ID,
		&i.Name,
		&i.Street,
		&i.HouseNumber,
		&i.PostalCode,
		&i.City,
		&i.Country,
		&i.Phone,
		&i.EmergencyPhone,
		&i.Email,
		&i.Website,
		&i.ImageKey,
		&i.ImageUrl,
		&i.Latitude,
		&i.Longitude,
		&i.Status,
		&i.OpeningHoursType,
		&i.OpeningHoursFrom,
		&i.OpeningHoursTo,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

func scanLocations(rows *sql.Rows) ([]Location, error) {
	defer rows.Close()
	var items []Location
	for rows.Next() {
		i, err := scanLocation(rows)
		if err != nil {
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

const createLocation = `-- name: CreateLocation :one
INSERT INTO locations (
    name, street, house_number, postal_code, city, country, phone,
    emergency_phone, email, website, image_url, latitude, longitude,
    status, opening_hours_type, opening_hours_from, opening_hours_to
) VALUES (
    $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17
)
RETURNING ` + locationColumns

type CreateLocationParams struct {
	Name             string          `json:"name"`
	Street           string          `json:"street"`
	HouseNumber      string          `json:"house_number"`
	PostalCode       string          `json:"postal_code"`
	City             string          `json:"city"`
	Country          string          `json:"country"`
	Phone            string          `json:"phone"`
	EmergencyPhone   sql.NullString  `json:"emergency_phone"`
	Email            sql.NullString  `json:"email"`
	Website          sql.NullString  `json:"website"`
	ImageUrl         sql.NullString  `json:"image_url"`
	Latitude         sql.NullFloat64 `json:"latitude"`
	Longitude        sql.NullFloat64 `json:"longitude"`
	Status           string          `json:"status"`
	OpeningHoursType string          `json:"opening_hours_type"`
	OpeningHoursFrom sql.NullString  `json:"opening_hours_from"`
	OpeningHoursTo   sql.NullString  `json:"opening_hours_to"`
}

func (q *Queries) CreateLocation(ctx context.Context, arg CreateLocationParams) (Location, error) {
	row := q.db.QueryRowContext(ctx, createLocation,
		arg.Name,
		arg.Street,
		arg.HouseNumber,
		arg.PostalCode,
		arg.City,
		arg.Country,
		arg.Phone,
		arg.EmergencyPhone,
		arg.Email,
		arg.Website,
		arg.ImageUrl,
		arg.Latitude,
		arg.Longitude,
		arg.Status,
		arg.OpeningHoursType,
		arg.OpeningHoursFrom,
		arg.OpeningHoursTo,
	)
	return scanLocation(row)
}

const getLocationByID = `-- name: GetLocationByID :one
SELECT ` + locationColumns + `
FROM locations
WHERE id = $1`

func (q *Queries) GetLocationByID(ctx context.Context, id uuid.UUID) (Location, error) {
	row := q.db.QueryRowContext(ctx, getLocationByID, id)
	return scanLocation(row)
}

const deleteLocation = `-- name: DeleteLocation :execrows
DELETE FROM locations WHERE id = $1`

func (q *Queries) DeleteLocation(ctx context.Context, id uuid.UUID) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteLocation, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// updatableLocationColumns is the allow-list for UpdateLocationColumns.
var updatableLocationColumns = map[string]bool{
	"name":               true,
	"street":             true,
	"house_number":       true,
	"postal_code":        true,
	"city":               true,
	"country":            true,
	"phone":              true,
	"emergency_phone":    true,
	"email":              true,
	"website":            true,
	"image_url":          true,
	"latitude":           true,
	"longitude":          true,
	"status":             true,
	"opening_hours_type": true,
	"opening_hours_from": true,
	"opening_hours_to":   true,
}

// ColumnValue is a single SET assignment. A nil Value writes NULL.
type ColumnValue struct {
	Column string
	Value  interface{}
}

// UpdateLocationColumns writes only the given columns. With no columns it
// still bumps updated_at, so callers can use it to check existence.
func (q *Queries) UpdateLocationColumns(ctx context.Context, id uuid.UUID, cols []ColumnValue) (Location, error) {
	sets := make([]string, 0, len(cols)+1)
	args := make([]interface{}, 0, len(cols)+1)
	args = append(args, id)
	for _, c := range cols {
		if !updatableLocationColumns[c.Column] {
			return Location{}, fmt.Errorf("column %q is not updatable", c.Column)
		}
		args = append(args, c.Value)
		sets = append(sets, fmt.Sprintf("%s = $%d", c.Column, len(args)))
	}
	sets = append(sets, "updated_at = now()")

	query := fmt.Sprintf("UPDATE locations SET %s WHERE id = $1 RETURNING %s",
		strings.Join(sets, ", "), locationColumns)
	row := q.db.QueryRowContext(ctx, query, args...)
	return scanLocation(row)
}

const listLocationsByPostalCodes = `-- name: ListLocationsByPostalCodes :many
SELECT ` + locationColumns + `
FROM locations
WHERE trim(postal_code) = ANY($1::text[])
ORDER BY created_at`

func (q *Queries) ListLocationsByPostalCodes(ctx context.Context, postalCodes []string) ([]Location, error) {
	rows, err := q.db.QueryContext(ctx, listLocationsByPostalCodes, pq.Array(postalCodes))
	if err != nil {
		return nil, err
	}
	return scanLocations(rows)
}

const searchLocationsFilter = `
WHERE ($1::text = ''
       OR name ILIKE '%' || $1 || '%'
       OR postal_code ILIKE '%' || $1 || '%'
       OR city ILIKE '%' || $1 || '%'
       OR street ILIKE '%' || $1 || '%'
       OR house_number ILIKE '%' || $1 || '%')
  AND (NOT $2::boolean OR house_number = '' OR latitude IS NULL)`

// locationSortColumns maps public sort keys to columns.
var locationSortColumns = map[string]string{
	"name":        "lower(name)",
	"postal_code": "postal_code",
	"city":        "lower(city)",
	"status":      "status",
	"created_at":  "created_at",
}

type SearchLocationsParams struct {
	Search     string
	Incomplete bool
	SortBy     string
	SortDesc   bool
	Limit      int32
	Offset     int32
}

func (q *Queries) SearchLocations(ctx context.Context, arg SearchLocationsParams) ([]Location, error) {
	col, ok := locationSortColumns[arg.SortBy]
	if !ok {
		col = locationSortColumns["name"]
	}
	dir := "ASC"
	if arg.SortDesc {
		dir = "DESC"
	}
	query := "SELECT " + locationColumns + " FROM locations" + searchLocationsFilter +
		fmt.Sprintf("\nORDER BY %s %s, id\nLIMIT $3 OFFSET $4", col, dir)

	rows, err := q.db.QueryContext(ctx, query, arg.Search, arg.Incomplete, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	return scanLocations(rows)
}

const countLocations = `-- name: CountLocations :one
SELECT count(*) FROM locations` + searchLocationsFilter

func (q *Queries) CountLocations(ctx context.Context, search string, incomplete bool) (int64, error) {
	row := q.db.QueryRowContext(ctx, countLocations, search, incomplete)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const listMappedLocations = `-- name: ListMappedLocations :many
SELECT ` + locationColumns + `
FROM locations
WHERE latitude IS NOT NULL AND longitude IS NOT NULL
  AND ($1::text = ''
       OR name ILIKE '%' || $1 || '%'
       OR postal_code ILIKE '%' || $1 || '%'
       OR city ILIKE '%' || $1 || '%')
ORDER BY lower(name), id`

// ListMappedLocations returns locations that can be shown on a map.
func (q *Queries) ListMappedLocations(ctx context.Context, search string) ([]Location, error) {
	rows, err := q.db.QueryContext(ctx, listMappedLocations, search)
	if err != nil {
		return nil, err
	}
	return scanLocations(rows)
}

const setLocationCoordinates = `-- name: SetLocationCoordinates :execrows
UPDATE locations
SET latitude = $2, longitude = $3, updated_at = now()
WHERE id = $1`

type SetLocationCoordinatesParams struct {
	ID        uuid.UUID `json:"id"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
}

func (q *Queries) SetLocationCoordinates(ctx context.Context, arg SetLocationCoordinatesParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, setLocationCoordinates, arg.ID, arg.Latitude, arg.Longitude)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const setLocationImage = `-- name: SetLocationImage :one
UPDATE locations
SET image_key = $2, image_url = $3, updated_at = now()
WHERE id = $1
RETURNING ` + locationColumns

type SetLocationImageParams struct {
	ID       uuid.UUID      `json:"id"`
	ImageKey sql.NullString `json:"image_key"`
	ImageUrl sql.NullString `json:"image_url"`
}

func (q *Queries) SetLocationImage(ctx context.Context, arg SetLocationImageParams) (Location, error) {
	row := q.db.QueryRowContext(ctx, setLocationImage, arg.ID, arg.ImageKey, arg.ImageUrl)
	return scanLocation(row)
}
