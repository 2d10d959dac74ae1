package repository

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/sqlc-dev/pqtype"
)

type ImportRun struct {
	ID        uuid.UUID             `json:"id"`
	FileName  string                `json:"file_name"`
	Total     int32                 `json:"total"`
	Created   int32                 `json:"created"`
	Updated   int32                 `json:"updated"`
	Skipped   int32                 `json:"skipped"`
	Failed    int32                 `json:"failed"`
	Errors    pqtype.NullRawMessage `json:"errors"`
	CreatedAt time.Time             `json:"created_at"`
}

type Job struct {
	ID           uuid.UUID       `json:"id"`
	JobType      string          `json:"job_type"`
	Payload      json.RawMessage `json:"payload"`
	Status       string          `json:"status"`
	Priority     int32           `json:"priority"`
	Attempts     int32           `json:"attempts"`
	MaxAttempts  int32           `json:"max_attempts"`
	ScheduledAt  time.Time       `json:"scheduled_at"`
	StartedAt    sql.NullTime    `json:"started_at"`
	CompletedAt  sql.NullTime    `json:"completed_at"`
	ErrorMessage sql.NullString  `json:"error_message"`
	CreatedAt    time.Time       `json:"created_at"`
}

type Location struct {
	ID               uuid.UUID       `json:"id"`
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
	ImageKey         sql.NullString  `json:"image_key"`
	ImageUrl         sql.NullString  `json:"image_url"`
	Latitude         sql.NullFloat64 `json:"latitude"`
	Longitude        sql.NullFloat64 `json:"longitude"`
	Status           string          `json:"status"`
	OpeningHoursType string          `json:"opening_hours_type"`
	OpeningHoursFrom sql.NullString  `json:"opening_hours_from"`
	OpeningHoursTo   sql.NullString  `json:"opening_hours_to"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

type ServiceType struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Icon      string    `json:"icon"`
	SortOrder int32     `json:"sort_order"`
	CreatedAt time.Time `json:"created_at"`
}

type Translation struct {
	TableName string    `json:"table_name"`
	RowID     uuid.UUID `json:"row_id"`
	FieldName string    `json:"field_name"`
	Language  string    `json:"language"`
	Value     string    `json:"value"`
}

type WidgetConfig struct {
	ID               int32          `json:"id"`
	MapProvider      string         `json:"map_provider"`
	MapsApiKey       sql.NullString `json:"maps_api_key"`
	DefaultLanguage  string         `json:"default_language"`
	PrimaryColor     string         `json:"primary_color"`
	DefaultRadiusKm  int32          `json:"default_radius_km"`
	DefaultCenterLat float64        `json:"default_center_lat"`
	DefaultCenterLng float64        `json:"default_center_lng"`
	DefaultZoom      int32          `json:"default_zoom"`
	UpdatedAt        time.Time      `json:"updated_at"`
}
