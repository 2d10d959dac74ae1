package repository

import (
	"context"
	"database/sql"
)

const getWidgetConfig = `-- name: GetWidgetConfig :one
SELECT id, map_provider, maps_api_key, default_language, primary_color,
       default_radius_km, default_center_lat, default_center_lng, default_zoom, updated_at
FROM widget_config
WHERE id = 1`

func (q *Queries) GetWidgetConfig(ctx context.Context) (WidgetConfig, error) {
	row := q.db.QueryRowContext(ctx, getWidgetConfig)
	var i WidgetConfig
	err := row.Scan(
		&i.ID,
		&i.MapProvider,
		&i.MapsApiKey,
		&i.DefaultLanguage,
		&i.PrimaryColor,
		&i.DefaultRadiusKm,
		&i.DefaultCenterLat,
		&i.DefaultCenterLng,
		&i.DefaultZoom,
		&i.UpdatedAt,
	)
	return i, err
}

const upsertWidgetConfig = `-- name: UpsertWidgetConfig :one
INSERT INTO widget_config (
    id, map_provider, maps_api_key, default_language, primary_color,
    default_radius_km, default_center_lat, default_center_lng, default_zoom
) VALUES (1, $1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (id) DO UPDATE SET
    map_provider = EXCLUDED.map_provider,
    maps_api_key = EXCLUDED.maps_api_key,
    default_language = EXCLUDED.default_language,
    primary_color = EXCLUDED.primary_color,
    default_radius_km = EXCLUDED.default_radius_km,
    default_center_lat = EXCLUDED.default_center_lat,
    default_center_lng = EXCLUDED.default_center_lng,
    default_zoom = EXCLUDED.default_zoom,
    updated_at = now()
RETURNING id, map_provider, maps_api_key, default_language, primary_color,
          default_radius_km, default_center_lat, default_center_lng, default_zoom, updated_at`

type UpsertWidgetConfigParams struct {
	MapProvider      string         `json:"map_provider"`
	MapsApiKey       sql.NullString `json:"maps_api_key"`
	DefaultLanguage  string         `json:"default_language"`
	PrimaryColor     string         `json:"primary_color"`
	DefaultRadiusKm  int32          `json:"default_radius_km"`
	DefaultCenterLat float64        `json:"default_center_lat"`
	DefaultCenterLng float64        `json:"default_center_lng"`
	DefaultZoom      int32          `json:"default_zoom"`
}

func (q *Queries) UpsertWidgetConfig(ctx context.Context, arg UpsertWidgetConfigParams) (WidgetConfig, error) {
	row := q.db.QueryRowContext(ctx, upsertWidgetConfig,
		arg.MapProvider,
		arg.MapsApiKey,
		arg.DefaultLanguage,
		arg.PrimaryColor,
		arg.DefaultRadiusKm,
		arg.DefaultCenterLat,
		arg.DefaultCenterLng,
		arg.DefaultZoom,
	)
	var i WidgetConfig
	err := row.Scan(
		&i.ID,
		&i.MapProvider,
		&i.MapsApiKey,
		&i.DefaultLanguage,
		&i.PrimaryColor,
		&i.DefaultRadiusKm,
		&i.DefaultCenterLat,
		&i.DefaultCenterLng,
		&i.DefaultZoom,
		&i.UpdatedAt,
	)
	return i, err
}
