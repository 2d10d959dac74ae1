package repository

import (
	"context"

	"github.com/sqlc-dev/pqtype"
)

const createImportRun = `-- name: CreateImportRun :one
INSERT INTO import_runs (file_name, total, created, updated, skipped, failed, errors)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id, file_name, total, created, updated, skipped, failed, errors, created_at`

type CreateImportRunParams struct {
	FileName string                `json:"file_name"`
	Total    int32                 `json:"total"`
	Created  int32                 `json:"created"`
	Updated  int32                 `json:"updated"`
	Skipped  int32                 `json:"skipped"`
	Failed   int32                 `json:"failed"`
	Errors   pqtype.NullRawMessage `json:"errors"`
}

func (q *Queries) CreateImportRun(ctx context.Context, arg CreateImportRunParams) (ImportRun, error) {
	row := q.db.QueryRowContext(ctx, createImportRun,
		arg.FileName,
		arg.Total,
		arg.Created,
		arg.Updated,
		arg.Skipped,
		arg.Failed,
		arg.Errors,
	)
	var i ImportRun
	err := row.Scan(
		&i.ID,
		&i.FileName,
		&i.Total,
		&i.Created,
		&i.Updated,
		&i.Skipped,
		&i.Failed,
		&i.Errors,
		&i.CreatedAt,
	)
	return i, err
}

const listImportRuns = `-- name: ListImportRuns :many
SELECT id, file_name, total, created, updated, skipped, failed, errors, created_at
FROM import_runs
ORDER BY created_at DESC
LIMIT $1`

func (q *Queries) ListImportRuns(ctx context.Context, limit int32) ([]ImportRun, error) {
	rows, err := q.db.QueryContext(ctx, listImportRuns, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ImportRun
	for rows.Next() {
		var i ImportRun
		if err := rows.Scan(
			&i.ID,
			&i.FileName,
			&i.Total,
			&i.Created,
			&i.Updated,
			&i.Skipped,
			&i.Failed,
			&i.Errors,
			&i.CreatedAt,
		); err != nil {
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
