package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"naskah/internal/document/model"
	"naskah/pkg/logger"
)

const versionColumns = `id, document_id, content, title, version, created_at, created_by, change_description`

var versionSortColumns = map[string]string{
	"version":   "version",
	"createdAt": "created_at",
}

var versionFilterColumns = map[string]string{
	"documentId": "document_id",
}

// VersionRepository only inserts and reads: version records are never updated or deleted
// except by the cascade when their document goes away.
type VersionRepository struct {
	DB *sql.DB
}

func NewVersionRepository(db *sql.DB) *VersionRepository {
	return &VersionRepository{DB: db}
}

func (r *VersionRepository) Create(ctx context.Context, rec *model.VersionRecord) error {
	var description sql.NullString
	if rec.ChangeDescription != "" {
		description = sql.NullString{String: rec.ChangeDescription, Valid: true}
	}
	_, err := r.DB.ExecContext(ctx, `INSERT INTO document_versions (`+versionColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		rec.ID, rec.DocumentID, rec.Content, rec.Title, rec.Version, rec.CreatedAt, rec.CreatedBy, description)
	if err != nil {
		logger.Sugar.Errorf("Failed to append version %d for doc %s: %v", rec.Version, rec.DocumentID, err)
	}
	return err
}

func (r *VersionRepository) Get(ctx context.Context, id string) (*model.VersionRecord, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+versionColumns+` FROM document_versions WHERE id = $1`, id)
	rec, err := scanVersion(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		logger.Sugar.Errorf("Failed to get version %s: %v", id, err)
		return nil, err
	}
	return rec, nil
}

func (r *VersionRepository) List(ctx context.Context, q model.ListQuery) ([]model.VersionRecord, error) {
	query, args, err := buildListQuery(`SELECT `+versionColumns+` FROM document_versions`, q, versionFilterColumns, versionSortColumns, "created_at")
	if err != nil {
		return nil, err
	}

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		logger.Sugar.Errorf("Failed to list versions: %v", err)
		return nil, err
	}
	defer rows.Close()

	recs := []model.VersionRecord{}
	for rows.Next() {
		rec, err := scanVersion(rows)
		if err != nil {
			logger.Sugar.Errorf("Failed to scan version: %v", err)
			return nil, err
		}
		recs = append(recs, *rec)
	}
	return recs, rows.Err()
}

func scanVersion(s scanner) (*model.VersionRecord, error) {
	var rec model.VersionRecord
	var createdAt time.Time
	var description sql.NullString
	if err := s.Scan(&rec.ID, &rec.DocumentID, &rec.Content, &rec.Title, &rec.Version, &createdAt, &rec.CreatedBy, &description); err != nil {
		return nil, err
	}
	rec.CreatedAt = createdAt.UTC()
	rec.ChangeDescription = description.String
	return &rec, nil
}
