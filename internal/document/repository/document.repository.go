package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"naskah/internal/document/model"
	"naskah/pkg/logger"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrInvalidQuery = errors.New("invalid query")
)

const documentColumns = `id, title, content, user_id, created_by, version, created_at, updated_at`

// documentSortColumns maps the collection's field names to columns allowed in ORDER BY.
var documentSortColumns = map[string]string{
	"title":     "title",
	"updatedAt": "updated_at",
	"createdAt": "created_at",
	"version":   "version",
}

var documentFilterColumns = map[string]string{
	"userId": "user_id",
	"id":     "id",
}

type DocumentRepository struct {
	DB *sql.DB
}

func NewDocumentRepository(db *sql.DB) *DocumentRepository {
	return &DocumentRepository{DB: db}
}

func (r *DocumentRepository) Create(ctx context.Context, doc *model.Document) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO documents (`+documentColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		doc.ID, doc.Title, doc.Content, doc.OwnerID, doc.Metadata.CreatedBy, doc.Metadata.Version, doc.Metadata.CreatedAt, doc.Metadata.UpdatedAt)
	if err != nil {
		logger.Sugar.Errorf("Failed to create document: %v", err)
	}
	return err
}

func (r *DocumentRepository) Get(ctx context.Context, docID string) (*model.Document, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = $1`, docID)
	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		logger.Sugar.Errorf("Failed to get doc %s: %v", docID, err)
		return nil, err
	}
	return doc, nil
}

func (r *DocumentRepository) GetOwnerID(ctx context.Context, docID string) (string, error) {
	var ownerID string
	err := r.DB.QueryRowContext(ctx, "SELECT user_id FROM documents WHERE id = $1", docID).Scan(&ownerID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		logger.Sugar.Errorf("Failed to get owner ID for doc %s: %v", docID, err)
	}
	return ownerID, err
}

func (r *DocumentRepository) List(ctx context.Context, q model.ListQuery) ([]model.Document, error) {
	query, args, err := buildListQuery(`SELECT `+documentColumns+` FROM documents`, q, documentFilterColumns, documentSortColumns, "created_at")
	if err != nil {
		return nil, err
	}

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		logger.Sugar.Errorf("Failed to list documents: %v", err)
		return nil, err
	}
	defer rows.Close()

	docs := []model.Document{}
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			logger.Sugar.Errorf("Failed to scan document: %v", err)
			return nil, err
		}
		docs = append(docs, *doc)
	}
	return docs, rows.Err()
}

// Replace overwrites every field of the stored record and returns what was stored.
// A zero CreatedAt keeps the stored creation time.
func (r *DocumentRepository) Replace(ctx context.Context, doc *model.Document) (*model.Document, error) {
	var createdAt sql.NullTime
	if !doc.Metadata.CreatedAt.IsZero() {
		createdAt = sql.NullTime{Time: doc.Metadata.CreatedAt, Valid: true}
	}

	row := r.DB.QueryRowContext(ctx, `
		UPDATE documents SET title = $2, content = $3, user_id = $4, created_by = $5, version = $6,
			created_at = COALESCE($7, created_at), updated_at = $8
		WHERE id = $1
		RETURNING `+documentColumns,
		doc.ID, doc.Title, doc.Content, doc.OwnerID, doc.Metadata.CreatedBy, doc.Metadata.Version, createdAt, doc.Metadata.UpdatedAt)
	stored, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		logger.Sugar.Errorf("Failed to update doc %s: %v", doc.ID, err)
		return nil, err
	}
	return stored, nil
}

func (r *DocumentRepository) Delete(ctx context.Context, docID string) error {
	result, err := r.DB.ExecContext(ctx, "DELETE FROM documents WHERE id = $1", docID)
	if err != nil {
		logger.Sugar.Errorf("Failed to delete doc %s: %v", docID, err)
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(s scanner) (*model.Document, error) {
	var doc model.Document
	var createdAt, updatedAt time.Time
	if err := s.Scan(&doc.ID, &doc.Title, &doc.Content, &doc.OwnerID, &doc.Metadata.CreatedBy, &doc.Metadata.Version, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	doc.Metadata.CreatedAt = createdAt.UTC()
	doc.Metadata.UpdatedAt = updatedAt.UTC()
	return &doc, nil
}

// buildListQuery appends a WHERE clause and ORDER BY for q. Only whitelisted
// columns are ever interpolated; values go through placeholders.
func buildListQuery(base string, q model.ListQuery, filters, sorts map[string]string, defaultSort string) (string, []any, error) {
	query := base
	var args []any

	if q.Field != "" {
		col, ok := filters[q.Field]
		if !ok {
			return "", nil, fmt.Errorf("%w: cannot filter by %q", ErrInvalidQuery, q.Field)
		}
		query += " WHERE " + col + " = $1"
		args = append(args, q.Value)
	}

	sortCol := defaultSort
	if q.Sort != "" {
		col, ok := sorts[q.Sort]
		if !ok {
			return "", nil, fmt.Errorf("%w: cannot sort by %q", ErrInvalidQuery, q.Sort)
		}
		sortCol = col
	}

	order := "ASC"
	switch q.Order {
	case "", "asc", "ASC":
	case "desc", "DESC":
		order = "DESC"
	default:
		return "", nil, fmt.Errorf("%w: invalid order %q", ErrInvalidQuery, q.Order)
	}

	query += " ORDER BY " + sortCol + " " + order + ", id ASC"
	return query, args, nil
}
