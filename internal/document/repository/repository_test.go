package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"naskah/internal/document/model"
)

var docCols = []string{"id", "title", "content", "user_id", "created_by", "version", "created_at", "updated_at"}
var versionCols = []string{"id", "document_id", "content", "title", "version", "created_at", "created_by", "change_description"}

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func TestDocumentRepository_ListFiltersAndSorts(t *testing.T) {
	db, mock := newMock(t)
	repo := NewDocumentRepository(db)
	now := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT .* FROM documents WHERE user_id = \$1 ORDER BY title DESC, id ASC`).
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows(docCols).
			AddRow("d2", "Zeta", "<p>z</p>", "user-1", "user-1", 3, now, now).
			AddRow("d1", "Alpha", "<p>a</p>", "user-1", "user-1", 1, now, now))

	docs, err := repo.List(context.Background(), model.ListQuery{Field: "userId", Value: "user-1", Sort: "title", Order: "desc"})
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "d2", docs[0].ID)
	assert.Equal(t, 3, docs[0].Metadata.Version)
	assert.Equal(t, now, docs[1].Metadata.UpdatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentRepository_ListRejectsUnknownColumns(t *testing.T) {
	db, _ := newMock(t)
	repo := NewDocumentRepository(db)

	_, err := repo.List(context.Background(), model.ListQuery{Field: "content; DROP TABLE users", Value: "x"})
	assert.ErrorIs(t, err, ErrInvalidQuery)
	_, err = repo.List(context.Background(), model.ListQuery{Sort: "password_hash"})
	assert.ErrorIs(t, err, ErrInvalidQuery)
	_, err = repo.List(context.Background(), model.ListQuery{Order: "sideways"})
	assert.ErrorIs(t, err, ErrInvalidQuery)
}

func TestDocumentRepository_GetNotFound(t *testing.T) {
	db, mock := newMock(t)
	repo := NewDocumentRepository(db)

	mock.ExpectQuery(`SELECT .* FROM documents WHERE id = \$1`).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDocumentRepository_ReplaceEchoesStoredRecord(t *testing.T) {
	db, mock := newMock(t)
	repo := NewDocumentRepository(db)
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	updated := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

	doc := &model.Document{ID: "d1", Title: "T", Content: "<p>hi</p>", OwnerID: "u1",
		Metadata: model.Metadata{CreatedBy: "u1", Version: 2, UpdatedAt: updated}}

	mock.ExpectQuery(`UPDATE documents SET .* WHERE id = \$1\s+RETURNING`).
		WithArgs("d1", "T", "<p>hi</p>", "u1", "u1", 2, sqlmock.AnyArg(), updated).
		WillReturnRows(sqlmock.NewRows(docCols).AddRow("d1", "T", "<p>hi</p>", "u1", "u1", 2, created, updated))

	stored, err := repo.Replace(context.Background(), doc)
	require.NoError(t, err)
	assert.Equal(t, created, stored.Metadata.CreatedAt)
	assert.Equal(t, 2, stored.Metadata.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentRepository_DeleteMissing(t *testing.T) {
	db, mock := newMock(t)
	repo := NewDocumentRepository(db)

	mock.ExpectExec(`DELETE FROM documents WHERE id = \$1`).
		WithArgs("gone").
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.ErrorIs(t, repo.Delete(context.Background(), "gone"), ErrNotFound)
}

func TestVersionRepository_CreateAndList(t *testing.T) {
	db, mock := newMock(t)
	repo := NewVersionRepository(db)
	now := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)

	rec := &model.VersionRecord{ID: "v1", DocumentID: "d1", Content: "<p>old</p>", Title: "T", Version: 1, CreatedAt: now, CreatedBy: "u1"}
	mock.ExpectExec(`INSERT INTO document_versions`).
		WithArgs("v1", "d1", "<p>old</p>", "T", 1, now, "u1", nil).
		WillReturnResult(sqlmock.NewResult(1, 1))
	require.NoError(t, repo.Create(context.Background(), rec))

	mock.ExpectQuery(`SELECT .* FROM document_versions WHERE document_id = \$1 ORDER BY version DESC, id ASC`).
		WithArgs("d1").
		WillReturnRows(sqlmock.NewRows(versionCols).
			AddRow("v2", "d1", "<p>mid</p>", "T", 2, now, "u1", "Changes made by ana").
			AddRow("v1", "d1", "<p>old</p>", "T", 1, now, "u1", nil))

	recs, err := repo.List(context.Background(), model.ListQuery{Field: "documentId", Value: "d1", Sort: "version", Order: "desc"})
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, 2, recs[0].Version)
	assert.Equal(t, "Changes made by ana", recs[0].ChangeDescription)
	assert.Empty(t, recs[1].ChangeDescription)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_GetByUsername(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepository(db)

	mock.ExpectQuery(`SELECT id, username, role, permissions, password_hash FROM users WHERE username = \$1`).
		WithArgs("ana").
		WillReturnRows(sqlmock.NewRows([]string{"id", "username", "role", "permissions", "password_hash"}).
			AddRow("u1", "ana", "admin", "{read,write}", "hash"))

	u, hash, err := repo.GetByUsername(context.Background(), "ana")
	require.NoError(t, err)
	assert.Equal(t, "hash", hash)
	assert.Equal(t, []string{"read", "write"}, u.Permissions)

	mock.ExpectQuery(`FROM users WHERE username = \$1`).WithArgs("nobody").WillReturnError(sql.ErrNoRows)
	_, _, err = repo.GetByUsername(context.Background(), "nobody")
	assert.ErrorIs(t, err, ErrNotFound)
}
