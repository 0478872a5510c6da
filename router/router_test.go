package router

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"naskah/internal/document/model"
	"naskah/internal/document/service"
)

var (
	secret  = []byte("router-test-secret")
	docCols = []string{"id", "title", "content", "user_id", "created_by", "version", "created_at", "updated_at"}
)

func setup(t *testing.T) (*httptest.Server, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	server := httptest.NewServer(Setup(db, Options{JWTSecret: secret}))
	t.Cleanup(func() {
		server.Close()
		db.Close()
	})
	return server, mock
}

func tokenFor(t *testing.T, userID string) string {
	t.Helper()
	token, err := service.NewAuthService(nil, secret).IssueToken(&model.User{ID: userID, Username: "ana"})
	require.NoError(t, err)
	return token
}

func do(t *testing.T, method, url, token, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestLogin(t *testing.T) {
	server, mock := setup(t)
	hash, err := bcrypt.GenerateFromPassword([]byte("pw"), bcrypt.MinCost)
	require.NoError(t, err)

	mock.ExpectQuery(`FROM users WHERE username = \$1`).
		WithArgs("ana").
		WillReturnRows(sqlmock.NewRows([]string{"id", "username", "role", "permissions", "password_hash"}).
			AddRow("user-1", "ana", "user", "{read,write}", string(hash)))

	resp := do(t, http.MethodPost, server.URL+"/auth/login", "", `{"username":"ana","password":"pw"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var login model.LoginResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&login))
	assert.Equal(t, "user-1", login.User.ID)
	assert.NotEmpty(t, login.Token)

	mock.ExpectQuery(`FROM users WHERE username = \$1`).
		WithArgs("ana").
		WillReturnRows(sqlmock.NewRows([]string{"id", "username", "role", "permissions", "password_hash"}).
			AddRow("user-1", "ana", "user", "{}", string(hash)))

	resp = do(t, http.MethodPost, server.URL+"/auth/login", "", `{"username":"ana","password":"nope"}`)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCollectionsRequireToken(t *testing.T) {
	server, _ := setup(t)
	resp := do(t, http.MethodGet, server.URL+"/documents", "", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestCreateDocumentStampsMetadata(t *testing.T) {
	server, mock := setup(t)

	mock.ExpectExec(`INSERT INTO documents`).
		WithArgs(sqlmock.AnyArg(), "Untitled Document", "<p>Start typing here...</p>", "user-1", "user-1", 1, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	body := `{"title":"Untitled Document","content":"<p>Start typing here...</p>","userId":"user-1","metadata":{"version":9}}`
	resp := do(t, http.MethodPost, server.URL+"/documents", tokenFor(t, "user-1"), body)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var doc model.Document
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&doc))
	assert.NotEmpty(t, doc.ID)
	assert.Equal(t, 1, doc.Metadata.Version)
	assert.False(t, doc.Metadata.CreatedAt.IsZero())
	assert.Equal(t, doc.Metadata.CreatedAt, doc.Metadata.UpdatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReplaceDocumentKeepsClientVersion(t *testing.T) {
	server, mock := setup(t)
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	updated := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT user_id FROM documents WHERE id = \$1`).
		WithArgs("d1").
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}).AddRow("user-1"))
	// The store accepts whatever version it is given, even one that goes backwards.
	mock.ExpectQuery(`UPDATE documents SET`).
		WithArgs("d1", "T", "<p>x</p>", "user-1", "user-1", 7, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(docCols).AddRow("d1", "T", "<p>x</p>", "user-1", "user-1", 7, created, updated))

	body := `{"id":"d1","title":"T","content":"<p>x</p>","userId":"user-1","metadata":{"createdBy":"user-1","version":7}}`
	resp := do(t, http.MethodPut, server.URL+"/documents/d1", tokenFor(t, "user-1"), body)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var doc model.Document
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&doc))
	assert.Equal(t, 7, doc.Metadata.Version)
	assert.Equal(t, updated, doc.Metadata.UpdatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOtherUsersDocumentsAreHidden(t *testing.T) {
	server, mock := setup(t)
	now := time.Now().UTC()

	mock.ExpectQuery(`SELECT .* FROM documents WHERE id = \$1`).
		WithArgs("d1").
		WillReturnRows(sqlmock.NewRows(docCols).AddRow("d1", "T", "", "user-2", "user-2", 1, now, now))

	resp := do(t, http.MethodGet, server.URL+"/documents/d1", tokenFor(t, "user-1"), "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = do(t, http.MethodGet, server.URL+"/documents?userId=user-2", tokenFor(t, "user-1"), "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListVersions(t *testing.T) {
	server, mock := setup(t)
	token := tokenFor(t, "user-1")
	now := time.Now().UTC()

	resp := do(t, http.MethodGet, server.URL+"/document-versions", token, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	mock.ExpectQuery(`SELECT user_id FROM documents WHERE id = \$1`).
		WithArgs("d1").
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}).AddRow("user-1"))
	mock.ExpectQuery(`FROM document_versions WHERE document_id = \$1 ORDER BY version DESC`).
		WithArgs("d1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "document_id", "content", "title", "version", "created_at", "created_by", "change_description"}).
			AddRow("v2", "d1", "b", "T", 2, now, "user-1", "Changes made by ana").
			AddRow("v1", "d1", "a", "T", 1, now, "user-1", nil))

	resp = do(t, http.MethodGet, server.URL+"/document-versions?documentId=d1&_sort=version&_order=desc", token, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var versions []model.VersionRecord
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&versions))
	require.Len(t, versions, 2)
	assert.Equal(t, 2, versions[0].Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListDocumentsUnknownSortColumn(t *testing.T) {
	server, mock := setup(t)

	resp := do(t, http.MethodGet, server.URL+"/documents?_sort=foo", tokenFor(t, "user-1"), "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	mock.ExpectQuery(`SELECT user_id FROM documents WHERE id = \$1`).
		WithArgs("d1").
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}).AddRow("user-1"))
	resp = do(t, http.MethodGet, server.URL+"/document-versions?documentId=d1&_sort=password_hash", tokenFor(t, "user-1"), "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteDocumentMissing(t *testing.T) {
	server, mock := setup(t)

	mock.ExpectQuery(`SELECT user_id FROM documents WHERE id = \$1`).
		WithArgs("nope").
		WillReturnError(sql.ErrNoRows)

	resp := do(t, http.MethodDelete, server.URL+"/documents/nope", tokenFor(t, "user-1"), "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWatchRequiresToken(t *testing.T) {
	server, _ := setup(t)
	resp := do(t, http.MethodGet, server.URL+"/ws", "", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
