package storeclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"naskah/internal/document/model"
)

func TestClient_ListVersionsQuery(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/document-versions", r.URL.Path)
		assert.Equal(t, "d1", r.URL.Query().Get("documentId"))
		assert.Equal(t, "version", r.URL.Query().Get("_sort"))
		assert.Equal(t, "desc", r.URL.Query().Get("_order"))
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode([]model.VersionRecord{{ID: "v2", DocumentID: "d1", Version: 2}, {ID: "v1", DocumentID: "d1", Version: 1}})
	}))
	defer server.Close()

	c := New(server.URL + "/")
	c.SetToken("tok")

	versions, err := c.ListVersions(context.Background(), "d1")
	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.Equal(t, 2, versions[0].Version)
}

func TestClient_UpdateDocumentPutsFullRecord(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/documents/d1", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var doc model.Document
		require.NoError(t, json.NewDecoder(r.Body).Decode(&doc))
		assert.Equal(t, 3, doc.Metadata.Version)
		doc.Title = "server says"
		json.NewEncoder(w).Encode(doc)
	}))
	defer server.Close()

	c := New(server.URL)
	stored, err := c.UpdateDocument(context.Background(), model.Document{ID: "d1", Title: "local", Metadata: model.Metadata{Version: 3}})
	require.NoError(t, err)
	assert.Equal(t, "server says", stored.Title)
}

func TestClient_UpdateDocumentWithoutID(t *testing.T) {
	c := New("http://unused")
	_, err := c.UpdateDocument(context.Background(), model.Document{})
	assert.True(t, IsPersistenceError(err))
}

func TestClient_ErrorsArePersistenceErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/documents/missing":
			http.Error(w, "Not found", http.StatusNotFound)
		default:
			http.Error(w, "Database error", http.StatusInternalServerError)
		}
	}))
	defer server.Close()

	c := New(server.URL)

	_, err := c.CreateVersion(context.Background(), model.VersionRecord{DocumentID: "d1"})
	var pe *PersistenceError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, http.StatusInternalServerError, pe.Status)
	assert.Equal(t, "append version", pe.Op)
	assert.Contains(t, err.Error(), "Database error")

	_, err = c.GetDocument(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.True(t, IsPersistenceError(err))
}

func TestClient_TransportFailure(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	_, err := New(url).ListDocuments(context.Background(), "u1")
	var pe *PersistenceError
	require.True(t, errors.As(err, &pe))
	assert.Zero(t, pe.Status)
}

func TestClient_Login(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req model.LoginRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if req.Password != "pw" {
			http.Error(w, "Invalid credentials", http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(model.LoginResponse{User: model.User{ID: "u1", Username: req.Username}, Token: "tok"})
	}))
	defer server.Close()

	c := New(server.URL)

	resp, err := c.Login(context.Background(), "ana", "pw")
	require.NoError(t, err)
	assert.Equal(t, "u1", resp.User.ID)
	assert.Equal(t, "tok", resp.Token)

	_, err = c.Login(context.Background(), "ana", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	assert.False(t, IsPersistenceError(err))
}

func TestClient_DeleteDocument(t *testing.T) {
	var gotMethod, gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod, gotPath = r.Method, r.URL.Path
		w.Write([]byte("{}"))
	}))
	defer server.Close()

	require.NoError(t, New(server.URL).DeleteDocument(context.Background(), "d 1"))
	assert.Equal(t, http.MethodDelete, gotMethod)
	assert.Equal(t, "/documents/d 1", gotPath)
}

func TestAsPersistenceError(t *testing.T) {
	assert.NoError(t, AsPersistenceError("x", nil))

	wrapped := AsPersistenceError("append version", errors.New("boom"))
	assert.True(t, IsPersistenceError(wrapped))

	orig := &PersistenceError{Op: "update document", Err: errors.New("boom")}
	assert.Same(t, orig, AsPersistenceError("other", orig))
}
