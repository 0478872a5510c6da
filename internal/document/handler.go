package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"naskah/internal/document/model"
	"naskah/internal/document/repository"
	"naskah/internal/document/service"
	"naskah/middleware"
	"naskah/pkg/logger"
	"naskah/socket"
)

type DocumentHandler struct {
	Service *service.DocumentService
	Auth    *service.AuthService
	Hub     *socket.Hub
}

func NewDocumentHandler(docs *service.DocumentService, auth *service.AuthService, hub *socket.Hub) *DocumentHandler {
	return &DocumentHandler{Service: docs, Auth: auth, Hub: hub}
}

func (h *DocumentHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req model.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	resp, err := h.Auth.Login(r.Context(), req.Username, req.Password)
	if errors.Is(err, service.ErrInvalidCredentials) {
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}
	if err != nil {
		logger.Sugar.Errorf("Handler: Failed to log in %s: %v", req.Username, err)
		http.Error(w, "Login failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *DocumentHandler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	q, err := listQuery(r, "userId")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	docs, err := h.Service.ListDocuments(r.Context(), middleware.UserID(r.Context()), q)
	if err != nil {
		h.fail(w, "list documents", err)
		return
	}
	writeJSON(w, http.StatusOK, docs)
}

func (h *DocumentHandler) GetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := h.Service.GetDocument(r.Context(), middleware.UserID(r.Context()), r.PathValue("id"))
	if err != nil {
		h.fail(w, "get document "+r.PathValue("id"), err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (h *DocumentHandler) CreateDocument(w http.ResponseWriter, r *http.Request) {
	var doc model.Document
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	created, err := h.Service.CreateDocument(r.Context(), middleware.UserID(r.Context()), doc)
	if err != nil {
		h.fail(w, "create document", err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *DocumentHandler) ReplaceDocument(w http.ResponseWriter, r *http.Request) {
	var doc model.Document
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	docID := r.PathValue("id")
	stored, err := h.Service.ReplaceDocument(r.Context(), middleware.UserID(r.Context()), docID, doc)
	if err != nil {
		h.fail(w, "update document "+docID, err)
		return
	}
	writeJSON(w, http.StatusOK, stored)
}

func (h *DocumentHandler) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	docID := r.PathValue("id")
	if err := h.Service.DeleteDocument(r.Context(), middleware.UserID(r.Context()), docID); err != nil {
		h.fail(w, "delete document "+docID, err)
		return
	}
	writeJSON(w, http.StatusOK, struct{}{})
}

func (h *DocumentHandler) ListVersions(w http.ResponseWriter, r *http.Request) {
	q, err := listQuery(r, "documentId")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if q.Field == "" {
		http.Error(w, "Missing documentId parameter", http.StatusBadRequest)
		return
	}

	versions, err := h.Service.ListVersions(r.Context(), middleware.UserID(r.Context()), q)
	if err != nil {
		h.fail(w, "list versions of "+q.Value, err)
		return
	}
	writeJSON(w, http.StatusOK, versions)
}

func (h *DocumentHandler) GetVersion(w http.ResponseWriter, r *http.Request) {
	rec, err := h.Service.GetVersion(r.Context(), middleware.UserID(r.Context()), r.PathValue("id"))
	if err != nil {
		h.fail(w, "get version "+r.PathValue("id"), err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *DocumentHandler) CreateVersion(w http.ResponseWriter, r *http.Request) {
	var rec model.VersionRecord
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil || rec.DocumentID == "" {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	created, err := h.Service.AppendVersion(r.Context(), middleware.UserID(r.Context()), rec)
	if err != nil {
		h.fail(w, "append version for "+rec.DocumentID, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// Watch subscribes the caller to change events for their documents.
func (h *DocumentHandler) Watch(w http.ResponseWriter, r *http.Request) {
	if h.Hub == nil {
		http.Error(w, "Change feed disabled", http.StatusNotFound)
		return
	}
	socket.ServeWs(h.Hub, w, r, middleware.UserID(r.Context()))
}

func (h *DocumentHandler) fail(w http.ResponseWriter, action string, err error) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		http.Error(w, "Not found", http.StatusNotFound)
	case errors.Is(err, service.ErrForbidden):
		// Other users' documents are reported as missing.
		http.Error(w, "Not found", http.StatusNotFound)
	case errors.Is(err, repository.ErrInvalidQuery):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		logger.Sugar.Errorf("Handler: Failed to %s: %v", action, err)
		http.Error(w, "Database error", http.StatusInternalServerError)
	}
}

// listQuery reads the collection query string: one equality filter on filterField
// plus _sort and _order.
func listQuery(r *http.Request, filterField string) (model.ListQuery, error) {
	values := r.URL.Query()
	q := model.ListQuery{
		Sort:  values.Get("_sort"),
		Order: strings.ToLower(values.Get("_order")),
	}
	if v := values.Get(filterField); v != "" {
		q.Field, q.Value = filterField, v
	}
	if q.Order != "" && q.Order != "asc" && q.Order != "desc" {
		return q, errors.New("_order must be asc or desc")
	}
	return q, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Sugar.Errorf("Handler: Failed to encode response: %v", err)
	}
}
