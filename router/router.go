package router

import (
	"database/sql"
	"net/http"

	docHandler "naskah/internal/document"
	"naskah/internal/document/repository"
	"naskah/internal/document/service"
	"naskah/middleware"
	"naskah/socket"
)

// Options configures Setup.
type Options struct {
	JWTSecret  []byte
	CORSOrigin string
}

// Setup wires repositories, services and handlers over db and starts the
// change feed hub.
func Setup(db *sql.DB, opts Options) http.Handler {
	hub := socket.NewHub()
	go hub.Run()

	docService := service.NewDocumentService(repository.NewDocumentRepository(db), repository.NewVersionRepository(db))
	docService.Events = hub
	authService := service.NewAuthService(repository.NewUserRepository(db), opts.JWTSecret)
	return Routes(docHandler.NewDocumentHandler(docService, authService, hub), opts)
}

// Routes mounts h. Version records have no update or delete routes.
func Routes(h *docHandler.DocumentHandler, opts Options) http.Handler {
	mux := http.NewServeMux()
	auth := middleware.AuthMiddleware(opts.JWTSecret)

	mux.HandleFunc("POST /auth/login", h.Login)

	mux.Handle("GET /documents", auth(http.HandlerFunc(h.ListDocuments)))
	mux.Handle("POST /documents", auth(http.HandlerFunc(h.CreateDocument)))
	mux.Handle("GET /documents/{id}", auth(http.HandlerFunc(h.GetDocument)))
	mux.Handle("PUT /documents/{id}", auth(http.HandlerFunc(h.ReplaceDocument)))
	mux.Handle("DELETE /documents/{id}", auth(http.HandlerFunc(h.DeleteDocument)))

	mux.Handle("GET /document-versions", auth(http.HandlerFunc(h.ListVersions)))
	mux.Handle("POST /document-versions", auth(http.HandlerFunc(h.CreateVersion)))
	mux.Handle("GET /document-versions/{id}", auth(http.HandlerFunc(h.GetVersion)))

	// Browsers cannot set headers on a websocket handshake; the token may come as ?token=.
	mux.Handle("GET /ws", auth(http.HandlerFunc(h.Watch)))

	origin := opts.CORSOrigin
	if origin == "" {
		origin = "*"
	}
	return middleware.CORSMiddleware(origin)(mux)
}
