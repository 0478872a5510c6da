package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"naskah/config"
	"naskah/config/database"
	"naskah/internal/document/repository"
	"naskah/internal/document/service"
	"naskah/pkg/logger"
	"naskah/router"
)

func main() {
	cfg := config.Load()
	logger.Init(cfg.LogLevel)
	defer logger.Log.Sync()

	if err := cfg.Validate(); err != nil {
		logger.Sugar.Fatalf("Invalid configuration: %v", err)
	}

	db := database.Connect(cfg.DatabaseURL)
	defer db.Close()

	// naskah-server adduser <username> <password> [role]
	if len(os.Args) > 1 && os.Args[1] == "adduser" {
		if len(os.Args) < 4 {
			logger.Sugar.Fatal("usage: naskah-server adduser <username> <password> [role]")
		}
		role := ""
		if len(os.Args) > 4 {
			role = os.Args[4]
		}
		auth := service.NewAuthService(repository.NewUserRepository(db), []byte(cfg.JWTSecret))
		user, err := auth.CreateUser(context.Background(), os.Args[2], os.Args[3], role)
		if err != nil {
			logger.Sugar.Fatalf("Failed to create user: %v", err)
		}
		logger.Sugar.Infof("Created user %s (%s)", user.Username, user.ID)
		return
	}

	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: router.Setup(db, router.Options{JWTSecret: []byte(cfg.JWTSecret), CORSOrigin: cfg.CORSOrigin}),
	}

	go func() {
		logger.Sugar.Infof("Document store listening on %s", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Sugar.Fatalf("Server failed: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Sugar.Errorf("Shutdown failed: %v", err)
	}
}
