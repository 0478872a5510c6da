package main

import (
	"context"
	"fmt"

	"naskah/config"
	"naskah/internal/client/editor"
	"naskah/internal/client/history"
	"naskah/internal/client/sessionstore"
	"naskah/internal/client/storeclient"
	"naskah/pkg/logger"
)

// naskahApp wires the editor to the REST backend and the local session store.
type naskahApp struct {
	cfg      *config.ClientConfig
	sessions *sessionstore.Store
	client   *storeclient.Client
	editor   *editor.Editor
	history  *history.Presenter
}

// newApp reads the config and builds the editor. The caller must defer Close.
func newApp() (*naskahApp, error) {
	_, configPath, err := config.DefaultClientPaths()
	if err != nil {
		return nil, err
	}
	cfg, err := config.ReadClientConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	logger.InitCLI(cfg.LogLevel)

	sessions, err := sessionstore.Open(cfg.SessionDB)
	if err != nil {
		return nil, err
	}

	client := storeclient.New(cfg.APIURL)
	e := editor.New(client, editor.WithSessionStore(sessions))
	return &naskahApp{
		cfg:      cfg,
		sessions: sessions,
		client:   client,
		editor:   e,
		history:  history.NewPresenter(e, nil),
	}, nil
}

func (a *naskahApp) Close() {
	a.editor.WaitRefreshes()
	a.sessions.Close()
	logger.Log.Sync()
}

// resume signs the remembered user in and loads their documents.
func (a *naskahApp) resume(ctx context.Context) error {
	_, ok, err := a.editor.Resume(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("not logged in (run naskah login)")
	}
	_, err = a.editor.LoadDocuments(ctx)
	return err
}

// open resumes the session and selects documentID with its versions loaded.
func (a *naskahApp) open(ctx context.Context, documentID string) error {
	if err := a.resume(ctx); err != nil {
		return err
	}
	if _, err := a.editor.Select(ctx, documentID); err != nil {
		return err
	}
	a.editor.WaitRefreshes()
	return nil
}
