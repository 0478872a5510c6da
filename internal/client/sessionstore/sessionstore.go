// Package sessionstore remembers the signed-in user between runs of the client
// in a local SQLite database.
package sessionstore

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"naskah/internal/document/model"
	"naskah/pkg/migrations"
)

//go:embed schema/*.sql
var schemaFiles embed.FS

const schemaDir = "schema"

type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the session database at path and brings its
// schema up to date. ":memory:" is accepted.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("create session directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open session database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := migrations.MigrateUp(db, migrations.SQLite, schemaFiles, schemaDir); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate session database: %w", err)
	}
	return &Store{db: db}, nil
}

// CheckSchema reports whether the database is at the schema this binary expects.
func (s *Store) CheckSchema() error {
	return migrations.CheckStatus(s.db, migrations.SQLite, schemaFiles, schemaDir)
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Save replaces the remembered session.
func (s *Store) Save(ctx context.Context, sess model.StoredSession) error {
	perms := sess.User.Permissions
	if perms == nil {
		perms = []string{}
	}
	permsJSON, err := json.Marshal(perms)
	if err != nil {
		return fmt.Errorf("encode permissions: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO session (slot, user_id, username, role, permissions, token, saved_at)
		VALUES (1, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(slot) DO UPDATE SET
			user_id = excluded.user_id,
			username = excluded.username,
			role = excluded.role,
			permissions = excluded.permissions,
			token = excluded.token,
			saved_at = excluded.saved_at`,
		sess.User.ID, sess.User.Username, sess.User.Role, string(permsJSON), sess.Token,
		sess.SavedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Load returns the remembered session, or nil if there is none.
func (s *Store) Load(ctx context.Context) (*model.StoredSession, error) {
	var (
		sess      model.StoredSession
		permsJSON string
		savedAt   string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id, username, role, permissions, token, saved_at FROM session WHERE slot = 1`,
	).Scan(&sess.User.ID, &sess.User.Username, &sess.User.Role, &permsJSON, &sess.Token, &savedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if err := json.Unmarshal([]byte(permsJSON), &sess.User.Permissions); err != nil {
		return nil, fmt.Errorf("decode permissions: %w", err)
	}
	if sess.SavedAt, err = time.Parse(time.RFC3339Nano, savedAt); err != nil {
		return nil, fmt.Errorf("decode saved_at: %w", err)
	}
	return &sess, nil
}

func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM session`); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}
