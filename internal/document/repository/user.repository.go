package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"

	"naskah/internal/document/model"
	"naskah/pkg/logger"
)

type UserRepository struct {
	DB *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{DB: db}
}

// GetByUsername returns the user and its bcrypt password hash.
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*model.User, string, error) {
	var u model.User
	var hash string
	err := r.DB.QueryRowContext(ctx, "SELECT id, username, role, permissions, password_hash FROM users WHERE username = $1", username).
		Scan(&u.ID, &u.Username, &u.Role, pq.Array(&u.Permissions), &hash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, "", ErrNotFound
	}
	if err != nil {
		logger.Sugar.Errorf("Failed to get user by username %s: %v", username, err)
		return nil, "", err
	}
	return &u, hash, nil
}

func (r *UserRepository) Create(ctx context.Context, u *model.User, passwordHash string) error {
	_, err := r.DB.ExecContext(ctx, "INSERT INTO users (id, username, password_hash, role, permissions) VALUES ($1, $2, $3, $4, $5)",
		u.ID, u.Username, passwordHash, u.Role, pq.Array(u.Permissions))
	if err != nil {
		logger.Sugar.Errorf("Failed to create user %s: %v", u.Username, err)
	}
	return err
}
