package service

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"naskah/internal/document/model"
	"naskah/internal/document/repository"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

const tokenTTL = 24 * time.Hour

type AuthService struct {
	Users  *repository.UserRepository
	Secret []byte
	Now    func() time.Time
}

func NewAuthService(users *repository.UserRepository, secret []byte) *AuthService {
	return &AuthService{Users: users, Secret: secret, Now: time.Now}
}

// Login checks the password and issues an HS256 token whose subject is the user id.
func (s *AuthService) Login(ctx context.Context, username, password string) (*model.LoginResponse, error) {
	user, hash, err := s.Users.GetByUsername(ctx, username)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	token, err := s.IssueToken(user)
	if err != nil {
		return nil, err
	}
	return &model.LoginResponse{User: *user, Token: token}, nil
}

func (s *AuthService) IssueToken(user *model.User) (string, error) {
	now := s.Now()
	claims := jwt.MapClaims{
		"sub":  user.ID,
		"name": user.Username,
		"iat":  now.Unix(),
		"exp":  now.Add(tokenTTL).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.Secret)
}

// CreateUser stores a new user with a bcrypt hash of password.
func (s *AuthService) CreateUser(ctx context.Context, username, password, role string) (*model.User, error) {
	if username == "" || password == "" {
		return nil, errors.New("username and password are required")
	}
	if role == "" {
		role = model.RoleUser
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	user := &model.User{ID: uuid.NewString(), Username: username, Role: role}
	if role == model.RoleAdmin {
		user.Permissions = []string{"read", "write", "admin"}
	} else {
		user.Permissions = []string{"read", "write"}
	}
	if err := s.Users.Create(ctx, user, string(hash)); err != nil {
		return nil, err
	}
	return user, nil
}
