package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/nhle/todosync/internal/model"
)

type userRow struct {
	model.User
	PasswordHash string    `db:"password_hash"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

const userColumns = "id, username, email, avatar_url, role, password_hash, created_at, updated_at"

// CreateUser registers an account. The username must be unique.
func (s *SQLiteStore) CreateUser(
	ctx context.Context,
	username, password, email, role string,
) (*model.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, fmt.Errorf("username and password must not be empty")
	}
	if role == "" {
		role = model.RoleUser
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	now := time.Now().UTC()
	user := model.User{
		ID:       uuid.New().String(),
		Username: username,
		Email:    email,
		Role:     role,
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO users (id, username, email, avatar_url, role, password_hash, created_at, updated_at)
		VALUES (?, ?, ?, '', ?, ?, ?, ?)`,
		user.ID, user.Username, user.Email, user.Role, string(hash), now, now,
	)
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("user %s: %w", username, ErrConflict)
	}
	if err != nil {
		return nil, fmt.Errorf("creating user %s: %w", username, err)
	}
	return &user, nil
}

// Authenticate checks a username and password pair.
func (s *SQLiteStore) Authenticate(ctx context.Context, username, password string) (*model.User, error) {
	var row userRow
	err := s.db.GetContext(ctx, &row,
		"SELECT "+userColumns+" FROM users WHERE username = ?", username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("loading user %s: %w", username, err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(row.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return &row.User, nil
}

// GetUser retrieves an account by ID.
func (s *SQLiteStore) GetUser(ctx context.Context, id string) (*model.User, error) {
	var row userRow
	err := s.db.GetContext(ctx, &row, "SELECT "+userColumns+" FROM users WHERE id = ?", id)
	if err != nil {
		return nil, notFound(err, "user", id)
	}
	return &row.User, nil
}

// EnsureAdmin creates the administrator account unless an account with
// that username already exists.
func (s *SQLiteStore) EnsureAdmin(ctx context.Context, username, password, email string) error {
	if username == "" || password == "" {
		return nil
	}
	_, err := s.CreateUser(ctx, username, password, email, model.RoleAdmin)
	if errors.Is(err, ErrConflict) {
		return nil
	}
	return err
}

// IssueToken creates an opaque bearer token for userID valid for ttl.
func (s *SQLiteStore) IssueToken(ctx context.Context, userID string, ttl time.Duration) (string, error) {
	token := uuid.New().String()
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO tokens (token, user_id, expires_at, created_at) VALUES (?, ?, ?, ?)",
		token, userID, now.Add(ttl), now,
	)
	if err != nil {
		return "", fmt.Errorf("issuing token for user %s: %w", userID, err)
	}
	return token, nil
}

// ResolveToken returns the user a token belongs to. Unknown tokens yield
// ErrNotFound and expired ones ErrTokenExpired.
func (s *SQLiteStore) ResolveToken(ctx context.Context, token string) (*model.User, error) {
	var t struct {
		UserID    string    `db:"user_id"`
		ExpiresAt time.Time `db:"expires_at"`
	}
	err := s.db.GetContext(ctx, &t, "SELECT user_id, expires_at FROM tokens WHERE token = ?", token)
	if err != nil {
		return nil, notFound(err, "token", "")
	}
	if !time.Now().Before(t.ExpiresAt) {
		return nil, ErrTokenExpired
	}
	return s.GetUser(ctx, t.UserID)
}

// RevokeToken deletes a token. Revoking an unknown token is not an error.
func (s *SQLiteStore) RevokeToken(ctx context.Context, token string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM tokens WHERE token = ?", token); err != nil {
		return fmt.Errorf("revoking token: %w", err)
	}
	return nil
}
