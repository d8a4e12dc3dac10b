package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mu1bokjoa/FloodResponseSystem/internal/models"
)

// CreateUser inserts a user. Returns ErrDuplicateUsername or ErrDuplicateEmail
// when either is taken.
func (s *Store) CreateUser(ctx context.Context, username, email, passwordHash string) (models.User, error) {
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO users (username, email, password_hash) VALUES (?, ?, ?)",
		username, email, passwordHash)
	if err != nil {
		if dup := uniqueViolation(err); dup != nil {
			return models.User{}, dup
		}
		return models.User{}, fmt.Errorf("insert user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return models.User{}, fmt.Errorf("insert user id: %w", err)
	}
	return models.User{ID: id, Username: username, Email: email, PasswordHash: passwordHash}, nil
}

func (s *Store) UsernameExists(ctx context.Context, username string) (bool, error) {
	return s.exists(ctx, "SELECT 1 FROM users WHERE username = ? LIMIT 1", username)
}

func (s *Store) EmailExists(ctx context.Context, email string) (bool, error) {
	return s.exists(ctx, "SELECT 1 FROM users WHERE email = ? LIMIT 1", email)
}

func (s *Store) exists(ctx context.Context, query string, arg any) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, query, arg).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) UserByUsername(ctx context.Context, username string) (models.User, error) {
	return s.userWhere(ctx, "username = ?", username)
}

func (s *Store) UserByID(ctx context.Context, id int64) (models.User, error) {
	return s.userWhere(ctx, "id = ?", id)
}

func (s *Store) userWhere(ctx context.Context, cond string, arg any) (models.User, error) {
	var u models.User
	err := s.db.QueryRowContext(ctx,
		"SELECT id, username, email, password_hash FROM users WHERE "+cond, arg,
	).Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrNotFound
	}
	if err != nil {
		return models.User{}, fmt.Errorf("query user: %w", err)
	}
	return u, nil
}
