package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/mu1bokjoa/FloodResponseSystem/internal/auth"
	"github.com/mu1bokjoa/FloodResponseSystem/internal/models"
	"github.com/mu1bokjoa/FloodResponseSystem/internal/observability"
	"github.com/mu1bokjoa/FloodResponseSystem/internal/store"
	"github.com/mu1bokjoa/FloodResponseSystem/internal/validation"
)

// UserStore is the persistence used by AccountService.
type UserStore interface {
	CreateUser(ctx context.Context, username, email, passwordHash string) (models.User, error)
	UsernameExists(ctx context.Context, username string) (bool, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	UserByUsername(ctx context.Context, username string) (models.User, error)
	UserByID(ctx context.Context, id int64) (models.User, error)
}

// AccountService registers and authenticates users.
type AccountService struct {
	users     UserStore
	validator *validation.Validator
	logger    *zap.Logger
}

func NewAccountService(users UserStore, v *validation.Validator, logger *zap.Logger) *AccountService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if v == nil {
		v = validation.New()
	}
	return &AccountService{users: users, validator: v, logger: logger}
}

// UsernameAvailable reports whether username is non-empty and unused.
func (s *AccountService) UsernameAvailable(ctx context.Context, username string) (bool, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return false, nil
	}
	taken, err := s.users.UsernameExists(ctx, username)
	return !taken, err
}

// EmailAvailable reports whether email is non-empty and unused.
func (s *AccountService) EmailAvailable(ctx context.Context, email string) (bool, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return false, nil
	}
	taken, err := s.users.EmailExists(ctx, email)
	return !taken, err
}

// Signup validates req and creates the user. Returns store.ErrDuplicateUsername
// or store.ErrDuplicateEmail when taken.
func (s *AccountService) Signup(ctx context.Context, req validation.SignupRequest) (models.User, error) {
	if err := s.validator.Struct(&req); err != nil {
		return models.User{}, err
	}
	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return models.User{}, err
	}
	user, err := s.users.CreateUser(ctx, req.Username, req.Email, hash)
	if err != nil {
		return models.User{}, err
	}
	observability.AuthEventsTotal.WithLabelValues("signup").Inc()
	loggerFromContext(ctx, s.logger).Info("user registered", zap.Int64("user_id", user.ID))
	return user, nil
}

// Login returns the user when the password matches. Unknown users and wrong
// passwords are both auth.ErrInvalidCredentials.
func (s *AccountService) Login(ctx context.Context, req validation.LoginRequest) (models.User, error) {
	if err := s.validator.Struct(&req); err != nil {
		return models.User{}, auth.ErrInvalidCredentials
	}
	user, err := s.users.UserByUsername(ctx, req.Username)
	if errors.Is(err, store.ErrNotFound) {
		observability.AuthEventsTotal.WithLabelValues("login_failed").Inc()
		return models.User{}, auth.ErrInvalidCredentials
	}
	if err != nil {
		return models.User{}, err
	}
	if err := auth.CheckPassword(user.PasswordHash, req.Password); err != nil {
		observability.AuthEventsTotal.WithLabelValues("login_failed").Inc()
		return models.User{}, err
	}
	observability.AuthEventsTotal.WithLabelValues("login").Inc()
	return user, nil
}

// SessionUser resolves a verified session to its stored user. A session whose
// user no longer exists is auth.ErrInvalidSession.
func (s *AccountService) SessionUser(ctx context.Context, sess auth.Session) (models.User, error) {
	user, err := s.users.UserByID(ctx, sess.UserID)
	if errors.Is(err, store.ErrNotFound) {
		return models.User{}, fmt.Errorf("%w: user %d not found", auth.ErrInvalidSession, sess.UserID)
	}
	if err != nil {
		return models.User{}, err
	}
	return user, nil
}
