package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"gongzuo-server/internal/domain"
	"gongzuo-server/internal/password"
	"gongzuo-server/internal/repository"
)

var (
	// ErrInvalidCredentials indicates that provided login credentials are incorrect.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidSession indicates an absent, empty or unknown session token.
	ErrInvalidSession = errors.New("invalid session token")
	// ErrNotAdmin indicates the acting user lacks the admin flag.
	ErrNotAdmin = errors.New("admin privileges required")
	// ErrUserAlreadyExists is returned when registering an existing username.
	ErrUserAlreadyExists = errors.New("user already exists")
)

// UserService resolves identities and owns the user lifecycle. A user holds
// at most one live session token at a time; login reuses it, logout clears it.
type UserService interface {
	Register(ctx context.Context, actor *domain.User, username, plaintext string) (*domain.User, error)
	Login(ctx context.Context, username, plaintext string) (string, error)
	Logout(ctx context.Context, token string) error
	RequireSession(ctx context.Context, token string) (*domain.User, error)
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	ListUsers(ctx context.Context) ([]domain.User, error)
	EnsureAdmin(ctx context.Context, username, plaintext string) error
}

type userService struct {
	users repository.UserRepository
}

func NewUserService(users repository.UserRepository) UserService {
	return &userService{users: users}
}

func (s *userService) Register(ctx context.Context, actor *domain.User, username, plaintext string) (*domain.User, error) {
	if actor == nil || !actor.IsAdmin {
		return nil, ErrNotAdmin
	}

	username = strings.TrimSpace(username)
	if username == "" {
		return nil, errors.New("username is required")
	}
	if plaintext == "" {
		return nil, errors.New("password is required")
	}

	if _, err := s.users.GetByUsername(ctx, username); err == nil {
		return nil, ErrUserAlreadyExists
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	user, err := s.createUser(ctx, username, plaintext, false)
	if err != nil {
		return nil, err
	}
	return sanitizeUser(user), nil
}

func (s *userService) Login(ctx context.Context, username, plaintext string) (string, error) {
	username = strings.TrimSpace(username)
	if username == "" || plaintext == "" {
		return "", ErrInvalidCredentials
	}

	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", ErrInvalidCredentials
		}
		return "", err
	}

	if !password.Verify(user.Salt, user.PasswordHash, plaintext) {
		return "", ErrInvalidCredentials
	}

	// a user holds at most one live token; reuse it when present
	if user.SessionToken != nil {
		return *user.SessionToken, nil
	}

	token := uuid.NewString()
	if err := s.users.SetSessionToken(ctx, user.ID, token); err != nil {
		return "", err
	}
	return token, nil
}

func (s *userService) Logout(ctx context.Context, token string) error {
	user, err := s.RequireSession(ctx, token)
	if err != nil {
		return err
	}
	return s.users.ClearSessionToken(ctx, user.ID)
}

func (s *userService) RequireSession(ctx context.Context, token string) (*domain.User, error) {
	if strings.TrimSpace(token) == "" {
		return nil, ErrInvalidSession
	}

	user, err := s.users.GetBySessionToken(ctx, token)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidSession
		}
		return nil, err
	}
	return user, nil
}

func (s *userService) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return sanitizeUser(user), nil
}

func (s *userService) ListUsers(ctx context.Context) ([]domain.User, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, err
	}

	listed := make([]domain.User, 0, len(users))
	for i := range users {
		if users[i].IsAdmin {
			continue
		}
		listed = append(listed, *sanitizeUser(&users[i]))
	}
	return listed, nil
}

// EnsureAdmin seeds the bootstrap admin account. It is a no-op when the
// username is already registered, so restarts are safe.
func (s *userService) EnsureAdmin(ctx context.Context, username, plaintext string) error {
	username = strings.TrimSpace(username)
	if username == "" || plaintext == "" {
		return errors.New("admin username and password are required")
	}

	if _, err := s.users.GetByUsername(ctx, username); err == nil {
		return nil
	} else if !errors.Is(err, repository.ErrNotFound) {
		return err
	}

	if _, err := s.createUser(ctx, username, plaintext, true); err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}
	return nil
}

func (s *userService) createUser(ctx context.Context, username, plaintext string, admin bool) (*domain.User, error) {
	salt, hash, err := password.Derive(plaintext)
	if err != nil {
		return nil, fmt.Errorf("derive password: %w", err)
	}

	user := &domain.User{
		Username:     username,
		PasswordHash: hash,
		Salt:         salt,
		IsAdmin:      admin,
	}
	if _, err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrUserAlreadyExists
		}
		return nil, err
	}
	return user, nil
}

// sanitizeUser strips credential material before a user value travels upward.
func sanitizeUser(user *domain.User) *domain.User {
	if user == nil {
		return nil
	}
	return &domain.User{
		ID:        user.ID,
		Username:  user.Username,
		CreatedAt: user.CreatedAt,
		IsAdmin:   user.IsAdmin,
	}
}
