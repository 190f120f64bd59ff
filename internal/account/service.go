// Package account registers users and turns valid credentials into session
// tokens.
package account

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/geocoder89/sosalert/internal/domain/user"
	"github.com/geocoder89/sosalert/internal/security"
)

var (
	ErrValidation         = errors.New("name, email, password and at least one emergency contact are required")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid or expired token")
)

type UserStore interface {
	FindByEmail(ctx context.Context, email string) (user.User, error)
	FindByID(ctx context.Context, id string) (user.User, error)
	Insert(ctx context.Context, u user.User) (user.User, error)
}

type TokenIssuer interface {
	GenerateAccessToken(userID string) (string, time.Time, error)
	VerifyAccessToken(token string) (string, error)
}

type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Contacts []user.Contact
}

type Session struct {
	Token     string
	ExpiresAt time.Time
	UserID    string
}

type Service struct {
	users  UserStore
	tokens TokenIssuer

	hash  func(plain string) (string, error)
	check func(hash, plain string) error
}

func NewService(users UserStore, tokens TokenIssuer) *Service {
	return &Service{
		users:  users,
		tokens: tokens,
		hash:   security.HashPassword,
		check:  security.CheckPassword,
	}
}

func (s *Service) Register(ctx context.Context, in RegisterInput) (user.User, error) {
	if in.Name == "" ||
		in.Email == "" ||
		in.Password == "" ||
		len(in.Contacts) == 0 {
		return user.User{}, ErrValidation
	}

	// The store's unique index is what actually guarantees one user per
	// email; this lookup only gives the common case a clean error.
	_, err := s.users.FindByEmail(ctx, in.Email)
	switch {
	case err == nil:
		return user.User{}, user.ErrEmailTaken
	case !errors.Is(err, user.ErrNotFound):
		return user.User{}, fmt.Errorf("lookup user: %w", err)
	}

	hash, err := s.hash(in.Password)
	if err != nil {
		return user.User{}, fmt.Errorf("hash password: %w", err)
	}

	created, err := s.users.Insert(ctx, user.New(in.Name, in.Email, hash, in.Contacts))
	if err != nil {
		if errors.Is(err, user.ErrEmailTaken) {
			return user.User{}, user.ErrEmailTaken
		}
		return user.User{}, fmt.Errorf("insert user: %w", err)
	}

	return created, nil
}

// Login never tells the caller whether the email or the password was wrong.
func (s *Service) Login(ctx context.Context, email, password string) (Session, error) {
	u, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return Session{}, ErrInvalidCredentials
		}
		return Session{}, fmt.Errorf("lookup user: %w", err)
	}

	if err := s.check(u.PasswordHash, password); err != nil {
		return Session{}, ErrInvalidCredentials
	}

	token, expiresAt, err := s.tokens.GenerateAccessToken(u.ID)
	if err != nil {
		return Session{}, fmt.Errorf("issue token: %w", err)
	}

	return Session{Token: token, ExpiresAt: expiresAt, UserID: u.ID}, nil
}

func (s *Service) Verify(token string) (string, error) {
	userID, err := s.tokens.VerifyAccessToken(token)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	return userID, nil
}

// Profile loads the user behind a verified token.
func (s *Service) Profile(ctx context.Context, userID string) (user.User, error) {
	return s.users.FindByID(ctx, userID)
}
