package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/sirupsen/logrus"

	"ballot-auth/internal/auth"
	"ballot-auth/internal/database"
	"ballot-auth/internal/domain"
	"ballot-auth/internal/repository"
)

// Connector yields a user repository backed by a live datastore session.
type Connector interface {
	EnsureReady(ctx context.Context) (repository.UserRepository, error)
}

// TokenIssuer signs access tokens for authenticated users.
type TokenIssuer interface {
	Sign(userID, email, role string) (string, time.Time, error)
}

// AuthResult is returned on a successful login.
type AuthResult struct {
	Token     string
	ExpiresAt time.Time
	User      domain.PublicProfile
}

// AuthService verifies credentials and issues access tokens.
type AuthService interface {
	Authenticate(ctx context.Context, email, password string) (*AuthResult, error)
}

type authService struct {
	conn   Connector
	hasher auth.PasswordHasher
	tokens TokenIssuer
	logger logrus.FieldLogger

	dummyOnce   sync.Once
	dummyDigest string
}

func NewAuthService(conn Connector, hasher auth.PasswordHasher, tokens TokenIssuer, logger logrus.FieldLogger) AuthService {
	if logger == nil {
		logger = logrus.New()
	}
	return &authService{
		conn:   conn,
		hasher: hasher,
		tokens: tokens,
		logger: logger,
	}
}

type credentials struct {
	Email    string
	Password string
}

func (c credentials) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Email, validation.Required),
		validation.Field(&c.Password, validation.Required),
	)
}

func (s *authService) Authenticate(ctx context.Context, email, password string) (*AuthResult, error) {
	creds := credentials{
		Email:    strings.TrimSpace(email),
		Password: strings.TrimSpace(password),
	}
	if err := creds.Validate(); err != nil {
		return nil, ErrInvalidRequest
	}

	users, err := s.conn.EnsureReady(ctx)
	if err != nil {
		s.logger.WithError(err).Error("login: datastore not ready")
		if errors.Is(err, database.ErrConfiguration) {
			return nil, fmt.Errorf("%w: %w", ErrServiceUnavailable, ErrConfiguration)
		}
		return nil, ErrServiceUnavailable
	}

	user, err := users.GetByEmail(ctx, strings.ToLower(creds.Email))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			// keep the miss as slow as a wrong password
			s.hasher.Verify(password, s.dummy())
			return nil, ErrInvalidCredentials
		}
		s.logger.WithError(err).Error("login: user lookup failed")
		return nil, ErrServiceUnavailable
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	if !user.IsActive {
		s.logger.WithField("user_id", user.ID).Info("login: deactivated account")
		return nil, ErrAccountDeactivated
	}

	token, expiresAt, err := s.tokens.Sign(user.ID, user.Email, string(user.Role))
	if err != nil {
		s.logger.WithError(err).Error("login: sign token")
		if errors.Is(err, auth.ErrSecretNotConfigured) {
			return nil, ErrConfiguration
		}
		return nil, err
	}

	return &AuthResult{
		Token:     token,
		ExpiresAt: expiresAt,
		User:      user.Profile(),
	}, nil
}

func (s *authService) dummy() string {
	s.dummyOnce.Do(func() {
		digest, err := s.hasher.Hash("ballot-auth-timing-equaliser")
		if err != nil {
			s.logger.WithError(err).Warn("login: dummy digest unavailable")
			return
		}
		s.dummyDigest = digest
	})
	return s.dummyDigest
}
