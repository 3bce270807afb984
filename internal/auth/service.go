package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/crypto/bcrypt"

	"github.com/frahmantamala/expense-claims/internal"
	coreuser "github.com/frahmantamala/expense-claims/internal/core/user"
	"github.com/frahmantamala/expense-claims/internal/user"
)

// Service is the main auth service with dependencies
type Service struct {
	users          UserStore
	tokenGenerator TokenGenerator
	bcryptCost     int
	logger         *slog.Logger
}

// NewService creates a new auth service
func NewService(users UserStore, tokenGen TokenGenerator, bcryptCost int, logger *slog.Logger) *Service {
	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		users:          users,
		tokenGenerator: tokenGen,
		bcryptCost:     bcryptCost,
		logger:         logger,
	}
}

// Register creates a user with a hashed password. It does not log the user in.
func (s *Service) Register(ctx context.Context, dto RegisterDTO) (*user.User, error) {
	role, err := dto.Validate()
	if err != nil {
		return nil, err
	}

	_, err = s.users.GetByUsername(ctx, dto.Username)
	switch {
	case err == nil:
		return nil, ErrUsernameTaken
	case !errors.Is(err, user.ErrNotFound):
		return nil, fmt.Errorf("failed to check username: %w", err)
	}

	hash, err := HashPassword(dto.Password, s.bcryptCost)
	if err != nil {
		return nil, internal.NewInternalError("failed to hash password", err)
	}

	u := user.NewUser(dto.Username, dto.Email, hash, role)
	if err := s.users.Create(ctx, u); err != nil {
		// a concurrent registration can still win the unique index
		if errors.Is(err, ErrUsernameTaken) {
			return nil, ErrUsernameTaken
		}
		return nil, err
	}

	s.logger.InfoContext(ctx, "user registered", "user_id", u.ID, "username", u.Username, "role", u.Role)
	return u, nil
}

// Login checks the credentials and issues a token. Unknown users and wrong
// passwords produce the same error.
func (s *Service) Login(ctx context.Context, dto LoginDTO) (AuthToken, error) {
	if err := dto.Validate(); err != nil {
		return AuthToken{}, err
	}

	u, err := s.users.GetByUsername(ctx, dto.Username)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return AuthToken{}, ErrInvalidCredentials
		}
		return AuthToken{}, fmt.Errorf("failed to load user: %w", err)
	}

	if !VerifyPassword(u.PasswordHash, dto.Password) {
		s.logger.WarnContext(ctx, "login rejected", "username", dto.Username)
		return AuthToken{}, ErrInvalidCredentials
	}

	token, expiresAt, err := s.tokenGenerator.Issue(u.Username, u.Role)
	if err != nil {
		return AuthToken{}, internal.NewInternalError("failed to issue token", err)
	}

	return AuthToken{
		Token:     token,
		TokenType: TokenTypeBearer,
		ExpiresAt: expiresAt,
	}, nil
}

// Authenticate resolves a bearer token to the principal it was issued for.
// The role comes from the stored user, not the token.
func (s *Service) Authenticate(ctx context.Context, tokenString string) (*coreuser.Principal, error) {
	claims, err := s.tokenGenerator.Parse(tokenString)
	if err != nil {
		return nil, err
	}

	u, err := s.users.GetByUsername(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("failed to load token subject: %w", err)
	}

	return u.Principal(), nil
}
