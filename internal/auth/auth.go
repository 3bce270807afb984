package auth

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/frahmantamala/expense-claims/internal"
	coreuser "github.com/frahmantamala/expense-claims/internal/core/user"
	"github.com/frahmantamala/expense-claims/internal/user"
)

// TokenGenerator issues and checks bearer tokens.
type TokenGenerator interface {
	Issue(subject string, role coreuser.Role) (token string, expiresAt time.Time, err error)
	Verify(tokenString, subject string) bool
	Parse(tokenString string) (*Claims, error)
}

// UserStore is the part of the user service the auth flows need.
type UserStore interface {
	GetByUsername(ctx context.Context, username string) (*user.User, error)
	Create(ctx context.Context, u *user.User) error
}

// ServiceAPI is what the HTTP handler and middleware call.
type ServiceAPI interface {
	Register(ctx context.Context, dto RegisterDTO) (*user.User, error)
	Login(ctx context.Context, dto LoginDTO) (AuthToken, error)
	Authenticate(ctx context.Context, tokenString string) (*coreuser.Principal, error)
}

type AuthToken struct {
	Token     string    `json:"token"`
	TokenType string    `json:"token_type"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Claims represents JWT token claims. Subject carries the username.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

const TokenTypeBearer = "Bearer"

var (
	ErrInvalidCredentials = internal.ErrInvalidCredentials
	ErrInvalidToken       = internal.ErrInvalidToken
	ErrTokenExpired       = internal.ErrTokenExpired
	ErrUsernameTaken      = internal.ErrUsernameTaken
)
