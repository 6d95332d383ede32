package auth

import (
	"context"

	"github.com/georgemunganga/sso-users/internal/modules/user"
)

// Service defines the interface for authentication-related business logic.
type Service interface {
	// Authenticate returns the full stored record, hash included, for internal use.
	Authenticate(ctx context.Context, email, password string) (*user.User, error)
	IssueToken(u *user.User) (string, error)
	Login(ctx context.Context, email, password string) (*LoginResult, error)
}

// LoginRequest is the body of POST /users/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResult is returned to the client after a successful login.
type LoginResult struct {
	Message     string       `json:"message"`
	AccessToken string       `json:"accessToken"`
	User        user.Summary `json:"user"`
}
