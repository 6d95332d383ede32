package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/georgemunganga/sso-users/internal/common"
	"github.com/georgemunganga/sso-users/internal/metrics"
	"github.com/georgemunganga/sso-users/internal/modules/user"
	"github.com/georgemunganga/sso-users/internal/security/password"
)

// invalidCredentials is the only message a failed login ever produces, so
// callers cannot tell a missing account from a wrong password.
const invalidCredentials = "Invalid email or password"

type service struct {
	userRepo user.Repository
	hasher   password.Hasher
	tokens   *TokenIssuer
	log      *zap.Logger
	metrics  *metrics.Metrics
	timeout  time.Duration

	dummyOnce sync.Once
	dummyHash string
}

// Option configures the auth service.
type Option func(*service)

func WithStoreTimeout(d time.Duration) Option {
	return func(s *service) {
		if d > 0 {
			s.timeout = d
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *service) { s.metrics = m }
}

// NewService creates a new auth service.
func NewService(userRepo user.Repository, hasher password.Hasher, tokens *TokenIssuer, log *zap.Logger, opts ...Option) Service {
	if log == nil {
		log = zap.NewNop()
	}
	s := &service{
		userRepo: userRepo,
		hasher:   hasher,
		tokens:   tokens,
		log:      log.Named("auth"),
		timeout:  user.DefaultStoreTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// burnCompare spends roughly one hash verification so an unknown email costs
// the same as a wrong password.
func (s *service) burnCompare(plain string) {
	s.dummyOnce.Do(func() {
		h, err := s.hasher.Hash(uuid.NewString())
		if err != nil {
			s.log.Warn("dummy hash unavailable", zap.Error(err))
			return
		}
		s.dummyHash = h
	})
	if s.dummyHash != "" {
		s.hasher.Compare(s.dummyHash, plain)
	}
}

func (s *service) Authenticate(ctx context.Context, email, plain string) (*user.User, error) {
	email = user.NormalizeEmail(email)
	if email == "" || plain == "" {
		return nil, common.Unauthorized(invalidCredentials)
	}

	lookupCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	u, err := s.userRepo.GetUserByEmail(lookupCtx, email)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			s.burnCompare(plain)
			return nil, common.Unauthorized(invalidCredentials)
		}
		return nil, common.Internal("An error occurred while processing the login request", err)
	}

	if !s.hasher.Compare(u.PasswordHash, plain) {
		return nil, common.Unauthorized(invalidCredentials)
	}
	return u, nil
}

func (s *service) IssueToken(u *user.User) (string, error) {
	token, err := s.tokens.Issue(u)
	if err != nil {
		return "", common.Internal("An error occurred while processing the login request", err)
	}
	return token, nil
}

func (s *service) Login(ctx context.Context, email, plain string) (*LoginResult, error) {
	u, err := s.Authenticate(ctx, email, plain)
	if err != nil {
		if common.KindOf(err) == common.KindUnauthorized {
			s.metrics.ObserveLogin(metrics.LoginUnauthorized)
		} else {
			s.metrics.ObserveLogin(metrics.LoginError)
		}
		return nil, err
	}

	token, err := s.IssueToken(u)
	if err != nil {
		s.metrics.ObserveLogin(metrics.LoginError)
		return nil, err
	}

	s.metrics.ObserveLogin(metrics.LoginSuccess)
	s.log.Info("user logged in", zap.String("id", u.ID))
	return &LoginResult{
		Message:     fmt.Sprintf("Welcome %s", u.Name),
		AccessToken: token,
		User:        u.Summary(),
	}, nil
}
