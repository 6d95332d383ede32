package user

import (
	"context"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/georgemunganga/sso-users/internal/common"
	"github.com/georgemunganga/sso-users/internal/metrics"
	"github.com/georgemunganga/sso-users/internal/security/password"
)

// DefaultStoreTimeout bounds every store call made by the service.
const DefaultStoreTimeout = 5 * time.Second

type service struct {
	repo     Repository
	hasher   password.Hasher
	validate *validator.Validate
	log      *zap.Logger
	metrics  *metrics.Metrics
	timeout  time.Duration
}

// Option configures the user service.
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

// NewService creates a new user service.
func NewService(repo Repository, hasher password.Hasher, log *zap.Logger, opts ...Option) Service {
	if log == nil {
		log = zap.NewNop()
	}
	s := &service{
		repo:     repo,
		hasher:   hasher,
		validate: newValidator(),
		log:      log.Named("user"),
		timeout:  DefaultStoreTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// invalid turns a validator error into a caller-facing InvalidInput.
func invalid(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return common.InvalidInput("Invalid request")
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return common.InvalidInput(fmt.Sprintf("%s is required", fe.Field()))
	case "email":
		return common.InvalidInput(fmt.Sprintf("%s must be a valid email address", fe.Field()))
	case "min":
		return common.InvalidInput(fmt.Sprintf("%s must not be empty", fe.Field()))
	default:
		return common.InvalidInput(fmt.Sprintf("%s is invalid", fe.Field()))
	}
}

// NormalizeEmail is applied on every write and lookup so uniqueness is case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func trimPtr(p *string) *string {
	if p == nil {
		return nil
	}
	v := strings.TrimSpace(*p)
	return &v
}

func (s *service) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}

func (s *service) hash(plain string) (string, error) {
	hashed, err := s.hasher.Hash(plain)
	if err != nil {
		if errors.Is(err, password.ErrTooLong) {
			return "", common.InvalidInput("password must be at most 72 bytes")
		}
		return "", common.Internal("An error occurred while hashing the password", err)
	}
	return hashed, nil
}

func (s *service) RegisterUser(ctx context.Context, req RegisterRequest) (*User, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = NormalizeEmail(req.Email)
	req.Company = strings.TrimSpace(req.Company)
	if err := s.validate.Struct(req); err != nil {
		return nil, invalid(err)
	}

	// Fast path only; the store's unique constraint decides.
	lookupCtx, cancel := s.storeCtx(ctx)
	_, err := s.repo.GetUserByEmail(lookupCtx, req.Email)
	cancel()
	switch {
	case err == nil:
		return nil, common.Conflict("Email already in use")
	case !errors.Is(err, common.ErrNotFound):
		return nil, common.Internal("An error occurred while creating the user", err)
	}

	hashed, err := s.hash(req.Password)
	if err != nil {
		return nil, err
	}

	roles := req.Roles
	if roles == nil {
		roles = []string{}
	}
	user := &User{
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: hashed,
		Company:      req.Company,
		Roles:        roles,
	}

	createCtx, cancel := s.storeCtx(ctx)
	defer cancel()
	if err := s.repo.CreateUser(createCtx, user); err != nil {
		if errors.Is(err, common.ErrConflict) {
			return nil, common.Conflict("Email already in use")
		}
		return nil, common.Internal("An error occurred while creating the user", err)
	}

	s.metrics.ObserveRegistration()
	s.log.Info("user registered", zap.String("id", user.ID))
	return user, nil
}

func (s *service) ListUsers(ctx context.Context, page, limit int) (*Page, error) {
	if page < 1 {
		return nil, common.InvalidInput("Invalid page number. Page must be a positive integer.")
	}
	if limit < 1 {
		return nil, common.InvalidInput("Invalid limit number. Limit must be a positive integer.")
	}

	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	total, err := s.repo.CountUsers(ctx)
	if err != nil {
		return nil, common.Internal("Database query failed", err)
	}
	// An offset that does not fit in an int is past every record.
	if page-1 > math.MaxInt/limit {
		return &Page{Data: []Summary{}, Total: total, Page: page, Limit: limit}, nil
	}
	users, err := s.repo.ListUsers(ctx, (page-1)*limit, limit)
	if err != nil {
		return nil, common.Internal("Database query failed", err)
	}

	data := make([]Summary, 0, len(users))
	for _, u := range users {
		data = append(data, u.Summary())
	}
	return &Page{Data: data, Total: total, Page: page, Limit: limit}, nil
}

func (s *service) GetUser(ctx context.Context, id string) (*User, error) {
	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	u, err := s.repo.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.NotFound(fmt.Sprintf("User with ID %s not found", id))
		}
		return nil, common.Internal("An error occurred while fetching the user", err)
	}
	return u, nil
}

func (s *service) UpdateUser(ctx context.Context, id string, req UpdateUserRequest) (*User, error) {
	req.Name = trimPtr(req.Name)
	req.Company = trimPtr(req.Company)
	if req.Email != nil {
		e := NormalizeEmail(*req.Email)
		req.Email = &e
	}
	if err := s.validate.Struct(req); err != nil {
		return nil, invalid(err)
	}

	update := UserUpdate{
		Name:    req.Name,
		Email:   req.Email,
		Company: req.Company,
		Roles:   req.Roles,
	}
	if req.Password != nil {
		hashed, err := s.hash(*req.Password)
		if err != nil {
			return nil, err
		}
		update.PasswordHash = &hashed
	}

	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	u, err := s.repo.UpdateUser(ctx, id, update)
	if err != nil {
		switch {
		case errors.Is(err, common.ErrNotFound):
			return nil, common.NotFound(fmt.Sprintf("User with ID %s not found", id))
		case errors.Is(err, common.ErrConflict):
			return nil, common.Conflict("Email already in use")
		}
		return nil, common.Internal("An error occurred while updating the user", err)
	}
	return u, nil
}

func (s *service) DeleteUser(ctx context.Context, id string) error {
	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	if err := s.repo.DeleteUser(ctx, id); err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return common.NotFound(fmt.Sprintf("User with ID %s not found", id))
		}
		return common.Internal("An error occurred while deleting the user", err)
	}
	s.log.Info("user deleted", zap.String("id", id))
	return nil
}
