package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/georgemunganga/sso-users/internal/common"
	"github.com/georgemunganga/sso-users/internal/metrics"
	"github.com/georgemunganga/sso-users/internal/modules/user"
	"github.com/georgemunganga/sso-users/internal/security/password"
)

type fixture struct {
	repo    user.Repository
	users   user.Service
	auth    Service
	tokens  *TokenIssuer
	metrics *metrics.Metrics
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repo := user.NewMemoryRepository()
	hasher := password.NewBcryptHasher(bcrypt.MinCost)
	tokens := NewTokenIssuer("test-secret", time.Hour, "sso-user-microservice")
	m := metrics.New()
	f := &fixture{
		repo:    repo,
		users:   user.NewService(repo, hasher, nil),
		auth:    NewService(repo, hasher, tokens, nil, WithMetrics(m)),
		tokens:  tokens,
		metrics: m,
	}

	_, err := f.users.RegisterUser(context.Background(), user.RegisterRequest{
		Name:     "Ada",
		Email:    "ada@example.com",
		Password: "correct horse",
		Company:  "Babbage",
		Roles:    []string{"admin"},
	})
	require.NoError(t, err)
	return f
}

func TestAuthenticate_CorrectPassword(t *testing.T) {
	f := newFixture(t)

	u, err := f.auth.Authenticate(context.Background(), "ada@example.com", "correct horse")

	require.NoError(t, err)
	assert.Equal(t, "Ada", u.Name)
	assert.NotEmpty(t, u.PasswordHash)
}

func TestAuthenticate_EmailIsCaseInsensitive(t *testing.T) {
	f := newFixture(t)

	_, err := f.auth.Authenticate(context.Background(), " Ada@Example.com", "correct horse")

	require.NoError(t, err)
}

func TestAuthenticate_FailuresAreIndistinguishable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, wrongPassword := f.auth.Authenticate(ctx, "ada@example.com", "battery staple")
	_, unknownEmail := f.auth.Authenticate(ctx, "nobody@example.com", "correct horse")
	_, blank := f.auth.Authenticate(ctx, "", "")

	for _, err := range []error{wrongPassword, unknownEmail, blank} {
		require.Error(t, err)
		assert.Equal(t, common.KindUnauthorized, common.KindOf(err))
	}
	assert.Equal(t, wrongPassword.Error(), unknownEmail.Error())
	assert.Equal(t, common.PublicMessage(wrongPassword), common.PublicMessage(unknownEmail))
	assert.Equal(t, "Invalid email or password", common.PublicMessage(unknownEmail))
}

type failingRepo struct {
	user.Repository
}

func (failingRepo) GetUserByEmail(context.Context, string) (*user.User, error) {
	return nil, errors.New("mongo: no reachable servers")
}

func TestAuthenticate_StoreFailureIsInternal(t *testing.T) {
	tokens := NewTokenIssuer("k", time.Hour, "")
	svc := NewService(failingRepo{}, password.NewBcryptHasher(bcrypt.MinCost), tokens, nil)

	_, err := svc.Authenticate(context.Background(), "ada@example.com", "pw")

	assert.Equal(t, common.KindInternal, common.KindOf(err))
	assert.NotContains(t, common.PublicMessage(err), "mongo")
}

func TestIssueToken_ClaimsMatchRecord(t *testing.T) {
	f := newFixture(t)
	u, err := f.auth.Authenticate(context.Background(), "ada@example.com", "correct horse")
	require.NoError(t, err)

	token, err := f.auth.IssueToken(u)
	require.NoError(t, err)

	claims, err := f.tokens.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, u.ID, claims.ID)
	assert.Equal(t, u.Name, claims.Name)
	assert.Equal(t, u.Email, claims.Email)
	assert.Equal(t, u.Roles, claims.Roles)
	assert.NotContains(t, token, u.PasswordHash)
}

func TestLogin(t *testing.T) {
	f := newFixture(t)

	res, err := f.auth.Login(context.Background(), "ada@example.com", "correct horse")
	require.NoError(t, err)

	assert.Equal(t, "Welcome Ada", res.Message)
	assert.NotEmpty(t, res.AccessToken)
	assert.Equal(t, "ada@example.com", res.User.Email)
	assert.Equal(t, []string{"admin"}, res.User.Roles)

	_, err = f.auth.Login(context.Background(), "ada@example.com", "nope")
	require.Error(t, err)

	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.LoginCounter(metrics.LoginSuccess)))
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.LoginCounter(metrics.LoginUnauthorized)))
}

func TestLoginHandler(t *testing.T) {
	f := newFixture(t)
	r := chi.NewRouter()
	r.Route("/users", NewHandler(f.auth, nil).RegisterRoutes)

	post := func(body string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/users/login", strings.NewReader(body)))
		return rec
	}

	rec := post(`{"email":"ada@example.com","password":"correct horse"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"accessToken"`)
	assert.Contains(t, rec.Body.String(), `"message":"Welcome Ada"`)
	assert.NotContains(t, rec.Body.String(), "$2a$")

	wrong := post(`{"email":"ada@example.com","password":"bad"}`)
	unknown := post(`{"email":"ghost@example.com","password":"bad"}`)
	assert.Equal(t, http.StatusUnauthorized, wrong.Code)
	assert.Equal(t, http.StatusUnauthorized, unknown.Code)
	assert.Equal(t, wrong.Body.String(), unknown.Body.String())

	assert.Equal(t, http.StatusBadRequest, post(`{`).Code)
}

func TestLoginHandler_AppliesLoginMiddleware(t *testing.T) {
	f := newFixture(t)
	blocked := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		})
	}
	r := chi.NewRouter()
	r.Route("/users", NewHandler(f.auth, nil, blocked).RegisterRoutes)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/users/login", strings.NewReader(`{}`)))

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}
