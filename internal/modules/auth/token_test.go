package auth

import (
	"encoding/base64"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/georgemunganga/sso-users/internal/modules/user"
)

func sampleUser() *user.User {
	return &user.User{
		ID:           "64f0c0ffee0000000000abcd",
		Name:         "Ada",
		Email:        "ada@example.com",
		PasswordHash: "$2a$10$secretsecretsecretsecretsecretsecretsecretsecretsec",
		Company:      "Babbage",
		Roles:        []string{"admin", "ops"},
	}
}

func TestTokenIssuer_RoundTrip(t *testing.T) {
	issuer := NewTokenIssuer("test-secret", time.Hour, "sso-user-microservice")
	u := sampleUser()

	token, err := issuer.Issue(u)
	require.NoError(t, err)

	claims, err := issuer.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, u.ID, claims.ID)
	assert.Equal(t, u.Name, claims.Name)
	assert.Equal(t, u.Email, claims.Email)
	assert.Equal(t, u.Roles, claims.Roles)
	assert.Equal(t, "sso-user-microservice", claims.Issuer)
	assert.Equal(t, int64(3600), claims.ExpiresAt-claims.IssuedAt)
}

func TestTokenIssuer_NoPasswordMaterial(t *testing.T) {
	issuer := NewTokenIssuer("test-secret", time.Hour, "")
	u := sampleUser()

	token, err := issuer.Issue(u)
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)
	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	require.NoError(t, err)

	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(payload, &raw))
	for key := range raw {
		assert.Contains(t, []string{"id", "name", "email", "roles", "exp", "iat", "sub"}, key)
	}
	assert.NotContains(t, string(payload), u.PasswordHash)
	assert.NotContains(t, string(payload), "password")
}

func TestTokenIssuer_WrongSecret(t *testing.T) {
	token, err := NewTokenIssuer("right", time.Hour, "").Issue(sampleUser())
	require.NoError(t, err)

	_, err = NewTokenIssuer("wrong", time.Hour, "").Parse(token)

	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenIssuer_Expired(t *testing.T) {
	issuer := NewTokenIssuer("k", time.Hour, "")
	issuer.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }

	token, err := issuer.Issue(sampleUser())
	require.NoError(t, err)

	_, err = issuer.Parse(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenIssuer_RejectsNoneAlgorithm(t *testing.T) {
	claims := &Claims{ID: "x", StandardClaims: jwt.StandardClaims{ExpiresAt: time.Now().Add(time.Hour).Unix()}}
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = NewTokenIssuer("k", time.Hour, "").Parse(unsigned)

	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenIssuer_NilRolesEncodeAsEmpty(t *testing.T) {
	issuer := NewTokenIssuer("k", time.Hour, "")
	u := sampleUser()
	u.Roles = nil

	token, err := issuer.Issue(u)
	require.NoError(t, err)
	claims, err := issuer.Parse(token)
	require.NoError(t, err)

	assert.NotNil(t, claims.Roles)
	assert.Empty(t, claims.Roles)
}
