package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/dgrijalva/jwt-go"

	"github.com/georgemunganga/sso-users/internal/modules/user"
)

// DefaultTokenTTL is the lifetime of an access token.
const DefaultTokenTTL = time.Hour

var ErrInvalidToken = errors.New("invalid token")

// Claims is the claim set carried by an access token. It never includes
// password material.
type Claims struct {
	ID    string   `json:"id"`
	Name  string   `json:"name"`
	Email string   `json:"email"`
	Roles []string `json:"roles"`
	jwt.StandardClaims
}

// TokenIssuer signs access tokens with a shared HMAC secret.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	issuer string
	now    func() time.Time
}

func NewTokenIssuer(secret string, ttl time.Duration, issuer string) *TokenIssuer {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenIssuer{secret: []byte(secret), ttl: ttl, issuer: issuer, now: time.Now}
}

func (t *TokenIssuer) Issue(u *user.User) (string, error) {
	roles := u.Roles
	if roles == nil {
		roles = []string{}
	}
	issuedAt := t.now()
	claims := &Claims{
		ID:    u.ID,
		Name:  u.Name,
		Email: u.Email,
		Roles: roles,
		StandardClaims: jwt.StandardClaims{
			Subject:   u.ID,
			Issuer:    t.issuer,
			IssuedAt:  issuedAt.Unix(),
			ExpiresAt: issuedAt.Add(t.ttl).Unix(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(t.secret)
	if err != nil {
		return "", err
	}
	return tokenString, nil
}

// Parse verifies the signature and expiry of tokenString and returns its claims.
func (t *TokenIssuer) Parse(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(tok *jwt.Token) (interface{}, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", tok.Header["alg"])
		}
		return t.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
