// Package password hashes and verifies user passwords with bcrypt.
package password

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// DefaultCost keeps a hash in the tens of milliseconds on current hardware.
const DefaultCost = 10

// ErrTooLong is returned for passwords bcrypt cannot hash.
var ErrTooLong = errors.New("password exceeds 72 bytes")

// Hasher hashes plaintext passwords and checks them against stored hashes.
type Hasher interface {
	Hash(plain string) (string, error)
	Compare(hash, plain string) bool
}

type bcryptHasher struct {
	cost int
}

// NewBcryptHasher returns a bcrypt Hasher. Costs below bcrypt.MinCost are raised to it.
func NewBcryptHasher(cost int) Hasher {
	if cost < bcrypt.MinCost {
		cost = bcrypt.MinCost
	}
	if cost > bcrypt.MaxCost {
		cost = bcrypt.MaxCost
	}
	return &bcryptHasher{cost: cost}
}

func (h *bcryptHasher) Hash(plain string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(plain), h.cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", ErrTooLong
		}
		return "", err
	}
	return string(hashed), nil
}

func (h *bcryptHasher) Compare(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
