package common

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"conflict", Conflict("Email already in use"), KindConflict},
		{"not found", NotFound("missing"), KindNotFound},
		{"unauthorized", Unauthorized("Invalid email or password"), KindUnauthorized},
		{"invalid input", InvalidInput("bad page"), KindInvalidInput},
		{"internal", Internal("boom", errors.New("driver")), KindInternal},
		{"wrapped", fmt.Errorf("handler: %w", Conflict("dup")), KindConflict},
		{"plain", errors.New("socket closed"), KindInternal},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, KindOf(tc.err))
		})
	}
}

func TestPublicMessage_HidesCause(t *testing.T) {
	err := Internal("An error occurred while creating the user", errors.New("E11000 duplicate key"))

	assert.Equal(t, "An error occurred while creating the user", PublicMessage(err))
	assert.Contains(t, err.Error(), "E11000")
	assert.Equal(t, "Internal server error", PublicMessage(errors.New("pq: connection refused")))
}

func TestError_UnwrapsToSentinel(t *testing.T) {
	err := Internal("update failed", fmt.Errorf("mongo: %w", ErrConflict))

	assert.True(t, errors.Is(err, ErrConflict))
	assert.False(t, errors.Is(err, ErrNotFound))
}
