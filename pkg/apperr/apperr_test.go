package apperr

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
		{"invalid input", InvalidInput("bad %s", "x"), KindInvalidInput},
		{"unauthorized", Unauthorized("nope"), KindUnauthorized},
		{"not found", NotFound("missing"), KindNotFound},
		{"wrapped", fmt.Errorf("loading: %w", NotFound("missing")), KindNotFound},
		{"plain", errors.New("boom"), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestMessage(t *testing.T) {
	err := fmt.Errorf("loading user: %w", NotFound("User %s not found.", "bob"))
	assert.Equal(t, "User bob not found.", Message(err))
	assert.Equal(t, "loading user: boom", Message(fmt.Errorf("loading user: %w", errors.New("boom"))))
	assert.True(t, IsNotFound(err))
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "invalid_input", KindInvalidInput.String())
	assert.Equal(t, "unauthorized", KindUnauthorized.String())
	assert.Equal(t, "not_found", KindNotFound.String())
	assert.Equal(t, "unknown", Kind(0).String())
}
