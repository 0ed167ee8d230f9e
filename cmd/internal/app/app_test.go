package app

import (
	"errors"
	"testing"

	"github.com/vuducc/Social-app/cmd/internal/auth"
)

func TestNewRejectsShortJWTSecret(t *testing.T) {
	t.Parallel()

	_, err := New(Config{JWTSecret: "too-short"}, discardLogger())
	if err == nil {
		t.Fatalf("expected error for short secret")
	}
	if !errors.Is(err, auth.ErrSecretTooShort) {
		t.Fatalf("err=%v should wrap auth.ErrSecretTooShort", err)
	}
}
