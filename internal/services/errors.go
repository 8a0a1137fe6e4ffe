package services

import (
	"errors"
	"fmt"

	"github.com/aquanet/apiserver/internal/store"
)

var (
	ErrUsernameTaken = fmt.Errorf("username already registered: %w", store.ErrConflict)
	ErrEmailTaken    = fmt.Errorf("email already registered: %w", store.ErrConflict)

	// ErrUnavailable means an optional backend (object storage) is not configured.
	ErrUnavailable = errors.New("service unavailable")
)

// notFound reports a missing parent or referenced row by name.
func notFound(what string, id int) error {
	return fmt.Errorf("%s %d: %w", what, id, store.ErrNotFound)
}
