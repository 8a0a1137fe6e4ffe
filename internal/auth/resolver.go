package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aquanet/apiserver/internal/store"
	"github.com/aquanet/apiserver/types"
)

// SessionResolver turns a bearer token into the current active user. It
// reloads the user on every call, so deactivation and role changes take
// effect on the next request.
type SessionResolver struct {
	tokens *TokenService
	users  CredentialStore
}

func NewSessionResolver(tokens *TokenService, users CredentialStore) *SessionResolver {
	return &SessionResolver{tokens: tokens, users: users}
}

// Resolve returns ErrUnauthenticated for a missing, invalid or expired token
// and for a subject with no account or one now held by a different account,
// ErrAccountDisabled for an inactive account.
func (r *SessionResolver) Resolve(ctx context.Context, bearerToken string) (types.User, error) {
	const op = "auth.SessionResolver.Resolve"

	if strings.TrimSpace(bearerToken) == "" {
		return types.User{}, ErrUnauthenticated
	}

	claims, err := r.tokens.Validate(bearerToken)
	if err != nil {
		return types.User{}, ErrUnauthenticated
	}

	user, err := r.users.GetByUsername(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, ErrUnauthenticated
		}
		return types.User{}, fmt.Errorf("%s: %w", op, err)
	}
	if user.ID != claims.UserID {
		return types.User{}, ErrUnauthenticated
	}

	if !user.IsActive {
		return types.User{}, ErrAccountDisabled
	}
	return user, nil
}
