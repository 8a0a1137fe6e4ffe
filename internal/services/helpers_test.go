package services

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
	"golang.org/x/crypto/bcrypt"

	"github.com/aquanet/apiserver/internal/auth"
	"github.com/aquanet/apiserver/types"
)

var (
	t0 = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	admin    = types.User{ID: 1, Username: "root", Role: types.RoleAdmin, IsActive: true}
	engineer = types.User{ID: 2, Username: "eng", Role: types.RoleEngineer, IsActive: true}
	citizen  = types.User{ID: 3, Username: "alice", Role: types.RoleUser, IsActive: true}
)

func newHasher() *auth.PasswordHasher {
	return auth.NewPasswordHasher(bcrypt.MinCost)
}

func ptr[T any](v T) *T { return &v }

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) PublishEvent(ctx context.Context, ev types.Event) (string, error) {
	args := m.Called(ctx, ev)
	return args.String(0), args.Error(1)
}

var _ EventPublisher = (*MockPublisher)(nil)
