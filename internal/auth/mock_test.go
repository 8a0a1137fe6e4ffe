package auth

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/aquanet/apiserver/types"
)

type MockCredentialStore struct {
	mock.Mock
}

func (m *MockCredentialStore) GetByUsername(ctx context.Context, username string) (types.User, error) {
	args := m.Called(ctx, username)
	return args.Get(0).(types.User), args.Error(1)
}

var _ CredentialStore = (*MockCredentialStore)(nil)
