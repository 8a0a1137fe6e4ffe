package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aquanet/apiserver/internal/auth"
	"github.com/aquanet/apiserver/internal/store"
	"github.com/aquanet/apiserver/types"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id int) (types.User, error)
	GetByUsername(ctx context.Context, username string) (types.User, error)
	GetByEmail(ctx context.Context, email string) (types.User, error)
	List(ctx context.Context, offset, limit int) ([]types.User, error)
	Count(ctx context.Context) (int, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	Update(ctx context.Context, user types.User) (types.User, error)
	Delete(ctx context.Context, id int) error
}

// UserService encapsulates user use-cases.
type UserService struct {
	repo   UserRepository
	hasher *auth.PasswordHasher
}

func NewUserService(repo UserRepository, hasher *auth.PasswordHasher) *UserService {
	return &UserService{repo: repo, hasher: hasher}
}

func (s *UserService) Get(ctx context.Context, id int) (types.User, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *UserService) GetByUsername(ctx context.Context, username string) (types.User, error) {
	return s.repo.GetByUsername(ctx, username)
}

// Exists adapts Get to an ExistsFunc for reference checks.
func (s *UserService) Exists(ctx context.Context, id int) (bool, error) {
	_, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (s *UserService) List(ctx context.Context, offset, limit int) ([]types.User, error) {
	offset, limit = ClampLimit(offset, limit)
	return s.repo.List(ctx, offset, limit)
}

func (s *UserService) Count(ctx context.Context) (int, error) {
	return s.repo.Count(ctx)
}

// Register creates a self-service account. The role is always RoleUser.
func (s *UserService) Register(ctx context.Context, in types.UserCreate) (types.User, error) {
	return s.create(ctx, in, types.RoleUser)
}

// CreateAdmin bootstraps an administrator account.
func (s *UserService) CreateAdmin(ctx context.Context, in types.UserCreate) (types.User, error) {
	return s.create(ctx, in, types.RoleAdmin)
}

func (s *UserService) create(ctx context.Context, in types.UserCreate, role types.Role) (types.User, error) {
	const op = "services.UserService.create"

	in.Username = strings.TrimSpace(in.Username)
	in.Email = normalizeEmail(in.Email)
	if err := Validate(in); err != nil {
		return types.User{}, err
	}

	if err := s.checkUsername(ctx, in.Username, 0); err != nil {
		return types.User{}, err
	}
	if err := s.checkEmail(ctx, in.Email, 0); err != nil {
		return types.User{}, err
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return types.User{}, err
	}

	user := types.User{
		Username:     in.Username,
		Email:        in.Email,
		FullName:     in.FullName,
		IsActive:     true,
		Role:         role,
		PasswordHash: hash,
	}
	if user.FullName == nil || strings.TrimSpace(*user.FullName) == "" {
		name := in.Username
		user.FullName = &name
	}
	if in.IsActive != nil {
		user.IsActive = *in.IsActive
	}

	created, err := s.repo.Create(ctx, user)
	if err != nil {
		return types.User{}, fmt.Errorf("%s: %w", op, err)
	}
	return created, nil
}

// Update applies the fields set in in to user id. Changing a role requires
// an admin caller even when the caller edits their own account.
func (s *UserService) Update(ctx context.Context, caller types.User, id int, in types.UserUpdate) (types.User, error) {
	const op = "services.UserService.Update"

	if err := Validate(in); err != nil {
		return types.User{}, err
	}

	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return types.User{}, err
	}

	if in.Role != nil && *in.Role != user.Role {
		if caller.Role != types.RoleAdmin {
			return types.User{}, &auth.ForbiddenError{Reason: "only administrators can change roles"}
		}
		user.Role = *in.Role
	}
	if in.Username != nil {
		name := strings.TrimSpace(*in.Username)
		if name != user.Username {
			if err := s.checkUsername(ctx, name, user.ID); err != nil {
				return types.User{}, err
			}
			user.Username = name
		}
	}
	if in.Email != nil {
		email := normalizeEmail(in.Email)
		if err := s.checkEmail(ctx, email, user.ID); err != nil {
			return types.User{}, err
		}
		user.Email = email
	}
	if in.FullName != nil {
		user.FullName = in.FullName
	}
	if in.IsActive != nil {
		user.IsActive = *in.IsActive
	}
	if in.Password != nil {
		hash, err := s.hasher.Hash(*in.Password)
		if err != nil {
			return types.User{}, err
		}
		user.PasswordHash = hash
	}

	updated, err := s.repo.Update(ctx, user)
	if err != nil {
		return types.User{}, fmt.Errorf("%s: %w", op, err)
	}
	return updated, nil
}

func (s *UserService) Delete(ctx context.Context, id int) error {
	return s.repo.Delete(ctx, id)
}

// checkUsername fails with ErrUsernameTaken when another account (not self)
// already uses name.
func (s *UserService) checkUsername(ctx context.Context, name string, self int) error {
	existing, err := s.repo.GetByUsername(ctx, name)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return nil
	case err != nil:
		return fmt.Errorf("services.UserService.checkUsername: %w", err)
	case existing.ID != self:
		return ErrUsernameTaken
	}
	return nil
}

func (s *UserService) checkEmail(ctx context.Context, email *string, self int) error {
	if email == nil {
		return nil
	}
	existing, err := s.repo.GetByEmail(ctx, *email)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return nil
	case err != nil:
		return fmt.Errorf("services.UserService.checkEmail: %w", err)
	case existing.ID != self:
		return ErrEmailTaken
	}
	return nil
}

// normalizeEmail stores blank addresses as NULL.
func normalizeEmail(email *string) *string {
	if email == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*email)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
