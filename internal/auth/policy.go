package auth

import (
	"slices"

	"github.com/aquanet/apiserver/types"
)

// Resource describes what a request targets. TargetUserID is set by routes
// addressing a user record.
type Resource struct {
	TargetUserID int
}

// Guard decides whether user may act on res. A nil return allows the request.
type Guard func(user types.User, res Resource) error

// RequireRole passes users whose role is one of roles.
func RequireRole(roles ...types.Role) Guard {
	return func(user types.User, _ Resource) error {
		if slices.Contains(roles, user.Role) {
			return nil
		}
		return forbidden("not enough permissions to perform this action")
	}
}

// RequireAtLeast passes users whose role grants every privilege of min.
func RequireAtLeast(min types.Role) Guard {
	return func(user types.User, _ Resource) error {
		if user.Role.AtLeast(min) {
			return nil
		}
		return forbidden("not enough permissions to perform this action")
	}
}

// RequireAdmin passes administrators only.
func RequireAdmin(user types.User, res Resource) error {
	return RequireRole(types.RoleAdmin)(user, res)
}

// RequireSelfOrAdmin passes admins and the user the resource points at.
func RequireSelfOrAdmin(user types.User, res Resource) error {
	if user.Role == types.RoleAdmin {
		return nil
	}
	if res.TargetUserID != 0 && user.ID == res.TargetUserID {
		return nil
	}
	return forbidden("not enough permissions to access another user")
}

// RequireEditUser passes admins, rejects engineers outright, and lets
// everyone else edit only their own record.
func RequireEditUser(user types.User, res Resource) error {
	switch {
	case user.Role == types.RoleAdmin:
		return nil
	case user.Role == types.RoleEngineer:
		return forbidden("engineers cannot edit users")
	case res.TargetUserID != 0 && user.ID == res.TargetUserID:
		return nil
	default:
		return forbidden("not enough permissions to edit this user")
	}
}

// RequireDeleteUser passes administrators only.
func RequireDeleteUser(user types.User, _ Resource) error {
	if user.Role == types.RoleAdmin {
		return nil
	}
	return forbidden("only administrators can delete users")
}

// All runs guards in order and returns the first failure.
func All(guards ...Guard) Guard {
	return func(user types.User, res Resource) error {
		for _, g := range guards {
			if err := g(user, res); err != nil {
				return err
			}
		}
		return nil
	}
}
