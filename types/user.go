package types

import (
	"fmt"
	"strings"
	"time"
)

// Role is a privilege level. Ranks form the order admin ⊇ engineer ⊇ user.
type Role string

const (
	RoleUser     Role = "user"
	RoleEngineer Role = "engineer"
	RoleAdmin    Role = "admin"
)

var roleRank = map[Role]int{
	RoleUser:     1,
	RoleEngineer: 2,
	RoleAdmin:    3,
}

// ParseRole accepts any casing of a known role name.
func ParseRole(raw string) (Role, error) {
	role := Role(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := roleRank[role]; !ok {
		return "", fmt.Errorf("unknown role %q", raw)
	}
	return role, nil
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	_, ok := roleRank[r]
	return ok
}

// AtLeast reports whether r grants every privilege of min.
func (r Role) AtLeast(min Role) bool {
	rank, ok := roleRank[r]
	if !ok {
		return false
	}
	return rank >= roleRank[min]
}

func (r Role) String() string {
	return string(r)
}

// User represents an account in the system.
// It contains identity, role, and audit metadata.
type User struct {
	// ID is the unique identifier of the user.
	ID int `json:"id" db:"id"`

	// Username is the unique login name chosen by the user.
	Username string `json:"username" db:"username"`

	// Email is the user's email address. Accounts may have none.
	Email *string `json:"email" db:"email"`

	// FullName is the user's display name. It defaults to the username.
	FullName *string `json:"full_name" db:"full_name"`

	// IsActive is false for disabled accounts, which cannot authenticate.
	IsActive bool `json:"is_active" db:"is_active"`

	// Role indicates the user's authorization level.
	Role Role `json:"role" db:"role"`

	// PasswordHash stores the hashed representation of the user's password.
	// This field is never exposed in API responses.
	PasswordHash string `json:"-" db:"hashed_password"`

	// CreatedAt is the timestamp when the user account was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is nil until the account is first updated.
	UpdatedAt *time.Time `json:"updated_at" db:"updated_at"`
}

// UserCreate is the self-service signup payload. It carries no role: signups
// always receive RoleUser.
type UserCreate struct {
	Username string  `json:"username" validate:"required,min=3,max=50"`
	Email    *string `json:"email,omitempty" validate:"omitempty,email"`
	FullName *string `json:"full_name,omitempty" validate:"omitempty,max=255"`
	Password string  `json:"password" validate:"required"`
	IsActive *bool   `json:"is_active,omitempty"`
}

// UserUpdate carries only the fields a caller wants to change.
type UserUpdate struct {
	Username *string `json:"username,omitempty" validate:"omitempty,min=3,max=50"`
	Email    *string `json:"email,omitempty" validate:"omitempty,email"`
	FullName *string `json:"full_name,omitempty" validate:"omitempty,max=255"`
	Password *string `json:"password,omitempty"`
	IsActive *bool   `json:"is_active,omitempty"`
	Role     *Role   `json:"role,omitempty"`
}

// UnmarshalText rejects unknown role names while decoding request bodies.
func (r *Role) UnmarshalText(text []byte) error {
	role, err := ParseRole(string(text))
	if err != nil {
		return err
	}
	*r = role
	return nil
}
