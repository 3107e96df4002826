package domain

import (
	"strings"
	"time"
)

// Role determines the mutation privilege tier of a user.
type Role string

const (
	RoleUser      Role = "user"
	RoleModerator Role = "moderator"
	RoleAdmin     Role = "admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleModerator, RoleAdmin:
		return true
	}
	return false
}

// ReservedUsername cannot be registered because it collides with /users/me.
const ReservedUsername = "me"

// User is the actor passed explicitly into policy and guard calls.
type User struct {
	ID        int64
	Username  string
	Email     string
	Role      Role
	Bio       string
	FirstName string
	LastName  string
	CreatedAt time.Time
}

func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

func (u *User) IsModerator() bool {
	return u != nil && u.Role == RoleModerator
}

// IsReservedUsername reports whether name equals ReservedUsername ignoring case.
func IsReservedUsername(name string) bool {
	return strings.EqualFold(strings.TrimSpace(name), ReservedUsername)
}
