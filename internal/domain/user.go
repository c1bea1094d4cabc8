package domain

import (
	"strconv"
	"time"
)

// Role is the access-level tag attached to a user at creation.
type Role string

const (
	RoleConsumer Role = "consumer"
	RoleCreator  Role = "creator"
	RoleAdmin    Role = "admin"
)

// DefaultRole is assigned to self-registered accounts.
const DefaultRole = RoleConsumer

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleConsumer, RoleCreator, RoleAdmin:
		return true
	default:
		return false
	}
}

// User is the domain model for registered accounts.
type User struct {
	ID           int64
	FirstName    string
	LastName     string
	Email        string
	PasswordHash string
	Role         Role
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Subject renders the user id as a token subject.
func (u *User) Subject() string {
	return strconv.FormatInt(u.ID, 10)
}

// UserData carries registration input.
type UserData struct {
	FirstName string
	LastName  string
	Email     string
	Password  string
}
