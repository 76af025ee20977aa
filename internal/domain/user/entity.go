package user

import (
	"errors"
	"strings"
)

// ErrInvalidEmail is returned when an email address does not contain "@".
var ErrInvalidEmail = errors.New("invalid email format")

// User represents a user entity in the system.
type User struct {
	ID    int64  // ID is the unique identifier for the user
	Name  string // Name is the full name of the user
	Email string // Email is the unique email address of the user
}

// NewUser builds an in-memory user. It does not persist anything.
func NewUser(name, email string) (*User, error) {
	u := &User{Name: name, Email: email}
	if !u.HasValidEmail() {
		return nil, ErrInvalidEmail
	}
	return u, nil
}

// HasValidEmail reports whether the user's email is well formed.
// A nil user has no valid email.
func (u *User) HasValidEmail() bool {
	if u == nil {
		return false
	}
	return IsValidEmail(u.Email)
}

// IsValidEmail reports whether email contains an "@".
func IsValidEmail(email string) bool {
	return strings.Contains(email, "@")
}
