package model

import (
	"fmt"
	"time"
)

// User represents a registered donor or recipient.
type User struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Email        string     `json:"email"`
	Phone        string     `json:"phone,omitempty"`
	PasswordHash string     `json:"-"`
	Role         string     `json:"role"`
	CreatedAt    time.Time  `json:"created_at"`
	DeletedAt    *time.Time `json:"deleted_at,omitempty"`
}

// UserProfile is the public view of a user, used when expanding product
// relations.
type UserProfile struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
}

// Profile returns the public view of u.
func (u *User) Profile() *UserProfile {
	return &UserProfile{ID: u.ID, Name: u.Name, Email: u.Email, Phone: u.Phone}
}

// Roles.
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// MinPasswordLength is the shortest accepted password.
const MinPasswordLength = 8

var roleLevels = map[string]int{
	RoleAdmin: 2,
	RoleUser:  1,
}

// RoleAtLeast checks if role meets or exceeds the minimum required role.
// Unknown roles on either side never match.
func RoleAtLeast(role, minimum string) bool {
	have, ok := roleLevels[role]
	if !ok {
		return false
	}
	need, ok := roleLevels[minimum]
	if !ok {
		return false
	}
	return have >= need
}

// ValidRole reports whether role is a known role.
func ValidRole(role string) bool {
	_, ok := roleLevels[role]
	return ok
}

// ValidatePassword checks password strength requirements.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return fmt.Errorf("password must be at least %d characters", MinPasswordLength)
	}
	return nil
}
