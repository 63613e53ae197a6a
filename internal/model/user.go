// Package model holds the records persisted by the repositories and returned
// by the handlers.
package model

import (
	"time"

	"github.com/iliyamo/ctei-manager/internal/auth"
)

// User is a row of the users table.  PasswordHash never leaves the server.
type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	FullName     string    `json:"fullName"`
	PasswordHash string    `json:"-"`
	Role         auth.Role `json:"role"`
	IsActive     bool      `json:"isActive"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Claims returns the token claims issued for u.
func (u User) Claims() auth.Claims {
	return auth.Claims{UserID: u.ID, Email: u.Email, Role: u.Role}
}
