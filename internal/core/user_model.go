package core

import (
	"context"
	"errors"
	"time"
)

// User is an authenticated account. Products, invoices and movements are owned by one user.
type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	IsActive     bool
	CreatedAt    time.Time
}

// ErrUserExists is returned by CreateUser when the username is already taken.
var ErrUserExists = errors.New("username already exists")

// UserService provides user lookup operations.
type UserService interface {
	// GetByUsername finds an active user by username.
	GetByUsername(ctx context.Context, username string) (*User, error)

	// GetByID returns a user by primary key.
	GetByID(ctx context.Context, userID string) (*User, error)

	// CreateUser stores a new active user. passwordHash must already be a bcrypt hash.
	CreateUser(ctx context.Context, username, email, passwordHash string) (*User, error)
}
