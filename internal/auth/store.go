package auth

import (
	"context"
	"time"
)

// DefaultRole is assigned to every new account.
const DefaultRole = "User"

// User is a stored account. PasswordHash never holds plaintext.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	Name         string
	Surname      string
	Role         string
	Active       bool
	// Version is bumped by every successful mutation and guards
	// compare-and-swap updates.
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Store persists user records.
//
// Lookups return (nil, nil) when nothing matches. Mutations take the version
// the caller read and fail with ErrConflict when the record has moved on, or
// ErrNotFound when it is gone. CreateUser and UpdateEmail return
// ErrDuplicateEmail on a uniqueness violation.
type Store interface {
	CreateUser(ctx context.Context, u *User) (*User, error)
	GetUserByID(ctx context.Context, id string) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	UpdatePasswordHash(ctx context.Context, id string, version int64, hash string) (*User, error)
	UpdateEmail(ctx context.Context, id string, version int64, email string) (*User, error)
	SetActive(ctx context.Context, id string, version int64, active bool) (*User, error)
}

// Notifier delivers out-of-band messages such as reset tokens.
type Notifier interface {
	Send(ctx context.Context, to, subject, body string) error
}
