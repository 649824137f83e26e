// Package store holds the persistence adapters behind auth.Store and
// quotes.Store: in-memory, SQLite and PostgreSQL.
package store

import (
	"context"

	"github.com/google/uuid"

	"github.com/example/quotesapi/internal/auth"
	"github.com/example/quotesapi/internal/quotes"
)

// DB is the full persistence surface used by the server.
type DB interface {
	auth.Store
	quotes.Store
	Ping(ctx context.Context) error
	Close() error
}

// validID reports whether id has the shape of an id this package issues.
// Malformed ids can never match a record.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func newID() string { return uuid.NewString() }

func copyUser(u *auth.User) *auth.User {
	c := *u
	return &c
}

func copyQuote(q *quotes.Quote) *quotes.Quote {
	c := *q
	return &c
}
