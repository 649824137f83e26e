package quotes

import (
	"context"
	"time"
)

// Status of a quote. Only active quotes are listed publicly.
type Status int

const (
	StatusActive   Status = 1
	StatusPending  Status = 2
	StatusInactive Status = 3
)

// Quote is a user-submitted quote. UserID is the owner.
type Quote struct {
	ID        string    `json:"id"`
	Text      string    `json:"quote"`
	Author    string    `json:"author"`
	Status    Status    `json:"status"`
	UserID    string    `json:"userID"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Page is one page of the public listing.
type Page struct {
	Quotes      []*Quote `json:"quotes"`
	TotalQuotes int      `json:"totalQuotes"`
	TotalPages  int      `json:"totalPages"`
	CurrentPage int      `json:"currentPage"`
}

// Store persists quotes. Lookups return (nil, nil) when nothing matches;
// UpdateQuote and DeleteQuote return auth.ErrNotFound for unknown ids.
type Store interface {
	CreateQuote(ctx context.Context, q *Quote) (*Quote, error)
	GetQuote(ctx context.Context, id string) (*Quote, error)
	ListQuotes(ctx context.Context, status Status, offset, limit int) ([]*Quote, int, error)
	RandomQuote(ctx context.Context, status Status) (*Quote, error)
	UpdateQuote(ctx context.Context, q *Quote) (*Quote, error)
	DeleteQuote(ctx context.Context, id string) error
}
