package quotes

import (
	"context"
	"errors"
	"log/slog"

	"github.com/example/quotesapi/internal/auth"
)

const (
	DefaultPerPage = 10
	MaxPerPage     = 100
)

// Service holds the quote business rules. Mutations are allowed only to the
// owner recorded on the quote.
type Service struct {
	store  Store
	logger *slog.Logger
}

// NewService constructs a Service.
func NewService(store Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, logger: logger}
}

// Create stores a new active quote owned by ownerID.
func (s *Service) Create(ctx context.Context, ownerID, text, author string) (*Quote, error) {
	if ownerID == "" {
		return nil, auth.Unauthorized("Please log in.")
	}
	q, err := s.store.CreateQuote(ctx, &Quote{Text: text, Author: author, Status: StatusActive, UserID: ownerID})
	if err != nil {
		return nil, s.fail(ctx, "create quote", err)
	}
	return q, nil
}

// List returns a page of active quotes. Pages start at 1.
func (s *Service) List(ctx context.Context, currentPage, perPage int) (*Page, error) {
	if currentPage < 1 {
		currentPage = 1
	}
	if perPage < 1 {
		perPage = DefaultPerPage
	}
	if perPage > MaxPerPage {
		perPage = MaxPerPage
	}
	items, total, err := s.store.ListQuotes(ctx, StatusActive, (currentPage-1)*perPage, perPage)
	if err != nil {
		return nil, s.fail(ctx, "list quotes", err)
	}
	if items == nil {
		items = []*Quote{}
	}
	return &Page{
		Quotes:      items,
		TotalQuotes: total,
		TotalPages:  (total + perPage - 1) / perPage,
		CurrentPage: currentPage,
	}, nil
}

// Random returns a random active quote.
func (s *Service) Random(ctx context.Context) (*Quote, error) {
	q, err := s.store.RandomQuote(ctx, StatusActive)
	if err != nil {
		return nil, s.fail(ctx, "random quote", err)
	}
	if q == nil {
		return nil, auth.NotFound("Currently, there are no quotes available to display.")
	}
	return q, nil
}

// Get returns the quote with the given id.
func (s *Service) Get(ctx context.Context, id string) (*Quote, error) {
	q, err := s.store.GetQuote(ctx, id)
	if err != nil {
		return nil, s.fail(ctx, "get quote", err)
	}
	if q == nil {
		return nil, auth.NotFound("Quote not found.")
	}
	return q, nil
}

// Update replaces text and author when callerID owns the quote.
func (s *Service) Update(ctx context.Context, id, callerID, text, author string) (*Quote, error) {
	q, err := s.owned(ctx, id, callerID)
	if err != nil {
		return nil, err
	}
	q.Text = text
	q.Author = author
	updated, err := s.store.UpdateQuote(ctx, q)
	if err != nil {
		return nil, s.fail(ctx, "update quote", err)
	}
	return updated, nil
}

// Delete removes the quote when callerID owns it.
func (s *Service) Delete(ctx context.Context, id, callerID string) error {
	if _, err := s.owned(ctx, id, callerID); err != nil {
		return err
	}
	if err := s.store.DeleteQuote(ctx, id); err != nil {
		return s.fail(ctx, "delete quote", err)
	}
	return nil
}

func (s *Service) owned(ctx context.Context, id, callerID string) (*Quote, error) {
	q, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if callerID == "" || q.UserID != callerID {
		return nil, auth.Forbidden("You can only modify your own quotes.")
	}
	return q, nil
}

func (s *Service) fail(ctx context.Context, op string, err error) error {
	var domain *auth.Error
	if errors.As(err, &domain) && domain.Kind != auth.KindInternal {
		return err
	}
	s.logger.ErrorContext(ctx, op, slog.Any("error", err))
	return auth.Internal(err)
}
