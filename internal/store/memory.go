package store

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/example/quotesapi/internal/auth"
	"github.com/example/quotesapi/internal/quotes"
)

// MemDB keeps everything in process memory. Records are copied in and out so
// callers never share state with the store.
type MemDB struct {
	mu     sync.RWMutex
	users  map[string]*auth.User
	emails map[string]string
	quotes map[string]*quotes.Quote
	order  []string
	now    func() time.Time
}

func NewMemoryDB() *MemDB {
	return &MemDB{
		users:  map[string]*auth.User{},
		emails: map[string]string{},
		quotes: map[string]*quotes.Quote{},
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (m *MemDB) Ping(context.Context) error { return nil }
func (m *MemDB) Close() error               { return nil }

func (m *MemDB) CreateUser(_ context.Context, u *auth.User) (*auth.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.emails[u.Email]; ok {
		return nil, auth.ErrDuplicateEmail
	}
	rec := copyUser(u)
	rec.ID = newID()
	rec.Version = 1
	rec.CreatedAt = m.now()
	rec.UpdatedAt = rec.CreatedAt
	m.users[rec.ID] = rec
	m.emails[rec.Email] = rec.ID
	return copyUser(rec), nil
}

func (m *MemDB) GetUserByID(_ context.Context, id string) (*auth.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if u, ok := m.users[id]; ok {
		return copyUser(u), nil
	}
	return nil, nil
}

func (m *MemDB) GetUserByEmail(_ context.Context, email string) (*auth.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if id, ok := m.emails[email]; ok {
		return copyUser(m.users[id]), nil
	}
	return nil, nil
}

func (m *MemDB) UpdatePasswordHash(_ context.Context, id string, version int64, hash string) (*auth.User, error) {
	return m.mutateUser(id, version, func(u *auth.User) error {
		u.PasswordHash = hash
		return nil
	})
}

func (m *MemDB) UpdateEmail(_ context.Context, id string, version int64, email string) (*auth.User, error) {
	return m.mutateUser(id, version, func(u *auth.User) error {
		if owner, ok := m.emails[email]; ok && owner != u.ID {
			return auth.ErrDuplicateEmail
		}
		delete(m.emails, u.Email)
		m.emails[email] = u.ID
		u.Email = email
		return nil
	})
}

func (m *MemDB) SetActive(_ context.Context, id string, version int64, active bool) (*auth.User, error) {
	return m.mutateUser(id, version, func(u *auth.User) error {
		u.Active = active
		return nil
	})
}

// mutateUser applies fn under the write lock when the stored version still
// equals version.
func (m *MemDB) mutateUser(id string, version int64, fn func(*auth.User) error) (*auth.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, auth.ErrNotFound
	}
	if u.Version != version {
		return nil, auth.ErrConflict
	}
	if err := fn(u); err != nil {
		return nil, err
	}
	u.Version++
	u.UpdatedAt = m.now()
	return copyUser(u), nil
}

func (m *MemDB) CreateQuote(_ context.Context, q *quotes.Quote) (*quotes.Quote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec := copyQuote(q)
	rec.ID = newID()
	rec.CreatedAt = m.now()
	rec.UpdatedAt = rec.CreatedAt
	m.quotes[rec.ID] = rec
	m.order = append(m.order, rec.ID)
	return copyQuote(rec), nil
}

func (m *MemDB) GetQuote(_ context.Context, id string) (*quotes.Quote, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if q, ok := m.quotes[id]; ok {
		return copyQuote(q), nil
	}
	return nil, nil
}

func (m *MemDB) ListQuotes(_ context.Context, status quotes.Status, offset, limit int) ([]*quotes.Quote, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	matching := m.withStatus(status)
	total := len(matching)
	if offset >= total {
		return []*quotes.Quote{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	out := make([]*quotes.Quote, 0, end-offset)
	for _, q := range matching[offset:end] {
		out = append(out, copyQuote(q))
	}
	return out, total, nil
}

func (m *MemDB) RandomQuote(_ context.Context, status quotes.Status) (*quotes.Quote, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	matching := m.withStatus(status)
	if len(matching) == 0 {
		return nil, nil
	}
	return copyQuote(matching[rand.Intn(len(matching))]), nil
}

func (m *MemDB) UpdateQuote(_ context.Context, q *quotes.Quote) (*quotes.Quote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.quotes[q.ID]
	if !ok {
		return nil, auth.ErrNotFound
	}
	rec.Text = q.Text
	rec.Author = q.Author
	rec.Status = q.Status
	rec.UpdatedAt = m.now()
	return copyQuote(rec), nil
}

func (m *MemDB) DeleteQuote(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.quotes[id]; !ok {
		return auth.ErrNotFound
	}
	delete(m.quotes, id)
	for i, qid := range m.order {
		if qid == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}

// withStatus returns quotes with the given status in insertion order.
// Callers hold the lock.
func (m *MemDB) withStatus(status quotes.Status) []*quotes.Quote {
	var out []*quotes.Quote
	for _, id := range m.order {
		if q := m.quotes[id]; q.Status == status {
			out = append(out, q)
		}
	}
	return out
}

var _ DB = (*MemDB)(nil)
