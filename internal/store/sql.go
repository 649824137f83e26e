package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/example/quotesapi/internal/auth"
	"github.com/example/quotesapi/internal/quotes"
)

// sqlDB implements DB over database/sql. Queries are written with "?"
// placeholders and rebound for the dialect.
type sqlDB struct {
	db       *sql.DB
	dialect  string
	isUnique func(error) bool
	now      func() time.Time
}

const userColumns = `id,email,password_hash,name,surname,role,active,version,created_at,updated_at`
const quoteColumns = `id,quote,author,status,user_id,created_at,updated_at`

func newSQLDB(db *sql.DB, dialect string, isUnique func(error) bool) *sqlDB {
	return &sqlDB{
		db:       db,
		dialect:  dialect,
		isUnique: isUnique,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// rebind turns "?" placeholders into "$n" for postgres.
func (s *sqlDB) rebind(q string) string {
	if s.dialect != "postgres" {
		return q
	}
	var b strings.Builder
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *sqlDB) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }
func (s *sqlDB) Close() error                   { return s.db.Close() }

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(row scanner) (*auth.User, error) {
	var u auth.User
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Name, &u.Surname, &u.Role, &u.Active, &u.Version, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

func scanQuote(row scanner) (*quotes.Quote, error) {
	var q quotes.Quote
	var status int
	if err := row.Scan(&q.ID, &q.Text, &q.Author, &status, &q.UserID, &q.CreatedAt, &q.UpdatedAt); err != nil {
		return nil, err
	}
	q.Status = quotes.Status(status)
	return &q, nil
}

func (s *sqlDB) CreateUser(ctx context.Context, u *auth.User) (*auth.User, error) {
	rec := copyUser(u)
	rec.ID = newID()
	rec.Version = 1
	rec.CreatedAt = s.now()
	rec.UpdatedAt = rec.CreatedAt
	_, err := s.db.ExecContext(ctx, s.rebind(`INSERT INTO users(`+userColumns+`) VALUES(?,?,?,?,?,?,?,?,?,?)`),
		rec.ID, rec.Email, rec.PasswordHash, rec.Name, rec.Surname, rec.Role, rec.Active, rec.Version, rec.CreatedAt, rec.UpdatedAt)
	if err != nil {
		if s.isUnique(err) {
			return nil, auth.ErrDuplicateEmail
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return rec, nil
}

func (s *sqlDB) GetUserByID(ctx context.Context, id string) (*auth.User, error) {
	if !validID(id) {
		return nil, nil
	}
	return s.getUser(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
}

func (s *sqlDB) GetUserByEmail(ctx context.Context, email string) (*auth.User, error) {
	return s.getUser(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email)
}

func (s *sqlDB) getUser(ctx context.Context, query string, arg any) (*auth.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, s.rebind(query), arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("select user: %w", err)
	}
	return u, nil
}

func (s *sqlDB) UpdatePasswordHash(ctx context.Context, id string, version int64, hash string) (*auth.User, error) {
	return s.updateUser(ctx, id, version, "password_hash", hash)
}

func (s *sqlDB) UpdateEmail(ctx context.Context, id string, version int64, email string) (*auth.User, error) {
	return s.updateUser(ctx, id, version, "email", email)
}

func (s *sqlDB) SetActive(ctx context.Context, id string, version int64, active bool) (*auth.User, error) {
	return s.updateUser(ctx, id, version, "active", active)
}

// updateUser sets one column when the row still carries version. A miss is
// resolved into ErrNotFound or ErrConflict by re-reading the row.
func (s *sqlDB) updateUser(ctx context.Context, id string, version int64, column string, value any) (*auth.User, error) {
	if !validID(id) {
		return nil, auth.ErrNotFound
	}
	q := `UPDATE users SET ` + column + ` = ?, version = version + 1, updated_at = ? WHERE id = ? AND version = ?`
	res, err := s.db.ExecContext(ctx, s.rebind(q), value, s.now(), id, version)
	if err != nil {
		if s.isUnique(err) {
			return nil, auth.ErrDuplicateEmail
		}
		return nil, fmt.Errorf("update user %s: %w", column, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("update user %s: %w", column, err)
	}
	current, err := s.GetUserByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, auth.ErrNotFound
	}
	if n == 0 {
		return nil, auth.ErrConflict
	}
	return current, nil
}

func (s *sqlDB) CreateQuote(ctx context.Context, q *quotes.Quote) (*quotes.Quote, error) {
	rec := copyQuote(q)
	rec.ID = newID()
	rec.CreatedAt = s.now()
	rec.UpdatedAt = rec.CreatedAt
	_, err := s.db.ExecContext(ctx, s.rebind(`INSERT INTO quotes(`+quoteColumns+`) VALUES(?,?,?,?,?,?,?)`),
		rec.ID, rec.Text, rec.Author, int(rec.Status), rec.UserID, rec.CreatedAt, rec.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert quote: %w", err)
	}
	return rec, nil
}

func (s *sqlDB) GetQuote(ctx context.Context, id string) (*quotes.Quote, error) {
	if !validID(id) {
		return nil, nil
	}
	q, err := scanQuote(s.db.QueryRowContext(ctx, s.rebind(`SELECT `+quoteColumns+` FROM quotes WHERE id = ?`), id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("select quote: %w", err)
	}
	return q, nil
}

func (s *sqlDB) ListQuotes(ctx context.Context, status quotes.Status, offset, limit int) ([]*quotes.Quote, int, error) {
	var total int
	if err := s.db.QueryRowContext(ctx, s.rebind(`SELECT COUNT(*) FROM quotes WHERE status = ?`), int(status)).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count quotes: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, s.rebind(`SELECT `+quoteColumns+` FROM quotes WHERE status = ? ORDER BY created_at, id LIMIT ? OFFSET ?`), int(status), limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list quotes: %w", err)
	}
	defer rows.Close()
	out := []*quotes.Quote{}
	for rows.Next() {
		q, err := scanQuote(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan quote: %w", err)
		}
		out = append(out, q)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list quotes: %w", err)
	}
	return out, total, nil
}

func (s *sqlDB) RandomQuote(ctx context.Context, status quotes.Status) (*quotes.Quote, error) {
	q, err := scanQuote(s.db.QueryRowContext(ctx, s.rebind(`SELECT `+quoteColumns+` FROM quotes WHERE status = ? ORDER BY random() LIMIT 1`), int(status)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("random quote: %w", err)
	}
	return q, nil
}

func (s *sqlDB) UpdateQuote(ctx context.Context, q *quotes.Quote) (*quotes.Quote, error) {
	if !validID(q.ID) {
		return nil, auth.ErrNotFound
	}
	res, err := s.db.ExecContext(ctx, s.rebind(`UPDATE quotes SET quote = ?, author = ?, status = ?, updated_at = ? WHERE id = ?`),
		q.Text, q.Author, int(q.Status), s.now(), q.ID)
	if err != nil {
		return nil, fmt.Errorf("update quote: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, auth.ErrNotFound
	}
	return s.GetQuote(ctx, q.ID)
}

func (s *sqlDB) DeleteQuote(ctx context.Context, id string) error {
	if !validID(id) {
		return auth.ErrNotFound
	}
	res, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM quotes WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("delete quote: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return auth.ErrNotFound
	}
	return nil
}
