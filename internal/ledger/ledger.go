// Package ledger records the index state of every book in PostgreSQL so
// operators can see which books are pending, indexed, failed or deleted
// without reading segment files.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/Scanned-Book-Search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Scanned-Book-Search/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/Scanned-Book-Search/pkg/resilience"
)

type Status string

const (
	StatusPending Status = "PENDING"
	StatusIndexed Status = "INDEXED"
	StatusFailed  Status = "FAILED"
	StatusDeleted Status = "DELETED"
)

// maxErrorLen caps the stored failure message.
const maxErrorLen = 1024

const schema = `
CREATE TABLE IF NOT EXISTS book_index_status (
    book_id    TEXT PRIMARY KEY,
    status     TEXT NOT NULL,
    page_count INTEGER NOT NULL DEFAULT 0,
    error      TEXT NOT NULL DEFAULT '',
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS book_index_history (
    id          BIGSERIAL PRIMARY KEY,
    book_id     TEXT NOT NULL,
    status      TEXT NOT NULL,
    page_count  INTEGER NOT NULL DEFAULT 0,
    error       TEXT NOT NULL DEFAULT '',
    recorded_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS book_index_history_book ON book_index_history (book_id, recorded_at);
`

type Entry struct {
	BookID    string    `json:"book_id"`
	Status    Status    `json:"status"`
	PageCount int       `json:"page_count"`
	Error     string    `json:"error,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Ledger struct {
	db     *postgres.Client
	retry  resilience.RetryConfig
	logger *slog.Logger
}

func New(db *postgres.Client) *Ledger {
	return &Ledger{
		db: db,
		retry: resilience.RetryConfig{
			MaxAttempts:  3,
			InitialDelay: 50 * time.Millisecond,
			Retryable:    retryable,
		},
		logger: slog.Default().With("component", "index-ledger"),
	}
}

// Migrate creates the ledger tables when they do not exist.
func (l *Ledger) Migrate(ctx context.Context) error {
	if _, err := l.db.DB.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrating index ledger: %w", err)
	}
	return nil
}

func (l *Ledger) RecordPending(ctx context.Context, bookID string) error {
	return l.record(ctx, Entry{BookID: bookID, Status: StatusPending})
}

func (l *Ledger) RecordIndexed(ctx context.Context, bookID string, pages int) error {
	return l.record(ctx, Entry{BookID: bookID, Status: StatusIndexed, PageCount: pages})
}

func (l *Ledger) RecordFailed(ctx context.Context, bookID string, cause error) error {
	return l.record(ctx, Entry{BookID: bookID, Status: StatusFailed, Error: errorText(cause)})
}

func (l *Ledger) RecordDeleted(ctx context.Context, bookID string) error {
	return l.record(ctx, Entry{BookID: bookID, Status: StatusDeleted})
}

// record upserts the current state and appends it to the history in one
// transaction.
func (l *Ledger) record(ctx context.Context, e Entry) error {
	err := resilience.Retry(ctx, "ledger-record", l.retry, func() error {
		return l.db.InTx(ctx, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO book_index_status (book_id, status, page_count, error, updated_at)
				VALUES ($1, $2, $3, $4, NOW())
				ON CONFLICT (book_id) DO UPDATE
				SET status = EXCLUDED.status,
				    page_count = EXCLUDED.page_count,
				    error = EXCLUDED.error,
				    updated_at = EXCLUDED.updated_at`,
				e.BookID, string(e.Status), e.PageCount, e.Error,
			); err != nil {
				return fmt.Errorf("upserting status: %w", err)
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO book_index_history (book_id, status, page_count, error)
				VALUES ($1, $2, $3, $4)`,
				e.BookID, string(e.Status), e.PageCount, e.Error,
			); err != nil {
				return fmt.Errorf("appending history: %w", err)
			}
			return nil
		})
	})
	if err != nil {
		return fmt.Errorf("recording %s for book %s: %w", e.Status, e.BookID, err)
	}
	l.logger.Debug("book status recorded", "book_id", e.BookID, "status", e.Status)
	return nil
}

// Get returns the current entry for bookID, or ErrNotFound.
func (l *Ledger) Get(ctx context.Context, bookID string) (*Entry, error) {
	var e Entry
	var status string
	err := l.db.DB.QueryRowContext(ctx,
		`SELECT book_id, status, page_count, error, updated_at
		FROM book_index_status WHERE book_id = $1`, bookID,
	).Scan(&e.BookID, &status, &e.PageCount, &e.Error, &e.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFoundf("no ledger entry for book %q", bookID)
	}
	if err != nil {
		return nil, fmt.Errorf("querying ledger for %s: %w", bookID, err)
	}
	e.Status = Status(status)
	return &e, nil
}

// List returns every entry with the given status, or all entries when
// status is empty, ordered by book id.
func (l *Ledger) List(ctx context.Context, status Status) ([]Entry, error) {
	query := `SELECT book_id, status, page_count, error, updated_at FROM book_index_status`
	args := []any{}
	if status != "" {
		query += ` WHERE status = $1`
		args = append(args, string(status))
	}
	query += ` ORDER BY book_id`
	rows, err := l.db.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing ledger: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0)
	for rows.Next() {
		var e Entry
		var s string
		if err := rows.Scan(&e.BookID, &s, &e.PageCount, &e.Error, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning ledger row: %w", err)
		}
		e.Status = Status(s)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating ledger rows: %w", err)
	}
	return entries, nil
}

// History returns the recorded transitions of bookID, oldest first.
func (l *Ledger) History(ctx context.Context, bookID string) ([]Entry, error) {
	rows, err := l.db.DB.QueryContext(ctx,
		`SELECT book_id, status, page_count, error, recorded_at
		FROM book_index_history WHERE book_id = $1 ORDER BY recorded_at, id`, bookID)
	if err != nil {
		return nil, fmt.Errorf("querying history of %s: %w", bookID, err)
	}
	defer rows.Close()
	entries := make([]Entry, 0)
	for rows.Next() {
		var e Entry
		var s string
		if err := rows.Scan(&e.BookID, &s, &e.PageCount, &e.Error, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning history row: %w", err)
		}
		e.Status = Status(s)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (l *Ledger) Ping(ctx context.Context) error {
	return l.db.Ping(ctx)
}

func errorText(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	if len(msg) > maxErrorLen {
		msg = msg[:maxErrorLen]
	}
	return msg
}

func retryable(err error) bool {
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}
