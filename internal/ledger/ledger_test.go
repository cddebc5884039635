package ledger

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/Scanned-Book-Search/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/Scanned-Book-Search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Scanned-Book-Search/pkg/postgres"
)

func TestErrorText(t *testing.T) {
	if errorText(nil) != "" {
		t.Error("nil error must be empty")
	}
	long := errors.New(strings.Repeat("x", maxErrorLen+10))
	if got := errorText(long); len(got) != maxErrorLen {
		t.Errorf("len = %d", len(got))
	}
}

func TestRetryable(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{errors.New("connection reset"), true},
		{context.Canceled, false},
		{fmt.Errorf("wrapped: %w", context.DeadlineExceeded), false},
	}
	for _, tt := range tests {
		if got := retryable(tt.err); got != tt.want {
			t.Errorf("retryable(%v) = %v", tt.err, got)
		}
	}
}

func newLedger(t *testing.T) *Ledger {
	t.Helper()
	dsn := os.Getenv("SP_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("SP_TEST_POSTGRES_DSN not set")
	}
	db, err := postgres.Open(dsn, config.PostgresConfig{MaxOpenConns: 4})
	if err != nil {
		t.Fatalf("postgres: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	l := New(db)
	ctx := context.Background()
	if err := l.Migrate(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := db.DB.ExecContext(ctx, `TRUNCATE book_index_status, book_index_history`); err != nil {
		t.Fatal(err)
	}
	return l
}

func TestLedgerLifecycle(t *testing.T) {
	l := newLedger(t)
	ctx := context.Background()

	if err := l.RecordPending(ctx, "cats"); err != nil {
		t.Fatal(err)
	}
	if err := l.RecordIndexed(ctx, "cats", 12); err != nil {
		t.Fatal(err)
	}
	if err := l.RecordFailed(ctx, "dogs", errors.New("malformed markup")); err != nil {
		t.Fatal(err)
	}

	cats, err := l.Get(ctx, "cats")
	if err != nil {
		t.Fatal(err)
	}
	if cats.Status != StatusIndexed || cats.PageCount != 12 {
		t.Errorf("cats = %+v", cats)
	}
	failed, err := l.List(ctx, StatusFailed)
	if err != nil {
		t.Fatal(err)
	}
	if len(failed) != 1 || failed[0].BookID != "dogs" || failed[0].Error != "malformed markup" {
		t.Errorf("failed = %+v", failed)
	}
	all, err := l.List(ctx, "")
	if err != nil || len(all) != 2 {
		t.Fatalf("all = %+v, %v", all, err)
	}
	history, err := l.History(ctx, "cats")
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 2 || history[0].Status != StatusPending || history[1].Status != StatusIndexed {
		t.Errorf("history = %+v", history)
	}
	if _, err := l.Get(ctx, "birds"); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("missing entry err = %v", err)
	}
}
