package health

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRunWorstStatusWins(t *testing.T) {
	c := NewChecker()
	c.Register("index_store", PingCheck(func(context.Context) error { return nil }, true))
	c.Register("redis", PingCheck(func(context.Context) error { return errors.New("refused") }, false))
	report := c.Run(context.Background())
	if report.Status != StatusDegraded {
		t.Fatalf("status = %s", report.Status)
	}
	if report.Components["redis"].Message != "refused" {
		t.Errorf("redis = %+v", report.Components["redis"])
	}

	c.Register("postgres", PingCheck(func(context.Context) error { return errors.New("down") }, true))
	if got := c.Run(context.Background()).Status; got != StatusDown {
		t.Errorf("status = %s", got)
	}
}

func TestReadyHandler(t *testing.T) {
	c := NewChecker()
	c.Register("index_store", PingCheck(func(context.Context) error { return nil }, true))
	rec := httptest.NewRecorder()
	c.ReadyHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}
}
