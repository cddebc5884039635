// Package postgres wraps database/sql with the lib/pq driver, pool settings
// from config and a transaction helper.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Scanned-Book-Search/pkg/config"
	_ "github.com/lib/pq"
)

type Client struct {
	DB  *sql.DB
	cfg config.PostgresConfig
}

func New(cfg config.PostgresConfig) (*Client, error) {
	return Open(cfg.DSN(), cfg)
}

// Open connects with an explicit DSN, applying the pool limits from cfg.
func Open(dsn string, cfg config.PostgresConfig) (*Client, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening postgres connection: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}
	return &Client{DB: db, cfg: cfg}, nil
}

func (c *Client) Close() error {
	return c.DB.Close()
}

// Ping reports database reachability for readiness checks.
func (c *Client) Ping(ctx context.Context) error {
	return c.DB.PingContext(ctx)
}

func (c *Client) InTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := c.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rolling back transaction after error %v: %w", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	return nil
}
