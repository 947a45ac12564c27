// Package database opens the SQL store behind analytics snapshots. Postgres
// (lib/pq) serves multi-node deployments; SQLite (modernc.org/sqlite) serves a
// single node with no external database.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/resilience"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Client struct {
	DB     *sql.DB
	driver string
}

// New opens the configured database and pings it, retrying while a Postgres
// server is still starting.
func New(ctx context.Context, cfg config.DatabaseConfig) (*Client, error) {
	driver := cfg.Driver
	switch driver {
	case DriverPostgres, DriverSQLite:
	case "":
		driver = DriverSQLite
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
	cfg.Driver = driver

	db, err := sql.Open(driver, cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("opening %s connection: %w", driver, err)
	}
	if driver == DriverSQLite {
		// A single connection keeps ":memory:" databases coherent.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
		db.SetMaxIdleConns(cfg.MaxIdleConns)
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	attempts := 5
	if driver == DriverSQLite {
		attempts = 1
	}
	err = resilience.Retry(ctx, driver+"-connect", resilience.RetryConfig{MaxAttempts: attempts}, func() error {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return db.PingContext(pingCtx)
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging %s: %w", driver, err)
	}
	return &Client{DB: db, driver: driver}, nil
}

// Driver returns the driver name in use.
func (c *Client) Driver() string { return c.driver }

// Rebind rewrites ? placeholders into the driver's bind syntax.
func (c *Client) Rebind(query string) string {
	if c.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	inQuote := false
	for _, r := range query {
		switch {
		case r == '\'':
			inQuote = !inQuote
			b.WriteRune(r)
		case r == '?' && !inQuote:
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func (c *Client) Ping(ctx context.Context) error {
	return c.DB.PingContext(ctx)
}

func (c *Client) Close() error {
	return c.DB.Close()
}

// InTx runs fn inside a transaction, committing on success and rolling back
// on error.
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
