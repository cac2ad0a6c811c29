// Package db opens the SQL write store and applies its migrations.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Supported store drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// SQLite DSN parameters for production hardening.
const (
	defaultBusyTimeout = "5000" // 5 seconds
	defaultSynchronous = "NORMAL"
	defaultJournalMode = "WAL"
)

// OpenPostgres opens and pings a PostgreSQL pool.
func OpenPostgres(dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if err := ping(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// OpenSQLite opens a *sql.DB pool for the given SQLite file path.
//
// mode controls write-safety and pool sizing:
//   - "write": MaxOpenConns=1, includes _txlock=immediate
//   - "read":  MaxOpenConns=maxOpen (0 means 4)
func OpenSQLite(path string, mode string, maxOpen int) (*sql.DB, error) {
	if mode != "read" && mode != "write" {
		return nil, fmt.Errorf("invalid SQLite mode %q: must be \"read\" or \"write\"", mode)
	}

	db, err := sql.Open("sqlite3", buildDSN(path, mode))
	if err != nil {
		return nil, fmt.Errorf("open sqlite (%s): %w", mode, err)
	}

	switch mode {
	case "write":
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	case "read":
		if maxOpen <= 0 {
			maxOpen = 4
		}
		db.SetMaxOpenConns(maxOpen)
		db.SetMaxIdleConns(maxOpen)
	}
	db.SetConnMaxLifetime(time.Hour)

	if err := ping(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite (%s): %w", mode, err)
	}
	return db, nil
}

// Stores is the write/read pool pair used by the repositories. For
// PostgreSQL both fields point at the same pool.
type Stores struct {
	Write *sql.DB
	Read  *sql.DB
}

// Close closes both pools, once each.
func (s *Stores) Close() error {
	err := s.Write.Close()
	if s.Read != s.Write {
		if rerr := s.Read.Close(); err == nil {
			err = rerr
		}
	}
	return err
}

// Open opens the configured store. For SQLite, source is a file path; for
// PostgreSQL it is a connection URL.
func Open(driver, source string) (*Stores, error) {
	switch driver {
	case DriverPostgres:
		pg, err := OpenPostgres(source)
		if err != nil {
			return nil, err
		}
		return &Stores{Write: pg, Read: pg}, nil
	case DriverSQLite:
		w, err := OpenSQLite(source, "write", 0)
		if err != nil {
			return nil, err
		}
		r, err := OpenSQLite(source, "read", 0)
		if err != nil {
			_ = w.Close()
			return nil, err
		}
		return &Stores{Write: w, Read: r}, nil
	}
	return nil, fmt.Errorf("unsupported store driver %q", driver)
}

func buildDSN(path string, mode string) string {
	params := url.Values{}
	params.Set("_journal_mode", defaultJournalMode)
	params.Set("_busy_timeout", defaultBusyTimeout)
	params.Set("_synchronous", defaultSynchronous)
	if mode == "write" {
		params.Set("_txlock", "immediate")
	}
	return path + "?" + params.Encode()
}

func ping(db *sql.DB) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return db.PingContext(ctx)
}
