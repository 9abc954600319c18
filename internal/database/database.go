// Package database implements the sqlite-backed repository used by the
// queue engine, the verification service and the access checker.
package database

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// ErrConcurrentModification is returned when a conditional update lost
// a race with another writer. Callers may retry the whole operation
// once; re-evaluation re-reads current state.
var ErrConcurrentModification = errors.New("concurrent modification")

// DB wraps sql.DB for the waitlist service.
type DB struct {
	*sql.DB
}

// New opens the database at path and runs migrations.
func New(path string) (*DB, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if err := createTables(db); err != nil {
		return nil, err
	}
	return &DB{db}, nil
}

func createTables(db *sql.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS restaurants (
            id TEXT PRIMARY KEY,
            slug TEXT UNIQUE NOT NULL,
            name TEXT NOT NULL,
            address TEXT,
            tz TEXT NOT NULL DEFAULT 'America/Argentina/Buenos_Aires',
            plan TEXT NOT NULL DEFAULT 'free',
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP
        )`,

		`CREATE TABLE IF NOT EXISTS waitlists (
            id TEXT PRIMARY KEY,
            restaurant_id TEXT NOT NULL,
            status TEXT NOT NULL DEFAULT 'open',
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            FOREIGN KEY (restaurant_id) REFERENCES restaurants(id)
        )`,

		`CREATE TABLE IF NOT EXISTS parties (
            id TEXT PRIMARY KEY,
            waitlist_id TEXT NOT NULL,
            restaurant_id TEXT NOT NULL,
            name TEXT NOT NULL,
            phone TEXT NOT NULL,
            size INTEGER NOT NULL,
            state TEXT NOT NULL DEFAULT 'queued',
            token TEXT UNIQUE NOT NULL,
            eta_minutes INTEGER,
            notes TEXT,
            created_at DATETIME NOT NULL,
            notified_at DATETIME,
            seated_at DATETIME,
            no_show_at DATETIME,
            canceled_at DATETIME,
            FOREIGN KEY (waitlist_id) REFERENCES waitlists(id),
            FOREIGN KEY (restaurant_id) REFERENCES restaurants(id)
        )`,

		`CREATE TABLE IF NOT EXISTS notifications (
            id TEXT PRIMARY KEY,
            party_id TEXT NOT NULL,
            channel TEXT NOT NULL,
            template TEXT NOT NULL,
            status TEXT NOT NULL,
            cost REAL,
            provider_id TEXT,
            sent_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            FOREIGN KEY (party_id) REFERENCES parties(id)
        )`,

		`CREATE TABLE IF NOT EXISTS phone_verifications (
            id TEXT PRIMARY KEY,
            phone TEXT NOT NULL,
            code TEXT NOT NULL,
            expires_at DATETIME NOT NULL,
            verified BOOLEAN NOT NULL DEFAULT 0,
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP
        )`,

		`CREATE TABLE IF NOT EXISTS metrics_daily (
            restaurant_id TEXT NOT NULL,
            day TEXT NOT NULL,
            seated INTEGER NOT NULL DEFAULT 0,
            no_shows INTEGER NOT NULL DEFAULT 0,
            covers INTEGER NOT NULL DEFAULT 0,
            PRIMARY KEY (restaurant_id, day),
            FOREIGN KEY (restaurant_id) REFERENCES restaurants(id)
        )`,

		`CREATE TABLE IF NOT EXISTS users_restaurants (
            user_id TEXT NOT NULL,
            restaurant_id TEXT NOT NULL,
            role TEXT NOT NULL DEFAULT 'operator',
            PRIMARY KEY (user_id, restaurant_id),
            FOREIGN KEY (restaurant_id) REFERENCES restaurants(id)
        )`,

		`CREATE INDEX IF NOT EXISTS idx_waitlists_restaurant_status ON waitlists(restaurant_id, status)`,
		`CREATE INDEX IF NOT EXISTS idx_parties_restaurant_state ON parties(restaurant_id, state)`,
		`CREATE INDEX IF NOT EXISTS idx_parties_created ON parties(restaurant_id, created_at, id)`,
		`CREATE INDEX IF NOT EXISTS idx_notifications_party ON notifications(party_id)`,
		`CREATE INDEX IF NOT EXISTS idx_verifications_phone ON phone_verifications(phone, created_at)`,
	}

	for _, q := range queries {
		if _, err := db.Exec(q); err != nil {
			return fmt.Errorf("exec migration %s: %w", trimSQL(q), err)
		}
	}
	return nil
}

func trimSQL(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > 60 {
		return s[:60] + "..."
	}
	return s
}
