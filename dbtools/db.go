// Package dbtools exposes a SQLite database as protocol tools: listing
// tables, describing a table, querying rows, inserting a row and deleting
// rows by condition.
package dbtools

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"strings"

	_ "modernc.org/sqlite" // registers the "sqlite" database/sql driver
)

// DriverName is the database/sql driver used by Open.
const DriverName = "sqlite"

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ErrInvalidIdentifier is returned for table or column names that are not
// plain SQL identifiers.
var ErrInvalidIdentifier = errors.New("invalid identifier")

const schemaSQL = `
CREATE TABLE users (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	username TEXT NOT NULL,
	email TEXT UNIQUE NOT NULL
);
CREATE TABLE todos (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id INTEGER NOT NULL,
	task TEXT NOT NULL,
	completed BOOLEAN NOT NULL DEFAULT 0,
	FOREIGN KEY (user_id) REFERENCES users (id)
);`

var seedUsers = []struct{ username, email string }{
	{"user1", "user1@example.com"},
	{"user2", "user2@example.com"},
}

var seedTodos = []struct {
	userID    int
	task      string
	completed bool
}{
	{1, "Complete MCP project", false},
	{1, "Read about SQL injection", true},
	{2, "Buy groceries", false},
}

// Open opens the SQLite database at path. When the file does not exist yet
// and seed is true, the users and todos tables are created and populated
// with sample rows.
func Open(ctx context.Context, path string, seed bool) (*sql.DB, error) {
	_, statErr := os.Stat(path)
	fresh := errors.Is(statErr, fs.ErrNotExist)

	db, err := sql.Open(DriverName, path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	// SQLite admits one writer at a time.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	if fresh && seed {
		if err := Seed(ctx, db); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return db, nil
}

// Seed creates the sample schema and rows in a single transaction.
func Seed(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("seed: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("seed: create schema: %w", err)
	}
	for _, u := range seedUsers {
		if _, err := tx.ExecContext(ctx, `INSERT INTO users (username, email) VALUES (?, ?)`, u.username, u.email); err != nil {
			return fmt.Errorf("seed: insert user %s: %w", u.username, err)
		}
	}
	for _, t := range seedTodos {
		if _, err := tx.ExecContext(ctx, `INSERT INTO todos (user_id, task, completed) VALUES (?, ?, ?)`, t.userID, t.task, t.completed); err != nil {
			return fmt.Errorf("seed: insert todo %q: %w", t.task, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("seed: commit: %w", err)
	}
	return nil
}

// quoteIdent validates name as a plain identifier and returns it quoted.
func quoteIdent(name string) (string, error) {
	name = strings.TrimSpace(name)
	if !identRe.MatchString(name) {
		return "", fmt.Errorf("%w: %q", ErrInvalidIdentifier, name)
	}
	return `"` + name + `"`, nil
}

// quoteColumns turns a comma-separated column list into a quoted select
// list. An empty list or "*" selects every column.
func quoteColumns(columns string) (string, error) {
	columns = strings.TrimSpace(columns)
	if columns == "" || columns == "*" {
		return "*", nil
	}
	parts := strings.Split(columns, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		q, err := quoteIdent(p)
		if err != nil {
			return "", err
		}
		out = append(out, q)
	}
	return strings.Join(out, ", "), nil
}
