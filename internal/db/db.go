package db

import (
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"
)

// pragmas are applied to every connection.
var pragmas = []string{
	"journal_mode(WAL)",
	"busy_timeout(5000)",
	"foreign_keys(1)",
	"synchronous(NORMAL)",
}

// Open opens a SQLite database connection and configures pragmas.
func Open(path string) (*sql.DB, error) {
	// Every connection to ":memory:" is a separate database, so it gets a
	// single connection and the pragmas are set on it directly.
	if path == ":memory:" {
		db, err := sql.Open("sqlite", path)
		if err != nil {
			return nil, fmt.Errorf("opening database: %w", err)
		}
		db.SetMaxOpenConns(1)
		for _, p := range pragmas {
			if _, err := db.Exec("PRAGMA " + p); err != nil {
				db.Close()
				return nil, fmt.Errorf("setting pragma %q: %w", p, err)
			}
		}
		return db, nil
	}

	dsn := path + "?_pragma=" + strings.Join(pragmas, "&_pragma=")
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	return db, nil
}
