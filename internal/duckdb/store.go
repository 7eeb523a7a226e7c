// Package duckdb persists ranking runs and their candidates in DuckDB so
// results can be listed and queried after the fact.
package duckdb

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/marcboeker/go-duckdb"
)

// Store manages a DuckDB connection for run results.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens or creates a DuckDB database at the given path.
// Use an empty string for an in-memory database.
func Open(path string) (*Store, error) {
	if path != "" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}

	s := &Store{db: db, path: path}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for direct access.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Path returns the database path, "" for in-memory.
func (s *Store) Path() string {
	return s.path
}

// ensureSchema creates tables if they don't exist.
func (s *Store) ensureSchema() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id VARCHAR PRIMARY KEY,
			started_at TIMESTAMP,
			caller VARCHAR,
			predictor VARCHAR,
			exclude_impacts VARCHAR,
			peaks BIGINT,
			failed_peaks BIGINT,
			candidates BIGINT
		)`,
		`CREATE TABLE IF NOT EXISTS candidates (
			run_id VARCHAR,
			peak_index BIGINT,
			peak VARCHAR,
			peak_rank BIGINT,
			chrom VARCHAR,
			pos BIGINT,
			ref VARCHAR,
			alt VARCHAR,
			qual DOUBLE,
			impact VARCHAR,
			density DOUBLE,
			gene VARCHAR,
			consequence VARCHAR,
			feature VARCHAR,
			hgvsc VARCHAR,
			hgvsp VARCHAR,
			annotations BIGINT
		)`,
		`CREATE TABLE IF NOT EXISTS inputs (
			run_id VARCHAR,
			kind VARCHAR,
			path VARCHAR,
			size BIGINT,
			mod_time TIMESTAMP
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
