// Package store loads pipe-delimited showtime lines into a relational
// database: a local SQLite file or a remote libSQL server.
package store

import (
	"bufio"
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"

	_ "github.com/tursodatabase/libsql-client-go/libsql"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var Schema string

type Store struct {
	db *sql.DB
}

func isRemote(dsn string) bool {
	for _, scheme := range []string{"libsql://", "https://", "http://", "wss://", "ws://"} {
		if strings.HasPrefix(dsn, scheme) {
			return true
		}
	}
	return false
}

// Open connects to dsn and makes sure the schema exists. A URL dsn goes to
// libSQL with authToken; anything else is a SQLite file path.
func Open(ctx context.Context, dsn, authToken string) (*Store, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("open store: empty database path")
	}
	var (
		db  *sql.DB
		err error
	)
	if isRemote(dsn) {
		db, err = openRemote(dsn, authToken)
	} else {
		db, err = openFile(ctx, dsn)
	}
	if err != nil {
		return nil, err
	}
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: db}, nil
}

func openRemote(dsn, authToken string) (*sql.DB, error) {
	if authToken != "" {
		u, err := url.Parse(dsn)
		if err != nil {
			return nil, fmt.Errorf("parse database url: %w", err)
		}
		q := u.Query()
		q.Set("authToken", authToken)
		u.RawQuery = q.Encode()
		dsn = u.String()
	}
	db, err := sql.Open("libsql", dsn)
	if err != nil {
		return nil, fmt.Errorf("open libsql: %w", err)
	}
	return db, nil
}

func openFile(ctx context.Context, path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// One connection, so the pragmas below hold for every statement.
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA foreign_keys = ON"} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}
	return db, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

type ImportOptions struct {
	// KeepExisting skips clearing the three tables before inserting.
	KeepExisting bool
	// Strict aborts on the first malformed line before anything is written.
	// Otherwise malformed lines are logged and skipped.
	Strict bool
}

type ImportResult struct {
	Imported int
	Skipped  []*FormatError
}

// ReadRows parses every non-blank line from r.
func ReadRows(r io.Reader, strict bool) ([]Row, []*FormatError, error) {
	var (
		rows    []Row
		skipped []*FormatError
		number  int
	)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		number++
		row, err := ParseLine(line)
		var formatErr *FormatError
		if errors.As(err, &formatErr) {
			formatErr.Number = number
			if strict {
				return nil, nil, formatErr
			}
			slog.Warn("import: skipping malformed line", "line", number, "reason", formatErr.Reason, "text", line)
			skipped = append(skipped, formatErr)
			continue
		}
		rows = append(rows, row)
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, fmt.Errorf("read showtimes: %w", err)
	}
	return rows, skipped, nil
}

// Import loads lines from r in a single transaction. Films and locations are
// inserted once; a repeated showtime replaces the existing row.
func (s *Store) Import(ctx context.Context, r io.Reader, opts ImportOptions) (ImportResult, error) {
	rows, skipped, err := ReadRows(r, opts.Strict)
	if err != nil {
		return ImportResult{}, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ImportResult{}, fmt.Errorf("begin import: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if !opts.KeepExisting {
		for _, table := range []string{"film_showtime", "film", "location"} {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
				return ImportResult{}, fmt.Errorf("clear %s: %w", table, err)
			}
		}
	}
	for _, row := range rows {
		if _, err := tx.ExecContext(ctx, "INSERT OR IGNORE INTO film(title) VALUES (?)", row.Title); err != nil {
			return ImportResult{}, fmt.Errorf("insert film %q: %w", row.Title, err)
		}
		if _, err := tx.ExecContext(ctx, "INSERT OR IGNORE INTO location(code) VALUES (?)", row.Location); err != nil {
			return ImportResult{}, fmt.Errorf("insert location %q: %w", row.Location, err)
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT OR REPLACE INTO film_showtime (film_title, location_code, starts_at) VALUES (?, ?, ?)",
			row.Title, row.Location, row.StartsAt,
		); err != nil {
			return ImportResult{}, fmt.Errorf("insert showtime %q at %s: %w", row.Title, row.Location, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return ImportResult{}, fmt.Errorf("commit import: %w", err)
	}
	slog.Info("import: done", "rows", len(rows), "skipped", len(skipped), "keep_existing", opts.KeepExisting)
	return ImportResult{Imported: len(rows), Skipped: skipped}, nil
}

type Counts struct {
	Films     int
	Locations int
	Showtimes int
}

func (s *Store) Counts(ctx context.Context) (Counts, error) {
	var c Counts
	for table, dest := range map[string]*int{
		"film":          &c.Films,
		"location":      &c.Locations,
		"film_showtime": &c.Showtimes,
	} {
		if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(dest); err != nil {
			return Counts{}, fmt.Errorf("count %s: %w", table, err)
		}
	}
	return c, nil
}
