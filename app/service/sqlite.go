package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"time"

	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"marcel.works/poker-go/app/service/migrations"
	"marcel.works/poker-go/app/store"
)

const migrationTable = "schema_migrations"

// SQLiteService stores session records in a local SQLite file.
type SQLiteService struct {
	DB *sql.DB
}

func (s *SQLiteService) Connect(ctx context.Context, path string) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("sqlite path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(ctx, db, migrations.FS); err != nil {
		_ = db.Close()
		return fmt.Errorf("run migrations: %w", err)
	}
	s.DB = db
	return nil
}

// ConnectReadOnly opens an existing file with mode=ro. No migrations or
// journal pragmas run, so the file is never written.
func (s *SQLiteService) ConnectReadOnly(ctx context.Context, path string) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("sqlite path is required")
	}
	dsn := "file:" + filepath.ToSlash(filepath.Clean(path)) + "?mode=ro&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("ping sqlite db: %w", err)
	}
	s.DB = db
	return nil
}

func (s *SQLiteService) Close() error {
	if s.DB == nil {
		return nil
	}
	return s.DB.Close()
}

func (s *SQLiteService) Ping(ctx context.Context) error {
	var one int
	return s.DB.QueryRowContext(ctx, `SELECT 1`).Scan(&one)
}

func (s *SQLiteService) CreateRecord(ctx context.Context, record store.Record) error {
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO sessions (id, name, deck) VALUES (?, ?, ?)`,
		record.Id, record.Name, record.Deck,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrAlreadyExists
		}
		return fmt.Errorf("create session %s: %w", record.Id, err)
	}
	return nil
}

func (s *SQLiteService) UpdateRecord(ctx context.Context, id, name, deck string) error {
	res, err := s.DB.ExecContext(ctx,
		`UPDATE sessions SET name = ?, deck = ? WHERE id = ?`,
		name, deck, id,
	)
	if err != nil {
		return fmt.Errorf("update session %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update session %s: %w", id, err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *SQLiteService) FindRecord(ctx context.Context, id string) (store.Record, error) {
	var record store.Record
	err := s.DB.QueryRowContext(ctx,
		`SELECT id, name, deck FROM sessions WHERE id = ?`, id,
	).Scan(&record.Id, &record.Name, &record.Deck)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Record{}, store.ErrNotFound
	}
	if err != nil {
		return store.Record{}, fmt.Errorf("get session %s: %w", id, err)
	}
	return record, nil
}

func (s *SQLiteService) CountRecords(ctx context.Context) (int, error) {
	var n int
	if err := s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM sessions`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count sessions: %w", err)
	}
	return n, nil
}

func (s *SQLiteService) ListRecords(ctx context.Context) ([]store.Record, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT id, name, deck FROM sessions ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var records []store.Record
	for rows.Next() {
		var record store.Record
		if err := rows.Scan(&record.Id, &record.Name, &record.Deck); err != nil {
			return nil, fmt.Errorf("list sessions: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return records, nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}

// applyMigrations runs every embedded *.sql file once, in name order.
func applyMigrations(ctx context.Context, db *sql.DB, migrationFS fs.FS) error {
	entries, err := fs.ReadDir(migrationFS, ".")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}
	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)

	if _, err := db.ExecContext(ctx, fmt.Sprintf(
		`CREATE TABLE IF NOT EXISTS %s (name TEXT PRIMARY KEY, applied_at INTEGER NOT NULL)`,
		migrationTable,
	)); err != nil {
		return fmt.Errorf("ensure migration table: %w", err)
	}

	for _, file := range files {
		var applied int
		if err := db.QueryRowContext(ctx,
			fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE name = ?`, migrationTable), file,
		).Scan(&applied); err != nil {
			return fmt.Errorf("check migration %s: %w", file, err)
		}
		if applied > 0 {
			continue
		}

		content, err := fs.ReadFile(migrationFS, file)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", file, err)
		}
		up := upMigration(string(content))
		if strings.TrimSpace(up) == "" {
			continue
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin migration %s: %w", file, err)
		}
		if _, err := tx.ExecContext(ctx, up); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("exec migration %s: %w", file, err)
		}
		if _, err := tx.ExecContext(ctx,
			fmt.Sprintf(`INSERT OR IGNORE INTO %s (name, applied_at) VALUES (?, ?)`, migrationTable),
			file, time.Now().UTC().UnixMilli(),
		); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %s: %w", file, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %s: %w", file, err)
		}
	}
	return nil
}

// upMigration returns the SQL between "-- +migrate Up" and "-- +migrate Down".
func upMigration(content string) string {
	upIdx := strings.Index(content, "-- +migrate Up")
	if upIdx == -1 {
		return content
	}
	body := content[upIdx+len("-- +migrate Up"):]
	if downIdx := strings.Index(body, "-- +migrate Down"); downIdx != -1 {
		body = body[:downIdx]
	}
	return body
}

var (
	_ store.Gateway = (*SQLiteService)(nil)
	_ store.Lister  = (*SQLiteService)(nil)
	_ store.Pinger  = (*SQLiteService)(nil)
)
