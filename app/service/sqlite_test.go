package service

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"marcel.works/poker-go/app/config"
	"marcel.works/poker-go/app/store"
)

func openTempSQLite(t *testing.T) *SQLiteService {
	t.Helper()
	s := &SQLiteService{}
	if err := s.Connect(context.Background(), filepath.Join(t.TempDir(), "poker.db")); err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLiteConnectRequiresPath(t *testing.T) {
	t.Parallel()

	if err := (&SQLiteService{}).Connect(context.Background(), " "); err == nil {
		t.Fatal("expected empty path error")
	}
}

func TestSQLiteRecordLifecycle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := openTempSQLite(t)

	if err := s.CreateRecord(ctx, store.Record{Id: "s-1", Name: "Sprint 12", Deck: "fibonacci"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.CreateRecord(ctx, store.Record{Id: "s-1", Name: "dup", Deck: "tshirt"}); !errors.Is(err, store.ErrAlreadyExists) {
		t.Fatalf("duplicate create error = %v, want %v", err, store.ErrAlreadyExists)
	}
	if err := s.UpdateRecord(ctx, "s-1", "Sprint 13", "tshirt"); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, err := s.FindRecord(ctx, "s-1")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got != (store.Record{Id: "s-1", Name: "Sprint 13", Deck: "tshirt"}) {
		t.Fatalf("record = %+v", got)
	}

	if _, err := s.FindRecord(ctx, "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("find missing error = %v, want %v", err, store.ErrNotFound)
	}
	if err := s.UpdateRecord(ctx, "missing", "x", "y"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("update missing error = %v, want %v", err, store.ErrNotFound)
	}

	if err := s.CreateRecord(ctx, store.Record{Id: "a-0", Name: "first", Deck: "tshirt"}); err != nil {
		t.Fatalf("create second: %v", err)
	}
	n, err := s.CountRecords(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 2 {
		t.Fatalf("count = %d, want 2", n)
	}
	records, err := s.ListRecords(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 2 || records[0].Id != "a-0" {
		t.Fatalf("records = %+v, want a-0 first", records)
	}
	if err := s.Ping(ctx); err != nil {
		t.Fatalf("ping: %v", err)
	}
}

func TestSQLiteReopenKeepsRecords(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "poker.db")

	first := &SQLiteService{}
	if err := first.Connect(ctx, path); err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := first.CreateRecord(ctx, store.Record{Id: "keep", Name: "kept", Deck: "tshirt"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	_ = first.Close()

	second := &SQLiteService{}
	if err := second.Connect(ctx, path); err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer second.Close()
	got, err := second.FindRecord(ctx, "keep")
	if err != nil {
		t.Fatalf("find after reopen: %v", err)
	}
	if got.Name != "kept" {
		t.Fatalf("name = %q, want kept", got.Name)
	}
}

// writeLegacySQLite creates a file with the sessions table but no migration
// bookkeeping, as an older deployment would have left it.
func writeLegacySQLite(t *testing.T, path string) {
	t.Helper()
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open legacy: %v", err)
	}
	defer db.Close()
	for _, stmt := range []string{
		`CREATE TABLE sessions (id TEXT PRIMARY KEY, name TEXT NOT NULL, deck TEXT NOT NULL)`,
		`INSERT INTO sessions (id, name, deck) VALUES ('old', 'Sprint 1', 'fibonacci')`,
	} {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("seed legacy: %v", err)
		}
	}
}

func TestSQLiteReadOnlyLeavesFileUntouched(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "legacy.db")
	writeLegacySQLite(t, path)
	before, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	s := &SQLiteService{}
	if err := s.ConnectReadOnly(ctx, path); err != nil {
		t.Fatalf("open read-only: %v", err)
	}
	records, err := s.ListRecords(ctx)
	if err != nil || len(records) != 1 || records[0].Id != "old" {
		t.Fatalf("records = %v, %v", records, err)
	}
	if err := s.CreateRecord(ctx, store.Record{Id: "new", Name: "x", Deck: "tshirt"}); err == nil {
		t.Fatal("write through a read-only connection succeeded")
	}
	_ = s.Close()

	after, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(before, after) {
		t.Fatal("read-only open changed the file")
	}
	if _, err := os.Stat(path + "-wal"); !os.IsNotExist(err) {
		t.Fatalf("read-only open left a WAL file: %v", err)
	}
}

func TestSQLiteReadOnlyRequiresFile(t *testing.T) {
	t.Parallel()

	s := &SQLiteService{}
	if err := s.ConnectReadOnly(context.Background(), filepath.Join(t.TempDir(), "none.db")); err == nil {
		_ = s.Close()
		t.Fatal("expected an error for a missing file")
	}
}

func TestUpMigration(t *testing.T) {
	t.Parallel()

	in := "-- +migrate Up\nCREATE TABLE x (id TEXT);\n-- +migrate Down\nDROP TABLE x;\n"
	if got := upMigration(in); got != "\nCREATE TABLE x (id TEXT);\n" {
		t.Fatalf("up = %q", got)
	}
	if got := upMigration("SELECT 1;"); got != "SELECT 1;" {
		t.Fatalf("plain = %q", got)
	}
}

func TestOpenStore(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	mem, err := OpenStore(ctx, config.Config{DBType: config.DBMemory})
	if err != nil {
		t.Fatalf("open memory: %v", err)
	}
	defer mem.Close()
	if err := mem.CreateRecord(ctx, store.Record{Id: "m"}); err != nil {
		t.Fatalf("memory create: %v", err)
	}

	lite, err := OpenStore(ctx, config.Config{DBType: config.DBSQLite, DBPath: filepath.Join(t.TempDir(), "x.db")})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	defer lite.Close()
	if err := lite.Ping(ctx); err != nil {
		t.Fatalf("sqlite ping: %v", err)
	}

	if _, err := OpenStore(ctx, config.Config{DBType: "oracle"}); err == nil {
		t.Fatal("expected unknown type error")
	}
}
