package migrate

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"marcel.works/poker-go/app/config"
	"marcel.works/poker-go/app/service"
	"marcel.works/poker-go/app/store"
)

var sample = []store.Record{
	{Id: "a", Name: "Sprint 12", Deck: "fibonacci"},
	{Id: "b", Name: "Sprint 13", Deck: "tshirt"},
	{Id: "c", Name: "Refinement", Deck: "powers_of_two"},
}

type failingGateway struct {
	*store.Memory
	failId string
}

func (g failingGateway) CreateRecord(ctx context.Context, record store.Record) error {
	if record.Id == g.failId {
		return errors.New("disk full")
	}
	return g.Memory.CreateRecord(ctx, record)
}

func TestBackupRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteBackup(&buf, sample); err != nil {
		t.Fatalf("write: %v", err)
	}
	if !strings.HasPrefix(buf.String(), "[\n") {
		t.Fatalf("backup is not an indented array: %q", buf.String()[:10])
	}
	got, err := ReadBackup(&buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(got) != len(sample) {
		t.Fatalf("records = %d, want %d", len(got), len(sample))
	}
	for i := range sample {
		if got[i] != sample[i] {
			t.Fatalf("record %d = %+v, want %+v", i, got[i], sample[i])
		}
	}
}

func TestEmptyBackupIsArray(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteBackup(&buf, nil); err != nil {
		t.Fatalf("write: %v", err)
	}
	if strings.TrimSpace(buf.String()) != "[]" {
		t.Fatalf("empty backup = %q", buf.String())
	}
}

func TestReadBackupRejects(t *testing.T) {
	tests := map[string]string{
		"not json":     `{"id":`,
		"not an array": `{"id":"a"}`,
		"missing id":   `[{"name":"x","deck":"tshirt"}]`,
	}
	for name, in := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := ReadBackup(strings.NewReader(in)); err == nil {
				t.Fatal("expected an error")
			}
		})
	}
}

func TestImportSkipsExisting(t *testing.T) {
	ctx := context.Background()
	dst := store.NewMemory()
	if err := dst.CreateRecord(ctx, store.Record{Id: "b", Name: "kept", Deck: "tshirt"}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	report := Import(ctx, dst, sample, nil)
	if report != (Report{Total: 3, Imported: 2, Skipped: 1}) || !report.OK() {
		t.Fatalf("report = %+v", report)
	}
	kept, err := dst.FindRecord(ctx, "b")
	if err != nil || kept.Name != "kept" {
		t.Fatalf("existing record = %+v, %v", kept, err)
	}
	if !strings.Contains(report.String(), "imported 2/3") {
		t.Fatalf("summary = %q", report.String())
	}
}

func TestImportCountsFailures(t *testing.T) {
	ctx := context.Background()
	dst := failingGateway{Memory: store.NewMemory(), failId: "c"}

	report := Import(ctx, dst, sample, nil)
	if report.Imported != 2 || report.Failed != 1 || report.OK() {
		t.Fatalf("report = %+v", report)
	}
}

func TestExportFromMemory(t *testing.T) {
	ctx := context.Background()
	src := store.NewMemory()
	got, err := Export(ctx, src)
	if err != nil || got == nil || len(got) != 0 {
		t.Fatalf("empty export = %v, %v", got, err)
	}
	Import(ctx, src, sample, nil)
	got, err = Export(ctx, src)
	if err != nil || len(got) != 3 || got[0].Id != "a" {
		t.Fatalf("export = %v, %v", got, err)
	}
}

func TestBackupName(t *testing.T) {
	at := time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC)
	if got := BackupName(at); got != "planning_poker_backup_20240309_140507.json" {
		t.Fatalf("name = %s", got)
	}
}

func seedSQLite(t *testing.T, path string, records []store.Record) {
	t.Helper()
	s := &service.SQLiteService{}
	if err := s.Connect(context.Background(), path); err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer s.Close()
	Import(context.Background(), s, records, nil)
}

func countSQLite(t *testing.T, path string) int {
	t.Helper()
	s := &service.SQLiteService{}
	if err := s.Connect(context.Background(), path); err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer s.Close()
	n, err := s.CountRecords(context.Background())
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}

func TestToolCommands(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	source := filepath.Join(dir, "legacy.db")
	target := filepath.Join(dir, "target.db")
	seedSQLite(t, source, sample)

	tool := &Tool{
		Config: config.Config{DBType: config.DBSQLite, DBPath: target},
		Now:    func() time.Time { return time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC) },
		Dir:    dir,
	}

	exported := filepath.Join(dir, "export.json")
	if err := tool.Run(ctx, []string{"export", source, exported}); err != nil {
		t.Fatalf("export: %v", err)
	}
	if err := tool.Run(ctx, []string{"restore", exported}); err != nil {
		t.Fatalf("restore: %v", err)
	}
	if n := countSQLite(t, target); n != 3 {
		t.Fatalf("target records after restore = %d, want 3", n)
	}

	// a second migration finds everything already present
	if err := tool.Run(ctx, []string{"migrate", source}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "planning_poker_backup_20240309_140507.json")); err != nil {
		t.Fatalf("migrate left no backup: %v", err)
	}
	if n := countSQLite(t, target); n != 3 {
		t.Fatalf("target records after migrate = %d, want 3", n)
	}

	backup := filepath.Join(dir, "backup.json")
	if err := tool.Run(ctx, []string{"backup", backup}); err != nil {
		t.Fatalf("backup: %v", err)
	}
	f, err := os.Open(backup)
	if err != nil {
		t.Fatalf("open backup: %v", err)
	}
	defer f.Close()
	records, err := ReadBackup(f)
	if err != nil || len(records) != 3 {
		t.Fatalf("backup records = %v, %v", records, err)
	}

	if err := tool.Run(ctx, []string{"check"}); err != nil {
		t.Fatalf("check: %v", err)
	}
}

func TestExportLeavesSourceUntouched(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	source := filepath.Join(dir, "legacy.db")
	db, err := sql.Open("sqlite", source)
	if err != nil {
		t.Fatalf("open legacy: %v", err)
	}
	for _, stmt := range []string{
		`CREATE TABLE sessions (id TEXT PRIMARY KEY, name TEXT NOT NULL, deck TEXT NOT NULL)`,
		`INSERT INTO sessions (id, name, deck) VALUES ('old', 'Sprint 1', 'fibonacci')`,
	} {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("seed legacy: %v", err)
		}
	}
	_ = db.Close()
	before, err := os.ReadFile(source)
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	tool := &Tool{Config: config.Config{DBType: config.DBMemory}, Dir: dir}
	out := filepath.Join(dir, "export.json")
	if err := tool.Run(ctx, []string{"export", source, out}); err != nil {
		t.Fatalf("export: %v", err)
	}

	after, err := os.ReadFile(source)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(before, after) {
		t.Fatal("export wrote to its source file")
	}
	f, err := os.Open(out)
	if err != nil {
		t.Fatalf("open export: %v", err)
	}
	defer f.Close()
	records, err := ReadBackup(f)
	if err != nil || len(records) != 1 || records[0].Id != "old" {
		t.Fatalf("exported = %v, %v", records, err)
	}
}

func TestToolUsage(t *testing.T) {
	tool := &Tool{Config: config.Config{DBType: config.DBMemory}}
	for _, args := range [][]string{nil, {"restore"}, {"export"}, {"migrate"}, {"explode"}} {
		if err := tool.Run(context.Background(), args); !errors.Is(err, ErrUsage) {
			t.Fatalf("Run(%v) = %v, want ErrUsage", args, err)
		}
	}
}

func TestToolMissingSource(t *testing.T) {
	tool := &Tool{Config: config.Config{DBType: config.DBMemory}, Dir: t.TempDir()}
	if err := tool.Run(context.Background(), []string{"export", filepath.Join(t.TempDir(), "none.db")}); err == nil {
		t.Fatal("expected missing source error")
	}
}
