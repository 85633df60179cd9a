package migrate

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"marcel.works/poker-go/app/config"
	"marcel.works/poker-go/app/service"
	"marcel.works/poker-go/app/store"
)

const Usage = `usage:
  migrate backup [out.json]      dump the configured store to JSON
  migrate restore <in.json>      load a JSON backup into the configured store
  migrate export <sqlite> [out]  dump a SQLite file to JSON
  migrate migrate <sqlite>       copy a SQLite file into the configured store
  migrate check                  verify the configured store is reachable`

// ErrUsage is returned for a missing or unknown subcommand.
var ErrUsage = fmt.Errorf("invalid arguments\n%s", Usage)

// Tool runs the backup subcommands against the store described by Config.
// Backups without an explicit file name are written to Dir.
type Tool struct {
	Config config.Config
	Log    *zap.Logger
	Now    func() time.Time
	Dir    string
}

func (t *Tool) Run(ctx context.Context, args []string) error {
	if t.Log == nil {
		t.Log = zap.NewNop()
	}
	if t.Now == nil {
		t.Now = time.Now
	}
	if len(args) == 0 {
		return ErrUsage
	}

	switch args[0] {
	case "backup":
		return t.backup(ctx, optional(args, 1))
	case "restore", "import":
		if len(args) < 2 {
			return ErrUsage
		}
		return t.restore(ctx, args[1])
	case "export":
		if len(args) < 2 {
			return ErrUsage
		}
		return t.export(ctx, args[1], optional(args, 2))
	case "migrate":
		if len(args) < 2 {
			return ErrUsage
		}
		return t.migrate(ctx, args[1])
	case "check":
		return t.check(ctx)
	default:
		return ErrUsage
	}
}

func (t *Tool) backup(ctx context.Context, out string) error {
	target, err := t.openTarget(ctx)
	if err != nil {
		return err
	}
	defer target.Close()

	records, err := Export(ctx, target)
	if err != nil {
		return err
	}
	_, err = t.writeFile(out, records)
	return err
}

func (t *Tool) restore(ctx context.Context, in string) error {
	f, err := os.Open(in)
	if err != nil {
		return fmt.Errorf("open backup: %w", err)
	}
	defer f.Close()
	records, err := ReadBackup(f)
	if err != nil {
		return err
	}
	t.Log.Info("loaded backup", zap.String("file", in), zap.Int("records", len(records)))
	return t.load(ctx, records)
}

func (t *Tool) export(ctx context.Context, sqlitePath, out string) error {
	records, err := t.readSQLite(ctx, sqlitePath)
	if err != nil {
		return err
	}
	_, err = t.writeFile(out, records)
	return err
}

// migrate always writes a backup of the source before importing.
func (t *Tool) migrate(ctx context.Context, sqlitePath string) error {
	records, err := t.readSQLite(ctx, sqlitePath)
	if err != nil {
		return err
	}
	if _, err := t.writeFile("", records); err != nil {
		return err
	}
	return t.load(ctx, records)
}

func (t *Tool) check(ctx context.Context) error {
	t.Log.Info("checking store", zap.String("store", t.Config.Describe()))
	target, err := t.openTarget(ctx)
	if err != nil {
		return err
	}
	defer target.Close()

	if err := target.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	n, err := target.CountRecords(ctx)
	if err != nil {
		return fmt.Errorf("count records: %w", err)
	}
	t.Log.Info("store is reachable", zap.Int("records", n))
	return nil
}

func (t *Tool) load(ctx context.Context, records []store.Record) error {
	target, err := t.openTarget(ctx)
	if err != nil {
		return err
	}
	defer target.Close()

	report := Import(ctx, target, records, t.Log)
	t.Log.Info(report.String())
	if !report.OK() {
		return fmt.Errorf("%d of %d records failed to import", report.Failed, report.Total)
	}
	return nil
}

func (t *Tool) openTarget(ctx context.Context) (service.Store, error) {
	target, err := service.OpenStore(ctx, t.Config)
	if err != nil {
		return nil, fmt.Errorf("cannot connect to %s: %w", t.Config.Describe(), err)
	}
	return target, nil
}

// readSQLite lists the records of a SQLite file without writing to it.
func (t *Tool) readSQLite(ctx context.Context, path string) ([]store.Record, error) {
	src := &service.SQLiteService{}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("sqlite source: %w", err)
	}
	if err := src.ConnectReadOnly(ctx, path); err != nil {
		return nil, err
	}
	defer src.Close()

	records, err := Export(ctx, src)
	if err != nil {
		return nil, err
	}
	t.Log.Info("exported sqlite", zap.String("file", path), zap.Int("records", len(records)))
	return records, nil
}

func (t *Tool) writeFile(name string, records []store.Record) (string, error) {
	if name == "" {
		name = filepath.Join(t.Dir, BackupName(t.Now()))
	}
	f, err := os.Create(name)
	if err != nil {
		return "", fmt.Errorf("create backup: %w", err)
	}
	if err := WriteBackup(f, records); err != nil {
		_ = f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	t.Log.Info("backup saved", zap.String("file", name), zap.Int("records", len(records)))
	return name, nil
}

func optional(args []string, i int) string {
	if len(args) > i {
		return args[i]
	}
	return ""
}
