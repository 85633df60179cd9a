// Package migrate copies session records between stores and JSON backups.
package migrate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/segmentio/encoding/json"
	"go.uber.org/zap"

	"marcel.works/poker-go/app/store"
)

// Report counts the outcome of an Import.
type Report struct {
	Total    int
	Imported int
	Skipped  int
	Failed   int
}

func (r Report) OK() bool {
	return r.Failed == 0
}

func (r Report) String() string {
	return fmt.Sprintf("imported %d/%d records (%d already present, %d failed)", r.Imported, r.Total, r.Skipped, r.Failed)
}

// Export reads every record of src.
func Export(ctx context.Context, src store.Lister) ([]store.Record, error) {
	records, err := src.ListRecords(ctx)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	if records == nil {
		records = []store.Record{}
	}
	return records, nil
}

// Import creates each record in dst. Records that already exist are left
// untouched; other failures are logged and counted, and the import goes on.
func Import(ctx context.Context, dst store.Gateway, records []store.Record, log *zap.Logger) Report {
	if log == nil {
		log = zap.NewNop()
	}
	report := Report{Total: len(records)}
	for _, record := range records {
		err := dst.CreateRecord(ctx, record)
		switch {
		case err == nil:
			report.Imported++
		case errors.Is(err, store.ErrAlreadyExists):
			report.Skipped++
			log.Debug("record already present", zap.String("id", record.Id))
		default:
			report.Failed++
			log.Warn("could not import record", zap.String("id", record.Id), zap.Error(err))
		}
	}
	return report
}

// WriteBackup writes records as an indented JSON array.
func WriteBackup(w io.Writer, records []store.Record) error {
	if records == nil {
		records = []store.Record{}
	}
	payload, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("encode backup: %w", err)
	}
	payload = append(payload, '\n')
	_, err = w.Write(payload)
	return err
}

// ReadBackup parses a backup written by WriteBackup. Every entry needs an id.
func ReadBackup(r io.Reader) ([]store.Record, error) {
	payload, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read backup: %w", err)
	}
	var records []store.Record
	if err := json.Unmarshal(payload, &records); err != nil {
		return nil, fmt.Errorf("decode backup: %w", err)
	}
	for i, record := range records {
		if strings.TrimSpace(record.Id) == "" {
			return nil, fmt.Errorf("backup entry %d has no id", i)
		}
	}
	return records, nil
}

// BackupName is the default file name for a backup taken at t.
func BackupName(t time.Time) string {
	return "planning_poker_backup_" + t.Format("20060102_150405") + ".json"
}
