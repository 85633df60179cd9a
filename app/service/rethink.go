package service

import (
	"context"
	"fmt"
	"strings"

	r "gopkg.in/rethinkdb/rethinkdb-go.v6"

	"marcel.works/poker-go/app/store"
)

var (
	tableSessions = "sessions"
	fieldName     = "name"
	fieldDeck     = "deck"
)

type RethinkService struct {
	Session *r.Session
	DB      string
}

func (s *RethinkService) Connect(hosts []string, db string) error {
	if len(hosts) == 0 {
		hosts = []string{"localhost:28015"}
	}
	if db == "" {
		db = "annapoker"
	}
	session, err := r.Connect(r.ConnectOpts{
		Addresses: hosts,
	})
	if err != nil {
		return err
	}
	s.Session = session
	s.DB = db
	return s.ensureSchema()
}

func (s *RethinkService) ensureSchema() error {
	err := r.DBList().Contains(s.DB).Do(func(exists r.Term) r.Term {
		return r.Branch(exists, nil, r.DBCreate(s.DB))
	}).Exec(s.Session)
	if err != nil {
		return fmt.Errorf("ensure database %s: %w", s.DB, err)
	}
	err = r.DB(s.DB).TableList().Contains(tableSessions).Do(func(exists r.Term) r.Term {
		return r.Branch(exists, nil, r.DB(s.DB).TableCreate(tableSessions))
	}).Exec(s.Session)
	if err != nil {
		return fmt.Errorf("ensure table %s: %w", tableSessions, err)
	}
	return nil
}

func (s *RethinkService) Close() error {
	if s.Session == nil {
		return nil
	}
	return s.Session.Close()
}

func (s *RethinkService) Ping(ctx context.Context) error {
	return r.Expr(1).Exec(s.Session, r.ExecOpts{Context: ctx})
}

func (s *RethinkService) table() r.Term {
	return r.DB(s.DB).Table(tableSessions)
}

func (s *RethinkService) CreateRecord(ctx context.Context, record store.Record) error {
	res, err := s.table().Insert(record).RunWrite(s.Session, r.RunOpts{Context: ctx})
	if err != nil {
		if strings.Contains(err.Error(), "Duplicate primary key") {
			return store.ErrAlreadyExists
		}
		return fmt.Errorf("insert session %s: %w", record.Id, err)
	}
	if res.Errors > 0 {
		if strings.Contains(res.FirstError, "Duplicate primary key") {
			return store.ErrAlreadyExists
		}
		return fmt.Errorf("insert session %s: %s", record.Id, res.FirstError)
	}
	return nil
}

func (s *RethinkService) UpdateRecord(ctx context.Context, id, name, deck string) error {
	res, err := s.table().Get(id).
		Update(map[string]interface{}{fieldName: name, fieldDeck: deck}).
		RunWrite(s.Session, r.RunOpts{Context: ctx})
	if err != nil {
		return fmt.Errorf("update session %s: %w", id, err)
	}
	if res.Skipped > 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *RethinkService) FindRecord(ctx context.Context, id string) (store.Record, error) {
	cursor, err := s.table().Get(id).Run(s.Session, r.RunOpts{Context: ctx})
	if err != nil {
		return store.Record{}, fmt.Errorf("get session %s: %w", id, err)
	}
	defer cursor.Close()
	if cursor.IsNil() {
		return store.Record{}, store.ErrNotFound
	}
	var record store.Record
	if err := cursor.One(&record); err != nil {
		if err == r.ErrEmptyResult {
			return store.Record{}, store.ErrNotFound
		}
		return store.Record{}, fmt.Errorf("decode session %s: %w", id, err)
	}
	return record, nil
}

func (s *RethinkService) CountRecords(ctx context.Context) (int, error) {
	cursor, err := s.table().Count().Run(s.Session, r.RunOpts{Context: ctx})
	if err != nil {
		return 0, fmt.Errorf("count sessions: %w", err)
	}
	defer cursor.Close()
	var n int
	if err := cursor.One(&n); err != nil {
		return 0, fmt.Errorf("count sessions: %w", err)
	}
	return n, nil
}

func (s *RethinkService) ListRecords(ctx context.Context) ([]store.Record, error) {
	cursor, err := s.table().OrderBy(r.Asc("id")).Run(s.Session, r.RunOpts{Context: ctx})
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer cursor.Close()
	var records []store.Record
	if err := cursor.All(&records); err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return records, nil
}

var (
	_ store.Gateway = (*RethinkService)(nil)
	_ store.Lister  = (*RethinkService)(nil)
	_ store.Pinger  = (*RethinkService)(nil)
)
