// Package store defines the durable record contract for poker sessions.
package store

import (
	"context"
	"errors"
)

var (
	// ErrNotFound indicates no record exists for the requested id.
	ErrNotFound = errors.New("record not found")
	// ErrAlreadyExists indicates a record with the same id is already stored.
	ErrAlreadyExists = errors.New("record already exists")
)

// Record is the persisted identity of a session. Round state never lands here.
type Record struct {
	Id   string `json:"id" rethinkdb:"id"`
	Name string `json:"name" rethinkdb:"name"`
	Deck string `json:"deck" rethinkdb:"deck"`
}

// Gateway is everything the coordinator needs from a backing store.
type Gateway interface {
	CreateRecord(ctx context.Context, record Record) error
	UpdateRecord(ctx context.Context, id, name, deck string) error
	FindRecord(ctx context.Context, id string) (Record, error)
	CountRecords(ctx context.Context) (int, error)
}

// Lister is implemented by stores that can enumerate every record (backups).
type Lister interface {
	ListRecords(ctx context.Context) ([]Record, error)
}

// Pinger is implemented by stores that can verify their connection.
type Pinger interface {
	Ping(ctx context.Context) error
}
