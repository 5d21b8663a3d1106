// Package index keeps a secondary view of active trip keys, fed by host
// transitions. The coordinator never reads it.
package index

import (
	"context"
	"time"

	"github.com/viant/tripmanager/model/instance"
)

// Entry is an active key with its current run
type Entry struct {
	Key       instance.Key    `json:"key"`
	RunID     string          `json:"runId"`
	Status    instance.Status `json:"status"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// Index stores active entries
type Index interface {
	// Put inserts or replaces the entry for its key
	Put(ctx context.Context, entry *Entry) error

	// Remove deletes the entry for key; a missing key is not an error
	Remove(ctx context.Context, key instance.Key) error

	// List returns entries ordered by key
	List(ctx context.Context) ([]*Entry, error)
}
