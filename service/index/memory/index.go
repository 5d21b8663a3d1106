// Package memory provides an in-process index
package memory

import (
	"context"
	"errors"

	"github.com/viant/tripmanager/model/instance"
	"github.com/viant/tripmanager/service/dao"
	"github.com/viant/tripmanager/service/dao/store"
	"github.com/viant/tripmanager/service/index"
)

// Index keeps entries in a dao/store.MemoryStore
type Index struct {
	entries *store.MemoryStore[instance.Key, index.Entry]
}

// New creates an empty index
func New() *Index {
	return &Index{
		entries: store.NewMemoryStore[instance.Key, index.Entry](func(e *index.Entry) instance.Key { return e.Key }),
	}
}

// Put implements index.Index
func (i *Index) Put(ctx context.Context, entry *index.Entry) error {
	clone := *entry
	return i.entries.Save(ctx, &clone)
}

// Remove implements index.Index
func (i *Index) Remove(ctx context.Context, key instance.Key) error {
	if err := i.entries.Delete(ctx, key); err != nil && !errors.Is(err, dao.ErrNotFound) {
		return err
	}
	return nil
}

// List implements index.Index
func (i *Index) List(ctx context.Context) ([]*index.Entry, error) {
	entries, err := i.entries.List(ctx)
	if err != nil {
		return nil, err
	}
	result := make([]*index.Entry, 0, len(entries))
	for _, entry := range entries {
		clone := *entry
		result = append(result, &clone)
	}
	return result, nil
}

var _ index.Index = (*Index)(nil)
