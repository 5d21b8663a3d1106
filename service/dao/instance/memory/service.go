package memory

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-memdb"
	"github.com/viant/tripmanager/model/instance"
	"github.com/viant/tripmanager/service/dao"
	"github.com/viant/tripmanager/service/dao/criteria"
)

const (
	table       = "instance"
	indexID     = "id"
	indexStatus = "status"
)

var schema = &memdb.DBSchema{
	Tables: map[string]*memdb.TableSchema{
		table: {
			Name: table,
			Indexes: map[string]*memdb.IndexSchema{
				indexID: {
					Name:    indexID,
					Unique:  true,
					Indexer: &memdb.StringFieldIndex{Field: "Key"},
				},
				indexStatus: {
					Name:         indexStatus,
					AllowMissing: true,
					Indexer:      &memdb.StringFieldIndex{Field: "Status"},
				},
			},
		},
	},
}

// Service implements an in-memory instance store on top of go-memdb.
// Records are copied on the way in and out; memdb objects must never be
// mutated after insertion.
type Service struct {
	db *memdb.MemDB
}

var _ dao.Service[instance.Key, instance.Instance] = (*Service)(nil)

// Save inserts or replaces an instance
func (s *Service) Save(_ context.Context, anInstance *instance.Instance) error {
	if anInstance == nil {
		return dao.ErrNilEntity
	}
	if anInstance.Key == "" {
		return dao.ErrInvalidID
	}
	txn := s.db.Txn(true)
	defer txn.Abort()
	if err := txn.Insert(table, anInstance.Clone()); err != nil {
		return fmt.Errorf("failed to save instance %v: %w", anInstance.Key, err)
	}
	txn.Commit()
	return nil
}

// Load returns a copy of the instance stored under key
func (s *Service) Load(_ context.Context, key instance.Key) (*instance.Instance, error) {
	if key == "" {
		return nil, dao.ErrInvalidID
	}
	txn := s.db.Txn(false)
	defer txn.Abort()
	raw, err := txn.First(table, indexID, string(key))
	if err != nil {
		return nil, fmt.Errorf("failed to load instance %v: %w", key, err)
	}
	if raw == nil {
		return nil, dao.ErrNotFound
	}
	return raw.(*instance.Instance).Clone(), nil
}

// Delete removes the instance stored under key
func (s *Service) Delete(_ context.Context, key instance.Key) error {
	if key == "" {
		return dao.ErrInvalidID
	}
	txn := s.db.Txn(true)
	defer txn.Abort()
	count, err := txn.DeleteAll(table, indexID, string(key))
	if err != nil {
		return fmt.Errorf("failed to delete instance %v: %w", key, err)
	}
	if count == 0 {
		return dao.ErrNotFound
	}
	txn.Commit()
	return nil
}

// List returns instances matching the status parameters
func (s *Service) List(_ context.Context, parameters ...*dao.Parameter) ([]*instance.Instance, error) {
	txn := s.db.Txn(false)
	defer txn.Abort()
	iterator, err := s.iterator(txn, parameters)
	if err != nil {
		return nil, err
	}
	var result []*instance.Instance
	for raw := iterator.Next(); raw != nil; raw = iterator.Next() {
		anInstance := raw.(*instance.Instance)
		if !criteria.FilterByStatus(string(anInstance.Status), parameters) {
			continue
		}
		result = append(result, anInstance.Clone())
	}
	return result, nil
}

// iterator narrows the scan to the status index when a single status is requested
func (s *Service) iterator(txn *memdb.Txn, parameters []*dao.Parameter) (memdb.ResultIterator, error) {
	if len(parameters) == 1 && parameters[0] != nil && parameters[0].Name == dao.ParameterStatus {
		if status, ok := parameters[0].Value.(string); ok {
			return txn.Get(table, indexStatus, status)
		}
	}
	return txn.Get(table, indexID)
}

// New creates an in-memory instance store
func New() *Service {
	db, err := memdb.NewMemDB(schema)
	if err != nil {
		panic(fmt.Sprintf("invalid instance schema: %v", err))
	}
	return &Service{db: db}
}
