// Package dao defines the keyed storage contract shared by the instance
// stores and the in-memory table helper.
package dao

import (
	"context"
	"errors"
)

var (
	// ErrNotFound reports a missing record
	ErrNotFound = errors.New("dao: not found")
	// ErrInvalidID reports an empty key
	ErrInvalidID = errors.New("dao: invalid id")
	// ErrNilEntity reports an attempt to save nil
	ErrNilEntity = errors.New("dao: nil entity")
)

// ParameterStatus names the status filter understood by every store
const ParameterStatus = "Status"

// Service stores records of type T under key K. Save replaces any record
// stored under the same key.
type Service[K comparable, T any] interface {
	Save(ctx context.Context, t *T) error
	Load(ctx context.Context, key K) (*T, error)
	Delete(ctx context.Context, key K) error
	List(ctx context.Context, parameters ...*Parameter) ([]*T, error)
}

// Parameter is a named listing filter. Value is a string or a []string set.
type Parameter struct {
	Name  string
	Value interface{}
}

// NewParameter creates a parameter; multiple values are matched as a set
func NewParameter(name string, values ...string) *Parameter {
	if len(values) == 1 {
		return &Parameter{Name: name, Value: values[0]}
	}
	return &Parameter{Name: name, Value: values}
}

// StatusIn filters records whose status is one of statuses
func StatusIn(statuses ...string) *Parameter {
	return NewParameter(ParameterStatus, statuses...)
}
