// Package storage holds the persistence collaborators of the transaction
// store. Every backend stores one opaque serialized collection and replaces
// it whole on each save.
package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Load when nothing has been persisted yet.
var ErrNotFound = errors.New("storage: no persisted collection")

// Persister loads and saves the serialized transaction collection.
// Save must be atomic: a reader sees either the previous or the new
// collection, never a mix.
type Persister interface {
	Load(ctx context.Context) ([]byte, error)
	Save(ctx context.Context, data []byte) error
}
