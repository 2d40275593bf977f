// Package ledger implements the transaction store: an insertion-ordered
// collection of expenses that is written through to its persister after
// every mutation.
package ledger

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"zenith/internal/core"
	"zenith/internal/log"
	"zenith/internal/storage"
)

// Store is the transaction store. Construct with New and call Initialize
// before use. Safe for concurrent use.
type Store struct {
	mu        sync.RWMutex
	persister storage.Persister
	logger    *log.Logger
	now       func() time.Time

	txns   []core.Transaction // insertion order
	nextID int64
	synced []byte // payload last loaded from or saved to the persister
}

// ErrStale reports that the persisted collection was written by someone
// else since this store last read it. Nothing was saved; Reload and retry.
var ErrStale = errors.New("persisted transactions changed since last load")

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the clock used to stamp CreatedAt.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func New(persister storage.Persister, logger *log.Logger, opts ...Option) *Store {
	s := &Store{
		persister: persister,
		logger:    logger.WithComponent(log.ComponentLedger),
		now:       time.Now,
		nextID:    1,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Initialize loads the persisted collection. Missing or corrupt data leaves
// an empty store with the id counter at 1; it never returns an error.
// Call it once at startup; later refreshes go through Reload.
func (s *Store) Initialize(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.txns = nil
	s.nextID = 1
	s.synced = nil

	data, err := s.persister.Load(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		s.logger.InfoContext(ctx, "No persisted transactions, starting empty")
		return
	}
	if err != nil {
		s.logger.LogError(ctx, "Failed to load transactions, starting empty", err, log.OpLoad, nil)
		return
	}

	// A corrupt payload is still what is on disk; the next write replaces it.
	s.synced = data

	txns, err := decode(data)
	if err != nil {
		s.logger.LogError(ctx, "Persisted transactions are corrupt, starting empty", err, log.OpLoad, nil)
		return
	}

	s.txns = txns
	s.nextID = nextIDFor(txns)

	s.logger.InfoContext(ctx, "Transactions loaded", log.FieldCount, len(txns), "next_id", s.nextID)
}

// Reload replaces the in-memory collection with the persisted one. A load
// or decode failure is returned and the current collection is kept. The id
// counter never moves backwards within a process.
func (s *Store) Reload(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.persister.Load(ctx)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("reload transactions: %w", err)
	}

	var txns []core.Transaction
	if data != nil {
		if txns, err = decode(data); err != nil {
			return fmt.Errorf("reload transactions: %w", err)
		}
	}

	s.txns = txns
	s.synced = data
	s.nextID = max(s.nextID, nextIDFor(txns))

	s.logger.DebugContext(ctx, "Transactions reloaded", log.FieldCount, len(txns), "next_id", s.nextID)
	return nil
}

func nextIDFor(txns []core.Transaction) int64 {
	var maxID int64
	for _, t := range txns {
		maxID = max(maxID, t.ID)
	}
	return maxID + 1
}

// Add assigns the next id, stamps CreatedAt, appends and persists.
func (s *Store) Add(ctx context.Context, in core.TransactionInput) (core.Transaction, error) {
	in.Item = strings.TrimSpace(in.Item)
	in.Vendor = strings.TrimSpace(in.Vendor)
	if err := in.Validate(); err != nil {
		return core.Transaction{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t := core.Transaction{
		ID:        s.nextID,
		Amount:    in.Amount,
		Category:  in.Category,
		Item:      in.Item,
		Vendor:    in.Vendor,
		Date:      in.Date,
		CreatedAt: s.now().UTC(),
	}

	next := make([]core.Transaction, 0, len(s.txns)+1)
	next = append(next, s.txns...)
	next = append(next, t)
	if err := s.commit(ctx, next); err != nil {
		return core.Transaction{}, err
	}
	s.nextID++

	s.logger.InfoContext(ctx, "Transaction added",
		log.NewFields().WithTransaction(t.ID, t.Amount.String(), string(t.Category)).WithOperation(log.OpCreate).ToSlice()...)
	return t, nil
}

// Update merges patch into the transaction with the given id and persists.
// An unknown id is a no-op and reports found=false.
func (s *Store) Update(ctx context.Context, id int64, patch core.TransactionPatch) (bool, error) {
	patch = patch.Trimmed()
	if err := patch.Validate(); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := slices.IndexFunc(s.txns, func(t core.Transaction) bool { return t.ID == id })
	if idx == -1 {
		return false, nil
	}

	next := slices.Clone(s.txns)
	next[idx] = patch.Apply(next[idx])
	if err := s.commit(ctx, next); err != nil {
		return true, err
	}

	t := next[idx]
	s.logger.InfoContext(ctx, "Transaction updated",
		log.NewFields().WithTransaction(t.ID, t.Amount.String(), string(t.Category)).WithOperation(log.OpUpdate).ToSlice()...)
	return true, nil
}

// Remove deletes the transaction with the given id and persists. The
// collection is persisted even when the id is absent.
func (s *Store) Remove(ctx context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := slices.DeleteFunc(slices.Clone(s.txns), func(t core.Transaction) bool { return t.ID == id })
	found := len(next) != len(s.txns)
	if err := s.commit(ctx, next); err != nil {
		return found, err
	}

	if found {
		s.logger.InfoContext(ctx, "Transaction removed", log.FieldTransactionID, id, log.FieldOperation, log.OpDelete)
	}
	return found, nil
}

// All returns every transaction, most recently added first. This is
// insertion order reversed, not date order.
func (s *Store) All() []core.Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := slices.Clone(s.txns)
	slices.Reverse(out)
	return out
}

// Transactions returns every transaction in insertion order.
func (s *Store) Transactions() []core.Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.txns)
}

// Get returns the transaction with the given id.
func (s *Store) Get(id int64) (core.Transaction, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.txns {
		if t.ID == id {
			return t, true
		}
	}
	return core.Transaction{}, false
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.txns)
}

// commit serializes next in full and saves it; the in-memory collection is
// swapped only once the save succeeded. A persisted payload that differs from
// the one this store last synced means another writer got there first, and
// commit returns ErrStale without saving. Callers hold s.mu.
func (s *Store) commit(ctx context.Context, next []core.Transaction) error {
	current, err := s.persister.Load(ctx)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		s.logger.LogError(ctx, "Failed to read persisted transactions", err, log.OpPersist, nil)
		return fmt.Errorf("persist transactions: %w", err)
	}
	if !bytes.Equal(current, s.synced) {
		s.logger.WarnContext(ctx, "Persisted transactions changed underneath", log.FieldOperation, log.OpPersist)
		return ErrStale
	}

	data, err := encode(next)
	if err != nil {
		return err
	}
	if err := s.persister.Save(ctx, data); err != nil {
		s.logger.LogError(ctx, "Failed to persist transactions", err, log.OpPersist, nil)
		return fmt.Errorf("persist transactions: %w", err)
	}
	s.txns = next
	s.synced = data
	return nil
}
