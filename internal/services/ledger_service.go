package services

import (
	"context"
	"errors"
	"fmt"

	"zenith/internal/amqp"
	"zenith/internal/core"
	"zenith/internal/ledger"
	"zenith/internal/log"
)

// Invalidator drops a cached derived view.
type Invalidator interface {
	Invalidate()
}

// ChangePublisher announces store mutations to other processes.
type ChangePublisher interface {
	PublishLedgerChange(ctx context.Context, operation string, id int64) error
	Close() error
}

// LedgerService orchestrates store mutations: persist first, then
// invalidate the snapshot cache, then publish a change notification.
// A failed publish never fails the mutation.
type LedgerService struct {
	store     *ledger.Store
	cache     Invalidator
	publisher ChangePublisher
	logger    *log.Logger
}

// NewLedgerService wires the store to its cache. publisher may be nil when
// change notifications are disabled.
func NewLedgerService(store *ledger.Store, cache Invalidator, publisher ChangePublisher, logger *log.Logger) *LedgerService {
	return &LedgerService{
		store:     store,
		cache:     cache,
		publisher: publisher,
		logger:    logger.WithComponent(log.ComponentLedger),
	}
}

// Add saves a new transaction and returns it with its assigned id.
func (s *LedgerService) Add(ctx context.Context, in core.TransactionInput) (core.Transaction, error) {
	var t core.Transaction
	err := s.write(ctx, func() (err error) {
		t, err = s.store.Add(ctx, in)
		return err
	})
	if err != nil {
		return core.Transaction{}, err
	}
	s.changed(ctx, amqp.ChangeCreate, t.ID)
	return t, nil
}

// Update applies patch to the transaction with id. It reports false when
// no such transaction exists.
func (s *LedgerService) Update(ctx context.Context, id int64, patch core.TransactionPatch) (bool, error) {
	var found bool
	err := s.write(ctx, func() (err error) {
		found, err = s.store.Update(ctx, id, patch)
		return err
	})
	if err != nil {
		return false, err
	}
	if found {
		s.changed(ctx, amqp.ChangeUpdate, id)
	}
	return found, nil
}

// Remove deletes the transaction with id. It reports false when no such
// transaction existed.
func (s *LedgerService) Remove(ctx context.Context, id int64) (bool, error) {
	var found bool
	err := s.write(ctx, func() (err error) {
		found, err = s.store.Remove(ctx, id)
		return err
	})
	if err != nil {
		return false, err
	}
	if found {
		s.changed(ctx, amqp.ChangeDelete, id)
	}
	return found, nil
}

// All lists transactions newest first.
func (s *LedgerService) All() []core.Transaction {
	return s.store.All()
}

func (s *LedgerService) Get(id int64) (core.Transaction, bool) {
	return s.store.Get(id)
}

// HandleLedgerChange reacts to a change made by any process sharing the
// backend. Remote writes land in the shared backend, so the local store is
// reloaded before the cache is dropped.
func (s *LedgerService) HandleLedgerChange(ctx context.Context, msg *amqp.LedgerChangeMessage) error {
	if msg == nil {
		return errors.New("nil ledger change message")
	}
	if err := s.Reload(ctx); err != nil {
		return err
	}
	s.logger.DebugContext(ctx, "Applied ledger change",
		log.FieldOperation, msg.Operation,
		log.FieldTransactionID, msg.ID)
	return nil
}

// Reload re-reads the collection from the backend and drops the cached
// snapshot. On failure the local collection and cache are left as they were.
func (s *LedgerService) Reload(ctx context.Context) error {
	if err := s.store.Reload(ctx); err != nil {
		s.logger.LogError(ctx, "Failed to reload transactions", err, log.OpLoad, nil)
		return err
	}
	s.cache.Invalidate()
	return nil
}

// write runs op, and once more after a reload when another process saved
// the collection first.
func (s *LedgerService) write(ctx context.Context, op func() error) error {
	err := op()
	if !errors.Is(err, ledger.ErrStale) {
		return err
	}
	s.logger.InfoContext(ctx, "Ledger changed by another writer, reloading before retry")
	if rerr := s.Reload(ctx); rerr != nil {
		return errors.Join(err, rerr)
	}
	return op()
}

func (s *LedgerService) changed(ctx context.Context, operation string, id int64) {
	s.cache.Invalidate()

	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishLedgerChange(ctx, operation, id); err != nil {
		s.logger.LogError(ctx, "Failed to publish ledger change", err, operation,
			log.LogFields{log.FieldTransactionID: id})
	}
}

// Close closes the change publisher.
func (s *LedgerService) Close() error {
	if s.publisher == nil {
		return nil
	}
	if err := s.publisher.Close(); err != nil {
		return fmt.Errorf("close ledger service: %w", err)
	}
	return nil
}
