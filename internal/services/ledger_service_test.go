package services

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"zenith/internal/amqp"
	"zenith/internal/core"
	"zenith/internal/ledger"
	"zenith/internal/log"
	"zenith/internal/storage"
)

type countingInvalidator struct {
	n int
}

func (c *countingInvalidator) Invalidate() { c.n++ }

type published struct {
	op string
	id int64
}

type recordingPublisher struct {
	msgs   []published
	err    error
	closed bool
}

func (p *recordingPublisher) PublishLedgerChange(_ context.Context, op string, id int64) error {
	p.msgs = append(p.msgs, published{op, id})
	return p.err
}

func (p *recordingPublisher) Close() error {
	p.closed = true
	return nil
}

func newService(t *testing.T, pub ChangePublisher) (*LedgerService, *countingInvalidator, *storage.MemoryPersister) {
	t.Helper()
	persister := storage.NewMemoryPersister()
	store := ledger.New(persister, log.Discard())
	store.Initialize(context.Background())
	inv := &countingInvalidator{}
	return NewLedgerService(store, inv, pub, log.Discard()), inv, persister
}

func input(amount string) core.TransactionInput {
	return core.TransactionInput{
		Amount:   decimal.RequireFromString(amount),
		Category: core.Food,
		Item:     "latte",
		Vendor:   "Starbucks",
		Date:     core.NewDate(2025, 6, 1),
	}
}

func TestLedgerService_MutationsInvalidateAndPublish(t *testing.T) {
	ctx := context.Background()
	pub := &recordingPublisher{}
	svc, inv, _ := newService(t, pub)

	created, err := svc.Add(ctx, input("150"))
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	amount := decimal.RequireFromString("175")
	if found, err := svc.Update(ctx, created.ID, core.TransactionPatch{Amount: &amount}); err != nil || !found {
		t.Fatalf("Update: found=%v err=%v", found, err)
	}
	if found, err := svc.Remove(ctx, created.ID); err != nil || !found {
		t.Fatalf("Remove: found=%v err=%v", found, err)
	}

	if inv.n != 3 {
		t.Errorf("expected 3 invalidations, got %d", inv.n)
	}
	want := []published{
		{amqp.ChangeCreate, created.ID},
		{amqp.ChangeUpdate, created.ID},
		{amqp.ChangeDelete, created.ID},
	}
	if len(pub.msgs) != len(want) {
		t.Fatalf("expected %d messages, got %v", len(want), pub.msgs)
	}
	for i := range want {
		if pub.msgs[i] != want[i] {
			t.Errorf("message %d = %v, want %v", i, pub.msgs[i], want[i])
		}
	}
}

func TestLedgerService_MissingIDDoesNotPublish(t *testing.T) {
	ctx := context.Background()
	pub := &recordingPublisher{}
	svc, _, _ := newService(t, pub)

	item := "tea"
	if found, err := svc.Update(ctx, 42, core.TransactionPatch{Item: &item}); err != nil || found {
		t.Fatalf("Update missing: found=%v err=%v", found, err)
	}
	if found, err := svc.Remove(ctx, 42); err != nil || found {
		t.Fatalf("Remove missing: found=%v err=%v", found, err)
	}
	if len(pub.msgs) != 0 {
		t.Fatalf("expected no messages, got %v", pub.msgs)
	}
}

func TestLedgerService_ValidationErrorLeavesCacheAlone(t *testing.T) {
	svc, inv, _ := newService(t, nil)

	if _, err := svc.Add(context.Background(), input("-1")); !errors.Is(err, core.ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	if inv.n != 0 {
		t.Fatalf("expected no invalidation, got %d", inv.n)
	}
}

func TestLedgerService_PublishFailureDoesNotFailMutation(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("broker down")}
	svc, inv, _ := newService(t, pub)

	if _, err := svc.Add(context.Background(), input("10")); err != nil {
		t.Fatalf("Add should succeed despite publish failure: %v", err)
	}
	if inv.n != 1 || len(svc.All()) != 1 {
		t.Fatalf("expected saved and invalidated, got inv=%d len=%d", inv.n, len(svc.All()))
	}
}

func TestLedgerService_HandleLedgerChangeReloads(t *testing.T) {
	ctx := context.Background()
	svc, inv, persister := newService(t, nil)

	// another process writes through the shared backend
	other := ledger.New(persister, log.Discard())
	other.Initialize(ctx)
	if _, err := other.Add(ctx, input("99")); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if len(svc.All()) != 0 {
		t.Fatal("local store should not see the remote write yet")
	}

	if err := svc.HandleLedgerChange(ctx, amqp.NewLedgerChangeMessage(amqp.ChangeCreate, 1)); err != nil {
		t.Fatalf("HandleLedgerChange: %v", err)
	}
	if len(svc.All()) != 1 {
		t.Fatalf("expected remote write after reload, got %d", len(svc.All()))
	}
	if inv.n != 1 {
		t.Fatalf("expected cache invalidation, got %d", inv.n)
	}
}

// flakyPersister fails the next Load when loadErr is set.
type flakyPersister struct {
	*storage.MemoryPersister
	loadErr error
}

func (f *flakyPersister) Load(ctx context.Context) ([]byte, error) {
	if err := f.loadErr; err != nil {
		f.loadErr = nil
		return nil, err
	}
	return f.MemoryPersister.Load(ctx)
}

func TestLedgerService_FailedReloadKeepsRecords(t *testing.T) {
	ctx := context.Background()
	persister := &flakyPersister{MemoryPersister: storage.NewMemoryPersister()}
	store := ledger.New(persister, log.Discard())
	store.Initialize(ctx)
	inv := &countingInvalidator{}
	svc := NewLedgerService(store, inv, nil, log.Discard())

	for _, amount := range []string{"1", "2", "3"} {
		if _, err := svc.Add(ctx, input(amount)); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}
	invalidations := inv.n

	persister.loadErr = errors.New("connection reset")
	if err := svc.Reload(ctx); err == nil {
		t.Fatal("expected reload error")
	}
	if inv.n != invalidations {
		t.Fatalf("failed reload should not drop the cache")
	}
	if len(svc.All()) != 3 {
		t.Fatalf("failed reload dropped records: %d left", len(svc.All()))
	}

	created, err := svc.Add(ctx, input("4"))
	if err != nil {
		t.Fatalf("Add after failed reload: %v", err)
	}
	if created.ID != 4 {
		t.Fatalf("expected id 4, got %d", created.ID)
	}

	fresh := ledger.New(persister, log.Discard())
	fresh.Initialize(ctx)
	if fresh.Len() != 4 {
		t.Fatalf("expected 4 persisted transactions, got %d", fresh.Len())
	}
}

func TestLedgerService_HandleLedgerChangeReportsReloadFailure(t *testing.T) {
	ctx := context.Background()
	persister := &flakyPersister{MemoryPersister: storage.NewMemoryPersister()}
	store := ledger.New(persister, log.Discard())
	store.Initialize(ctx)
	svc := NewLedgerService(store, &countingInvalidator{}, nil, log.Discard())

	persister.loadErr = errors.New("connection reset")
	if err := svc.HandleLedgerChange(ctx, amqp.NewLedgerChangeMessage(amqp.ChangeCreate, 1)); err == nil {
		t.Fatal("expected the reload failure to be reported")
	}
}

func TestLedgerService_ConcurrentWritersShareBackend(t *testing.T) {
	ctx := context.Background()
	persister := storage.NewMemoryPersister()
	newSvc := func() *LedgerService {
		store := ledger.New(persister, log.Discard())
		store.Initialize(ctx)
		return NewLedgerService(store, &countingInvalidator{}, nil, log.Discard())
	}
	a, b := newSvc(), newSvc()

	fromA, err := a.Add(ctx, input("10"))
	if err != nil {
		t.Fatalf("Add a: %v", err)
	}
	// b has not seen a's write yet
	fromB, err := b.Add(ctx, input("20"))
	if err != nil {
		t.Fatalf("Add b: %v", err)
	}
	if fromA.ID == fromB.ID {
		t.Fatalf("both writers assigned id %d", fromA.ID)
	}

	item := "espresso"
	if found, err := a.Update(ctx, fromB.ID, core.TransactionPatch{Item: &item}); err != nil || !found {
		t.Fatalf("Update of the other writer's record: found=%v err=%v", found, err)
	}

	fresh := ledger.New(persister, log.Discard())
	fresh.Initialize(ctx)
	if fresh.Len() != 2 {
		t.Fatalf("expected both records persisted, got %d", fresh.Len())
	}
	if got, _ := fresh.Get(fromB.ID); got.Item != "espresso" {
		t.Fatalf("expected update persisted, got %+v", got)
	}
}

func TestLedgerService_Close(t *testing.T) {
	t.Run("nil publisher", func(t *testing.T) {
		svc, _, _ := newService(t, nil)
		if err := svc.Close(); err != nil {
			t.Fatalf("Close should not return error with nil publisher: %v", err)
		}
	})

	t.Run("closes publisher", func(t *testing.T) {
		pub := &recordingPublisher{}
		svc, _, _ := newService(t, pub)
		if err := svc.Close(); err != nil {
			t.Fatalf("Close: %v", err)
		}
		if !pub.closed {
			t.Fatal("expected publisher to be closed")
		}
	})
}
