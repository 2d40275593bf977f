package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"zenith/internal/core"
	"zenith/internal/log"
	"zenith/internal/storage"
)

type failingPersister struct {
	storage.MemoryPersister
	failSave bool
	failLoad error
}

func (f *failingPersister) Load(ctx context.Context) ([]byte, error) {
	if f.failLoad != nil {
		return nil, f.failLoad
	}
	return f.MemoryPersister.Load(ctx)
}

func (f *failingPersister) Save(ctx context.Context, data []byte) error {
	if f.failSave {
		return errors.New("disk full")
	}
	return f.MemoryPersister.Save(ctx, data)
}

var fixedNow = time.Date(2025, time.June, 15, 10, 0, 0, 0, time.UTC)

func newStore(t *testing.T, p storage.Persister) *Store {
	t.Helper()
	s := New(p, log.Discard(), WithClock(func() time.Time { return fixedNow }))
	s.Initialize(context.Background())
	return s
}

func input(item string, amount int64) core.TransactionInput {
	return core.TransactionInput{
		Amount:   decimal.NewFromInt(amount),
		Category: core.Food,
		Item:     item,
		Date:     core.NewDate(2025, time.June, 1),
	}
}

func TestStoreAddAssignsIDsAndPersists(t *testing.T) {
	p := storage.NewMemoryPersister()
	s := newStore(t, p)
	ctx := context.Background()

	first, err := s.Add(ctx, input("Coffee", 200))
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	second, err := s.Add(ctx, input("  Tea  ", 100))
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	if first.ID != 1 || second.ID != 2 {
		t.Fatalf("expected ids 1,2 got %d,%d", first.ID, second.ID)
	}
	if !first.CreatedAt.Equal(fixedNow) {
		t.Fatalf("CreatedAt not stamped: %v", first.CreatedAt)
	}
	if second.Item != "Tea" {
		t.Fatalf("item not trimmed: %q", second.Item)
	}
	if p.Saves() != 2 {
		t.Fatalf("expected write-through on every add, got %d saves", p.Saves())
	}

	// A fresh store over the same persister sees both records and continues the counter
	reloaded := newStore(t, p)
	if reloaded.Len() != 2 {
		t.Fatalf("expected 2 reloaded transactions, got %d", reloaded.Len())
	}
	third, err := reloaded.Add(ctx, input("Cake", 300))
	if err != nil || third.ID != 3 {
		t.Fatalf("expected id 3 after reload, got %d (err=%v)", third.ID, err)
	}
}

func TestStoreAddRejectsInvalidInput(t *testing.T) {
	p := storage.NewMemoryPersister()
	s := newStore(t, p)

	bad := input("   ", 10)
	if _, err := s.Add(context.Background(), bad); !errors.Is(err, core.ErrEmptyItem) {
		t.Fatalf("expected ErrEmptyItem, got %v", err)
	}
	if p.Saves() != 0 || s.Len() != 0 {
		t.Fatalf("invalid input must not be stored")
	}
}

func TestStoreIDsNeverReused(t *testing.T) {
	s := newStore(t, storage.NewMemoryPersister())
	ctx := context.Background()

	a, _ := s.Add(ctx, input("A", 1))
	b, _ := s.Add(ctx, input("B", 1))
	if _, err := s.Remove(ctx, b.ID); err != nil {
		t.Fatalf("remove: %v", err)
	}
	c, _ := s.Add(ctx, input("C", 1))
	if c.ID == a.ID || c.ID == b.ID {
		t.Fatalf("id %d reused", c.ID)
	}
}

func TestStoreAllIsReverseInsertionOrder(t *testing.T) {
	s := newStore(t, storage.NewMemoryPersister())
	ctx := context.Background()

	recent := input("Recent", 1)
	recent.Date = core.NewDate(2025, time.June, 10)
	old := input("Backdated", 1)
	old.Date = core.NewDate(2024, time.January, 1)

	s.Add(ctx, recent)
	s.Add(ctx, old)

	all := s.All()
	if len(all) != 2 || all[0].Item != "Backdated" || all[1].Item != "Recent" {
		t.Fatalf("expected insertion order reversed, got %+v", all)
	}
	if ins := s.Transactions(); ins[0].Item != "Recent" {
		t.Fatalf("expected insertion order, got %+v", ins)
	}
}

func TestStoreUpdate(t *testing.T) {
	p := storage.NewMemoryPersister()
	s := newStore(t, p)
	ctx := context.Background()

	orig, _ := s.Add(ctx, input("Coffee", 200))
	amount := decimal.NewFromInt(250)
	vendor := "Starbucks"

	found, err := s.Update(ctx, orig.ID, core.TransactionPatch{Amount: &amount, Vendor: &vendor})
	if err != nil || !found {
		t.Fatalf("update: found=%v err=%v", found, err)
	}
	got, _ := s.Get(orig.ID)
	if !got.Amount.Equal(amount) || got.Vendor != vendor || got.Item != "Coffee" {
		t.Fatalf("patch not merged: %+v", got)
	}
	if got.ID != orig.ID || !got.CreatedAt.Equal(orig.CreatedAt) {
		t.Fatalf("immutable fields changed: %+v", got)
	}

	saves := p.Saves()
	found, err = s.Update(ctx, 999, core.TransactionPatch{Amount: &amount})
	if err != nil || found {
		t.Fatalf("unknown id should be a silent no-op: found=%v err=%v", found, err)
	}
	if p.Saves() != saves {
		t.Fatalf("no-op update must not persist")
	}
}

func TestStoreRemove(t *testing.T) {
	s := newStore(t, storage.NewMemoryPersister())
	ctx := context.Background()

	a, _ := s.Add(ctx, input("A", 1))
	s.Add(ctx, input("B", 1))

	found, err := s.Remove(ctx, a.ID)
	if err != nil || !found {
		t.Fatalf("remove: found=%v err=%v", found, err)
	}
	if _, ok := s.Get(a.ID); ok {
		t.Fatalf("transaction %d still present", a.ID)
	}

	found, err = s.Remove(ctx, 42)
	if err != nil || found {
		t.Fatalf("absent id should be a no-op: found=%v err=%v", found, err)
	}
	if s.Len() != 1 {
		t.Fatalf("expected 1 transaction left, got %d", s.Len())
	}
}

func TestStoreFailedSaveLeavesStateUntouched(t *testing.T) {
	p := &failingPersister{}
	s := newStore(t, p)
	ctx := context.Background()

	kept, err := s.Add(ctx, input("Kept", 5))
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	p.failSave = true
	if _, err := s.Add(ctx, input("Lost", 5)); err == nil {
		t.Fatalf("expected persist error")
	}
	amount := decimal.NewFromInt(99)
	if _, err := s.Update(ctx, kept.ID, core.TransactionPatch{Amount: &amount}); err == nil {
		t.Fatalf("expected persist error on update")
	}
	if _, err := s.Remove(ctx, kept.ID); err == nil {
		t.Fatalf("expected persist error on remove")
	}

	all := s.All()
	if len(all) != 1 || !all[0].Amount.Equal(decimal.NewFromInt(5)) {
		t.Fatalf("in-memory state changed after failed save: %+v", all)
	}

	p.failSave = false
	next, err := s.Add(ctx, input("Next", 5))
	if err != nil || next.ID != 2 {
		t.Fatalf("expected id 2 after failed add, got %d (err=%v)", next.ID, err)
	}
}

func TestStoreInitializeFailsOpen(t *testing.T) {
	cases := []struct {
		name string
		p    storage.Persister
	}{
		{"absent", storage.NewMemoryPersister()},
		{"corrupt", storage.NewMemoryPersisterWith([]byte(`{not json`))},
		{"wrong shape", storage.NewMemoryPersisterWith([]byte(`{"id":1}`))},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := newStore(t, tc.p)
			if s.Len() != 0 {
				t.Fatalf("expected empty store, got %d", s.Len())
			}
			got, err := s.Add(context.Background(), input("First", 1))
			if err != nil || got.ID != 1 {
				t.Fatalf("expected id counter reset to 1, got %d (err=%v)", got.ID, err)
			}
		})
	}
}

func TestStoreInitializeNullCollection(t *testing.T) {
	s := newStore(t, storage.NewMemoryPersisterWith([]byte(`null`)))
	if s.Len() != 0 {
		t.Fatalf("expected empty store")
	}
}

func TestStoreInitializeLoadErrorStartsEmpty(t *testing.T) {
	p := &failingPersister{failLoad: errors.New("io error")}
	s := newStore(t, p)
	if s.Len() != 0 {
		t.Fatalf("expected empty store, got %d", s.Len())
	}

	// Writes are refused while the backend cannot be read.
	if _, err := s.Add(context.Background(), input("First", 1)); err == nil || p.Saves() != 0 {
		t.Fatalf("expected add to fail without saving, err=%v saves=%d", err, p.Saves())
	}

	p.failLoad = nil
	got, err := s.Add(context.Background(), input("First", 1))
	if err != nil || got.ID != 1 {
		t.Fatalf("expected id 1 once the backend recovers, got %d (err=%v)", got.ID, err)
	}
}

func TestStoreReloadKeepsStateOnFailure(t *testing.T) {
	p := &failingPersister{}
	s := newStore(t, p)
	ctx := context.Background()

	for _, item := range []string{"A", "B", "C"} {
		if _, err := s.Add(ctx, input(item, 1)); err != nil {
			t.Fatalf("add %s: %v", item, err)
		}
	}

	p.failLoad = errors.New("connection reset")
	if err := s.Reload(ctx); err == nil {
		t.Fatal("expected reload error")
	}
	if s.Len() != 3 {
		t.Fatalf("failed reload dropped records: %d left", s.Len())
	}

	p.failLoad = nil
	d, err := s.Add(ctx, input("D", 1))
	if err != nil || d.ID != 4 {
		t.Fatalf("expected id 4, got %d (err=%v)", d.ID, err)
	}
	if got := newStore(t, p).Len(); got != 4 {
		t.Fatalf("expected 4 persisted transactions, got %d", got)
	}
}

func TestStoreReloadRejectsCorruptPayload(t *testing.T) {
	p := storage.NewMemoryPersister()
	s := newStore(t, p)
	ctx := context.Background()
	s.Add(ctx, input("A", 1))

	p.Save(ctx, []byte(`{not json`))
	if err := s.Reload(ctx); err == nil {
		t.Fatal("expected decode error")
	}
	if s.Len() != 1 {
		t.Fatalf("expected state kept, got %d", s.Len())
	}
}

func TestStoreReloadPicksUpRemoteWrites(t *testing.T) {
	p := storage.NewMemoryPersister()
	ctx := context.Background()
	local := newStore(t, p)
	remote := newStore(t, p)

	if _, err := remote.Add(ctx, input("Remote", 1)); err != nil {
		t.Fatalf("remote add: %v", err)
	}
	if err := local.Reload(ctx); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if local.Len() != 1 {
		t.Fatalf("expected remote write, got %d", local.Len())
	}
	next, err := local.Add(ctx, input("Local", 1))
	if err != nil || next.ID != 2 {
		t.Fatalf("expected id 2, got %d (err=%v)", next.ID, err)
	}
}

func TestStoreRefusesStaleWrite(t *testing.T) {
	p := storage.NewMemoryPersister()
	ctx := context.Background()
	a := newStore(t, p)
	b := newStore(t, p)

	if _, err := a.Add(ctx, input("From A", 1)); err != nil {
		t.Fatalf("add a: %v", err)
	}
	saves := p.Saves()

	if _, err := b.Add(ctx, input("From B", 1)); !errors.Is(err, ErrStale) {
		t.Fatalf("expected ErrStale, got %v", err)
	}
	if _, err := b.Remove(ctx, 1); !errors.Is(err, ErrStale) {
		t.Fatalf("expected ErrStale on remove, got %v", err)
	}
	if p.Saves() != saves || b.Len() != 0 {
		t.Fatalf("stale writer touched state: saves=%d len=%d", p.Saves(), b.Len())
	}

	if err := b.Reload(ctx); err != nil {
		t.Fatalf("reload: %v", err)
	}
	got, err := b.Add(ctx, input("From B", 1))
	if err != nil || got.ID != 2 {
		t.Fatalf("expected id 2 after reload, got %d (err=%v)", got.ID, err)
	}
	if n := newStore(t, p).Len(); n != 2 {
		t.Fatalf("expected both writes persisted, got %d", n)
	}
}

func TestStoreUpdateTrimsText(t *testing.T) {
	s := newStore(t, storage.NewMemoryPersister())
	ctx := context.Background()
	orig, _ := s.Add(ctx, input("Coffee", 1))

	item, vendor := "  Flat white ", "\tBlue Bottle  "
	if _, err := s.Update(ctx, orig.ID, core.TransactionPatch{Item: &item, Vendor: &vendor}); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, _ := s.Get(orig.ID)
	if got.Item != "Flat white" || got.Vendor != "Blue Bottle" {
		t.Fatalf("expected trimmed fields, got %q / %q", got.Item, got.Vendor)
	}
	if item != "  Flat white " {
		t.Fatalf("caller's string modified: %q", item)
	}
}
