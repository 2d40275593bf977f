package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"zenith/internal/amqp"
	"zenith/internal/log"
)

type fakeSource struct {
	msgs []*amqp.LedgerChangeMessage
}

func (f *fakeSource) ConsumeLedgerChanges(ctx context.Context, handler func(*amqp.LedgerChangeMessage) error) error {
	for _, m := range f.msgs {
		_ = handler(m)
	}
	<-ctx.Done()
	return ctx.Err()
}

type fakeLedger struct {
	mu      sync.Mutex
	seen    []string
	failOn    string
	reloadErr error
	reloads   int64
}

func (f *fakeLedger) HandleLedgerChange(_ context.Context, msg *amqp.LedgerChangeMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seen = append(f.seen, msg.Operation)
	if msg.Operation == f.failOn {
		return errors.New("boom")
	}
	return nil
}

func (f *fakeLedger) Reload(context.Context) error {
	atomic.AddInt64(&f.reloads, 1)
	return f.reloadErr
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestChangeWorker_ConsumesChanges(t *testing.T) {
	source := &fakeSource{msgs: []*amqp.LedgerChangeMessage{
		amqp.NewLedgerChangeMessage(amqp.ChangeCreate, 1),
		amqp.NewLedgerChangeMessage(amqp.ChangeUpdate, 1),
		amqp.NewLedgerChangeMessage(amqp.ChangeDelete, 1),
	}}
	ledger := &fakeLedger{failOn: amqp.ChangeUpdate}
	w := NewChangeWorker(source, ledger, Config{}, log.Discard())

	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitFor(t, func() bool { s := w.Stats(); return s.Handled+s.Failed == 3 })

	if err := w.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if s := w.Stats(); s.Handled != 2 || s.Failed != 1 || s.Reloads != 0 {
		t.Errorf("stats = %+v", s)
	}
	if w.IsRunning() {
		t.Error("worker still running after Stop")
	}
}

func TestChangeWorker_PeriodicReload(t *testing.T) {
	ledger := &fakeLedger{}
	w := NewChangeWorker(nil, ledger, Config{ReloadInterval: 10 * time.Millisecond}, log.Discard())
	if !w.Enabled() {
		t.Fatal("worker with reload interval should be enabled")
	}

	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitFor(t, func() bool { return atomic.LoadInt64(&ledger.reloads) >= 2 })
	if err := w.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if w.Stats().Reloads < 2 {
		t.Errorf("Reloads = %d", w.Stats().Reloads)
	}
}

func TestChangeWorker_FailedReloadCounted(t *testing.T) {
	ledger := &fakeLedger{reloadErr: errors.New("connection reset")}
	w := NewChangeWorker(nil, ledger, Config{ReloadInterval: 10 * time.Millisecond}, log.Discard())

	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitFor(t, func() bool { return atomic.LoadInt64(&ledger.reloads) >= 2 })
	if err := w.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if s := w.Stats(); s.Reloads != 0 || s.Failed < 2 {
		t.Errorf("stats = %+v", s)
	}
}

func TestChangeWorker_Lifecycle(t *testing.T) {
	w := NewChangeWorker(nil, &fakeLedger{}, Config{}, log.Discard())
	if w.Enabled() {
		t.Error("worker without source or reload should be disabled")
	}
	if err := w.Stop(context.Background()); err != nil {
		t.Errorf("Stop before Start: %v", err)
	}

	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := w.Start(context.Background()); err == nil {
		t.Error("second Start should fail")
	}
	if err := w.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := w.Start(context.Background()); err != nil {
		t.Errorf("restart after Stop: %v", err)
	}
	w.Stop(context.Background())
}
