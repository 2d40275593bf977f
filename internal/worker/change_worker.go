// Package worker keeps a process's ledger in step with writes made by other
// processes sharing the same backend.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"zenith/internal/amqp"
	"zenith/internal/log"
)

// ChangeSource delivers ledger change notifications until ctx is done.
type ChangeSource interface {
	ConsumeLedgerChanges(ctx context.Context, handler func(*amqp.LedgerChangeMessage) error) error
}

// Ledger applies remote changes locally.
type Ledger interface {
	HandleLedgerChange(ctx context.Context, msg *amqp.LedgerChangeMessage) error
	Reload(ctx context.Context) error
}

// Config holds configuration for the change worker
type Config struct {
	// ReloadInterval re-reads the backend periodically as a backstop for
	// lost notifications. Zero disables it.
	ReloadInterval time.Duration
}

// Stats counts the work done so far.
type Stats struct {
	Handled int64
	Failed  int64
	Reloads int64
}

// ChangeWorker consumes ledger change notifications and, optionally,
// reloads the ledger on a timer.
type ChangeWorker struct {
	source ChangeSource // nil when notifications are disabled
	ledger Ledger
	config Config
	logger *log.Logger

	handled int64
	failed  int64
	reloads int64

	// Lifecycle management
	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewChangeWorker(source ChangeSource, ledger Ledger, config Config, logger *log.Logger) *ChangeWorker {
	return &ChangeWorker{
		source: source,
		ledger: ledger,
		config: config,
		logger: logger.WithComponent(log.ComponentWorker),
	}
}

// Enabled reports whether Start would do anything.
func (w *ChangeWorker) Enabled() bool {
	return w.source != nil || w.config.ReloadInterval > 0
}

// Start launches the consumer and the reload loop. Returns an error if
// already running.
func (w *ChangeWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return errors.New("change worker is already running")
	}

	ctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.running = true

	if w.source != nil {
		w.wg.Add(1)
		go w.consume(ctx)
	}
	if w.config.ReloadInterval > 0 {
		w.wg.Add(1)
		go w.reloadLoop(ctx)
	}

	w.logger.InfoContext(ctx, "Change worker started",
		"notifications", w.source != nil,
		"reload_interval", w.config.ReloadInterval)
	return nil
}

// Stop cancels both loops and waits for them, or for ctx.
func (w *ChangeWorker) Stop(ctx context.Context) error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.cancel()
	w.running = false
	w.mu.Unlock()

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s := w.Stats()
		w.logger.InfoContext(ctx, "Change worker stopped gracefully",
			"handled", s.Handled, "failed", s.Failed, "reloads", s.Reloads)
		return nil
	case <-ctx.Done():
		w.logger.WarnContext(ctx, "Change worker stop timed out")
		return ctx.Err()
	}
}

// IsRunning returns whether the worker is currently running
func (w *ChangeWorker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *ChangeWorker) Stats() Stats {
	return Stats{
		Handled: atomic.LoadInt64(&w.handled),
		Failed:  atomic.LoadInt64(&w.failed),
		Reloads: atomic.LoadInt64(&w.reloads),
	}
}

func (w *ChangeWorker) consume(ctx context.Context) {
	defer w.wg.Done()

	err := w.source.ConsumeLedgerChanges(ctx, func(msg *amqp.LedgerChangeMessage) error {
		return w.handle(ctx, msg)
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		w.logger.ErrorContext(ctx, "Ledger change consumer stopped", log.FieldError, err)
	}
}

func (w *ChangeWorker) handle(ctx context.Context, msg *amqp.LedgerChangeMessage) error {
	if err := w.ledger.HandleLedgerChange(ctx, msg); err != nil {
		atomic.AddInt64(&w.failed, 1)
		return fmt.Errorf("handle ledger change: %w", err)
	}
	atomic.AddInt64(&w.handled, 1)
	return nil
}

func (w *ChangeWorker) reloadLoop(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.config.ReloadInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.ledger.Reload(ctx); err != nil {
				atomic.AddInt64(&w.failed, 1)
				continue
			}
			atomic.AddInt64(&w.reloads, 1)
		}
	}
}
