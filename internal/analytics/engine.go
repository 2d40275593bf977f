package analytics

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"zenith/internal/core"
	"zenith/internal/log"
)

// Source supplies the full transaction set in insertion order.
type Source interface {
	Transactions() []core.Transaction
}

// Engine binds the analytics functions to a transaction source and a clock.
type Engine struct {
	source Source
	now    func() time.Time
	logger *log.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the wall clock used for window boundaries.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func NewEngine(source Source, logger *log.Logger, opts ...Option) *Engine {
	e := &Engine{
		source: source,
		now:    time.Now,
		logger: logger.WithComponent(log.ComponentAnalytics),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Summary() core.Summary {
	return Summarize(e.source.Transactions(), e.now())
}

func (e *Engine) Categories() []core.CategoryTotal {
	return CategoryBreakdown(e.source.Transactions(), e.now())
}

func (e *Engine) CurrentMonthTotal() decimal.Decimal {
	return MonthTotal(e.source.Transactions(), e.now())
}

func (e *Engine) Recurring() []core.RecurringGroup {
	return DetectRecurring(e.source.Transactions(), e.now())
}

// Snapshot computes every figure from one read of the source, so the parts
// are mutually consistent.
func (e *Engine) Snapshot(ctx context.Context) (*core.Snapshot, error) {
	txns := e.source.Transactions()
	now := e.now()

	snap := &core.Snapshot{
		Last30Days:       Summarize(txns, now),
		MonthlyTotal:     MonthTotal(txns, now),
		Categories:       CategoryBreakdown(txns, now),
		Recurring:        DetectRecurring(txns, now),
		TransactionCount: len(txns),
	}

	e.logger.DebugContext(ctx, "Snapshot computed",
		log.FieldCount, snap.TransactionCount,
		"recurring_groups", len(snap.Recurring),
		"categories", len(snap.Categories))
	return snap, nil
}
