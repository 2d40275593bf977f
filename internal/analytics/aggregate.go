// Package analytics turns the flat transaction list into rolling-window
// summaries, category breakdowns and detected recurring purchases.
//
// Every function recomputes from the full slice it is given; there is no
// incremental index. Callers needing repeated access go through the snapshot
// cache.
package analytics

import (
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"zenith/internal/core"
)

const (
	// SummaryWindowDays is the trailing window of Summarize and CategoryBreakdown.
	SummaryWindowDays = 30
	// RecurringWindowDays is the trailing window of DetectRecurring.
	RecurringWindowDays = 90
)

// windowStart is the first calendar day included in a trailing window of
// the given length ending today.
func windowStart(now time.Time, days int) core.Date {
	return core.DateOf(now).AddDays(-days)
}

// inWindow filters txns to those dated on or after the window start.
func inWindow(txns []core.Transaction, now time.Time, days int) []core.Transaction {
	start := windowStart(now, days)
	out := make([]core.Transaction, 0, len(txns))
	for _, t := range txns {
		if !t.Date.Before(start) {
			out = append(out, t)
		}
	}
	return out
}

// Summarize returns total, count and average over the trailing 30 days.
func Summarize(txns []core.Transaction, now time.Time) core.Summary {
	window := inWindow(txns, now, SummaryWindowDays)
	total := decimal.Zero
	for _, t := range window {
		total = total.Add(t.Amount)
	}
	return core.Summary{
		Total: core.Round2(total),
		Count: len(window),
		Avg:   core.Average(total, len(window)),
	}
}

// CategoryBreakdown groups the trailing 30 days by category, sorted by
// amount descending. Ties keep first-encountered order and categories without
// transactions are omitted.
func CategoryBreakdown(txns []core.Transaction, now time.Time) []core.CategoryTotal {
	type acc struct {
		amount decimal.Decimal
		count  int
	}
	var order []core.Category
	byCat := make(map[core.Category]*acc)
	for _, t := range inWindow(txns, now, SummaryWindowDays) {
		a, ok := byCat[t.Category]
		if !ok {
			a = &acc{amount: decimal.Zero}
			byCat[t.Category] = a
			order = append(order, t.Category)
		}
		a.amount = a.amount.Add(t.Amount)
		a.count++
	}

	out := make([]core.CategoryTotal, 0, len(order))
	for _, c := range order {
		out = append(out, core.CategoryTotal{
			Category: c,
			Amount:   core.Round2(byCat[c].amount),
			Count:    byCat[c].count,
		})
	}
	slices.SortStableFunc(out, func(a, b core.CategoryTotal) int {
		return b.Amount.Cmp(a.Amount)
	})
	return out
}

// MonthTotal sums transactions dated in now's calendar month and year.
func MonthTotal(txns []core.Transaction, now time.Time) decimal.Decimal {
	year, month, _ := now.Date()
	total := decimal.Zero
	for _, t := range txns {
		if t.Date.Year() == year && t.Date.Month() == month {
			total = total.Add(t.Amount)
		}
	}
	return core.Round2(total)
}
