package advisor

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"zenith/internal/core"
)

// DefaultCurrencySymbol prefixes every amount in generated text.
const DefaultCurrencySymbol = "₹"

// listLimit caps the category and recurring rows shown in prompts and facts.
const listLimit = 5

// Formatter renders snapshot figures as text. It never computes them.
type Formatter struct {
	Symbol string
}

func (f Formatter) Money(d decimal.Decimal) string {
	return f.Symbol + d.String()
}

// CategoryLines lists the top categories, or "None recorded".
func (f Formatter) CategoryLines(cats []core.CategoryTotal) string {
	if len(cats) == 0 {
		return "None recorded"
	}
	lines := make([]string, 0, listLimit)
	for _, c := range cats[:min(len(cats), listLimit)] {
		lines = append(lines, fmt.Sprintf("  • %s: %s (%d transactions)", c.Category, f.Money(c.Amount), c.Count))
	}
	return strings.Join(lines, "\n")
}

// RecurringLines lists the most frequent recurring groups.
func (f Formatter) RecurringLines(groups []core.RecurringGroup) string {
	if len(groups) == 0 {
		return "No recurring purchases detected"
	}
	lines := make([]string, 0, listLimit)
	for _, g := range groups[:min(len(groups), listLimit)] {
		lines = append(lines, fmt.Sprintf("  • %q [%s] - %dx, %s total", g.Name, g.Category, g.Count, f.Money(g.Total)))
	}
	return strings.Join(lines, "\n")
}

// TransactionLines numbers recent transactions one per line.
func (f Formatter) TransactionLines(txns []core.Transaction) string {
	lines := make([]string, 0, len(txns))
	for i, t := range txns {
		at := ""
		if t.Vendor != "" {
			at = " at " + t.Vendor
		}
		lines = append(lines, fmt.Sprintf("%d. %s%s [%s]: %s", i+1, t.Item, at, t.Category, f.Money(t.Amount)))
	}
	return strings.Join(lines, "\n")
}
