package analytics

import (
	"cmp"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"zenith/internal/core"
)

// MinRecurringCount is the minimum group size flagged as recurring.
const MinRecurringCount = 2

// RecurrenceKey is the identity recurring purchases are grouped by: the
// vendor if present, else the item, else the category, lower-cased.
//
// Vendor dominates, so one vendor seen under two categories forms a single
// group reporting the first member's category.
func RecurrenceKey(t core.Transaction) string {
	if v := strings.TrimSpace(t.Vendor); v != "" {
		return strings.ToLower(v)
	}
	if item := strings.TrimSpace(t.Item); item != "" {
		return strings.ToLower(item)
	}
	return strings.ToLower(string(t.Category))
}

// DetectRecurring groups the trailing 90 days by RecurrenceKey and returns
// groups with at least two members, most frequent first. Ties keep
// first-encountered order.
func DetectRecurring(txns []core.Transaction, now time.Time) []core.RecurringGroup {
	var order []string
	groups := make(map[string][]core.Transaction)
	for _, t := range inWindow(txns, now, RecurringWindowDays) {
		key := RecurrenceKey(t)
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], t)
	}

	out := make([]core.RecurringGroup, 0)
	for _, key := range order {
		members := groups[key]
		if len(members) < MinRecurringCount {
			continue
		}
		total := decimal.Zero
		for _, t := range members {
			total = total.Add(t.Amount)
		}
		out = append(out, core.RecurringGroup{
			Name:     key,
			Category: members[0].Category,
			Count:    len(members),
			Total:    core.Round2(total),
			Avg:      core.Average(total, len(members)),
		})
	}
	slices.SortStableFunc(out, byCountDesc)
	return out
}

// byCountDesc orders recurring groups by count, most frequent first.
func byCountDesc(a, b core.RecurringGroup) int {
	return cmp.Compare(b.Count, a.Count)
}
