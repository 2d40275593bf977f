package advisor

import (
	"fmt"
	"strings"

	"zenith/internal/core"
)

// Intent is a financial question category with a pre-computed answer.
type Intent int

const (
	IntentNone Intent = iota
	IntentScopedTotal
	IntentTotal
	IntentRecurring
	IntentAverage
	IntentCategories
	IntentCount
	IntentCurrentMonth
)

var intentNames = map[Intent]string{
	IntentNone:         "none",
	IntentScopedTotal:  "scoped_total",
	IntentTotal:        "total",
	IntentRecurring:    "recurring",
	IntentAverage:      "average",
	IntentCategories:   "categories",
	IntentCount:        "count",
	IntentCurrentMonth: "current_month",
}

func (i Intent) String() string {
	if name, ok := intentNames[i]; ok {
		return name
	}
	return fmt.Sprintf("intent(%d)", int(i))
}

func (i Intent) MarshalText() ([]byte, error) {
	return []byte(i.String()), nil
}

var (
	spendWords     = []string{"total", "spent", "spend", "how much"}
	scopeWords     = []string{"month", "30", "last", "overall"}
	recurringWords = []string{"recurring", "repeat", "regular", "subscription"}
	averageWords   = []string{"average", "avg", "mean"}
	categoryWords  = []string{"categor", "most", "top", "breakdown", "where"}
	countNouns     = []string{"transaction", "purchase", "expense"}
	monthWords     = []string{"this month", "current month"}
)

// intentRules are tested in order; the first match wins. Overlapping
// triggers resolve by position, not specificity.
var intentRules = []struct {
	intent Intent
	match  func(q string) bool
}{
	{IntentScopedTotal, func(q string) bool { return containsAny(q, spendWords) && containsAny(q, scopeWords) }},
	{IntentTotal, func(q string) bool { return containsAny(q, spendWords) }},
	{IntentRecurring, func(q string) bool { return containsAny(q, recurringWords) }},
	{IntentAverage, func(q string) bool { return containsAny(q, averageWords) }},
	{IntentCategories, func(q string) bool { return containsAny(q, categoryWords) }},
	{IntentCount, func(q string) bool { return strings.Contains(q, "how many") && containsAny(q, countNouns) }},
	{IntentCurrentMonth, func(q string) bool { return containsAny(q, monthWords) }},
}

// Classify maps a question to the first matching intent.
func Classify(question string) Intent {
	q := strings.ToLower(question)
	for _, rule := range intentRules {
		if rule.match(q) {
			return rule.intent
		}
	}
	return IntentNone
}

// Fact renders the direct answer for intent using only figures already in
// snap. IntentNone yields an empty string.
func Fact(intent Intent, snap *core.Snapshot, f Formatter) string {
	s := snap.Last30Days
	switch intent {
	case IntentScopedTotal:
		return fmt.Sprintf("DIRECT ANSWER: Total spending in the last 30 days is exactly %s across %d transactions.", f.Money(s.Total), s.Count)
	case IntentTotal:
		return fmt.Sprintf("DIRECT ANSWER: Total spending in the last 30 days is %s.", f.Money(s.Total))
	case IntentRecurring:
		if len(snap.Recurring) == 0 {
			return "DIRECT ANSWER: No recurring purchases detected in the last 90 days."
		}
		return "DIRECT ANSWER: Recurring purchases:\n" + f.RecurringLines(snap.Recurring)
	case IntentAverage:
		return fmt.Sprintf("DIRECT ANSWER: Average spending per transaction is %s.", f.Money(s.Avg))
	case IntentCategories:
		return "DIRECT ANSWER: Spending by category:\n" + f.CategoryLines(snap.Categories)
	case IntentCount:
		return fmt.Sprintf("DIRECT ANSWER: You have %d transactions in the last 30 days.", s.Count)
	case IntentCurrentMonth:
		return fmt.Sprintf("DIRECT ANSWER: Spending this calendar month is %s.", f.Money(snap.MonthlyTotal))
	default:
		return ""
	}
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}
