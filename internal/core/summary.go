package core

import "github.com/shopspring/decimal"

// Summary is a rolling-window spending rollup.
type Summary struct {
	Total decimal.Decimal `json:"total"`
	Count int             `json:"count"`
	Avg   decimal.Decimal `json:"avg"`
}

// CategoryTotal is the spend attributed to one category.
type CategoryTotal struct {
	Category Category        `json:"category"`
	Amount   decimal.Decimal `json:"amount"`
	Count    int             `json:"count"`
}

// RecurringGroup is a rollup of two or more purchases sharing a normalized
// vendor/item/category key. Category is the first member's category.
type RecurringGroup struct {
	Name     string          `json:"name"`
	Category Category        `json:"category"`
	Count    int             `json:"count"`
	Total    decimal.Decimal `json:"total"`
	Avg      decimal.Decimal `json:"avg"`
}

// Snapshot bundles every figure the advisor may cite.
type Snapshot struct {
	Last30Days       Summary          `json:"last30Days"`
	MonthlyTotal     decimal.Decimal  `json:"monthlyTotal"`
	Categories       []CategoryTotal  `json:"categories"`
	Recurring        []RecurringGroup `json:"recurring"`
	TransactionCount int              `json:"transactionCount"`
}
