package core

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	Food          Category = "Food"
	Transport     Category = "Transport"
	Entertainment Category = "Entertainment"
	Health        Category = "Health"
	Shopping      Category = "Shopping"
	Utilities     Category = "Utilities"
	Education     Category = "Education"
	Other         Category = "Other"
)

const dateLayout = "2006-01-02"

type (
	Category string

	// Date is a calendar date stored as UTC midnight.
	Date struct {
		time.Time
	}

	// Transaction is a single logged expense.
	Transaction struct {
		ID        int64           `json:"id"`
		Amount    decimal.Decimal `json:"amount"`
		Category  Category        `json:"category"`
		Item      string          `json:"item"`
		Vendor    string          `json:"vendor,omitempty"`
		Date      Date            `json:"date"`
		CreatedAt time.Time       `json:"createdAt"`
	}

	// TransactionInput carries the user-supplied fields of a new transaction.
	TransactionInput struct {
		Amount   decimal.Decimal
		Category Category
		Item     string
		Vendor   string
		Date     Date
	}

	// TransactionPatch replaces the non-nil fields of an existing transaction.
	TransactionPatch struct {
		Amount   *decimal.Decimal
		Category *Category
		Item     *string
		Vendor   *string
		Date     *Date
	}
)

var (
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrInvalidCategory = errors.New("invalid category")
	ErrEmptyItem       = errors.New("empty item")
	ErrItemTooLong     = errors.New("item too long (max 200 characters)")
	ErrInvalidDate     = errors.New("invalid date")
)

var categories = []Category{Food, Transport, Entertainment, Health, Shopping, Utilities, Education, Other}

// Categories returns the fixed category set in display order.
func Categories() []Category {
	return append([]Category(nil), categories...)
}

// ParseCategory matches s case-insensitively against the category set.
func ParseCategory(s string) (Category, error) {
	s = strings.TrimSpace(s)
	for _, c := range categories {
		if strings.EqualFold(string(c), s) {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidCategory, s)
}

func (c Category) Valid() bool {
	for _, known := range categories {
		if c == known {
			return true
		}
	}
	return false
}

// NewDate creates a new Date from year, month, day
func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf returns the calendar date of t in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, m, d)
}

// ParseDate accepts YYYY-MM-DD or a full RFC 3339 timestamp.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(dateLayout, s); err == nil {
		return DateOf(t), nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return DateOf(t), nil
	}
	return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
}

func (d Date) String() string {
	return d.Format(dateLayout)
}

func (d Date) Before(other Date) bool {
	return d.Time.Before(other.Time)
}

// AddDays returns the date n calendar days away.
func (d Date) AddDays(n int) Date {
	return Date{Time: d.Time.AddDate(0, 0, n)}
}

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (in TransactionInput) Validate() error {
	if !in.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if !in.Category.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidCategory, in.Category)
	}
	if strings.TrimSpace(in.Item) == "" {
		return ErrEmptyItem
	}
	if len(in.Item) > 200 {
		return ErrItemTooLong
	}
	if in.Date.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// Apply returns t with the patch merged in. ID and CreatedAt are never touched.
func (p TransactionPatch) Apply(t Transaction) Transaction {
	if p.Amount != nil {
		t.Amount = *p.Amount
	}
	if p.Category != nil {
		t.Category = *p.Category
	}
	if p.Item != nil {
		t.Item = *p.Item
	}
	if p.Vendor != nil {
		t.Vendor = *p.Vendor
	}
	if p.Date != nil {
		t.Date = *p.Date
	}
	return t
}

// Trimmed returns a copy of p with Item and Vendor stripped of surrounding
// whitespace. The caller's strings are not modified.
func (p TransactionPatch) Trimmed() TransactionPatch {
	if p.Item != nil {
		item := strings.TrimSpace(*p.Item)
		p.Item = &item
	}
	if p.Vendor != nil {
		vendor := strings.TrimSpace(*p.Vendor)
		p.Vendor = &vendor
	}
	return p
}

// Validate checks the fields the patch would set.
func (p TransactionPatch) Validate() error {
	if p.Amount != nil && !p.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if p.Category != nil && !p.Category.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidCategory, *p.Category)
	}
	if p.Item != nil && strings.TrimSpace(*p.Item) == "" {
		return ErrEmptyItem
	}
	if p.Item != nil && len(*p.Item) > 200 {
		return ErrItemTooLong
	}
	if p.Date != nil && p.Date.IsZero() {
		return ErrInvalidDate
	}
	return nil
}
