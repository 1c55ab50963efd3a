package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	Food    Category = "food"
	Grocery Category = "grocery"
	Travel  Category = "travel"
	Rent    Category = "rent"
	Other   Category = "other"
)

// DateLayout is the wire format of calendar dates.
const DateLayout = "2006-01-02"

type (
	Category string

	Date struct {
		time.Time
	}

	// YearMonth identifies one calendar month.
	YearMonth struct {
		Year  int
		Month time.Month
	}

	User struct {
		ID           int64
		Username     string
		Email        string
		PasswordHash string
		CreatedAt    time.Time
	}

	// ActingUser is the identity an operation is performed for. It may differ
	// from the authenticated caller when an explicit user id was supplied.
	ActingUser struct {
		ID       int64
		Username string
		CallerID int64
	}

	PaymentMethod struct {
		ID   int64
		Name string
	}

	Salary struct {
		UserID int64
		Amount Money
	}

	Expense struct {
		ID              int64
		UserID          int64
		Amount          Money
		Category        Category
		PaymentMethodID int64
		ExpenseDate     Date
		Attachment      string // opaque reference, empty when absent
		CreatedAt       time.Time
	}

	// MonthTotal is the spend of a user in a single month.
	MonthTotal struct {
		Month YearMonth
		Total Money
	}

	// Period restricts aggregations to an inclusive range of months. A zero
	// bound is open.
	Period struct {
		From YearMonth
		To   YearMonth
	}
)

var ErrInvalidCategory = errors.New("invalid category")

// Categories lists the accepted categories in display order.
func Categories() []Category {
	return []Category{Food, Grocery, Travel, Rent, Other}
}

func (c Category) Validate() error {
	switch c {
	case Food, Grocery, Travel, Rent, Other:
		return nil
	default:
		return ErrInvalidCategory
	}
}

func (c Category) String() string {
	return string(c)
}

// ParseCategory normalizes s and checks it against the category enum.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	if err := c.Validate(); err != nil {
		return "", err
	}
	return c, nil
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar date in t's location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, int(m), d)
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
	}
	return Date{Time: t}, nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return errors.New("date cannot be zero")
	}
	return nil
}

// YearMonth returns the month the date falls in.
func (d Date) YearMonth() YearMonth {
	return YearMonth{Year: d.Year(), Month: d.Month()}
}

func (d Date) String() string {
	return d.Format(DateLayout)
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

// ParseYearMonth parses a YYYY-MM string.
func ParseYearMonth(s string) (YearMonth, error) {
	t, err := time.Parse("2006-01", strings.TrimSpace(s))
	if err != nil {
		return YearMonth{}, fmt.Errorf("invalid month %q: expected YYYY-MM", s)
	}
	return YearMonth{Year: t.Year(), Month: t.Month()}, nil
}

func (ym YearMonth) IsZero() bool {
	return ym.Year == 0 && ym.Month == 0
}

// Start returns the first day of the month.
func (ym YearMonth) Start() Date {
	return NewDate(ym.Year, int(ym.Month), 1)
}

// Next returns the following month.
func (ym YearMonth) Next() YearMonth {
	t := time.Date(ym.Year, ym.Month+1, 1, 0, 0, 0, 0, time.UTC)
	return YearMonth{Year: t.Year(), Month: t.Month()}
}

// Before reports whether ym is strictly earlier than other.
func (ym YearMonth) Before(other YearMonth) bool {
	if ym.Year != other.Year {
		return ym.Year < other.Year
	}
	return ym.Month < other.Month
}

func (ym YearMonth) String() string {
	return fmt.Sprintf("%04d-%02d", ym.Year, int(ym.Month))
}

func (ym YearMonth) MarshalJSON() ([]byte, error) {
	return []byte(`"` + ym.String() + `"`), nil
}

// Contains reports whether ym lies inside the period.
func (p Period) Contains(ym YearMonth) bool {
	if !p.From.IsZero() && ym.Before(p.From) {
		return false
	}
	if !p.To.IsZero() && p.To.Before(ym) {
		return false
	}
	return true
}

func (p Period) Validate() error {
	if !p.From.IsZero() && !p.To.IsZero() && p.To.Before(p.From) {
		return errors.New("period end must not be before its start")
	}
	return nil
}

func (e Expense) Validate() error {
	if e.UserID <= 0 {
		return errors.New("expense must belong to a user")
	}
	if err := e.ExpenseDate.Validate(); err != nil {
		return err
	}
	if err := e.Amount.Validate(); err != nil {
		return err
	}
	if err := e.Category.Validate(); err != nil {
		return err
	}
	if e.PaymentMethodID <= 0 {
		return errors.New("expense must reference a payment method")
	}
	if len(e.Attachment) > 255 {
		return errors.New("attachment reference too long (max 255 characters)")
	}
	return nil
}

func (pm PaymentMethod) Validate() error {
	name := strings.TrimSpace(pm.Name)
	if name == "" {
		return errors.New("payment method name cannot be empty")
	}
	if len(name) > 50 {
		return errors.New("payment method name too long (max 50 characters)")
	}
	return nil
}
