package core

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	Income  CategoryType = "income"
	Expense CategoryType = "expense"

	Save  GoalType = "save"
	Spend GoalType = "spend"
)

type (
	CategoryType string

	GoalType string

	Date struct {
		time.Time
	}

	Category struct {
		ID     string
		UserID string
		Name   string
		Type   CategoryType
	}

	Transaction struct {
		ID          string
		UserID      string
		Category    Category
		Amount      decimal.Decimal // signed, 2 fraction digits
		Description string
		Date        Date
		Version     int64
		CreatedAt   time.Time
		UpdatedAt   time.Time
	}

	Budget struct {
		ID       string
		UserID   string
		Category Category
		Month    Date // always the first day of the month
		Amount   decimal.Decimal
	}

	Goal struct {
		ID         string
		UserID     string
		Name       string
		Amount     decimal.Decimal
		GoalType   GoalType
		TargetDate Date
		CategoryID string // empty when the goal is not bound to a category
		IsActive   bool
		CreatedAt  time.Time
		UpdatedAt  time.Time
	}

	Notification struct {
		ID        string
		UserID    string
		Message   string
		IsRead    bool
		CreatedAt time.Time
	}
)

var (
	ErrInvalidDay          = errors.New("invalid day")
	ErrInvalidMonth        = errors.New("invalid month")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrEmptyDescription    = errors.New("empty description")
	ErrEmptyName           = errors.New("empty name")
	ErrEmptyUser           = errors.New("empty user")
	ErrEmptyCategory       = errors.New("empty category")
	ErrInvalidCategoryType = errors.New("invalid category type")
	ErrInvalidGoalType     = errors.New("invalid goal type")
)

func (d Date) Validate() error {
	if d.IsZero() {
		return errors.New("date cannot be zero")
	}
	_, month, day := d.Date()
	if day < 1 || day > 31 {
		return ErrInvalidDay
	}
	if month < 1 || month > 12 {
		return ErrInvalidMonth
	}
	return nil
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day in UTC.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, int(m), d)
}

// ParseDate parses a date in YYYY-MM-DD format.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(time.DateOnly, strings.TrimSpace(s))
	if err != nil {
		return Date{}, err
	}
	return Date{Time: t}, nil
}

// StartOfMonth returns the first day of the month containing d.
func (d Date) StartOfMonth() Date {
	return NewDate(d.Year(), int(d.Month()), 1)
}

// AddDays returns d shifted by n calendar days.
func (d Date) AddDays(n int) Date {
	return Date{Time: d.Time.AddDate(0, 0, n)}
}

// String formats the date as YYYY-MM-DD.
func (d Date) String() string {
	return d.Format(time.DateOnly)
}

// MonthOf returns the first day of the month containing t.
func MonthOf(t time.Time) Date {
	return DateOf(t).StartOfMonth()
}

func (t CategoryType) Valid() bool {
	return t == Income || t == Expense
}

func (t GoalType) Valid() bool {
	return t == Save || t == Spend
}

func (c Category) Validate() error {
	if strings.TrimSpace(c.UserID) == "" {
		return ErrEmptyUser
	}
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyName
	}
	if len(c.Name) > 100 {
		return errors.New("name too long (max 100 characters)")
	}
	if !c.Type.Valid() {
		return ErrInvalidCategoryType
	}
	return nil
}

func (t Transaction) Validate() error {
	if strings.TrimSpace(t.UserID) == "" {
		return ErrEmptyUser
	}
	if strings.TrimSpace(t.Category.ID) == "" {
		return ErrEmptyCategory
	}
	if err := t.Date.Validate(); err != nil {
		return err
	}
	if len(strings.TrimSpace(t.Description)) == 0 {
		return ErrEmptyDescription
	}
	if len(t.Description) > 200 {
		return errors.New("description too long (max 200 characters)")
	}
	if !t.Amount.Equal(t.Amount.Round(2)) {
		return ErrInvalidAmount
	}
	return nil
}

func (b Budget) Validate() error {
	if strings.TrimSpace(b.UserID) == "" {
		return ErrEmptyUser
	}
	if strings.TrimSpace(b.Category.ID) == "" {
		return ErrEmptyCategory
	}
	if err := b.Month.Validate(); err != nil {
		return err
	}
	if b.Month.Day() != 1 {
		return errors.New("budget month must be the first day of a month")
	}
	if !b.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	return nil
}

func (g Goal) Validate() error {
	if strings.TrimSpace(g.UserID) == "" {
		return ErrEmptyUser
	}
	if strings.TrimSpace(g.Name) == "" {
		return ErrEmptyName
	}
	if len(g.Name) > 100 {
		return errors.New("name too long (max 100 characters)")
	}
	if !g.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if !g.GoalType.Valid() {
		return ErrInvalidGoalType
	}
	if err := g.TargetDate.Validate(); err != nil {
		return errors.New("invalid target date: " + err.Error())
	}
	return nil
}

// HasCategory reports whether the goal is bound to a category.
func (g Goal) HasCategory() bool {
	return g.CategoryID != ""
}
