package amqp

import (
	"encoding/json"
	"time"

	"bilancio/internal/core"

	"github.com/shopspring/decimal"
)

// ExpenseRecordedType is the AMQP message type of budget events.
const ExpenseRecordedType = "budget.expense_recorded"

// ExpenseRecordedMessage is published after an expense passed the budget
// check and was stored. It carries the month totals as of that write so
// consumers need no database access.
type ExpenseRecordedMessage struct {
	ExpenseID       int64     `json:"expense_id"`
	UserID          int64     `json:"user_id"`
	Username        string    `json:"username"`
	Category        string    `json:"category"`
	Month           string    `json:"month"` // YYYY-MM
	AmountCents     int64     `json:"amount_cents"`
	MonthSpentCents int64     `json:"month_spent_cents"`
	SalaryCents     int64     `json:"salary_cents"`
	Timestamp       time.Time `json:"timestamp"`
}

// NewExpenseRecordedMessage builds the event for an accepted expense.
// monthSpent already includes the expense amount.
func NewExpenseRecordedMessage(e core.Expense, username string, monthSpent, salary core.Money) *ExpenseRecordedMessage {
	return &ExpenseRecordedMessage{
		ExpenseID:       e.ID,
		UserID:          e.UserID,
		Username:        username,
		Category:        string(e.Category),
		Month:           e.ExpenseDate.YearMonth().String(),
		AmountCents:     e.Amount.Cents,
		MonthSpentCents: monthSpent.Cents,
		SalaryCents:     salary.Cents,
		Timestamp:       time.Now(),
	}
}

// UsedPercentage is the share of the salary spent in the month.
func (m *ExpenseRecordedMessage) UsedPercentage() decimal.Decimal {
	return core.Percentage(core.Money{Cents: m.MonthSpentCents}, core.Money{Cents: m.SalaryCents})
}

// ToJSON converts the message to JSON bytes
func (m *ExpenseRecordedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ExpenseRecordedMessageFromJSON creates a message from JSON bytes
func ExpenseRecordedMessageFromJSON(data []byte) (*ExpenseRecordedMessage, error) {
	var msg ExpenseRecordedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
