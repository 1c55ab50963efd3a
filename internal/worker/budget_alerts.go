// Package worker reacts to budget events published by the API.
package worker

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"bilancio/internal/amqp"
	"bilancio/internal/core"
	"bilancio/internal/ledger"
	"bilancio/internal/log"
)

// Alert describes a user whose monthly spend reached the alert threshold.
type Alert struct {
	UserID      int64
	Username    string
	Month       core.YearMonth
	Spent       core.Money
	Salary      core.Money
	UsedPercent decimal.Decimal
	// Overdrawn is set when spend is above the salary. Only concurrent
	// writes for the same month can get there.
	Overdrawn bool
}

// Notifier delivers alerts.
type Notifier interface {
	Notify(ctx context.Context, alert Alert) error
}

// LogNotifier writes alerts as warnings.
type LogNotifier struct {
	logger *log.Logger
}

func NewLogNotifier(logger *log.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.WithComponent(log.ComponentWorker)}
}

func (n *LogNotifier) Notify(ctx context.Context, a Alert) error {
	fields := log.NewFields().
		WithUser(a.UserID, 0).
		WithBudget(a.Month.String(), a.Spent.Cents, a.Salary.Cents)
	fields[log.FieldUsedPercent] = a.UsedPercent.StringFixed(2)
	if a.Overdrawn {
		n.logger.ErrorContext(ctx, "Monthly spend exceeds salary", fields.ToSlice()...)
		return nil
	}
	n.logger.WarnContext(ctx, "Budget alert threshold reached", fields.ToSlice()...)
	return nil
}

// MonthReader gives the worker the current month totals.
type MonthReader interface {
	ledger.SalaryReader
	ledger.ExpenseAggregator
}

type alertKey struct {
	userID    int64
	month     core.YearMonth
	overdrawn bool
}

// BudgetAlerts turns expense events into alerts. Each user and month is
// alerted at most once per level while the process runs.
type BudgetAlerts struct {
	threshold decimal.Decimal
	store     MonthReader
	notifier  Notifier
	logger    *log.Logger

	mu   sync.Mutex
	sent map[alertKey]bool
}

// NewBudgetAlerts alerts at thresholdPercent of the salary. With a non-nil
// store the month totals are re-read instead of trusting the event, so late
// deliveries report the current state.
func NewBudgetAlerts(thresholdPercent int, store MonthReader, notifier Notifier, logger *log.Logger) *BudgetAlerts {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &BudgetAlerts{
		threshold: decimal.NewFromInt(int64(thresholdPercent)),
		store:     store,
		notifier:  notifier,
		logger:    logger.WithComponent(log.ComponentWorker),
		sent:      map[alertKey]bool{},
	}
}

// HandleExpenseRecorded is the consumer callback. Malformed events are
// dropped; errors are returned only for failures worth a redelivery.
func (b *BudgetAlerts) HandleExpenseRecorded(ctx context.Context, msg *amqp.ExpenseRecordedMessage) error {
	month, err := core.ParseYearMonth(msg.Month)
	if err != nil {
		b.logger.WarnContext(ctx, "Dropping budget event with bad month",
			log.FieldExpenseID, msg.ExpenseID, log.FieldMonth, msg.Month)
		return nil
	}

	spent := core.Money{Cents: msg.MonthSpentCents}
	salary := core.Money{Cents: msg.SalaryCents}
	if b.store != nil {
		s, ok, err := b.store.SalaryOf(ctx, msg.UserID)
		if err != nil {
			return fmt.Errorf("read salary: %w", err)
		}
		if !ok {
			b.logger.DebugContext(ctx, "Salary removed since event, skipping", log.FieldUserID, msg.UserID)
			return nil
		}
		salary = s.Amount
		if spent, err = b.store.SumExpenses(ctx, msg.UserID, month); err != nil {
			return fmt.Errorf("read month spend: %w", err)
		}
	}

	if salary.Cents <= 0 {
		return nil
	}
	used := core.Percentage(spent, salary)
	if used.LessThan(b.threshold) {
		return nil
	}

	alert := Alert{
		UserID:      msg.UserID,
		Username:    msg.Username,
		Month:       month,
		Spent:       spent,
		Salary:      salary,
		UsedPercent: used,
		Overdrawn:   spent.Cents > salary.Cents,
	}
	key := alertKey{userID: alert.UserID, month: month, overdrawn: alert.Overdrawn}
	if !b.claim(key) {
		return nil
	}
	if err := b.notifier.Notify(ctx, alert); err != nil {
		b.release(key)
		return fmt.Errorf("notify: %w", err)
	}
	return nil
}

func (b *BudgetAlerts) claim(k alertKey) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.sent[k] {
		return false
	}
	b.sent[k] = true
	return true
}

func (b *BudgetAlerts) release(k alertKey) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.sent, k)
}
