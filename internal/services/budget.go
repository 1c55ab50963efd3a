package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"bilancio/internal/amqp"
	"bilancio/internal/core"
	"bilancio/internal/ledger"
	"bilancio/internal/log"
)

// Clock returns the current time. Tests replace it to pin "today".
type Clock func() time.Time

// EventPublisher receives budget events after an expense is stored.
type EventPublisher interface {
	PublishExpenseRecorded(ctx context.Context, msg *amqp.ExpenseRecordedMessage) error
}

// ExpenseInput is an expense as submitted by a caller, before validation.
type ExpenseInput struct {
	Amount        string
	Category      string
	PaymentMethod string
	ExpenseDate   string // YYYY-MM-DD, empty means today
	Attachment    string
}

type budgetStore interface {
	ledger.SalaryReader
	ledger.ExpenseAggregator
	ledger.ExpenseWriter
	GetPaymentMethod(ctx context.Context, id int64) (core.PaymentMethod, error)
}

// BudgetEngine accepts or rejects new expenses against the monthly salary.
//
// The spend check and the insert are separate store calls. Two concurrent
// submissions for the same user and month can both pass the check and
// together exceed the salary.
type BudgetEngine struct {
	store  budgetStore
	events EventPublisher
	now    Clock
}

func NewBudgetEngine(store budgetStore, events EventPublisher, now Clock) *BudgetEngine {
	if now == nil {
		now = time.Now
	}
	return &BudgetEngine{store: store, events: events, now: now}
}

// RecordExpense stores the expense if the month's spend including it stays
// within the salary. A missing salary is reported before any input check.
func (b *BudgetEngine) RecordExpense(ctx context.Context, actor core.ActingUser, in ExpenseInput) (core.Confirmation, error) {
	salary, ok, err := b.store.SalaryOf(ctx, actor.ID)
	if err != nil {
		return core.Confirmation{}, fmt.Errorf("record expense: %w", err)
	}
	if !ok {
		return core.Confirmation{}, core.ErrSalaryNotConfigured
	}

	e, err := b.validate(ctx, actor.ID, in)
	if err != nil {
		return core.Confirmation{}, err
	}

	ym := e.ExpenseDate.YearMonth()
	spent, err := b.store.SumExpenses(ctx, actor.ID, ym)
	if err != nil {
		return core.Confirmation{}, fmt.Errorf("record expense: %w", err)
	}
	after := spent.Add(e.Amount)
	if after.Cents > salary.Amount.Cents {
		fields := log.NewFields().
			WithUser(actor.ID, actor.CallerID).
			WithBudget(ym.String(), spent.Cents, salary.Amount.Cents)
		fields[log.FieldAmountCents] = e.Amount.Cents
		logger(ctx).InfoContext(ctx, "Expense rejected over budget", fields.ToSlice()...)
		return core.Confirmation{}, core.ErrBudgetExceeded
	}

	saved, err := b.store.InsertExpense(ctx, e)
	if err != nil {
		return core.Confirmation{}, fmt.Errorf("record expense: %w", err)
	}

	b.publish(ctx, saved, actor.Username, after, salary.Amount)

	return core.Confirmation{
		ExpenseID:       saved.ID,
		Username:        actor.Username,
		Date:            saved.ExpenseDate,
		Category:        saved.Category,
		RemainingAmount: salary.Amount.Sub(after),
		Message:         core.ConfirmationMessage,
	}, nil
}

func (b *BudgetEngine) validate(ctx context.Context, userID int64, in ExpenseInput) (core.Expense, error) {
	verr := core.NewValidationError()
	e := core.Expense{UserID: userID, Attachment: strings.TrimSpace(in.Attachment)}

	if strings.TrimSpace(in.Amount) == "" {
		verr.Add("amount", "This field is required.")
	} else if amount, err := core.ParseMoney(in.Amount); err != nil && !errors.Is(err, core.ErrNegativeAmount) {
		verr.Add("amount", amountMessage(err))
	} else if err != nil || amount.Validate() != nil {
		verr.Add("amount", "Ensure this value is greater than 0.")
	} else {
		e.Amount = amount
	}

	if strings.TrimSpace(in.Category) == "" {
		verr.Add("category", "This field is required.")
	} else if cat, err := core.ParseCategory(in.Category); err != nil {
		verr.Add("category", fmt.Sprintf("%q is not a valid choice.", in.Category))
	} else {
		e.Category = cat
	}

	if pm, msg := b.paymentMethod(ctx, in.PaymentMethod); msg != "" {
		verr.Add("payment_method", msg)
	} else {
		e.PaymentMethodID = pm.ID
	}

	if strings.TrimSpace(in.ExpenseDate) == "" {
		e.ExpenseDate = core.DateOf(b.now())
	} else if d, err := core.ParseDate(in.ExpenseDate); err != nil {
		verr.Add("expense_date", "Date has wrong format. Use YYYY-MM-DD.")
	} else {
		e.ExpenseDate = d
	}

	if len(e.Attachment) > 255 {
		verr.Add("attachment", "Ensure this field has no more than 255 characters.")
	}

	if err := verr.Err(); err != nil {
		return core.Expense{}, err
	}
	return e, nil
}

// paymentMethod resolves raw to an existing method. A non-empty message
// describes why it could not.
func (b *BudgetEngine) paymentMethod(ctx context.Context, raw string) (core.PaymentMethod, string) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return core.PaymentMethod{}, "This field is required."
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return core.PaymentMethod{}, "Incorrect type. Expected pk value."
	}
	pm, err := b.store.GetPaymentMethod(ctx, id)
	if err != nil {
		if !errors.Is(err, core.ErrNotFound) {
			logger(ctx).ErrorContext(ctx, "Payment method lookup failed", "payment_method_id", id, log.FieldError, err)
		}
		return core.PaymentMethod{}, fmt.Sprintf("Invalid pk %q - object does not exist.", raw)
	}
	return pm, ""
}

func (b *BudgetEngine) publish(ctx context.Context, e core.Expense, username string, monthSpent, salary core.Money) {
	if b.events == nil {
		logger(ctx).DebugContext(ctx, "Event publisher not available, skipping budget event")
		return
	}
	msg := amqp.NewExpenseRecordedMessage(e, username, monthSpent, salary)
	if err := b.events.PublishExpenseRecorded(ctx, msg); err != nil {
		// Best effort: the expense is already stored.
		logger(ctx).LogError(ctx, "Failed to publish budget event", err, log.OpPublish,
			log.LogFields{log.FieldExpenseID: e.ID})
	}
}

func logger(ctx context.Context) *log.Logger {
	return log.FromContext(ctx).WithComponent(log.ComponentBudget)
}

func amountMessage(err error) string {
	switch {
	case errors.Is(err, core.ErrTooManyDecimals):
		return "Ensure that there are no more than 2 decimal places."
	case errors.Is(err, core.ErrAmountTooLarge):
		return "Ensure that there are no more than 10 digits in total."
	case errors.Is(err, core.ErrNegativeAmount):
		return "Ensure this value is greater than or equal to 0."
	default:
		return "A valid number is required."
	}
}
