// Package ledger defines the persistence ports of the expense ledger.
//
// Implementations live in internal/storage (SQLite) and internal/ledger/memory.
// All reads are point-in-time; no isolation beyond the backing store's default
// is promised.
package ledger

import (
	"context"

	"bilancio/internal/core"
)

// NewUser is the input of CreateUserWithSalary.
type NewUser struct {
	Username     string
	Email        string
	PasswordHash string
	Salary       core.Money
}

type (
	SalaryReader interface {
		// SalaryOf returns the user's salary and whether one is configured.
		SalaryOf(ctx context.Context, userID int64) (core.Salary, bool, error)
	}

	SalaryWriter interface {
		// SetSalary creates or replaces the user's salary. It returns
		// core.ErrUserNotFound for unknown users.
		SetSalary(ctx context.Context, userID int64, amount core.Money) error
	}

	ExpenseAggregator interface {
		// SumExpenses returns the user's spend in one month, zero when empty.
		SumExpenses(ctx context.Context, userID int64, ym core.YearMonth) (core.Money, error)
		// SumExpensesByCategory returns totals of categories with at least one
		// expense inside the period.
		SumExpensesByCategory(ctx context.Context, userID int64, p core.Period) (map[core.Category]core.Money, error)
		// MonthlyTotals returns per-month totals ascending by month.
		MonthlyTotals(ctx context.Context, userID int64, p core.Period) ([]core.MonthTotal, error)
	}

	ExpenseWriter interface {
		// InsertExpense persists e and returns it with ID and CreatedAt set.
		InsertExpense(ctx context.Context, e core.Expense) (core.Expense, error)
	}

	ExpenseReader interface {
		// ListExpenses returns the user's expenses, newest expense date first.
		ListExpenses(ctx context.Context, userID int64) ([]core.Expense, error)
		// GetExpense returns core.ErrNotFound unless the expense exists and
		// belongs to userID.
		GetExpense(ctx context.Context, userID, id int64) (core.Expense, error)
	}

	UserStore interface {
		// The getters return core.ErrUserNotFound on a miss.
		GetUser(ctx context.Context, id int64) (core.User, error)
		GetUserByEmail(ctx context.Context, email string) (core.User, error)
		GetUserByUsername(ctx context.Context, username string) (core.User, error)
		// CreateUserWithSalary stores the identity and its salary atomically.
		// Duplicates yield core.ErrDuplicateEmail or core.ErrDuplicateUsername.
		CreateUserWithSalary(ctx context.Context, u NewUser) (core.User, error)
	}

	PaymentMethodStore interface {
		GetPaymentMethod(ctx context.Context, id int64) (core.PaymentMethod, error)
		ListPaymentMethods(ctx context.Context) ([]core.PaymentMethod, error)
		// CreatePaymentMethod returns core.ErrConflict for a taken name.
		CreatePaymentMethod(ctx context.Context, name string) (core.PaymentMethod, error)
		// DeletePaymentMethod returns core.ErrPaymentMethodInUse while any
		// expense references the method.
		DeletePaymentMethod(ctx context.Context, id int64) error
	}

	// Store is the full ledger.
	Store interface {
		SalaryReader
		SalaryWriter
		ExpenseAggregator
		ExpenseWriter
		ExpenseReader
		UserStore
		PaymentMethodStore
		Ping(ctx context.Context) error
		Close() error
	}
)
