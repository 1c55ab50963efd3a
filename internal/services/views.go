package services

import (
	"context"
	"fmt"

	"bilancio/internal/core"
	"bilancio/internal/ledger"
)

type viewStore interface {
	ledger.SalaryReader
	ledger.ExpenseReader
	SumExpenses(ctx context.Context, userID int64, ym core.YearMonth) (core.Money, error)
	ListPaymentMethods(ctx context.Context) ([]core.PaymentMethod, error)
}

// ExpenseViews assembles expenses with the live budget state of each
// expense's own month.
type ExpenseViews struct {
	store viewStore
}

func NewExpenseViews(store viewStore) *ExpenseViews {
	return &ExpenseViews{store: store}
}

// ListExpenses returns the acting user's expenses as views.
func (v *ExpenseViews) ListExpenses(ctx context.Context, actor core.ActingUser) ([]core.ExpenseView, error) {
	expenses, err := v.store.ListExpenses(ctx, actor.ID)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	b, err := v.newBuilder(ctx, actor)
	if err != nil {
		return nil, err
	}
	out := make([]core.ExpenseView, 0, len(expenses))
	for _, e := range expenses {
		view, err := b.view(ctx, e)
		if err != nil {
			return nil, err
		}
		out = append(out, view)
	}
	return out, nil
}

// GetExpense returns one of the acting user's expenses as a view.
func (v *ExpenseViews) GetExpense(ctx context.Context, actor core.ActingUser, id int64) (core.ExpenseView, error) {
	e, err := v.store.GetExpense(ctx, actor.ID, id)
	if err != nil {
		return core.ExpenseView{}, fmt.Errorf("get expense %d: %w", id, err)
	}
	b, err := v.newBuilder(ctx, actor)
	if err != nil {
		return core.ExpenseView{}, err
	}
	return b.view(ctx, e)
}

// viewBuilder holds what one call reads once: the salary, method names and
// the spend of each month already seen.
type viewBuilder struct {
	store     viewStore
	actor     core.ActingUser
	salary    core.Salary
	hasSalary bool
	methods   map[int64]string
	spent     map[core.YearMonth]core.Money
}

func (v *ExpenseViews) newBuilder(ctx context.Context, actor core.ActingUser) (*viewBuilder, error) {
	salary, ok, err := v.store.SalaryOf(ctx, actor.ID)
	if err != nil {
		return nil, fmt.Errorf("expense views: %w", err)
	}
	methods, err := v.store.ListPaymentMethods(ctx)
	if err != nil {
		return nil, fmt.Errorf("expense views: %w", err)
	}
	names := make(map[int64]string, len(methods))
	for _, pm := range methods {
		names[pm.ID] = pm.Name
	}
	return &viewBuilder{
		store:     v.store,
		actor:     actor,
		salary:    salary,
		hasSalary: ok,
		methods:   names,
		spent:     map[core.YearMonth]core.Money{},
	}, nil
}

func (b *viewBuilder) view(ctx context.Context, e core.Expense) (core.ExpenseView, error) {
	view := core.ExpenseView{
		Expense:           e,
		Username:          b.actor.Username,
		PaymentMethodName: b.methods[e.PaymentMethodID],
	}
	if !b.hasSalary {
		return view, nil
	}
	ym := e.ExpenseDate.YearMonth()
	spent, ok := b.spent[ym]
	if !ok {
		var err error
		spent, err = b.store.SumExpenses(ctx, e.UserID, ym)
		if err != nil {
			return core.ExpenseView{}, fmt.Errorf("expense views: %w", err)
		}
		b.spent[ym] = spent
	}
	view.Budget = core.DeriveBudgetView(b.salary.Amount, true, spent)
	return view, nil
}
