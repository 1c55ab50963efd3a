package core

import "github.com/shopspring/decimal"

// ConfirmationMessage is returned with every accepted expense.
const ConfirmationMessage = "Payment made successfully"

// BudgetView holds the remaining budget of one month. Both fields are nil
// when the user has no salary configured.
type BudgetView struct {
	RemainingSalary     *Money
	RemainingPercentage *decimal.Decimal
}

// DeriveBudgetView computes the remaining budget for a month given the
// user's salary and what was spent in that month. It does no I/O.
func DeriveBudgetView(salary Money, hasSalary bool, monthSpent Money) BudgetView {
	if !hasSalary {
		return BudgetView{}
	}
	remaining := salary.Sub(monthSpent)
	pct := Percentage(remaining, salary)
	return BudgetView{RemainingSalary: &remaining, RemainingPercentage: &pct}
}

// ExpenseView is an expense together with the budget state of its own month.
type ExpenseView struct {
	Expense
	Username          string
	PaymentMethodName string
	Budget            BudgetView
}

// Confirmation is the result of an accepted expense.
type Confirmation struct {
	ExpenseID       int64
	Username        string
	Date            Date
	Category        Category
	RemainingAmount Money
	Message         string
}

// CategoryAmount represents an amount aggregated by category.
type CategoryAmount struct {
	Category Category
	Amount   Money
}

// UserSummary is the spending overview of one user.
type UserSummary struct {
	UserID            int64
	Username          string
	Categories        []CategoryAmount // only categories with spend, in Categories() order
	Months            []MonthTotal
	MonthlyAverage    Money
	CurrentMonth      YearMonth
	CurrentMonthSpend Money
	Salary            *Money
	Budget            BudgetView
}

// CategoryMap returns the category totals keyed by category.
func (s UserSummary) CategoryMap() map[Category]Money {
	m := make(map[Category]Money, len(s.Categories))
	for _, c := range s.Categories {
		m[c.Category] = c.Amount
	}
	return m
}
