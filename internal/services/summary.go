package services

import (
	"context"
	"fmt"
	"time"

	"bilancio/internal/core"
	"bilancio/internal/ledger"

	"golang.org/x/sync/errgroup"
)

type summaryStore interface {
	ledger.SalaryReader
	ledger.ExpenseAggregator
	userGetter
}

// SummaryService computes read-only spending rollups. Every call reads the
// store afresh.
type SummaryService struct {
	store summaryStore
	now   Clock
}

func NewSummaryService(store summaryStore, now Clock) *SummaryService {
	if now == nil {
		now = time.Now
	}
	return &SummaryService{store: store, now: now}
}

// UserSummary returns category and month totals for the user inside p, plus
// the budget state of the current calendar month. The current month comes
// from the clock and is not restricted by p.
func (s *SummaryService) UserSummary(ctx context.Context, userID int64, p core.Period) (core.UserSummary, error) {
	if err := p.Validate(); err != nil {
		return core.UserSummary{}, core.FieldError("to", err.Error())
	}
	u, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return core.UserSummary{}, fmt.Errorf("user summary: %w", err)
	}

	current := core.DateOf(s.now()).YearMonth()
	var (
		byCategory map[core.Category]core.Money
		months     []core.MonthTotal
		salary     core.Salary
		hasSalary  bool
		spent      core.Money
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		byCategory, err = s.store.SumExpensesByCategory(gctx, userID, p)
		return err
	})
	g.Go(func() error {
		var err error
		months, err = s.store.MonthlyTotals(gctx, userID, p)
		return err
	})
	g.Go(func() error {
		var err error
		salary, hasSalary, err = s.store.SalaryOf(gctx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		spent, err = s.store.SumExpenses(gctx, userID, current)
		return err
	})
	if err := g.Wait(); err != nil {
		return core.UserSummary{}, fmt.Errorf("user summary: %w", err)
	}

	out := core.UserSummary{
		UserID:            u.ID,
		Username:          u.Username,
		Months:            months,
		CurrentMonth:      current,
		CurrentMonthSpend: spent,
		Budget:            core.DeriveBudgetView(salary.Amount, hasSalary, spent),
	}
	for _, c := range core.Categories() {
		if total, ok := byCategory[c]; ok {
			out.Categories = append(out.Categories, core.CategoryAmount{Category: c, Amount: total})
		}
	}
	totals := make([]core.Money, len(months))
	for i, m := range months {
		totals[i] = m.Total
	}
	out.MonthlyAverage = core.Average(totals)
	if hasSalary {
		amount := salary.Amount
		out.Salary = &amount
	}
	return out, nil
}

// MonthlySummary returns the acting user's totals per month, oldest first.
// A user without expenses gets core.ErrNoData rather than an empty list.
func (s *SummaryService) MonthlySummary(ctx context.Context, actor core.ActingUser) ([]core.MonthTotal, error) {
	months, err := s.store.MonthlyTotals(ctx, actor.ID, core.Period{})
	if err != nil {
		return nil, fmt.Errorf("monthly summary: %w", err)
	}
	if len(months) == 0 {
		return nil, core.ErrNoData
	}
	return months, nil
}
