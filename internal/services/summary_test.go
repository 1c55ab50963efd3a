package services

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"bilancio/internal/core"
	"bilancio/internal/ledger"
	"bilancio/internal/ledger/memory"
)

type summaryFixture struct {
	store   *memory.Store
	svc     *SummaryService
	user    core.User
	methods int64
}

func newSummaryFixture(t *testing.T, salaryCents int64) *summaryFixture {
	t.Helper()
	ctx := context.Background()
	store := memory.New()
	u, err := store.CreateUserWithSalary(ctx, ledger.NewUser{
		Username: "alice", Email: "a@x.com", Salary: core.Money{Cents: salaryCents},
	})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	pm, err := store.CreatePaymentMethod(ctx, "card")
	if err != nil {
		t.Fatalf("create method: %v", err)
	}
	return &summaryFixture{
		store:   store,
		svc:     NewSummaryService(store, fixedClock(2025, 3, 15)),
		user:    u,
		methods: pm.ID,
	}
}

func (f *summaryFixture) add(t *testing.T, userID, cents int64, cat core.Category, d core.Date) {
	t.Helper()
	if _, err := f.store.InsertExpense(context.Background(), core.Expense{
		UserID: userID, Amount: core.Money{Cents: cents}, Category: cat,
		PaymentMethodID: f.methods, ExpenseDate: d,
	}); err != nil {
		t.Fatalf("insert: %v", err)
	}
}

func TestUserSummaryNoExpenses(t *testing.T) {
	f := newSummaryFixture(t, 200000)
	got, err := f.svc.UserSummary(context.Background(), f.user.ID, core.Period{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got.Categories) != 0 || len(got.Months) != 0 {
		t.Fatalf("expected empty rollups, got %+v", got)
	}
	if !got.MonthlyAverage.IsZero() {
		t.Fatalf("expected zero average, got %v", got.MonthlyAverage)
	}
	if got.Budget.RemainingSalary == nil || got.Budget.RemainingSalary.Cents != 200000 {
		t.Fatalf("unexpected remaining salary %+v", got.Budget)
	}
	if got.Budget.RemainingPercentage.String() != "100" {
		t.Fatalf("unexpected remaining percentage %s", got.Budget.RemainingPercentage)
	}
}

func TestUserSummaryTotals(t *testing.T) {
	f := newSummaryFixture(t, 100000)
	f.add(t, f.user.ID, 30000, core.Food, core.NewDate(2025, 3, 2))
	f.add(t, f.user.ID, 20000, core.Travel, core.NewDate(2025, 3, 9))
	f.add(t, f.user.ID, 10000, core.Food, core.NewDate(2025, 1, 20))
	f.add(t, f.user.ID, 5, core.Other, core.NewDate(2024, 11, 1))

	got, err := f.svc.UserSummary(context.Background(), f.user.ID, core.Period{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	wantCats := []core.CategoryAmount{
		{Category: core.Food, Amount: core.Money{Cents: 40000}},
		{Category: core.Travel, Amount: core.Money{Cents: 20000}},
		{Category: core.Other, Amount: core.Money{Cents: 5}},
	}
	if !reflect.DeepEqual(got.Categories, wantCats) {
		t.Fatalf("categories = %+v, want %+v", got.Categories, wantCats)
	}
	if len(got.Months) != 3 || got.Months[0].Month.String() != "2024-11" {
		t.Fatalf("unexpected months %+v", got.Months)
	}
	// (0.05 + 100.00 + 500.00) / 3
	if got.MonthlyAverage.String() != "200.02" {
		t.Fatalf("unexpected average %s", got.MonthlyAverage)
	}
	if got.CurrentMonth.String() != "2025-03" || got.CurrentMonthSpend.Cents != 50000 {
		t.Fatalf("unexpected current month %s %v", got.CurrentMonth, got.CurrentMonthSpend)
	}
	if got.Salary == nil || got.Salary.Cents != 100000 {
		t.Fatalf("unexpected salary %v", got.Salary)
	}
	if got.Budget.RemainingSalary.String() != "500.00" || got.Budget.RemainingPercentage.String() != "50" {
		t.Fatalf("unexpected budget %s %s", got.Budget.RemainingSalary, got.Budget.RemainingPercentage)
	}
}

func TestUserSummaryPeriodLeavesCurrentMonthAlone(t *testing.T) {
	f := newSummaryFixture(t, 100000)
	f.add(t, f.user.ID, 30000, core.Food, core.NewDate(2025, 3, 2))
	f.add(t, f.user.ID, 10000, core.Rent, core.NewDate(2025, 1, 20))

	jan := core.YearMonth{Year: 2025, Month: time.January}
	got, err := f.svc.UserSummary(context.Background(), f.user.ID, core.Period{From: jan, To: jan})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got.Categories) != 1 || got.Categories[0].Category != core.Rent {
		t.Fatalf("period filter not applied: %+v", got.Categories)
	}
	if got.MonthlyAverage.Cents != 10000 {
		t.Fatalf("unexpected average %v", got.MonthlyAverage)
	}
	if got.CurrentMonthSpend.Cents != 30000 {
		t.Fatalf("current month spend must ignore the period, got %v", got.CurrentMonthSpend)
	}

	_, err = f.svc.UserSummary(context.Background(), f.user.ID, core.Period{From: core.YearMonth{Year: 2025, Month: time.May}, To: jan})
	if _, ok := core.AsValidation(err); !ok {
		t.Fatalf("expected validation error for inverted period, got %v", err)
	}
}

func TestUserSummaryWithoutSalary(t *testing.T) {
	f := newSummaryFixture(t, 100000)
	bob := f.store.AddUser(core.User{Username: "bob", Email: "b@x.com"})
	f.add(t, bob.ID, 1234, core.Grocery, core.NewDate(2025, 3, 1))

	got, err := f.svc.UserSummary(context.Background(), bob.ID, core.Period{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Salary != nil || got.Budget.RemainingSalary != nil || got.Budget.RemainingPercentage != nil {
		t.Fatalf("expected null budget fields, got %+v", got)
	}
	if got.CurrentMonthSpend.Cents != 1234 {
		t.Fatalf("unexpected spend %v", got.CurrentMonthSpend)
	}
}

func TestUserSummaryZeroSalary(t *testing.T) {
	f := newSummaryFixture(t, 0)
	got, err := f.svc.UserSummary(context.Background(), f.user.ID, core.Period{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Budget.RemainingPercentage == nil || !got.Budget.RemainingPercentage.IsZero() {
		t.Fatalf("expected zero percentage, got %v", got.Budget.RemainingPercentage)
	}
}

func TestUserSummaryUnknownUser(t *testing.T) {
	f := newSummaryFixture(t, 100000)
	_, err := f.svc.UserSummary(context.Background(), 9999, core.Period{})
	if !errors.Is(err, core.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestUserSummaryIsIdempotent(t *testing.T) {
	f := newSummaryFixture(t, 100000)
	f.add(t, f.user.ID, 4200, core.Food, core.NewDate(2025, 3, 2))
	f.add(t, f.user.ID, 1300, core.Travel, core.NewDate(2025, 2, 2))

	first, err := f.svc.UserSummary(context.Background(), f.user.ID, core.Period{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := f.svc.UserSummary(context.Background(), f.user.ID, core.Period{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("summaries differ:\n%+v\n%+v", first, second)
	}
}

func TestMonthlySummary(t *testing.T) {
	f := newSummaryFixture(t, 100000)
	actor := core.ActingUser{ID: f.user.ID, Username: f.user.Username}

	if _, err := f.svc.MonthlySummary(context.Background(), actor); !errors.Is(err, core.ErrNoData) {
		t.Fatalf("expected ErrNoData, got %v", err)
	}

	f.add(t, f.user.ID, 500, core.Food, core.NewDate(2025, 3, 2))
	f.add(t, f.user.ID, 700, core.Food, core.NewDate(2024, 12, 2))
	f.add(t, f.user.ID, 300, core.Food, core.NewDate(2025, 3, 28))

	got, err := f.svc.MonthlySummary(context.Background(), actor)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []core.MonthTotal{
		{Month: core.YearMonth{Year: 2024, Month: time.December}, Total: core.Money{Cents: 700}},
		{Month: core.YearMonth{Year: 2025, Month: time.March}, Total: core.Money{Cents: 800}},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("monthly summary = %+v, want %+v", got, want)
	}
}
