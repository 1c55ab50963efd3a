package core

import "testing"

func TestDeriveBudgetView(t *testing.T) {
	t.Run("no salary", func(t *testing.T) {
		v := DeriveBudgetView(Money{}, false, Money{Cents: 500})
		if v.RemainingSalary != nil || v.RemainingPercentage != nil {
			t.Fatalf("expected empty view, got %+v", v)
		}
	})

	t.Run("partial spend", func(t *testing.T) {
		v := DeriveBudgetView(Money{Cents: 100000}, true, Money{Cents: 25000})
		if v.RemainingSalary == nil || v.RemainingSalary.Cents != 75000 {
			t.Fatalf("unexpected remaining %+v", v.RemainingSalary)
		}
		if v.RemainingPercentage.String() != "75" {
			t.Fatalf("unexpected percentage %s", v.RemainingPercentage)
		}
	})

	t.Run("zero salary", func(t *testing.T) {
		v := DeriveBudgetView(Money{}, true, Money{Cents: 1000})
		if v.RemainingSalary.Cents != -1000 {
			t.Fatalf("unexpected remaining %+v", v.RemainingSalary)
		}
		if !v.RemainingPercentage.IsZero() {
			t.Fatalf("expected zero percentage, got %s", v.RemainingPercentage)
		}
	})

	t.Run("same inputs same output", func(t *testing.T) {
		a := DeriveBudgetView(Money{Cents: 3000}, true, Money{Cents: 1000})
		b := DeriveBudgetView(Money{Cents: 3000}, true, Money{Cents: 1000})
		if *a.RemainingSalary != *b.RemainingSalary || !a.RemainingPercentage.Equal(*b.RemainingPercentage) {
			t.Fatalf("derivation is not deterministic")
		}
		if a.RemainingPercentage.String() != "66.67" {
			t.Fatalf("unexpected percentage %s", a.RemainingPercentage)
		}
	})
}

func TestUserSummaryCategoryMap(t *testing.T) {
	s := UserSummary{Categories: []CategoryAmount{
		{Category: Food, Amount: Money{Cents: 300}},
		{Category: Travel, Amount: Money{Cents: 200}},
	}}
	m := s.CategoryMap()
	if len(m) != 2 || m[Food].Cents != 300 || m[Travel].Cents != 200 {
		t.Fatalf("unexpected map %v", m)
	}
}
