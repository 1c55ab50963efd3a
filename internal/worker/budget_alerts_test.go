package worker

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"bilancio/internal/amqp"
	"bilancio/internal/core"
	"bilancio/internal/ledger/memory"
	"bilancio/internal/log"
)

type recordingNotifier struct {
	alerts []Alert
	err    error
}

func (n *recordingNotifier) Notify(_ context.Context, a Alert) error {
	if n.err != nil {
		return n.err
	}
	n.alerts = append(n.alerts, a)
	return nil
}

func quietLogger() *log.Logger {
	return log.New(log.Config{Output: io.Discard})
}

func event(spent, salary int64) *amqp.ExpenseRecordedMessage {
	return &amqp.ExpenseRecordedMessage{
		ExpenseID:       1,
		UserID:          7,
		Username:        "alice",
		Category:        "food",
		Month:           "2025-03",
		AmountCents:     100,
		MonthSpentCents: spent,
		SalaryCents:     salary,
	}
}

func TestBudgetAlerts_Threshold(t *testing.T) {
	tests := []struct {
		name   string
		spent  int64
		salary int64
		want   int
	}{
		{"below threshold", 79999, 100000, 0},
		{"at threshold", 80000, 100000, 1},
		{"fully spent", 100000, 100000, 1},
		{"no salary", 500, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := &recordingNotifier{}
			b := NewBudgetAlerts(80, nil, n, quietLogger())
			if err := b.HandleExpenseRecorded(context.Background(), event(tt.spent, tt.salary)); err != nil {
				t.Fatalf("HandleExpenseRecorded: %v", err)
			}
			if len(n.alerts) != tt.want {
				t.Fatalf("alerts = %d, want %d", len(n.alerts), tt.want)
			}
		})
	}
}

func TestBudgetAlerts_OncePerMonthAndLevel(t *testing.T) {
	n := &recordingNotifier{}
	b := NewBudgetAlerts(80, nil, n, quietLogger())
	ctx := context.Background()

	for _, spent := range []int64{85000, 90000, 100000} {
		if err := b.HandleExpenseRecorded(ctx, event(spent, 100000)); err != nil {
			t.Fatal(err)
		}
	}
	if len(n.alerts) != 1 {
		t.Fatalf("alerts = %d, want 1", len(n.alerts))
	}

	if err := b.HandleExpenseRecorded(ctx, event(100100, 100000)); err != nil {
		t.Fatal(err)
	}
	if len(n.alerts) != 2 || !n.alerts[1].Overdrawn {
		t.Fatalf("expected a second overdrawn alert, got %+v", n.alerts)
	}

	april := event(90000, 100000)
	april.Month = "2025-04"
	if err := b.HandleExpenseRecorded(ctx, april); err != nil {
		t.Fatal(err)
	}
	if len(n.alerts) != 3 {
		t.Fatalf("alerts = %d, want 3", len(n.alerts))
	}
}

func TestBudgetAlerts_NotifyFailureIsRetried(t *testing.T) {
	n := &recordingNotifier{err: errors.New("smtp down")}
	b := NewBudgetAlerts(80, nil, n, quietLogger())
	ctx := context.Background()

	if err := b.HandleExpenseRecorded(ctx, event(90000, 100000)); err == nil {
		t.Fatal("expected notify error to be returned for redelivery")
	}
	n.err = nil
	if err := b.HandleExpenseRecorded(ctx, event(90000, 100000)); err != nil {
		t.Fatal(err)
	}
	if len(n.alerts) != 1 {
		t.Fatalf("alerts = %d, want 1 after redelivery", len(n.alerts))
	}
}

func TestBudgetAlerts_DropsBadMonth(t *testing.T) {
	n := &recordingNotifier{}
	b := NewBudgetAlerts(80, nil, n, quietLogger())
	msg := event(100000, 100000)
	msg.Month = "March"
	if err := b.HandleExpenseRecorded(context.Background(), msg); err != nil {
		t.Fatalf("bad month should be dropped, got %v", err)
	}
	if len(n.alerts) != 0 {
		t.Fatalf("unexpected alert %+v", n.alerts)
	}
}

func TestBudgetAlerts_ReadsCurrentTotalsFromStore(t *testing.T) {
	ctx := context.Background()
	store := memory.NewWithPaymentMethods("card")
	u := store.AddUser(core.User{Username: "alice", Email: "a@x.com"})
	if err := store.SetSalary(ctx, u.ID, core.Money{Cents: 100000}); err != nil {
		t.Fatal(err)
	}
	methods, _ := store.ListPaymentMethods(ctx)
	for _, cents := range []int64{50000, 40000} {
		_, err := store.InsertExpense(ctx, core.Expense{
			UserID:          u.ID,
			Amount:          core.Money{Cents: cents},
			Category:        core.Food,
			PaymentMethodID: methods[0].ID,
			ExpenseDate:     core.NewDate(2025, 3, 10),
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	n := &recordingNotifier{}
	b := NewBudgetAlerts(80, store, n, quietLogger())
	// The event still carries the totals of the first write.
	msg := event(50000, 100000)
	msg.UserID = u.ID
	if err := b.HandleExpenseRecorded(ctx, msg); err != nil {
		t.Fatal(err)
	}
	if len(n.alerts) != 1 {
		t.Fatalf("alerts = %d, want 1", len(n.alerts))
	}
	if got := n.alerts[0].UsedPercent.StringFixed(2); got != "90.00" {
		t.Errorf("used percent = %s, want 90.00", got)
	}

	other := event(99999, 100000)
	other.UserID = u.ID + 100
	if err := b.HandleExpenseRecorded(ctx, other); err != nil {
		t.Fatalf("user without salary should be skipped, got %v", err)
	}
	if len(n.alerts) != 1 {
		t.Fatalf("unexpected alert for user without salary")
	}
}

func TestLogNotifier(t *testing.T) {
	var buf bytes.Buffer
	n := NewLogNotifier(log.New(log.Config{Level: slog.LevelInfo, Output: &buf}))
	ym, _ := core.ParseYearMonth("2025-03")

	_ = n.Notify(context.Background(), Alert{UserID: 3, Month: ym, Spent: core.Money{Cents: 900}, Salary: core.Money{Cents: 1000}, UsedPercent: core.Percentage(core.Money{Cents: 900}, core.Money{Cents: 1000})})
	_ = n.Notify(context.Background(), Alert{UserID: 3, Month: ym, Overdrawn: true})

	out := buf.String()
	for _, want := range []string{"level=WARN", "used_percent=90.00", "month=2025-03", "component=worker", "level=ERROR", "user_id=3"} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in %q", want, out)
		}
	}
	// Events carry no acting user.
	if strings.Contains(out, "caller_id") {
		t.Errorf("unexpected caller_id in %q", out)
	}
}
