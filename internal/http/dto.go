package http

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"bilancio/internal/core"
)

// textField accepts a JSON string or number and keeps its text, so form
// style clients may send "12.50" or 12.50 alike. null reads as empty.
type textField string

func (t *textField) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*t = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*t = textField(s)
		return nil
	}
	*t = textField(b)
	return nil
}

func (t textField) String() string {
	return string(t)
}

type registerRequest struct {
	Username textField `json:"username"`
	Email    textField `json:"email"`
	Password textField `json:"password"`
	Salary   textField `json:"salary"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	UserID    int64     `json:"user_id"`
	Username  string    `json:"username"`
	ExpiresAt time.Time `json:"expires_at"`
}

type salaryRequest struct {
	Amount textField `json:"amount"`
}

type salaryResponse struct {
	UserID int64      `json:"user_id"`
	Amount core.Money `json:"amount"`
}

type expenseRequest struct {
	UserID        textField `json:"user_id"`
	Amount        textField `json:"amount"`
	Category      textField `json:"category"`
	PaymentMethod textField `json:"payment_method"`
	ExpenseDate   textField `json:"expense_date"`
	Attachment    textField `json:"attachment"`
}

type confirmationResponse struct {
	ID              int64         `json:"id"`
	Username        string        `json:"username"`
	Date            core.Date     `json:"date"`
	Category        core.Category `json:"category"`
	RemainingAmount core.Money    `json:"remaining_amount"`
	Message         string        `json:"message"`
}

func newConfirmationResponse(c core.Confirmation) confirmationResponse {
	return confirmationResponse{
		ID:              c.ExpenseID,
		Username:        c.Username,
		Date:            c.Date,
		Category:        c.Category,
		RemainingAmount: c.RemainingAmount,
		Message:         c.Message,
	}
}

type expenseResponse struct {
	ID                  int64         `json:"id"`
	User                string        `json:"user"`
	Amount              core.Money    `json:"amount"`
	Category            core.Category `json:"category"`
	ExpenseDate         core.Date     `json:"expense_date"`
	PaymentMethod       int64         `json:"payment_method"`
	PaymentMethodName   string        `json:"payment_method_name"`
	Attachment          *string       `json:"attachment"`
	CreatedAt           time.Time     `json:"created_at"`
	RemainingSalary     *core.Money   `json:"remaining_salary"`
	RemainingPercentage *string       `json:"remaining_percentage"`
}

func newExpenseResponse(v core.ExpenseView) expenseResponse {
	out := expenseResponse{
		ID:                  v.ID,
		User:                v.Username,
		Amount:              v.Amount,
		Category:            v.Category,
		ExpenseDate:         v.ExpenseDate,
		PaymentMethod:       v.PaymentMethodID,
		PaymentMethodName:   v.PaymentMethodName,
		CreatedAt:           v.CreatedAt.UTC(),
		RemainingSalary:     v.Budget.RemainingSalary,
		RemainingPercentage: percent(v.Budget.RemainingPercentage),
	}
	if v.Attachment != "" {
		a := v.Attachment
		out.Attachment = &a
	}
	return out
}

type summaryResponse struct {
	UserID                    int64                        `json:"user_id"`
	UserName                  string                       `json:"user_name"`
	Categories                map[core.Category]core.Money `json:"categories"`
	Months                    []monthTotalResponse         `json:"months"`
	MonthlyAverage            core.Money                   `json:"monthly_average"`
	CurrentMonth              core.YearMonth               `json:"current_month"`
	CurrentMonthSpend         core.Money                   `json:"current_month_spend"`
	Salary                    *core.Money                  `json:"salary"`
	RemainingSalary           *core.Money                  `json:"remaining_salary"`
	RemainingSalaryPercentage *string                      `json:"remaining_salary_percentage"`
}

func newSummaryResponse(s core.UserSummary) summaryResponse {
	return summaryResponse{
		UserID:                    s.UserID,
		UserName:                  s.Username,
		Categories:                s.CategoryMap(),
		Months:                    newMonthTotals(s.Months),
		MonthlyAverage:            s.MonthlyAverage,
		CurrentMonth:              s.CurrentMonth,
		CurrentMonthSpend:         s.CurrentMonthSpend,
		Salary:                    s.Salary,
		RemainingSalary:           s.Budget.RemainingSalary,
		RemainingSalaryPercentage: percent(s.Budget.RemainingPercentage),
	}
}

// monthTotalResponse names a month by its first day.
type monthTotalResponse struct {
	Month      core.Date  `json:"month"`
	TotalSpent core.Money `json:"total_spent"`
}

func newMonthTotals(in []core.MonthTotal) []monthTotalResponse {
	out := make([]monthTotalResponse, 0, len(in))
	for _, m := range in {
		out = append(out, monthTotalResponse{Month: m.Month.Start(), TotalSpent: m.Total})
	}
	return out
}

type paymentMethodRequest struct {
	Name string `json:"name"`
}

type paymentMethodResponse struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

func newPaymentMethodResponse(pm core.PaymentMethod) paymentMethodResponse {
	return paymentMethodResponse{ID: pm.ID, Name: pm.Name}
}

// percent renders a percentage with two decimals, or nil.
func percent(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	s := d.StringFixed(2)
	return &s
}

func parseID(raw string) (int64, bool) {
	id, err := strconv.ParseInt(raw, 10, 64)
	return id, err == nil && id > 0
}
