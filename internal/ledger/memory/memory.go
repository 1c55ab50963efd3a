package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"bilancio/internal/core"
	"bilancio/internal/ledger"
)

var _ ledger.Store = (*Store)(nil)

// Store keeps the whole ledger in process memory. It is meant for tests and
// local runs; nothing survives a restart.
type Store struct {
	mu       sync.Mutex
	nextID   int64
	users    map[int64]core.User
	salaries map[int64]core.Money
	methods  map[int64]core.PaymentMethod
	items    []core.Expense
}

func New() *Store {
	return &Store{
		users:    map[int64]core.User{},
		salaries: map[int64]core.Money{},
		methods:  map[int64]core.PaymentMethod{},
	}
}

// NewWithPaymentMethods returns a store seeded with the given method names.
// Blank and repeated names are skipped.
func NewWithPaymentMethods(names ...string) *Store {
	s := New()
	for _, n := range dedupe(names) {
		s.nextID++
		s.methods[s.nextID] = core.PaymentMethod{ID: s.nextID, Name: n}
	}
	return s
}

// AddUser stores u without a salary and returns it with its assigned id.
func (s *Store) AddUser(u core.User) core.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	u.ID = s.id()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	s.users[u.ID] = u
	return u
}

func (s *Store) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *Store) Ping(context.Context) error { return nil }
func (s *Store) Close() error               { return nil }

func (s *Store) SalaryOf(_ context.Context, userID int64) (core.Salary, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	amount, ok := s.salaries[userID]
	if !ok {
		return core.Salary{}, false, nil
	}
	return core.Salary{UserID: userID, Amount: amount}, true, nil
}

func (s *Store) SetSalary(_ context.Context, userID int64, amount core.Money) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[userID]; !ok {
		return core.ErrUserNotFound
	}
	s.salaries[userID] = amount
	return nil
}

func (s *Store) SumExpenses(_ context.Context, userID int64, ym core.YearMonth) (core.Money, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var total core.Money
	for _, e := range s.items {
		if e.UserID == userID && e.ExpenseDate.YearMonth() == ym {
			total = total.Add(e.Amount)
		}
	}
	return total, nil
}

func (s *Store) SumExpensesByCategory(_ context.Context, userID int64, p core.Period) (map[core.Category]core.Money, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := map[core.Category]core.Money{}
	for _, e := range s.items {
		if e.UserID != userID || !p.Contains(e.ExpenseDate.YearMonth()) {
			continue
		}
		out[e.Category] = out[e.Category].Add(e.Amount)
	}
	return out, nil
}

func (s *Store) MonthlyTotals(_ context.Context, userID int64, p core.Period) ([]core.MonthTotal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	byMonth := map[core.YearMonth]core.Money{}
	for _, e := range s.items {
		ym := e.ExpenseDate.YearMonth()
		if e.UserID != userID || !p.Contains(ym) {
			continue
		}
		byMonth[ym] = byMonth[ym].Add(e.Amount)
	}
	out := make([]core.MonthTotal, 0, len(byMonth))
	for ym, total := range byMonth {
		out = append(out, core.MonthTotal{Month: ym, Total: total})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month.Before(out[j].Month) })
	return out, nil
}

func (s *Store) InsertExpense(_ context.Context, e core.Expense) (core.Expense, error) {
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[e.UserID]; !ok {
		return core.Expense{}, core.ErrUserNotFound
	}
	if _, ok := s.methods[e.PaymentMethodID]; !ok {
		return core.Expense{}, fmt.Errorf("payment method %d: %w", e.PaymentMethodID, core.ErrNotFound)
	}
	e.ID = s.id()
	e.CreatedAt = time.Now().UTC()
	s.items = append(s.items, e)
	return e, nil
}

func (s *Store) ListExpenses(_ context.Context, userID int64) ([]core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Expense
	for _, e := range s.items {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].ExpenseDate.Equal(out[j].ExpenseDate.Time) {
			return out[i].ExpenseDate.After(out[j].ExpenseDate.Time)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (s *Store) GetExpense(_ context.Context, userID, id int64) (core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.items {
		if e.ID == id && e.UserID == userID {
			return e, nil
		}
	}
	return core.Expense{}, core.ErrNotFound
}

func (s *Store) GetUser(_ context.Context, id int64) (core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return core.User{}, core.ErrUserNotFound
	}
	return u, nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (core.User, error) {
	return s.findUser(func(u core.User) bool { return strings.EqualFold(u.Email, email) })
}

func (s *Store) GetUserByUsername(_ context.Context, username string) (core.User, error) {
	return s.findUser(func(u core.User) bool { return u.Username == username })
}

func (s *Store) findUser(match func(core.User) bool) (core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if match(u) {
			return u, nil
		}
	}
	return core.User{}, core.ErrUserNotFound
}

func (s *Store) CreateUserWithSalary(_ context.Context, nu ledger.NewUser) (core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	// Email wins over username when both collide, as in SQLite.
	for _, u := range s.users {
		if strings.EqualFold(u.Email, nu.Email) {
			return core.User{}, core.ErrDuplicateEmail
		}
	}
	for _, u := range s.users {
		if u.Username == nu.Username {
			return core.User{}, core.ErrDuplicateUsername
		}
	}
	u := core.User{
		ID:           s.id(),
		Username:     nu.Username,
		Email:        nu.Email,
		PasswordHash: nu.PasswordHash,
		CreatedAt:    time.Now().UTC(),
	}
	s.users[u.ID] = u
	s.salaries[u.ID] = nu.Salary
	return u, nil
}

func (s *Store) GetPaymentMethod(_ context.Context, id int64) (core.PaymentMethod, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pm, ok := s.methods[id]
	if !ok {
		return core.PaymentMethod{}, core.ErrNotFound
	}
	return pm, nil
}

func (s *Store) ListPaymentMethods(context.Context) ([]core.PaymentMethod, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.PaymentMethod, 0, len(s.methods))
	for _, pm := range s.methods {
		out = append(out, pm)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) CreatePaymentMethod(_ context.Context, name string) (core.PaymentMethod, error) {
	pm := core.PaymentMethod{Name: strings.TrimSpace(name)}
	if err := pm.Validate(); err != nil {
		return core.PaymentMethod{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.methods {
		if existing.Name == pm.Name {
			return core.PaymentMethod{}, core.ErrConflict
		}
	}
	pm.ID = s.id()
	s.methods[pm.ID] = pm
	return pm, nil
}

func (s *Store) DeletePaymentMethod(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.methods[id]; !ok {
		return core.ErrNotFound
	}
	for _, e := range s.items {
		if e.PaymentMethodID == id {
			return core.ErrPaymentMethodInUse
		}
	}
	delete(s.methods, id)
	return nil
}

func dedupe(in []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
