package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"bilancio/internal/core"
	"bilancio/internal/ledger"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

const (
	openLowerBound = "0000-01-01"
	openUpperBound = "9999-99-99"
)

var _ ledger.Store = (*SQLiteRepository)(nil)

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if dbPath != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One connection serializes writers and keeps an in-memory database alive.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) SalaryOf(ctx context.Context, userID int64) (core.Salary, bool, error) {
	var cents int64
	err := r.db.QueryRowContext(ctx,
		`SELECT amount_cents FROM salaries WHERE user_id = ?`, userID).Scan(&cents)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Salary{}, false, nil
	}
	if err != nil {
		return core.Salary{}, false, fmt.Errorf("get salary for user %d: %w", userID, err)
	}
	return core.Salary{UserID: userID, Amount: core.Money{Cents: cents}}, true, nil
}

func (r *SQLiteRepository) SetSalary(ctx context.Context, userID int64, amount core.Money) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO salaries (user_id, amount_cents) VALUES (?, ?)
		ON CONFLICT(user_id) DO UPDATE SET amount_cents = excluded.amount_cents`,
		userID, amount.Cents)
	if err != nil {
		if isConstraint(err, sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY) {
			return core.ErrUserNotFound
		}
		return fmt.Errorf("set salary for user %d: %w", userID, err)
	}
	slog.InfoContext(ctx, "Salary updated", "user_id", userID, "amount_cents", amount.Cents)
	return nil
}

func (r *SQLiteRepository) SumExpenses(ctx context.Context, userID int64, ym core.YearMonth) (core.Money, error) {
	var cents int64
	err := r.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount_cents), 0) FROM expenses
		WHERE user_id = ? AND expense_date >= ? AND expense_date < ?`,
		userID, ym.Start().String(), ym.Next().Start().String()).Scan(&cents)
	if err != nil {
		return core.Money{}, fmt.Errorf("sum expenses for %s: %w", ym, err)
	}
	return core.Money{Cents: cents}, nil
}

func (r *SQLiteRepository) SumExpensesByCategory(ctx context.Context, userID int64, p core.Period) (map[core.Category]core.Money, error) {
	from, to := periodBounds(p)
	rows, err := r.db.QueryContext(ctx, `
		SELECT category, SUM(amount_cents) FROM expenses
		WHERE user_id = ? AND expense_date >= ? AND expense_date < ?
		GROUP BY category`, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("sum expenses by category: %w", err)
	}
	defer rows.Close()

	out := map[core.Category]core.Money{}
	for rows.Next() {
		var (
			cat   string
			cents int64
		)
		if err := rows.Scan(&cat, &cents); err != nil {
			return nil, fmt.Errorf("scan category total: %w", err)
		}
		out[core.Category(cat)] = core.Money{Cents: cents}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate category totals: %w", err)
	}
	return out, nil
}

func (r *SQLiteRepository) MonthlyTotals(ctx context.Context, userID int64, p core.Period) ([]core.MonthTotal, error) {
	from, to := periodBounds(p)
	rows, err := r.db.QueryContext(ctx, `
		SELECT substr(expense_date, 1, 7) AS month, SUM(amount_cents) FROM expenses
		WHERE user_id = ? AND expense_date >= ? AND expense_date < ?
		GROUP BY month
		ORDER BY month`, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("monthly totals: %w", err)
	}
	defer rows.Close()

	var out []core.MonthTotal
	for rows.Next() {
		var (
			month string
			cents int64
		)
		if err := rows.Scan(&month, &cents); err != nil {
			return nil, fmt.Errorf("scan month total: %w", err)
		}
		ym, err := core.ParseYearMonth(month)
		if err != nil {
			return nil, fmt.Errorf("month total: %w", err)
		}
		out = append(out, core.MonthTotal{Month: ym, Total: core.Money{Cents: cents}})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate month totals: %w", err)
	}
	return out, nil
}

func (r *SQLiteRepository) InsertExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}
	e.CreatedAt = time.Now().UTC()
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO expenses (user_id, amount_cents, category, payment_method_id, expense_date, attachment, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.UserID, e.Amount.Cents, string(e.Category), e.PaymentMethodID,
		e.ExpenseDate.String(), e.Attachment, e.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		if isConstraint(err, sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY) {
			return core.Expense{}, fmt.Errorf("create expense: %w", core.ErrNotFound)
		}
		return core.Expense{}, fmt.Errorf("create expense: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Expense{}, fmt.Errorf("create expense: %w", err)
	}
	e.ID = id

	slog.InfoContext(ctx, "Expense saved to SQLite",
		"id", e.ID,
		"user_id", e.UserID,
		"amount_cents", e.Amount.Cents,
		"category", e.Category,
		"date", e.ExpenseDate.String())

	return e, nil
}

const expenseColumns = `id, user_id, amount_cents, category, payment_method_id, expense_date, attachment, created_at`

func (r *SQLiteRepository) ListExpenses(ctx context.Context, userID int64) ([]core.Expense, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+expenseColumns+` FROM expenses
		WHERE user_id = ?
		ORDER BY expense_date DESC, id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()

	var out []core.Expense
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expenses: %w", err)
	}
	return out, nil
}

func (r *SQLiteRepository) GetExpense(ctx context.Context, userID, id int64) (core.Expense, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+expenseColumns+` FROM expenses WHERE id = ? AND user_id = ?`, id, userID)
	e, err := scanExpense(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Expense{}, core.ErrNotFound
	}
	return e, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanExpense(s scanner) (core.Expense, error) {
	var (
		e         core.Expense
		cents     int64
		category  string
		date      string
		createdAt string
	)
	if err := s.Scan(&e.ID, &e.UserID, &cents, &category, &e.PaymentMethodID, &date, &e.Attachment, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Expense{}, err
		}
		return core.Expense{}, fmt.Errorf("scan expense: %w", err)
	}
	d, err := core.ParseDate(date)
	if err != nil {
		return core.Expense{}, fmt.Errorf("expense %d: %w", e.ID, err)
	}
	e.Amount = core.Money{Cents: cents}
	e.Category = core.Category(category)
	e.ExpenseDate = d
	e.CreatedAt = parseTimestamp(createdAt)
	return e, nil
}

const userColumns = `id, username, email, password_hash, created_at`

func (r *SQLiteRepository) GetUser(ctx context.Context, id int64) (core.User, error) {
	return r.getUser(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
}

func (r *SQLiteRepository) GetUserByEmail(ctx context.Context, email string) (core.User, error) {
	return r.getUser(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, strings.TrimSpace(email))
}

func (r *SQLiteRepository) GetUserByUsername(ctx context.Context, username string) (core.User, error) {
	return r.getUser(ctx, `SELECT `+userColumns+` FROM users WHERE username = ?`, username)
}

func (r *SQLiteRepository) getUser(ctx context.Context, query string, arg any) (core.User, error) {
	var (
		u         core.User
		createdAt string
	)
	err := r.db.QueryRowContext(ctx, query, arg).Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.User{}, core.ErrUserNotFound
	}
	if err != nil {
		return core.User{}, fmt.Errorf("get user: %w", err)
	}
	u.CreatedAt = parseTimestamp(createdAt)
	return u, nil
}

func (r *SQLiteRepository) CreateUserWithSalary(ctx context.Context, nu ledger.NewUser) (core.User, error) {
	u := core.User{
		Username:     nu.Username,
		Email:        nu.Email,
		PasswordHash: nu.PasswordHash,
		CreatedAt:    time.Now().UTC(),
	}
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO users (username, email, password_hash, created_at) VALUES (?, ?, ?, ?)`,
			u.Username, u.Email, u.PasswordHash, u.CreatedAt.Format(time.RFC3339Nano))
		if err != nil {
			switch {
			case isConstraint(err, sqlite3.SQLITE_CONSTRAINT_UNIQUE) && strings.Contains(err.Error(), "users.email"):
				return core.ErrDuplicateEmail
			case isConstraint(err, sqlite3.SQLITE_CONSTRAINT_UNIQUE):
				// username is checked first; report a colliding email instead.
				var one int
				if tx.QueryRowContext(ctx, `SELECT 1 FROM users WHERE email = ?`, u.Email).Scan(&one) == nil {
					return core.ErrDuplicateEmail
				}
				return core.ErrDuplicateUsername
			}
			return fmt.Errorf("insert user: %w", err)
		}
		if u.ID, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("insert user: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO salaries (user_id, amount_cents) VALUES (?, ?)`, u.ID, nu.Salary.Cents); err != nil {
			return fmt.Errorf("insert salary: %w", err)
		}
		return nil
	})
	if err != nil {
		return core.User{}, err
	}

	slog.InfoContext(ctx, "User registered", "user_id", u.ID, "username", u.Username)
	return u, nil
}

func (r *SQLiteRepository) GetPaymentMethod(ctx context.Context, id int64) (core.PaymentMethod, error) {
	pm := core.PaymentMethod{ID: id}
	err := r.db.QueryRowContext(ctx, `SELECT name FROM payment_methods WHERE id = ?`, id).Scan(&pm.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return core.PaymentMethod{}, core.ErrNotFound
	}
	if err != nil {
		return core.PaymentMethod{}, fmt.Errorf("get payment method %d: %w", id, err)
	}
	return pm, nil
}

func (r *SQLiteRepository) ListPaymentMethods(ctx context.Context) ([]core.PaymentMethod, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name FROM payment_methods ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list payment methods: %w", err)
	}
	defer rows.Close()

	var out []core.PaymentMethod
	for rows.Next() {
		var pm core.PaymentMethod
		if err := rows.Scan(&pm.ID, &pm.Name); err != nil {
			return nil, fmt.Errorf("scan payment method: %w", err)
		}
		out = append(out, pm)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) CreatePaymentMethod(ctx context.Context, name string) (core.PaymentMethod, error) {
	pm := core.PaymentMethod{Name: strings.TrimSpace(name)}
	if err := pm.Validate(); err != nil {
		return core.PaymentMethod{}, err
	}
	res, err := r.db.ExecContext(ctx, `INSERT INTO payment_methods (name) VALUES (?)`, pm.Name)
	if err != nil {
		if isConstraint(err, sqlite3.SQLITE_CONSTRAINT_UNIQUE) {
			return core.PaymentMethod{}, core.ErrConflict
		}
		return core.PaymentMethod{}, fmt.Errorf("create payment method: %w", err)
	}
	if pm.ID, err = res.LastInsertId(); err != nil {
		return core.PaymentMethod{}, fmt.Errorf("create payment method: %w", err)
	}
	return pm, nil
}

func (r *SQLiteRepository) DeletePaymentMethod(ctx context.Context, id int64) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		var inUse bool
		if err := tx.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM expenses WHERE payment_method_id = ?)`, id).Scan(&inUse); err != nil {
			return fmt.Errorf("check payment method usage: %w", err)
		}
		if inUse {
			return core.ErrPaymentMethodInUse
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM payment_methods WHERE id = ?`, id)
		if err != nil {
			if isConstraint(err, sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY) {
				return core.ErrPaymentMethodInUse
			}
			return fmt.Errorf("delete payment method %d: %w", id, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return core.ErrNotFound
		}
		return nil
	})
}

// periodBounds turns p into a half-open [from, to) range of ISO dates.
func periodBounds(p core.Period) (string, string) {
	from, to := openLowerBound, openUpperBound
	if !p.From.IsZero() {
		from = p.From.Start().String()
	}
	if !p.To.IsZero() {
		to = p.To.Next().Start().String()
	}
	return from, to
}

func parseTimestamp(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func isConstraint(err error, code int) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	if se.Code() == code {
		return true
	}
	// Without extended result codes only the primary code is reported.
	if se.Code() != sqlite3.SQLITE_CONSTRAINT {
		return false
	}
	switch code {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE:
		return strings.Contains(se.Error(), "UNIQUE")
	case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
		return strings.Contains(se.Error(), "FOREIGN KEY")
	}
	return false
}
