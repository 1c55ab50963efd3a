package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"regexp"
	"strings"

	"bilancio/internal/auth"
	"bilancio/internal/core"
	"bilancio/internal/ledger"
)

var usernamePattern = regexp.MustCompile(`^[\w.@+-]+$`)

// RegistrationInput is a sign-up request before validation.
type RegistrationInput struct {
	Username string
	Email    string
	Password string
	Salary   string
}

type accountStore interface {
	ledger.UserStore
	ledger.SalaryWriter
}

type passwordHasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) error
}

// AccountService registers users, checks credentials and maintains salaries.
type AccountService struct {
	store  accountStore
	hasher passwordHasher
}

func NewAccountService(store accountStore, hasher passwordHasher) *AccountService {
	return &AccountService{store: store, hasher: hasher}
}

// Register creates the user and their initial salary in one step. Either both
// exist afterwards or neither does.
func (s *AccountService) Register(ctx context.Context, in RegistrationInput) (core.User, error) {
	nu, err := s.validate(ctx, in)
	if err != nil {
		return core.User{}, err
	}
	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return core.User{}, fmt.Errorf("register: %w", err)
	}
	nu.PasswordHash = hash

	u, err := s.store.CreateUserWithSalary(ctx, nu)
	switch {
	case errors.Is(err, core.ErrDuplicateEmail):
		return core.User{}, core.FieldError("email", "A user with this email already exists.")
	case errors.Is(err, core.ErrDuplicateUsername):
		return core.User{}, core.FieldError("username", "A user with that username already exists.")
	case err != nil:
		return core.User{}, fmt.Errorf("register: %w", err)
	}
	return u, nil
}

func (s *AccountService) validate(ctx context.Context, in RegistrationInput) (ledger.NewUser, error) {
	verr := core.NewValidationError()
	nu := ledger.NewUser{
		Username: strings.TrimSpace(in.Username),
		Email:    strings.TrimSpace(in.Email),
	}

	switch {
	case nu.Username == "":
		verr.Add("username", "This field may not be blank.")
	case len(nu.Username) > 150:
		verr.Add("username", "Ensure this field has no more than 150 characters.")
	case !usernamePattern.MatchString(nu.Username):
		verr.Add("username", "Enter a valid username. This value may contain only letters, numbers, and @/./+/-/_ characters.")
	default:
		if _, err := s.store.GetUserByUsername(ctx, nu.Username); err == nil {
			verr.Add("username", "A user with that username already exists.")
		}
	}

	if nu.Email == "" {
		verr.Add("email", "This field may not be blank.")
	} else if addr, err := mail.ParseAddress(nu.Email); err != nil || addr.Address != nu.Email {
		verr.Add("email", "Enter a valid email address.")
	} else if _, err := s.store.GetUserByEmail(ctx, nu.Email); err == nil {
		verr.Add("email", "A user with this email already exists.")
	}

	if in.Password == "" {
		verr.Add("password", "This field may not be blank.")
	}

	if strings.TrimSpace(in.Salary) == "" {
		verr.Add("salary", "This field is required.")
	} else if salary, err := core.ParseMoney(in.Salary); err != nil {
		verr.Add("salary", amountMessage(err))
	} else {
		nu.Salary = salary
	}

	if err := verr.Err(); err != nil {
		return ledger.NewUser{}, err
	}
	return nu, nil
}

// Authenticate returns the user owning email when password matches.
func (s *AccountService) Authenticate(ctx context.Context, email, password string) (core.User, error) {
	u, err := s.store.GetUserByEmail(ctx, strings.TrimSpace(email))
	if errors.Is(err, core.ErrUserNotFound) {
		return core.User{}, auth.ErrInvalidCredentials
	}
	if err != nil {
		return core.User{}, fmt.Errorf("authenticate: %w", err)
	}
	if err := s.hasher.Compare(u.PasswordHash, password); err != nil {
		return core.User{}, auth.ErrInvalidCredentials
	}
	return u, nil
}

// SetSalary replaces the user's salary. The new figure applies to every
// month, past ones included.
func (s *AccountService) SetSalary(ctx context.Context, userID int64, raw string) (core.Money, error) {
	if strings.TrimSpace(raw) == "" {
		return core.Money{}, core.FieldError("amount", "This field is required.")
	}
	amount, err := core.ParseMoney(raw)
	if err != nil {
		return core.Money{}, core.FieldError("amount", amountMessage(err))
	}
	if err := s.store.SetSalary(ctx, userID, amount); err != nil {
		return core.Money{}, fmt.Errorf("set salary: %w", err)
	}
	return amount, nil
}
