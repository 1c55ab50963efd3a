package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bilancio/internal/ledger"
	"bilancio/internal/ledger/memory"
)

type harness struct {
	store  *memory.Store
	stdout bytes.Buffer
	stderr bytes.Buffer
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	t.Setenv("BCRYPT_COST", "4")
	t.Setenv("LOG_LEVEL", "error")
	return &harness{store: memory.New()}
}

func (h *harness) run(t *testing.T, stdin string, args ...string) error {
	t.Helper()
	h.stdout.Reset()
	a := &app{
		stdin:  strings.NewReader(stdin),
		stdout: &h.stdout,
		stderr: &h.stderr,
		open: func(context.Context, string) (ledger.Store, error) {
			return h.store, nil
		},
	}
	cmd := newRootCmd(a)
	cmd.SetArgs(args)
	return cmd.Execute()
}

func TestRegisterPromptsForPassword(t *testing.T) {
	h := newHarness(t)

	err := h.run(t, "s3cret\n", "user", "register", "--username", "alice", "--email", "a@x.com", "--salary", "1000.00")
	require.NoError(t, err)
	assert.Contains(t, h.stdout.String(), "Password: ")
	assert.Contains(t, h.stdout.String(), "User alice created with ID 1")

	u, err := h.store.GetUserByEmail(context.Background(), "a@x.com")
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret", u.PasswordHash)

	salary, ok, err := h.store.SalaryOf(context.Background(), u.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "1000.00", salary.Amount.String())
}

func TestRegisterReportsFieldErrors(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.run(t, "", "user", "register", "--username", "alice", "--email", "a@x.com", "--salary", "10", "--password", "pw"))

	err := h.run(t, "", "user", "register", "--username", "bob", "--email", "a@x.com", "--salary", "10", "--password", "pw")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "email: A user with this email already exists.")
}

func TestSetSalary(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.run(t, "", "user", "register", "--username", "alice", "--email", "a@x.com", "--salary", "10", "--password", "pw"))

	require.NoError(t, h.run(t, "", "user", "salary", "1", "2500,50"))
	assert.Equal(t, "Salary of user 1 set to 2500.50\n", h.stdout.String())

	assert.Error(t, h.run(t, "", "user", "salary", "x", "1"))
	assert.Error(t, h.run(t, "", "user", "salary", "99", "1"))
}

func TestPaymentMethods(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.run(t, "", "payment-method", "add", "card"))
	require.NoError(t, h.run(t, "", "pm", "add", "cash"))
	assert.Error(t, h.run(t, "", "pm", "add", "cash"))

	require.NoError(t, h.run(t, "", "pm", "list"))
	lines := strings.Split(strings.TrimSpace(h.stdout.String()), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[1], "card")
	assert.Contains(t, lines[2], "cash")

	require.NoError(t, h.run(t, "", "pm", "delete", "2"))
	assert.Error(t, h.run(t, "", "pm", "delete", "2"))
}

func TestSummary(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.run(t, "", "user", "register", "--username", "alice", "--email", "a@x.com", "--salary", "1000", "--password", "pw"))

	require.NoError(t, h.run(t, "", "summary", "1"))
	out := h.stdout.String()
	assert.Contains(t, out, "alice (1)")
	assert.Contains(t, out, "1000.00")
	assert.Contains(t, out, "(100.00%)")

	assert.Error(t, h.run(t, "", "summary", "42"))
	assert.Error(t, h.run(t, "", "summary", "1", "--from", "March"))
}

func TestDBVersion(t *testing.T) {
	t.Setenv("LOG_LEVEL", "error")
	var stdout, stderr bytes.Buffer
	a := &app{stdin: strings.NewReader(""), stdout: &stdout, stderr: &stderr, open: openSQLite}
	cmd := newRootCmd(a)
	cmd.SetArgs([]string{"db", "version", "--db", filepath.Join(t.TempDir(), "bilancio.db")})

	require.NoError(t, cmd.Execute())
	assert.Equal(t, "Schema version 1\n", stdout.String())
}

func TestDBVersionNeedsMigratedStore(t *testing.T) {
	h := newHarness(t)

	err := h.run(t, "", "db", "version")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no schema version")
}
