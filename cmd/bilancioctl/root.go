package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/exp/maps"
	"golang.org/x/term"

	"bilancio/internal/auth"
	"bilancio/internal/cli"
	"bilancio/internal/config"
	"bilancio/internal/core"
	"bilancio/internal/ledger"
	"bilancio/internal/log"
	"bilancio/internal/services"
)

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "bilancioctl",
		Short:         "Administer a bilancio ledger",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := cli.LoadEnvFile(); err != nil {
				return err
			}
			cfg := config.Load()
			cli.SetupLogger(cfg, log.ComponentCLI, a.stderr)
			if a.dbPath == "" {
				a.dbPath = cfg.SQLiteDBPath
			}
			a.bcryptCost = cfg.BcryptCost
			return nil
		},
	}
	root.SetIn(a.stdin)
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)
	root.PersistentFlags().StringVar(&a.dbPath, "db", "", "SQLite database path (default $SQLITE_DB_PATH)")

	root.AddCommand(newUserCmd(a), newPaymentMethodCmd(a), newSummaryCmd(a), newDBCmd(a))
	return root
}

func newUserCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "user", Short: "Manage users and salaries"}

	var in services.RegistrationInput
	register := &cobra.Command{
		Use:   "register",
		Short: "Create a user together with their salary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if in.Password == "" {
				fmt.Fprint(a.stdout, "Password: ")
				pw, err := readPassword(a.stdin)
				fmt.Fprintln(a.stdout)
				if err != nil {
					return fmt.Errorf("read password: %w", err)
				}
				in.Password = pw
			}
			return a.withStore(cmd.Context(), func(store ledger.Store) error {
				accounts := services.NewAccountService(store, auth.NewPasswordHasher(a.bcryptCost))
				u, err := accounts.Register(cmd.Context(), in)
				if err != nil {
					return describe(err)
				}
				fmt.Fprintf(a.stdout, "User %s created with ID %d\n", u.Username, u.ID)
				return nil
			})
		},
	}
	register.Flags().StringVar(&in.Username, "username", "", "username")
	register.Flags().StringVar(&in.Email, "email", "", "email address")
	register.Flags().StringVar(&in.Salary, "salary", "", "monthly salary, e.g. 2500.00")
	register.Flags().StringVar(&in.Password, "password", "", "password (prompted when omitted)")

	salary := &cobra.Command{
		Use:   "salary USER_ID AMOUNT",
		Short: "Set a user's monthly salary",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := parseID(args[0])
			if err != nil {
				return err
			}
			return a.withStore(cmd.Context(), func(store ledger.Store) error {
				accounts := services.NewAccountService(store, auth.NewPasswordHasher(a.bcryptCost))
				amount, err := accounts.SetSalary(cmd.Context(), userID, args[1])
				if err != nil {
					return describe(err)
				}
				fmt.Fprintf(a.stdout, "Salary of user %d set to %s\n", userID, amount)
				return nil
			})
		},
	}

	cmd.AddCommand(register, salary)
	return cmd
}

func newPaymentMethodCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "payment-method", Aliases: []string{"pm"}, Short: "Manage payment methods"}

	list := &cobra.Command{
		Use:   "list",
		Short: "List payment methods",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withStore(cmd.Context(), func(store ledger.Store) error {
				methods, err := services.NewPaymentMethodService(store).List(cmd.Context())
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tNAME")
				for _, pm := range methods {
					fmt.Fprintf(tw, "%d\t%s\n", pm.ID, pm.Name)
				}
				return tw.Flush()
			})
		},
	}

	add := &cobra.Command{
		Use:   "add NAME",
		Short: "Add a payment method",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd.Context(), func(store ledger.Store) error {
				pm, err := services.NewPaymentMethodService(store).Create(cmd.Context(), args[0])
				if err != nil {
					return describe(err)
				}
				fmt.Fprintf(a.stdout, "Payment method %q created with ID %d\n", pm.Name, pm.ID)
				return nil
			})
		},
	}

	del := &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a payment method no expense uses",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return a.withStore(cmd.Context(), func(store ledger.Store) error {
				if err := services.NewPaymentMethodService(store).Delete(cmd.Context(), id); err != nil {
					return describe(err)
				}
				fmt.Fprintf(a.stdout, "Payment method %d deleted\n", id)
				return nil
			})
		},
	}

	cmd.AddCommand(list, add, del)
	return cmd
}

func newSummaryCmd(a *app) *cobra.Command {
	var from, to string
	cmd := &cobra.Command{
		Use:   "summary USER_ID",
		Short: "Print a user's spending summary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := parseID(args[0])
			if err != nil {
				return err
			}
			var p core.Period
			if from != "" {
				if p.From, err = core.ParseYearMonth(from); err != nil {
					return err
				}
			}
			if to != "" {
				if p.To, err = core.ParseYearMonth(to); err != nil {
					return err
				}
			}
			return a.withStore(cmd.Context(), func(store ledger.Store) error {
				s, err := services.NewSummaryService(store, nil).UserSummary(cmd.Context(), userID, p)
				if err != nil {
					return describe(err)
				}
				printSummary(a.stdout, s)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "first month, YYYY-MM")
	cmd.Flags().StringVar(&to, "to", "", "last month, YYYY-MM")
	return cmd
}

// schemaVersioner is implemented by stores backed by migrations.
type schemaVersioner interface {
	SchemaVersion(ctx context.Context) (uint, bool, error)
}

func newDBCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "db", Short: "Inspect the database"}

	version := &cobra.Command{
		Use:   "version",
		Short: "Print the applied schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withStore(cmd.Context(), func(store ledger.Store) error {
				sv, ok := store.(schemaVersioner)
				if !ok {
					return errors.New("store has no schema version")
				}
				v, dirty, err := sv.SchemaVersion(cmd.Context())
				if err != nil {
					return err
				}
				if dirty {
					fmt.Fprintf(a.stdout, "Schema version %d (dirty)\n", v)
					return nil
				}
				fmt.Fprintf(a.stdout, "Schema version %d\n", v)
				return nil
			})
		},
	}

	cmd.AddCommand(version)
	return cmd
}

func printSummary(w io.Writer, s core.UserSummary) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "User\t%s (%d)\n", s.Username, s.UserID)
	if s.Salary != nil {
		fmt.Fprintf(tw, "Salary\t%s\n", *s.Salary)
	} else {
		fmt.Fprintln(tw, "Salary\tnot set")
	}
	fmt.Fprintf(tw, "Spent in %s\t%s\n", s.CurrentMonth, s.CurrentMonthSpend)
	if s.Budget.RemainingSalary != nil {
		fmt.Fprintf(tw, "Remaining\t%s (%s%%)\n", *s.Budget.RemainingSalary, s.Budget.RemainingPercentage.StringFixed(2))
	}
	fmt.Fprintf(tw, "Monthly average\t%s\n", s.MonthlyAverage)
	fmt.Fprintln(tw)
	fmt.Fprintln(tw, "CATEGORY\tTOTAL")
	for _, c := range s.Categories {
		fmt.Fprintf(tw, "%s\t%s\n", c.Category, c.Amount)
	}
	fmt.Fprintln(tw)
	fmt.Fprintln(tw, "MONTH\tTOTAL")
	for _, m := range s.Months {
		fmt.Fprintf(tw, "%s\t%s\n", m.Month, m.Total)
	}
	_ = tw.Flush()
}

// describe turns domain errors into messages fit for a terminal.
func describe(err error) error {
	if v, ok := core.AsValidation(err); ok {
		var b strings.Builder
		b.WriteString("invalid input:")
		keys := maps.Keys(v.Fields)
		slices.Sort(keys)
		for _, f := range keys {
			fmt.Fprintf(&b, "\n  %s: %s", f, v.Fields[f])
		}
		return errors.New(b.String())
	}
	return err
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", raw)
	}
	return id, nil
}

func readPassword(stdin io.Reader) (string, error) {
	if f, ok := stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
	scanner := bufio.NewScanner(stdin)
	if scanner.Scan() {
		return scanner.Text(), nil
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}
