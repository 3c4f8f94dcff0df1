package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/Rhymond/go-money"
	"github.com/google/subcommands"

	"github.com/mmynk/splitledger/internal/config"
	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/service"
	"github.com/mmynk/splitledger/internal/storage"
	"github.com/mmynk/splitledger/internal/storage/sqlite"
)

var errNoGroup = errors.New("-group is required")

// groupFlag is shared by every command that reads one group.
type groupFlag struct {
	groupID string
}

func (g *groupFlag) SetFlags(f *flag.FlagSet) {
	f.StringVar(&g.groupID, "group", "", "ID of the group to read")
}

// withGroup opens the configured store, loads the group and calls fn.
func (g *groupFlag) withGroup(ctx context.Context, fn func(store storage.Store, group *models.Group, currency string) error) subcommands.ExitStatus {
	if g.groupID == "" {
		fmt.Fprintln(os.Stderr, errNoGroup)
		return subcommands.ExitUsageError
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer store.Close()

	group, err := store.GetGroup(ctx, g.groupID)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}

	if err := fn(store, group, cfg.Currency); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

type balancesCmd struct {
	groupFlag
}

func (*balancesCmd) Name() string     { return "balances" }
func (*balancesCmd) Synopsis() string { return "print every member's paid, owed and net amounts" }
func (*balancesCmd) Usage() string {
	return `ledgerctl balances -group <id>

  Positive net balances are owed money, negative ones owe money.
`
}

func (c *balancesCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return c.withGroup(ctx, func(store storage.Store, group *models.Group, currency string) error {
		report, err := service.ComputeBalances(ctx, store, group)
		if err != nil {
			return err
		}
		return printBalances(os.Stdout, report, currency)
	})
}

type planCmd struct {
	groupFlag
}

func (*planCmd) Name() string     { return "plan" }
func (*planCmd) Synopsis() string { return "print the payments that settle the group" }
func (*planCmd) Usage() string {
	return `ledgerctl plan -group <id>

  Prints one line per suggested payment. The plan is recomputed on every run.
`
}

func (c *planCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return c.withGroup(ctx, func(store storage.Store, group *models.Group, currency string) error {
		report, err := service.ComputeBalances(ctx, store, group)
		if err != nil {
			return err
		}
		return printPlan(os.Stdout, report, currency)
	})
}

type membersCmd struct {
	groupFlag
}

func (*membersCmd) Name() string     { return "members" }
func (*membersCmd) Synopsis() string { return "list the members of a group" }
func (*membersCmd) Usage() string {
	return "ledgerctl members -group <id>\n"
}

func (c *membersCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return c.withGroup(ctx, func(_ storage.Store, group *models.Group, _ string) error {
		return printMembers(os.Stdout, group)
	})
}

func printBalances(w io.Writer, report *service.BalanceReport, currency string) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "MEMBER\tPAID\tOWED\tNET\n")
	for _, b := range report.Balances {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			report.MemberName(b.MemberID),
			display(b.TotalPaid, currency),
			display(b.TotalOwed, currency),
			display(b.NetBalance, currency),
		)
	}
	if report.Drift != 0 {
		fmt.Fprintf(tw, "(rounding drift %s)\t\t\t\n", display(report.Drift, currency))
	}
	return tw.Flush()
}

func printPlan(w io.Writer, report *service.BalanceReport, currency string) error {
	if len(report.Suggestions) == 0 {
		_, err := fmt.Fprintln(w, "All settled up.")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, s := range report.Suggestions {
		fmt.Fprintf(tw, "%s\tpays\t%s\t%s\n",
			report.MemberName(s.From), report.MemberName(s.To), display(s.Amount, currency))
	}
	return tw.Flush()
}

func printMembers(w io.Writer, group *models.Group) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "ID\tNAME\tKIND\n")
	for _, m := range group.Members {
		kind := "registered"
		if m.IsPlaceholder() {
			kind = "placeholder"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", m.ID, m.Name, kind)
	}
	return tw.Flush()
}

// display formats an amount in smallest units with the currency's symbol
// and fraction digits. Unknown currency codes print the raw amount.
func display(amount int64, currency string) string {
	if money.GetCurrency(currency) == nil {
		return fmt.Sprintf("%d %s", amount, currency)
	}
	return money.New(amount, currency).Display()
}
