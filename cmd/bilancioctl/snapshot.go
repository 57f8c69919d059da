package main

import (
	"errors"
	"fmt"

	"bilancio/internal/cli"
	"bilancio/internal/core"

	"github.com/spf13/cobra"
)

var (
	flagMonth string
	flagStart string
	flagEnd   string
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Show the rows and totals of a month or a range of months",
	Example: `  bilancioctl snapshot --owner alice --month 2026-03
  bilancioctl snapshot --owner alice --start 2026-01-01 --end 2026-03-31`,
	RunE: runSnapshot,
}

var unpaidCmd = &cobra.Command{
	Use:   "unpaid",
	Short: "List unpaid rows due in [start, end), the current month by default",
	RunE:  runUnpaid,
}

func init() {
	snapshotCmd.Flags().StringVarP(&flagMonth, "month", "m", "", "Month as YYYY-MM (default: current month)")
	snapshotCmd.Flags().StringVar(&flagStart, "start", "", "First month of a range, as an ISO date")
	snapshotCmd.Flags().StringVar(&flagEnd, "end", "", "Last month of a range, as an ISO date")
	snapshotCmd.MarkFlagsRequiredTogether("start", "end")
	snapshotCmd.MarkFlagsMutuallyExclusive("month", "start")

	unpaidCmd.Flags().StringVar(&flagStart, "start", "", "Inclusive start date (default: first of this month)")
	unpaidCmd.Flags().StringVar(&flagEnd, "end", "", "Exclusive end date (default: first of next month)")

	rootCmd.AddCommand(snapshotCmd, unpaidCmd)
}

func runSnapshot(cmd *cobra.Command, _ []string) error {
	owner, err := requireOwner()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	app, err := openApp(ctx, cli.Options{})
	if err != nil {
		return err
	}
	defer app.Close()

	var snap core.Snapshot
	if flagStart != "" {
		start, err := parseDateFlag("start", flagStart)
		if err != nil {
			return err
		}
		end, err := parseDateFlag("end", flagEnd)
		if err != nil {
			return err
		}
		snap, err = app.Budget.Snapshot(ctx, owner, start, end)
		if err != nil {
			return err
		}
	} else {
		month := flagMonth
		if month == "" {
			month = monthOf(app.Budget.Today())
		}
		snap, err = app.Budget.MonthSnapshot(ctx, owner, month)
		if err != nil {
			return err
		}
	}

	return printSnapshot(cmd, snap, app.Budget.Today())
}

func runUnpaid(cmd *cobra.Command, _ []string) error {
	owner, err := requireOwner()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	app, err := openApp(ctx, cli.Options{})
	if err != nil {
		return err
	}
	defer app.Close()

	today := app.Budget.Today()
	start, end := today.FirstOfMonth(), core.Date{}
	if flagStart != "" {
		if start, err = parseDateFlag("start", flagStart); err != nil {
			return err
		}
	}
	if flagEnd != "" {
		if end, err = parseDateFlag("end", flagEnd); err != nil {
			return err
		}
	} else {
		end = core.NewDate(start.Year(), start.Month()+1, 1)
	}
	if !start.Before(end) {
		return errors.New("--start must be before --end")
	}

	snap, err := app.Budget.UnpaidInRange(ctx, owner, start, end)
	if err != nil {
		return err
	}
	return printSnapshot(cmd, snap, today)
}

func printSnapshot(cmd *cobra.Command, snap core.Snapshot, today core.Date) error {
	if flagJSON {
		return printJSON(cmd.OutOrStdout(), snap)
	}
	_, err := fmt.Fprint(cmd.OutOrStdout(), cli.RenderSnapshot(snap, today))
	return err
}

func monthOf(d core.Date) string {
	return fmt.Sprintf("%04d-%02d", d.Year(), d.Month())
}
