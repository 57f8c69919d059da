package main

import (
	"fmt"
	"strconv"

	"bilancio/internal/cli"
	"bilancio/internal/core"

	"github.com/spf13/cobra"
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "List the owner's recurring rules",
	RunE:  runRules,
}

var entriesCmd = &cobra.Command{
	Use:   "entries",
	Short: "List the owner's one-time entries",
	RunE:  runEntries,
}

func init() {
	rootCmd.AddCommand(rulesCmd, entriesCmd)
}

func runRules(cmd *cobra.Command, _ []string) error {
	owner, err := requireOwner()
	if err != nil {
		return err
	}
	app, err := openApp(cmd.Context(), cli.Options{})
	if err != nil {
		return err
	}
	defer app.Close()

	rules, err := app.Budget.ListRules(cmd.Context(), owner)
	if err != nil {
		return err
	}
	if flagJSON {
		return printJSON(cmd.OutOrStdout(), rules)
	}
	if len(rules) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "\n  No rules found.")
		return nil
	}

	t := cli.Table{
		Title:   "Recurring rules",
		Headers: []string{"ID", "Description", "Type", "Schedule", "Amount", "Active"},
		Numeric: []bool{false, false, false, false, true, false},
	}
	for _, r := range rules {
		t.Rows = append(t.Rows, []string{
			r.ID, r.Description, string(r.Type), schedule(r), core.FormatAmount(r.Amount), strconv.FormatBool(r.Active),
		})
	}
	_, err = fmt.Fprint(cmd.OutOrStdout(), cli.RenderTable(t))
	return err
}

func runEntries(cmd *cobra.Command, _ []string) error {
	owner, err := requireOwner()
	if err != nil {
		return err
	}
	app, err := openApp(cmd.Context(), cli.Options{})
	if err != nil {
		return err
	}
	defer app.Close()

	entries, err := app.Budget.ListEntries(cmd.Context(), owner)
	if err != nil {
		return err
	}
	if flagJSON {
		return printJSON(cmd.OutOrStdout(), entries)
	}
	if len(entries) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "\n  No entries found.")
		return nil
	}

	t := cli.Table{
		Title:   "One-time entries",
		Headers: []string{"ID", "Due", "Description", "Type", "Amount", "Paid on"},
		Numeric: []bool{false, false, false, false, true, false},
	}
	for _, e := range entries {
		t.Rows = append(t.Rows, []string{
			e.ID, e.DueDate.String(), e.Description, string(e.Type), core.FormatAmount(e.Amount), e.PaidOn.String(),
		})
	}
	_, err = fmt.Fprint(cmd.OutOrStdout(), cli.RenderTable(t))
	return err
}

// schedule describes when a rule fires, e.g. "monthly on day 1" or
// "every 2 weeks on Mon". Weekly rules step from their anchor date.
func schedule(r core.Rule) string {
	interval := max(r.Interval, 1)
	switch r.Frequency {
	case core.Monthly:
		if interval == 1 {
			return fmt.Sprintf("monthly on day %d", r.DayOfMonth)
		}
		return fmt.Sprintf("every %d months on day %d", interval, r.DayOfMonth)
	case core.Weekly, core.Biweekly:
		if r.Frequency == core.Biweekly {
			interval = 2
		}
		day := r.StartAnchor.Weekday().String()[:3]
		if interval == 1 {
			return "weekly on " + day
		}
		return fmt.Sprintf("every %d weeks on %s", interval, day)
	default:
		return string(r.Frequency)
	}
}
