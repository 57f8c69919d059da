package main

import (
	"fmt"

	"bilancio/internal/cli"

	"github.com/spf13/cobra"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write a month's snapshot to the configured spreadsheet",
	RunE:  runExport,
}

func init() {
	exportCmd.Flags().StringVarP(&flagMonth, "month", "m", "", "Month as YYYY-MM (default: current month)")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, _ []string) error {
	owner, err := requireOwner()
	if err != nil {
		return err
	}
	app, err := openApp(cmd.Context(), cli.Options{Export: true})
	if err != nil {
		return err
	}
	defer app.Close()

	month := flagMonth
	if month == "" {
		month = monthOf(app.Budget.Today())
	}
	ref, err := app.Budget.ExportSnapshot(cmd.Context(), owner, month)
	if err != nil {
		return err
	}
	if flagJSON {
		return printJSON(cmd.OutOrStdout(), map[string]string{"month": month, "ref": ref})
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "Exported %s for %s: %s\n", month, owner, ref)
	return err
}
