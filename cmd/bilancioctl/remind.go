package main

import (
	"fmt"

	"bilancio/internal/cli"
	applog "bilancio/internal/log"
	"bilancio/internal/services"

	"github.com/spf13/cobra"
)

var (
	flagForce bool
	flagAll   bool
)

var remindCmd = &cobra.Command{
	Use:   "remind",
	Short: "Send the owner a reminder for overdue and upcoming rows",
	Long:  "Send the owner a reminder for overdue and upcoming rows. Without --all only --owner is reminded.",
	RunE:  runRemind,
}

func init() {
	remindCmd.Flags().BoolVar(&flagForce, "force", false, "Send even if the same reminder went out already")
	remindCmd.Flags().BoolVar(&flagAll, "all", false, "Sweep every owner with a profile")
	rootCmd.AddCommand(remindCmd)
}

func runRemind(cmd *cobra.Command, _ []string) error {
	app, err := openApp(cmd.Context(), cli.Options{})
	if err != nil {
		return err
	}
	defer app.Close()

	processor := services.NewReminderProcessor(app.Budget, cli.NewNotifier(app.Config, app.Logger),
		app.Config.ReminderHorizonDays, app.Logger.WithComponent(applog.ComponentReminder).Logger)
	out := cmd.OutOrStdout()

	if flagAll {
		sent, err := processor.ProcessAll(cmd.Context())
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(out, "Sent %d reminder(s)\n", sent)
		return err
	}

	owner, err := requireOwner()
	if err != nil {
		return err
	}
	remind := processor.RemindOwner
	if flagForce {
		remind = processor.ForceRemindOwner
	}
	sent, err := remind(cmd.Context(), owner)
	if err != nil {
		return err
	}
	if !sent {
		_, err = fmt.Fprintf(out, "Nothing to remind %s about\n", owner)
		return err
	}
	_, err = fmt.Fprintf(out, "Reminder sent to %s\n", owner)
	return err
}
