package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// newRunCmd creates the 'run' subcommand: one end-to-end monitoring cycle.
func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Check the page once and email a report if it changed",
		Long: `Fetches the configured page, compares its text with the stored snapshot,
emails an HTML diff when it changed, saves the new snapshot and appends an
entry to the run log. Exits 1 on any error.`,
		Args:        cobra.NoArgs,
		Annotations: map[string]string{needsRecipients: "true"},
		RunE:        runRunCommand,
	}
}

func runRunCommand(cmd *cobra.Command, _ []string) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}

	res, err := appInstance.Runner().Run(cmd.Context())
	if err != nil {
		return err
	}

	appInstance.Logger().Info("Run command finished",
		zap.String("run_id", res.RunID),
		zap.Bool("changed", res.Changed),
		zap.String("email_status", string(res.EmailStatus)),
	)
	return nil
}
