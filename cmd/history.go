package cmd

import (
	"encoding/json"
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/pagewatch/internal/runlog"
)

const defaultHistoryLimit = 20

// newHistoryCmd creates the 'history' subcommand.
func newHistoryCmd() *cobra.Command {
	var (
		limit  int
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Print the most recent run-log entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			entries, err := appInstance.RunLog().Tail(limit)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(entries)
			}
			return writeHistoryTable(cmd, entries)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", defaultHistoryLimit, "number of entries to show (0 for all)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print entries as a JSON array")
	return cmd
}

func writeHistoryTable(cmd *cobra.Command, entries []runlog.Entry) error {
	if len(entries) == 0 {
		_, err := fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded yet.")
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIMESTAMP\tSTATUS\tCHANGED\tEMAIL\tLENGTH\tDETAIL")
	for _, e := range entries {
		changed, length := "-", "-"
		if e.Changed != nil {
			changed = strconv.FormatBool(*e.Changed)
		}
		if e.Length != nil {
			length = strconv.Itoa(*e.Length)
		}
		email := string(e.EmailStatus)
		if email == "" {
			email = "-"
		}
		detail := e.Error
		if detail == "" {
			detail = e.URL
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", e.Timestamp, e.Status, changed, email, length, truncate(detail, 80))
	}
	return w.Flush()
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-3]) + "..."
}
