package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// newDiffCmd creates the 'diff' subcommand, a dry run that is useful when
// tuning target.selector.
func newDiffCmd() *cobra.Command {
	var noColor bool
	cmd := &cobra.Command{
		Use:   "diff",
		Short: "Print the diff between the live page and the stored snapshot",
		Long: `Fetches the page and prints the unified diff against the stored previous
snapshot. Nothing is emailed, saved or logged.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			res, err := appInstance.Runner().Preview(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if !res.Changed {
				_, err := fmt.Fprintln(out, "No changes since the previous run.")
				return err
			}
			return writeDiff(out, res.Diff, noColor)
		},
	}
	cmd.Flags().BoolVar(&noColor, "no-color", false, "disable colored output")
	return cmd
}

func writeDiff(out io.Writer, diff string, noColor bool) error {
	added := color.New(color.FgGreen)
	removed := color.New(color.FgRed)
	hunk := color.New(color.FgCyan)
	if noColor {
		added.DisableColor()
		removed.DisableColor()
		hunk.DisableColor()
	}

	for _, line := range strings.SplitAfter(diff, "\n") {
		if line == "" {
			continue
		}
		var err error
		switch {
		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
			_, err = fmt.Fprint(out, line)
		case strings.HasPrefix(line, "@@"):
			_, err = hunk.Fprint(out, line)
		case strings.HasPrefix(line, "+"):
			_, err = added.Fprint(out, line)
		case strings.HasPrefix(line, "-"):
			_, err = removed.Fprint(out, line)
		default:
			_, err = fmt.Fprint(out, line)
		}
		if err != nil {
			return err
		}
	}
	return nil
}
