package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/sergi/go-diff/diffmatchpatch"
	"github.com/spf13/cobra"

	"github.com/zjrosen/statesync/internal/client"
)

var watchCmd = &cobra.Command{
	Use:   "watch NAME",
	Short: "Follow a resource and print a diff for every new version",
	Long: `Print the current state of a resource, then a line diff against the
previous version each time it changes. Runs until interrupted.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		noColor, _ := cmd.Flags().GetBool("no-color")
		colorize := !noColor && !color.NoColor

		err := newClient().Watch(ctx, args[0], versionPrinter(cmd.OutOrStdout(), colorize))
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().Bool("no-color", false, "disable colored diff output")
}

// versionPrinter prints the first resource in full and every later one as
// a diff against its predecessor.
func versionPrinter(w io.Writer, colorize bool) func(client.Resource) error {
	var prev *client.Resource
	return func(res client.Resource) error {
		if prev == nil {
			_, err := fmt.Fprintf(w, "@@ version %d\n%s\n", res.Version, trimNewline(res.Data))
			prev = &res
			return err
		}
		_, err := fmt.Fprintf(w, "@@ version %d -> %d\n%s", prev.Version, res.Version, lineDiff(prev.Data, res.Data, colorize))
		prev = &res
		return err
	}
}

// lineDiff renders a unified-style line diff of oldText and newText with
// "-", "+" and " " prefixes. With colorize, removed lines are red and added
// lines green.
func lineDiff(oldText, newText string, colorize bool) string {
	dmp := diffmatchpatch.New()

	// Diff whole lines: map each line to a rune, diff, then map back
	a, b, lines := dmp.DiffLinesToChars(oldText, newText)
	diffs := dmp.DiffMain(a, b, false)
	diffs = dmp.DiffCharsToLines(diffs, lines)

	removed := color.New(color.FgRed)
	added := color.New(color.FgGreen)
	if colorize {
		removed.EnableColor()
		added.EnableColor()
	} else {
		removed.DisableColor()
		added.DisableColor()
	}

	var sb strings.Builder
	for _, d := range diffs {
		prefix, paint := " ", (*color.Color)(nil)
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			prefix, paint = "-", removed
		case diffmatchpatch.DiffInsert:
			prefix, paint = "+", added
		}
		for _, line := range strings.SplitAfter(d.Text, "\n") {
			if line == "" {
				continue
			}
			text := prefix + strings.TrimSuffix(line, "\n")
			if paint != nil {
				text = paint.Sprint(text)
			}
			sb.WriteString(text)
			sb.WriteString("\n")
		}
	}
	return sb.String()
}
