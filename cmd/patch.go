package cmd

import (
	"fmt"

	jsonpatch "github.com/evanphx/json-patch"
	"github.com/spf13/cobra"

	"github.com/zjrosen/statesync/internal/client"
)

var patchCmd = &cobra.Command{
	Use:   "patch NAME [PATCH]",
	Short: "Apply a JSON patch to a resource and write the next version",
	Long: `Read the current data of a JSON resource, apply PATCH and write the
result as the next version. PATCH is an RFC 6902 operation list, or an
RFC 7386 merge patch with --merge. It is read from stdin when omitted.

A concurrent update makes the write fail; the read and patch are then
retried up to --attempts times.

Example:
  statesync patch config '[{"op":"replace","path":"/theme","value":"light"}]'
  statesync patch config --merge '{"theme":"light"}'`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		patch, err := readData(args, 1, stdin)
		if err != nil {
			return err
		}
		merge, _ := cmd.Flags().GetBool("merge")
		attempts, _ := cmd.Flags().GetInt("attempts")

		res, err := newClient().Modify(cmd.Context(), args[0], attempts, func(current client.Resource) ([]byte, error) {
			return applyPatch([]byte(current.Data), patch, merge)
		})
		if err != nil {
			return err
		}
		return printResource(cmd.OutOrStdout(), res)
	},
}

func init() {
	rootCmd.AddCommand(patchCmd)

	patchCmd.Flags().Bool("merge", false, "treat PATCH as a JSON merge patch")
	patchCmd.Flags().Int("attempts", 3, "attempts before giving up on concurrent updates")
}

func applyPatch(doc, patch []byte, merge bool) ([]byte, error) {
	if merge {
		out, err := jsonpatch.MergePatch(doc, patch)
		if err != nil {
			return nil, fmt.Errorf("applying merge patch: %w", err)
		}
		return out, nil
	}

	ops, err := jsonpatch.DecodePatch(patch)
	if err != nil {
		return nil, fmt.Errorf("decoding patch: %w", err)
	}
	out, err := ops.Apply(doc)
	if err != nil {
		return nil, fmt.Errorf("applying patch: %w", err)
	}
	return out, nil
}
