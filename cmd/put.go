package cmd

import (
	"github.com/spf13/cobra"
)

var putCmd = &cobra.Command{
	Use:   "put NAME VERSION [DATA]",
	Short: "Write version VERSION of a resource",
	Long: `Update a resource. VERSION must be exactly the current version plus one
(the number at the end of updateUrl). DATA is read from stdin when omitted.

Example:
  statesync put config 2 '{"theme":"light"}'`,
	Args: cobra.RangeArgs(2, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		version, err := parseVersion(args[1])
		if err != nil {
			return err
		}
		data, err := readData(args, 2, stdin)
		if err != nil {
			return err
		}
		res, err := newClient().Update(cmd.Context(), args[0], version, data)
		if err != nil {
			return err
		}
		return printResource(cmd.OutOrStdout(), res)
	},
}

func init() {
	rootCmd.AddCommand(putCmd)
}
