package cmd

import (
	"github.com/spf13/cobra"
)

var createCmd = &cobra.Command{
	Use:   "create NAME [DATA]",
	Short: "Create a resource at version 1",
	Long: `Create a resource. DATA is read from stdin when omitted.

Example:
  statesync create config '{"theme":"dark"}'
  cat state.json | statesync create config`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := readData(args, 1, stdin)
		if err != nil {
			return err
		}
		res, err := newClient().Create(cmd.Context(), args[0], data)
		if err != nil {
			return err
		}
		return printResource(cmd.OutOrStdout(), res)
	},
}

func init() {
	rootCmd.AddCommand(createCmd)
}
