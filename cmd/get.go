package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var getCmd = &cobra.Command{
	Use:   "get NAME [VERSION]",
	Short: "Read a resource, waiting if VERSION does not exist yet",
	Long: `Read a resource. With VERSION greater than the current version the
request long-polls until the next write or the server's timeout.

Example:
  statesync get config       # current state
  statesync get config 3     # wait for version 3`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var version int64
		if len(args) == 2 {
			v, err := parseVersion(args[1])
			if err != nil {
				return err
			}
			version = v
		}
		res, err := newClient().Get(cmd.Context(), args[0], version)
		if err != nil {
			return err
		}
		return printResource(cmd.OutOrStdout(), res)
	},
}

func init() {
	rootCmd.AddCommand(getCmd)
}

func parseVersion(s string) (int64, error) {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("invalid version %q", s)
	}
	return v, nil
}
