package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/zjrosen/statesync/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration as YAML",
	Long: `Print the configuration after merging defaults, the config file and
STATESYNC_* environment variables.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		out, err := config.Marshal(cfg)
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		if path := viper.ConfigFileUsed(); path != "" {
			if _, err := w.Write([]byte("# " + path + "\n")); err != nil {
				return err
			}
		}
		_, err = w.Write(out)
		return err
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
}
