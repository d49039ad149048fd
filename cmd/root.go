package cmd

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/zjrosen/statesync/internal/config"
)

var (
	version   = "dev"
	cfgFile   string
	serverURL string
	cfg       config.Config
)

var rootCmd = &cobra.Command{
	Use:   "statesync",
	Short: "Versioned shared state over HTTP long-polling",
	Long: `statesync serves named, versioned blobs over HTTP. Clients create a
resource, update it by naming the next version, and long-poll for versions
that do not exist yet.`,
	Version:       version,
	SilenceUsage:  true,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"config file (default: ~/.config/statesync/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&serverURL, "server", "s", "http://localhost:8080",
		"statesync server URL for client commands")
}

// setDefaults registers every config key with viper so env overrides and
// Unmarshal see the full tree even without a config file.
func setDefaults(v *viper.Viper) {
	defaults := config.Defaults()
	v.SetDefault("server.addr", defaults.Server.Addr)
	v.SetDefault("server.max_body_bytes", defaults.Server.MaxBodyBytes)
	v.SetDefault("server.long_poll_timeout", defaults.Server.LongPollTimeout)
	v.SetDefault("server.read_header_timeout", defaults.Server.ReadHeaderTimeout)
	v.SetDefault("server.shutdown_timeout", defaults.Server.ShutdownTimeout)
	v.SetDefault("log.level", defaults.Log.Level)
	v.SetDefault("log.file", defaults.Log.File)
	v.SetDefault("cache.snapshot_ttl", defaults.Cache.SnapshotTTL)
	v.SetDefault("cache.cleanup_interval", defaults.Cache.CleanupInterval)
	v.SetDefault("tracing.enabled", defaults.Tracing.Enabled)
	v.SetDefault("tracing.exporter", defaults.Tracing.Exporter)
	v.SetDefault("tracing.file_path", defaults.Tracing.FilePath)
	v.SetDefault("tracing.otlp_endpoint", defaults.Tracing.OTLPEndpoint)
	v.SetDefault("tracing.sample_rate", defaults.Tracing.SampleRate)
	v.SetDefault("tracing.service_name", defaults.Tracing.ServiceName)
	v.SetDefault("metrics.enabled", defaults.Metrics.Enabled)
	for name, enabled := range defaults.Flags {
		v.SetDefault("flags."+name, enabled)
	}
}

func initConfig() {
	v := viper.GetViper()
	setDefaults(v)

	v.SetEnvPrefix("STATESYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		// Config lookup order:
		// 1. .statesync/config.yaml (current directory)
		// 2. ~/.config/statesync/config.yaml (user config)
		if _, err := os.Stat(".statesync/config.yaml"); err == nil {
			v.SetConfigFile(".statesync/config.yaml")
		} else {
			home, _ := os.UserHomeDir()
			v.AddConfigPath(filepath.Join(home, ".config", "statesync"))
			v.SetConfigName("config")
			v.SetConfigType("yaml")
		}
	}

	if err := v.ReadInConfig(); err != nil {
		// No config file found anywhere - create default at .statesync/config.yaml
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			defaultPath := ".statesync/config.yaml"
			if writeErr := config.WriteDefaultConfig(defaultPath); writeErr == nil {
				v.SetConfigFile(defaultPath)
				_ = v.ReadInConfig()
			}
			// If write fails, just continue with defaults (no config file)
		}
	}

	_ = v.Unmarshal(&cfg)
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// SetVersion sets the version string (called from main with ldflags)
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}
