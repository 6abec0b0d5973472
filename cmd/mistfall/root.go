package main

import (
	"github.com/spf13/cobra"

	"github.com/mistfall/mistfall/internal/paths"
)

// Exit codes, set via os.Exit in main on a non-nil Execute error.
const (
	exitSuccess   = 0
	exitUserError = 1
	exitSysError  = 2
)

// Global flag values.
var (
	flagConfigDir string
	flagDataDir   string
	flagSchema    string
)

// configDataDir holds the data_dir value loaded from config.yaml, set by
// PersistentPreRunE so every subcommand can see it.
var configDataDir string

var rootCmd = &cobra.Command{
	Use:   "mistfall",
	Short: "mistfall inspects and validates Mistfall object stores and schema documents",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" {
			return nil
		}
		configDir, err := resolveConfigDir()
		if err != nil {
			return err
		}
		cfg, err := loadConfig(configDir)
		if err != nil {
			return err
		}
		configDataDir = cfg.GetString(cfgKeyDataDir)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfigDir, "config-dir", "", "configuration directory (default: platform default)")
	rootCmd.PersistentFlags().StringVar(&flagDataDir, "data-dir", "", "data directory (default: platform default)")
	rootCmd.PersistentFlags().StringVar(&flagSchema, "schema", "", "path to a schema document (JSON or YAML)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(doctorCmd)
}

// resolveDataDir returns the data directory following the precedence chain:
// --data-dir flag > MISTFALL_DATA_DIR env > config.yaml data_dir > .mistfall-db
// under the current working directory.
func resolveDataDir() (string, error) {
	return paths.ResolveDataDir(flagDataDir, configDataDir)
}

// resolveConfigDir returns the configuration directory following the
// precedence chain: --config-dir flag > MISTFALL_CONFIG_DIR env > platform default.
func resolveConfigDir() (string, error) {
	return paths.ResolveConfigDir(flagConfigDir)
}
