// Package commands holds the cobra command tree of the listings-api binary.
package commands

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

const defaultConfigPath = "config.yaml"

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	// .env only fills variables that are not set yet
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:           "listings-api",
		Short:         "Office listings service: search, imports, images and collections",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().String("config", defaultConfigPath, "path to the YAML config file")

	rootCmd.AddCommand(
		ServeCmd(),
		MigrateCmd(),
		ImportCmd(),
		MatchMemosCmd(),
		UserCmd(),
		WorkerCmd(),
	)
	return rootCmd
}
