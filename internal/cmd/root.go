// Package cmd holds the cororund command tree.
package cmd

import (
	"github.com/spf13/cobra"
)

const defaultConfigPath = "./cororun.yaml"

var rootCmd = &cobra.Command{
	Use:   "cororund",
	Short: "Cooperative routine scheduler daemon",
	Long: `cororund drives named routines on a single pump goroutine. Routines are
started by built-ins, triggers or the debug API, and every lifecycle
transition can be logged, published on the event bus or audited to storage.`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", defaultConfigPath, "config file (JSON or YAML)")
}

func configPath(cmd *cobra.Command) string {
	p, err := cmd.Flags().GetString("config")
	if err != nil || p == "" {
		return defaultConfigPath
	}
	return p
}
