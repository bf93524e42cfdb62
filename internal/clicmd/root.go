// Package clicmd implements mailcachectl's Cobra command tree: sync,
// stats, purge, clear, mode, and an interactive Bubble Tea browser, all
// wired against internal/store, internal/cachemanager, and
// internal/hostconfig (spec.md §6's host-embedding surface).
package clicmd

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "mailcachectl",
	Short: "Inspect and drive a mailcache Cache Engine store",
	Long:  "mailcachectl - inspect and drive a mailcache Cache Engine store from the command line",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBrowse(cmd, args)
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", defaultConfigPath(), "path to the mailcache host config YAML file")
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(purgeCmd)
	rootCmd.AddCommand(clearCmd)
	rootCmd.AddCommand(modeCmd)
	rootCmd.AddCommand(browseCmd)
}

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "mailcache.yaml"
	}
	return filepath.Join(home, ".mailcache.yaml")
}
