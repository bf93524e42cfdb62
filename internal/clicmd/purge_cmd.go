package clicmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	purgeDays           int
	purgeIncludeFlagged bool
)

var purgeCmd = &cobra.Command{
	Use:   "purge <folder>",
	Short: "Remove cached messages older than a cutoff",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession()
		if err != nil {
			return err
		}
		defer s.close()

		count, err := s.mgr.PurgeOlderThan(args[0], purgeDays, purgeIncludeFlagged)
		if err != nil {
			return fmt.Errorf("purge: %w", err)
		}
		fmt.Printf("purged %d message(s) from %s\n", count, folderLabel(args[0]))
		return nil
	},
}

func init() {
	purgeCmd.Flags().IntVar(&purgeDays, "days", 30, "purge messages sent more than this many days ago")
	purgeCmd.Flags().BoolVar(&purgeIncludeFlagged, "include-flagged", false, "also purge flagged messages")
}
