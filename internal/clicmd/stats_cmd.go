package clicmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print cache statistics for the whole store",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession()
		if err != nil {
			return err
		}
		defer s.close()

		stats, err := s.mgr.GetStatistics()
		if err != nil {
			return fmt.Errorf("stats: %w", err)
		}

		fmt.Printf("folders:  %d\n", stats.FolderCount)
		fmt.Printf("messages: %d\n", stats.MessageCount)
		fmt.Printf("on disk:  %s\n", stats.FormattedSize())
		return nil
	},
}
