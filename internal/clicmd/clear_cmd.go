package clicmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var clearCmd = &cobra.Command{
	Use:   "clear [folder]",
	Short: "Remove a folder's cache directory (or the entire cache root)",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := ""
		if len(args) > 0 {
			path = args[0]
		}

		s, err := openSession()
		if err != nil {
			return err
		}
		defer s.close()

		if err := s.mgr.ClearCache(path); err != nil {
			return fmt.Errorf("clear: %w", err)
		}
		fmt.Printf("cleared %s\n", folderLabel(path))
		return nil
	},
}
