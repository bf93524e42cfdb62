package clicmd

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:   "sync [folder]",
	Short: "Synchronize a folder subtree against the remote",
	Long: `Recursively hydrate every message under the given folder (or the
whole tree, if omitted) from the remote server, temporarily elevating the
store to REFRESH mode for the duration of the sync.`,
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

		results, err := s.mgr.Synchronize(context.Background(), path)
		if err != nil {
			return fmt.Errorf("sync: %w", err)
		}

		paths := make([]string, 0, len(results))
		for p := range results {
			paths = append(paths, p)
		}
		sort.Strings(paths)

		failures := 0
		for _, p := range paths {
			status := results[p]
			if status.Success {
				fmt.Printf("  %s: %d message(s) synced\n", folderLabel(p), status.SyncedCount)
				continue
			}
			failures++
			fmt.Printf("  %s: error: %s\n", folderLabel(p), status.LastError)
		}

		if failures > 0 {
			return fmt.Errorf("sync completed with %d folder failure(s)", failures)
		}
		fmt.Printf("sync complete: %d folder(s)\n", len(paths))
		return nil
	},
}

func folderLabel(path string) string {
	if path == "" {
		return "/"
	}
	return path
}
