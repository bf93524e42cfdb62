package clicmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"mailcache/internal/cachemode"
)

var modeCmd = &cobra.Command{
	Use:   "mode [new-mode]",
	Short: "Print the store's active mode, or elevate it for this process",
	Long: `With no argument, prints the mode resolved from the host config.
With an argument (OFFLINE, ACCELERATED, ONLINE, REFRESH, DESTRUCTIVE), opens
the store and switches it to that mode for the remainder of this process;
the change is not written back to the config file.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession()
		if err != nil {
			return err
		}
		defer s.close()

		if len(args) == 0 {
			fmt.Println(s.store.Mode())
			return nil
		}

		newMode, err := cachemode.Parse(args[0])
		if err != nil {
			return fmt.Errorf("mode: %w", err)
		}
		prev := s.store.SetMode(newMode)
		fmt.Printf("%s -> %s\n", prev, s.store.Mode())
		return nil
	},
}
