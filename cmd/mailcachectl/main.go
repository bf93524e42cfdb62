// Command mailcachectl is an operator-host demonstration of the mailcache
// Cache Engine: a thin Cobra CLI plus an interactive Bubble Tea browser.
package main

import (
	"fmt"
	"os"

	"mailcache/internal/clicmd"
)

func main() {
	if err := clicmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
