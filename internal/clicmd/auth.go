package clicmd

import (
	"fmt"
	"os"

	"golang.org/x/term"
)

// promptPassword reads an IMAP password from the controlling terminal
// without echoing it, for hosts whose config omits imap.password.
func promptPassword(user string) (string, error) {
	fmt.Printf("IMAP password for %s: ", user)
	passwordBytes, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(passwordBytes), nil
}
