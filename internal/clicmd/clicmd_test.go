package clicmd

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFolderLabel(t *testing.T) {
	if got := folderLabel(""); got != "/" {
		t.Fatalf("folderLabel(\"\") = %q, want \"/\"", got)
	}
	if got := folderLabel("INBOX/Archive"); got != "INBOX/Archive" {
		t.Fatalf("folderLabel(INBOX/Archive) = %q, want unchanged", got)
	}
}

func TestDefaultConfigPathIsAbsoluteWhenHomeKnown(t *testing.T) {
	path := defaultConfigPath()
	if path == "" {
		t.Fatalf("expected a non-empty default config path")
	}
	if home, err := os.UserHomeDir(); err == nil && filepath.IsAbs(home) && !filepath.IsAbs(path) {
		t.Fatalf("expected an absolute default config path, got %q", path)
	}
}
