package store

import (
	"testing"

	"mailcache/internal/cachemode"
	"mailcache/internal/folder"
)

func TestOpenReturnsSameInstanceForSameKey(t *testing.T) {
	root := t.TempDir()
	s1, err := Open(root, "alice", "/", cachemode.Offline, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	s2, err := Open(root, "alice", "/", cachemode.Accelerated, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if s1 != s2 {
		t.Fatalf("expected the same Store instance for the same (root, username)")
	}
	if s1.Mode() != cachemode.Offline {
		t.Fatalf("second Open should not override the already-registered store's mode")
	}
	s1.Close()
}

func TestSetModeReturnsPrevious(t *testing.T) {
	root := t.TempDir()
	s, err := Open(root, "bob", "/", cachemode.Accelerated, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	prev := s.SetMode(cachemode.Refresh)
	if prev != cachemode.Accelerated {
		t.Fatalf("expected previous mode ACCELERATED, got %v", prev)
	}
	if s.Mode() != cachemode.Refresh {
		t.Fatalf("expected current mode REFRESH, got %v", s.Mode())
	}
}

func TestGetFolderCachesHandle(t *testing.T) {
	root := t.TempDir()
	s, err := Open(root, "carol", "/", cachemode.Accelerated, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	f1 := s.GetFolder("INBOX")
	f2 := s.GetFolder("INBOX")
	if f1 != f2 {
		t.Fatalf("expected GetFolder to return the cached handle")
	}
	var _ *folder.Folder = f1
}
