// Package store implements CachedStore: the top-level handle for one
// cached mailbox account, owning its cache root, active mode, and optional
// remote connection (spec.md §3, §4.1).
package store

import (
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"

	"mailcache/internal/cacheerr"
	"mailcache/internal/cachemode"
	"mailcache/internal/folder"
	"mailcache/internal/layout"
)

// RemoteDialer is an open remote connection that hands out a
// folder.RemoteFolder per folder path. internal/remote.Store satisfies it
// directly.
type RemoteDialer interface {
	Folder(path string) folder.RemoteFolder
	Close() error
}

// Store is one cached mailbox account: cache root directory, username,
// active mode, and the (optional) shared remote connection every Folder
// under it uses (spec.md §5's "remote connection is shared across all
// folders of a Store").
type Store struct {
	username string
	mgr      *layout.Manager
	remote   RemoteDialer

	mode atomic.Int32

	mu      sync.Mutex
	folders map[string]*folder.Folder
}

var (
	registryMu sync.Mutex
	registry   = map[string]*Store{}
)

func registryKey(cacheRoot, username string) string {
	return cacheRoot + "\x00" + username
}

// Open returns the live Store for (cacheRoot, username), creating one if
// none exists yet, per spec.md §3's "one live instance per (cacheRoot,
// username)". remote may be nil for a store that never connects.
func Open(cacheRoot, username, separator string, mode cachemode.Mode, remote RemoteDialer) (*Store, error) {
	registryMu.Lock()
	defer registryMu.Unlock()

	// Key by the absolute root, the same form Close derives from the layout.
	if abs, err := filepath.Abs(cacheRoot); err == nil {
		cacheRoot = abs
	}
	key := registryKey(cacheRoot, username)
	if existing, ok := registry[key]; ok {
		return existing, nil
	}

	mgr, err := layout.New(cacheRoot, separator)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", cacheRoot, err)
	}
	s := &Store{username: username, mgr: mgr, remote: remote, folders: map[string]*folder.Folder{}}
	s.mode.Store(int32(mode))
	registry[key] = s
	return s, nil
}

// Close releases this store's registry entry and its remote connection, if
// any. It does not remove anything from disk.
func (s *Store) Close() error {
	registryMu.Lock()
	delete(registry, registryKey(s.mgr.Root(), s.username))
	registryMu.Unlock()

	if s.remote != nil {
		return s.remote.Close()
	}
	return nil
}

// Username returns the account this store was opened for.
func (s *Store) Username() string { return s.username }

// Root returns the absolute cache-root directory.
func (s *Store) Root() string { return s.mgr.Root() }

// Mode returns the currently active mode. Reads are lock-free; the atomic
// int32 gives every reader a release-acquire view of the mode transition
// (spec.md §5's "release-store" requirement).
func (s *Store) Mode() cachemode.Mode { return cachemode.Mode(s.mode.Load()) }

// SetMode transitions to a new mode, returning the previous one so callers
// (the Cache Manager's Synchronize, in particular) can restore it later.
func (s *Store) SetMode(m cachemode.Mode) cachemode.Mode {
	prev := cachemode.Mode(s.mode.Swap(int32(m)))
	return prev
}

// GetFolder returns the (possibly cached) handle for path, creating one on
// first access. It does not imply the folder exists on disk or remote.
func (s *Store) GetFolder(path string) *folder.Folder {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f, ok := s.folders[path]; ok {
		return f
	}
	var rf folder.RemoteFolder
	if s.remote != nil {
		rf = s.remote.Folder(path)
	}
	f := folder.New(s.mgr, path, rf, s.Mode)
	s.folders[path] = f
	return f
}

// Layout exposes the underlying layout.Manager for Cache Manager
// operations that need raw filesystem access (statistics, clear, purge).
func (s *Store) Layout() *layout.Manager { return s.mgr }

// HasRemote reports whether this store holds a live remote connection.
func (s *Store) HasRemote() bool { return s.remote != nil }

// RequireRemote returns ErrRemoteUnavailable if the active mode needs a
// remote connection and none is configured.
func (s *Store) RequireRemote() error {
	if s.Mode().RequiresRemote() && s.remote == nil {
		return cacheerr.Wrap("store.remote", "", "", cacheerr.ErrRemoteUnavailable)
	}
	return nil
}
