// Package cachemanager implements the Cache Manager for a Store, providing
// synchronize, clear, purge, and statistics operations across a
// folder subtree (spec.md §4.5), plus the pending-write ledger the source
// material never specified (spec.md §9's open question).
package cachemanager

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"mailcache/internal/cacheerr"
	"mailcache/internal/cachemode"
	"mailcache/internal/layout"
	"mailcache/internal/logging"
	"mailcache/internal/message"
	"mailcache/internal/store"
)

const pendingDirName = ".pending"

// maxConcurrentFolders bounds the fan-out of a subtree Synchronize so a
// wide mail hierarchy doesn't open hundreds of simultaneous remote
// sessions against one shared connection.
const maxConcurrentFolders = 4

// SyncStatus is the per-folder synchronization record spec.md §3 names:
// last sync time, success flag, synced-message count, last error.
type SyncStatus struct {
	FolderPath   string
	LastSyncTime time.Time
	Success      bool
	SyncedCount  int
	LastError    string
}

// CacheStats is the aggregate statistics record spec.md §3 names.
type CacheStats struct {
	FolderCount  int
	MessageCount int
	TotalBytes   int64
}

// FormattedSize renders TotalBytes in human-readable form.
func (c CacheStats) FormattedSize() string {
	const unit = 1024
	if c.TotalBytes < unit {
		return fmt.Sprintf("%d B", c.TotalBytes)
	}
	div, exp := int64(unit), 0
	for n := c.TotalBytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(c.TotalBytes)/float64(div), "KMGTPE"[exp])
}

// PendingWrite records a best-effort ACCELERATED-mode write that could not
// reach the remote at the time it was made, for later reconciliation via
// DrainPending.
type PendingWrite struct {
	ID         string    `json:"id"`
	FolderPath string    `json:"folder_path"`
	MessageID  string    `json:"message_id"`
	Flags      []string  `json:"flags"`
	CreatedAt  time.Time `json:"created_at"`
}

// Manager is the Cache Manager for one Store.
type Manager struct {
	st *store.Store

	statusMu sync.Mutex
	status   map[string]*SyncStatus
}

// New returns a new Cache Manager for st. Every call builds a separate
// Manager with its own SyncStatus records; no instance is shared per Store.
func New(st *store.Store) *Manager {
	return &Manager{st: st, status: map[string]*SyncStatus{}}
}

// Synchronize recurses a folder subtree, fetching every remote message and
// hydrating it to disk. Rejected in OFFLINE. Temporarily elevates the
// store's mode to REFRESH and restores the original mode afterward, even
// on failure (spec.md §4.5).
func (m *Manager) Synchronize(ctx context.Context, path string) (map[string]*SyncStatus, error) {
	if m.st.Mode() == cachemode.Offline {
		return nil, cacheerr.Wrap("cachemanager.synchronize", path, "", cacheerr.ErrReadOnlyMode)
	}
	if !m.st.HasRemote() {
		return nil, cacheerr.Wrap("cachemanager.synchronize", path, "", cacheerr.ErrRemoteUnavailable)
	}

	prev := m.st.SetMode(cachemode.Refresh)
	defer m.st.SetMode(prev)

	results := map[string]*SyncStatus{}
	var resultsMu sync.Mutex

	var recurse func(ctx context.Context, p string) error
	recurse = func(ctx context.Context, p string) error {
		if err := ctx.Err(); err != nil {
			return cacheerr.Wrap("cachemanager.synchronize", p, "", cacheerr.ErrCancelled)
		}

		status := m.syncOneFolder(p)
		resultsMu.Lock()
		results[p] = status
		resultsMu.Unlock()

		f := m.st.GetFolder(p)
		children, err := f.List()
		if err != nil {
			return nil // a listing failure stops descent below p without aborting the rest of the subtree
		}

		var g errgroup.Group
		g.SetLimit(maxConcurrentFolders)
		for _, child := range children {
			childPath := child
			if p != "" {
				childPath = p + "/" + child
			}
			g.Go(func() error { return recurse(ctx, childPath) })
		}
		return g.Wait()
	}

	err := recurse(ctx, path)
	return results, err
}

func (m *Manager) syncOneFolder(path string) *SyncStatus {
	status := &SyncStatus{FolderPath: path, LastSyncTime: timeNow()}

	f := m.st.GetFolder(path)
	if err := f.OpenFolder(folderReadOnly); err != nil {
		status.LastError = err.Error()
		m.recordStatus(status)
		return status
	}
	defer f.CloseFolder(false)

	msgs, err := f.GetMessages()
	if err != nil {
		status.LastError = err.Error()
		m.recordStatus(status)
		return status
	}

	count := 0
	for _, msg := range msgs {
		// GetMessages already hydrated each from remote and persisted it to
		// disk under REFRESH; touching an attribute here guarantees it.
		if _, err := msg.GetSubject(); err != nil {
			continue
		}
		count++
	}
	status.SyncedCount = count
	status.Success = true
	m.recordStatus(status)
	return status
}

func (m *Manager) recordStatus(s *SyncStatus) {
	m.statusMu.Lock()
	defer m.statusMu.Unlock()
	m.status[s.FolderPath] = s
}

// Status returns the last recorded SyncStatus for path, if any.
func (m *Manager) Status(path string) (*SyncStatus, bool) {
	m.statusMu.Lock()
	defer m.statusMu.Unlock()
	s, ok := m.status[path]
	return s, ok
}

// ClearCache recursively removes path's directory, or the entire cache
// root if path is empty. Succeeds whether or not the directory existed
// (spec.md §4.5).
func (m *Manager) ClearCache(path string) error {
	mgr := m.st.Layout()
	var dir string
	var err error
	if path == "" {
		dir = mgr.Root()
	} else {
		dir, err = mgr.FolderDir(path)
		if err != nil {
			return cacheerr.Wrap("cachemanager.clear", path, "", err)
		}
	}
	return cacheerr.Wrap("cachemanager.clear", path, "", mgr.RemoveAll(dir))
}

// PurgeOlderThan delegates to the named folder's PurgeOlderThan, returning
// the purge count (spec.md §4.5). The DESTRUCTIVE-only gate lives in
// Folder.PurgeOlderThan; ClearCache has no such gate since spec.md never
// restricts it to a single mode.
func (m *Manager) PurgeOlderThan(path string, days int, includeFlagged bool) (int, error) {
	f := m.st.GetFolder(path)
	return f.PurgeOlderThan(days, includeFlagged)
}

// GetStatistics walks the cache directory counting folders, messages, and
// total bytes on disk. Safe to call concurrently; it is a point-in-time
// snapshot with no cross-walk consistency guarantee (spec.md §4.5).
func (m *Manager) GetStatistics() (CacheStats, error) {
	var stats CacheStats
	root := m.st.Root()
	mgr := m.st.Layout()

	err := filepath.Walk(root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // best-effort walk; a removed file mid-walk isn't fatal
		}
		if !info.IsDir() {
			stats.TotalBytes += info.Size()
			return nil
		}
		if p == root {
			return nil
		}
		base := filepath.Base(p)
		parentBase := filepath.Base(filepath.Dir(p))
		switch {
		case base == layout.MessagesDirName, base == pendingDirName:
			// Not a folder in its own right.
		case base == layout.AttachmentsDirName && filepath.Base(filepath.Dir(filepath.Dir(p))) == layout.MessagesDirName:
			// A message's attachments/ directory, not a folder.
		case parentBase == layout.MessagesDirName:
			if mgr.IsCompleteMessageDir(p) {
				stats.MessageCount++
			}
		default:
			stats.FolderCount++
		}
		return nil
	})
	if err != nil {
		return stats, fmt.Errorf("cachemanager: walk statistics: %w", err)
	}
	return stats, nil
}

// RecordPending persists a best-effort remote write that failed, so a
// later DrainPending can retry it.
func (m *Manager) RecordPending(folderPath, messageID string, fs message.FlagSet) (string, error) {
	id := uuid.NewString()
	names := make([]string, 0, len(fs))
	for f := range fs {
		names = append(names, string(f))
	}
	sort.Strings(names)

	pw := PendingWrite{ID: id, FolderPath: folderPath, MessageID: messageID, Flags: names, CreatedAt: timeNow()}
	data, err := json.MarshalIndent(pw, "", "  ")
	if err != nil {
		return "", fmt.Errorf("cachemanager: encode pending write: %w", err)
	}

	dir := filepath.Join(m.st.Root(), pendingDirName)
	if err := m.st.Layout().WriteFileAtomic(dir, id+".json", data); err != nil {
		return "", fmt.Errorf("cachemanager: persist pending write: %w", err)
	}
	return id, nil
}

// ListPending returns every pending write currently recorded.
func (m *Manager) ListPending() ([]PendingWrite, error) {
	dir := filepath.Join(m.st.Root(), pendingDirName)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("cachemanager: list pending: %w", err)
	}

	out := make([]PendingWrite, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			continue
		}
		var pw PendingWrite
		if err := json.Unmarshal(data, &pw); err != nil {
			continue
		}
		out = append(out, pw)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// DrainPending replays every recorded pending write against resolve (which
// returns a live RemoteHandle for a folder/message pair), removing the
// ledger entry on success. It halts at the next safe point — between
// entries — on ctx cancellation (spec.md §5).
func (m *Manager) DrainPending(ctx context.Context, resolve func(folderPath, messageID string) (message.RemoteHandle, error)) (int, error) {
	pending, err := m.ListPending()
	if err != nil {
		return 0, err
	}

	log := logging.WithComponent("cachemanager")
	drained := 0
	for _, pw := range pending {
		if err := ctx.Err(); err != nil {
			return drained, cacheerr.Wrap("cachemanager.drainpending", "", "", cacheerr.ErrCancelled)
		}

		handle, err := resolve(pw.FolderPath, pw.MessageID)
		if err != nil {
			log.Debug().Str("pending_id", pw.ID).Str("error", err.Error()).Msg("pending write could not be resolved, will retry later")
			continue
		}
		fs := message.FlagSet{}
		for _, name := range pw.Flags {
			fs[message.Flag(name)] = struct{}{}
		}
		if err := handle.SetFlags(fs); err != nil {
			log.Debug().Str("pending_id", pw.ID).Str("error", err.Error()).Msg("pending write retry failed")
			continue
		}
		if err := m.removePending(pw.ID); err != nil {
			return drained, err
		}
		drained++
	}
	return drained, nil
}

func (m *Manager) removePending(id string) error {
	path := filepath.Join(m.st.Root(), pendingDirName, id+".json")
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("cachemanager: remove pending write %s: %w", id, err)
	}
	return nil
}

const folderReadOnly = 0 // mirrors folder.ReadOnly without importing folder just for the constant

func timeNow() time.Time { return time.Now() }
