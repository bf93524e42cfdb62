// Package folder implements CachedFolder: a mailbox-shaped directory under
// the cache root, mode-routed between disk and remote per spec.md §4.3,
// with a state machine tracking its open/closed access level.
package folder

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"mailcache/internal/cacheerr"
	"mailcache/internal/cachemode"
	"mailcache/internal/layout"
	"mailcache/internal/message"
)

// Access is the level a folder was opened with.
type Access int

const (
	// ReadOnly permits reads but rejects mutating operations.
	ReadOnly Access = iota
	// ReadWrite permits both reads and mutations.
	ReadWrite
)

// State is a folder's position in the Closed/Open state machine.
type State int

const (
	Closed State = iota
	Open
)

// RemoteFolder is the capability a RemoteStore exposes for one mailbox:
// existence/listing, counts, ordered iteration, search, append, and
// deletion, all operating against the live server.
type RemoteFolder interface {
	Exists() (bool, error)
	Create() error
	Delete() error
	MessageCount() (int, error)
	// ListMessages returns RemoteHandles in server order, paired with a
	// Snapshot ready to persist on first hydration.
	ListMessages() ([]message.RemoteHandle, []message.Snapshot, error)
	Search(criteria interface{}) ([]message.RemoteHandle, []message.Snapshot, error)
	Append(snap message.Snapshot) (message.RemoteHandle, error)
}

// Folder is a single mailbox: its directory under the cache root, the
// Manager it hydrates through, and whatever remote connection the active
// Store holds.
type Folder struct {
	mgr    *layout.Manager
	path   string
	remote RemoteFolder // nil when no live connection
	mode   func() cachemode.Mode

	mu        sync.RWMutex
	state     State
	access    Access
	openCount int
}

// New constructs a folder handle; it does not imply the folder exists.
// modeFn lets the Store's current mode (which may change over the
// folder's lifetime, e.g. during Synchronize) be observed live.
func New(mgr *layout.Manager, path string, remote RemoteFolder, modeFn func() cachemode.Mode) *Folder {
	return &Folder{mgr: mgr, path: path, remote: remote, mode: modeFn}
}

// Path returns this folder's path relative to the cache root.
func (f *Folder) Path() string { return f.path }

func (f *Folder) currentMode() cachemode.Mode { return f.mode() }

// Exists reports whether this folder is present in the authoritative
// source for the active mode (spec.md §4.3).
func (f *Folder) Exists() (bool, error) {
	mode := f.currentMode()
	if mode.RequiresRemote() {
		if f.remote == nil {
			return false, cacheerr.Wrap("folder.exists", f.path, "", cacheerr.ErrRemoteUnavailable)
		}
		return f.remote.Exists()
	}
	dir, err := f.mgr.FolderDir(f.path)
	if err != nil {
		return false, err
	}
	return f.mgr.Exists(dir), nil
}

// List returns the immediate subfolder names, excluding messages/. It takes
// no pattern: every subfolder is returned (spec.md §4.3 permits this).
func (f *Folder) List() ([]string, error) {
	names, err := f.mgr.ListSubfolders(f.path)
	if err != nil {
		return nil, cacheerr.Wrap("folder.list", f.path, "", err)
	}
	return names, nil
}

// GetFolder returns a child handle for name, lazily, without implying
// existence.
func (f *Folder) GetFolder(name string) *Folder {
	child := name
	if f.path != "" {
		child = f.path + "/" + name
	}
	return New(f.mgr, child, nil, f.mode)
}

// Create creates this folder, per spec.md §4.3's mode routing: OFFLINE
// creates locally only; ONLINE/REFRESH create remote first, aborting on
// failure; ACCELERATED creates locally (authoritative) with a best-effort
// remote attempt.
func (f *Folder) Create() error {
	mode := f.currentMode()
	dir, err := f.mgr.FolderDir(f.path)
	if err != nil {
		return err
	}

	switch {
	case mode == cachemode.Offline:
		return cacheerr.Wrap("folder.create", f.path, "", f.mgr.EnsureDir(dir))

	case mode.RequiresRemote():
		if f.remote == nil {
			return cacheerr.Wrap("folder.create", f.path, "", cacheerr.ErrRemoteUnavailable)
		}
		if err := f.remote.Create(); err != nil {
			return cacheerr.Wrap("folder.create", f.path, "", err)
		}
		return cacheerr.Wrap("folder.create", f.path, "", f.mgr.EnsureDir(dir))

	default: // Accelerated
		if err := f.mgr.EnsureDir(dir); err != nil {
			return cacheerr.Wrap("folder.create", f.path, "", err)
		}
		if f.remote != nil {
			_ = f.remote.Create() // best-effort
		}
		return nil
	}
}

// OpenFolder transitions Closed -> Open(access); repeated opens with a
// compatible access level are idempotent and re-entrant for the owning
// caller (spec.md §4.3's state machine).
func (f *Folder) OpenFolder(access Access) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state == Open {
		if access == ReadWrite && f.access == ReadOnly {
			f.access = ReadWrite
		}
		f.openCount++
		return nil
	}
	f.state = Open
	f.access = access
	f.openCount = 1
	return nil
}

// CloseFolder transitions Open(*) -> Closed once every matching OpenFolder
// call has a corresponding CloseFolder. expunge is accepted for parity
// with IMAP CLOSE semantics but has no local effect: deletions already
// happen eagerly via Delete/appendMessages's remote routing.
func (f *Folder) CloseFolder(expunge bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state == Closed {
		return nil
	}
	f.openCount--
	if f.openCount <= 0 {
		f.state = Closed
		f.openCount = 0
	}
	return nil
}

func (f *Folder) requireWritable() error {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.state == Open && f.access == ReadOnly {
		return cacheerr.Wrap("folder.write", f.path, "", cacheerr.ErrReadOnlyState)
	}
	return nil
}

// GetMessageCount returns the number of complete message directories
// (OFFLINE/ACCELERATED) or the remote count (ONLINE/REFRESH).
func (f *Folder) GetMessageCount() (int, error) {
	mode := f.currentMode()
	if mode.RequiresRemote() {
		if f.remote == nil {
			return 0, cacheerr.Wrap("folder.count", f.path, "", cacheerr.ErrRemoteUnavailable)
		}
		n, err := f.remote.MessageCount()
		return n, cacheerr.Wrap("folder.count", f.path, "", err)
	}
	ids, err := f.mgr.ListMessageDirs(f.path)
	if err != nil {
		return 0, cacheerr.Wrap("folder.count", f.path, "", err)
	}
	return len(ids), nil
}

// GetMessages returns an ordered, stable sequence of Message handles:
// lexicographic by directory name locally, server order for ONLINE/REFRESH
// (spec.md §4.3).
func (f *Folder) GetMessages() ([]*message.Message, error) {
	mode := f.currentMode()
	if mode.RequiresRemote() {
		if f.remote == nil {
			return nil, cacheerr.Wrap("folder.messages", f.path, "", cacheerr.ErrRemoteUnavailable)
		}
		handles, snaps, err := f.remote.ListMessages()
		if err != nil {
			return nil, cacheerr.Wrap("folder.messages", f.path, "", err)
		}
		return f.hydrateRemoteList(handles, snaps)
	}

	ids, err := f.mgr.ListMessageDirs(f.path)
	if err != nil {
		return nil, cacheerr.Wrap("folder.messages", f.path, "", err)
	}
	sort.Strings(ids)
	out := make([]*message.Message, 0, len(ids))
	for _, id := range ids {
		out = append(out, message.Open(f.mgr, f.path, id, mode, nil))
	}
	return out, nil
}

func (f *Folder) hydrateRemoteList(handles []message.RemoteHandle, snaps []message.Snapshot) ([]*message.Message, error) {
	mode := f.currentMode()
	out := make([]*message.Message, 0, len(snaps))
	for i, snap := range snaps {
		var h message.RemoteHandle
		if i < len(handles) {
			h = handles[i]
		}
		msg, err := message.NewFromRemote(f.mgr, f.path, mode, snap, h)
		if err != nil {
			return nil, err
		}
		out = append(out, msg)
	}
	return out, nil
}

// Search applies predicate to this folder's messages. It runs locally
// unless the mode requires the remote and the predicate lowers to an IMAP
// search criteria, in which case the remote is preferred (spec.md §4.3).
func (f *Folder) Search(pred message.Predicate) ([]*message.Message, error) {
	mode := f.currentMode()
	if mode.RequiresRemote() && f.remote != nil {
		if criteria, ok := message.Lower(pred); ok {
			handles, snaps, err := f.remote.Search(criteria)
			if err != nil {
				return nil, cacheerr.Wrap("folder.search", f.path, "", err)
			}
			return f.hydrateRemoteList(handles, snaps)
		}
	}

	all, err := f.GetMessages()
	if err != nil {
		return nil, err
	}
	var matched []*message.Message
	for _, m := range all {
		if pred.Match(m) {
			matched = append(matched, m)
		}
	}
	return matched, nil
}

// AppendMessages writes a new message directory per snapshot. ONLINE/
// REFRESH additionally append to the remote first, using the
// server-returned handle for the persisted copy (spec.md §4.3).
func (f *Folder) AppendMessages(snaps []message.Snapshot) ([]*message.Message, error) {
	if err := f.requireWritable(); err != nil {
		return nil, err
	}
	mode := f.currentMode()
	if !mode.AllowsWrite() {
		return nil, cacheerr.Wrap("folder.append", f.path, "", cacheerr.ErrReadOnlyMode)
	}

	out := make([]*message.Message, 0, len(snaps))
	for _, snap := range snaps {
		var handle message.RemoteHandle
		if mode.RequiresRemote() {
			if f.remote == nil {
				return out, cacheerr.Wrap("folder.append", f.path, "", cacheerr.ErrRemoteUnavailable)
			}
			h, err := f.remote.Append(snap)
			if err != nil {
				return out, cacheerr.Wrap("folder.append", f.path, "", err)
			}
			handle = h
		} else if mode.BestEffortRemote() && f.remote != nil {
			if h, err := f.remote.Append(snap); err == nil {
				handle = h
			}
		}
		msg, err := message.NewFromRemote(f.mgr, f.path, mode, snap, handle)
		if err != nil {
			return out, cacheerr.Wrap("folder.append", f.path, "", err)
		}
		out = append(out, msg)
	}
	return out, nil
}

// Delete removes this folder: rejected in OFFLINE and ACCELERATED (unlike
// Append/flag updates, Delete gets no ACCELERATED best-effort treatment —
// spec.md §4.1's mode table rejects it outside ONLINE/REFRESH/DESTRUCTIVE),
// otherwise the remote copy is removed before the local directory (spec.md
// §4.3).
func (f *Folder) Delete() error {
	if err := f.requireWritable(); err != nil {
		return err
	}
	mode := f.currentMode()
	if mode == cachemode.Offline || mode == cachemode.Accelerated {
		return cacheerr.Wrap("folder.delete", f.path, "", cacheerr.ErrReadOnlyMode)
	}
	if f.remote == nil {
		return cacheerr.Wrap("folder.delete", f.path, "", cacheerr.ErrRemoteUnavailable)
	}
	if err := f.remote.Delete(); err != nil {
		return cacheerr.Wrap("folder.delete", f.path, "", err)
	}
	dir, err := f.mgr.FolderDir(f.path)
	if err != nil {
		return err
	}
	return cacheerr.Wrap("folder.delete", f.path, "", f.mgr.RemoveAll(dir))
}

// PurgeOlderThan removes message directories whose sent-date is older than
// days, keeping flagged messages unless includeFlagged is set. Returns the
// purge count. Rejected outside DESTRUCTIVE: spec.md §4.1 "DESTRUCTIVE
// additionally enables Cache Manager purge operations that would otherwise
// be rejected" (spec.md §4.5).
func (f *Folder) PurgeOlderThan(days int, includeFlagged bool) (int, error) {
	if !f.currentMode().AllowsPurge() {
		return 0, cacheerr.Wrap("folder.purge", f.path, "", cacheerr.ErrReadOnlyMode)
	}
	cutoff := time.Now().AddDate(0, 0, -days)
	ids, err := f.mgr.ListMessageDirs(f.path)
	if err != nil {
		return 0, cacheerr.Wrap("folder.purge", f.path, "", err)
	}

	purged := 0
	for _, id := range ids {
		msg := message.Open(f.mgr, f.path, id, cachemode.Offline, nil)
		sentDate, err := msg.GetSentDate()
		if err != nil || sentDate.IsZero() || !sentDate.Before(cutoff) {
			continue
		}
		if !includeFlagged {
			flags, err := msg.GetFlags()
			if err == nil && flags.Has(message.FlagFlagged) {
				continue
			}
		}
		if err := msg.Delete(); err != nil {
			return purged, fmt.Errorf("folder.purge: delete %s: %w", id, err)
		}
		purged++
	}
	return purged, nil
}
