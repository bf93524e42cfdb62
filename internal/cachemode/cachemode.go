// Package cachemode defines the policy selector that drives read/write
// routing between disk and remote across every layer of the Cache Engine
// (spec.md §4.1).
package cachemode

import (
	"fmt"
	"strings"
)

// Mode selects how the Cache Engine routes reads and writes.
type Mode int

const (
	// Offline serves every read from disk and rejects every mutation.
	Offline Mode = iota
	// Accelerated prefers disk for reads, falling through to remote on a
	// miss; writes land on disk and are attempted best-effort on remote.
	Accelerated
	// Online treats the remote as authoritative for reads and writes,
	// updating disk afterward.
	Online
	// Refresh behaves like Online but overwrites disk unconditionally; the
	// sync protocol sets this temporarily and restores the prior mode.
	Refresh
	// Destructive behaves like Online, additionally permitting Cache
	// Manager purge operations that are otherwise rejected.
	Destructive
)

func (m Mode) String() string {
	switch m {
	case Offline:
		return "OFFLINE"
	case Accelerated:
		return "ACCELERATED"
	case Online:
		return "ONLINE"
	case Refresh:
		return "REFRESH"
	case Destructive:
		return "DESTRUCTIVE"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// Parse maps a config string (case-insensitive) to a Mode.
func Parse(s string) (Mode, error) {
	switch strings.ToLower(s) {
	case "offline", "OFFLINE":
		return Offline, nil
	case "accelerated", "ACCELERATED":
		return Accelerated, nil
	case "online", "ONLINE":
		return Online, nil
	case "refresh", "REFRESH":
		return Refresh, nil
	case "destructive", "DESTRUCTIVE":
		return Destructive, nil
	default:
		return Offline, fmt.Errorf("cachemode: unknown mode %q", s)
	}
}

// RequiresRemote reports whether this mode treats the remote as mandatory
// for reads (ONLINE, REFRESH, DESTRUCTIVE). ACCELERATED uses the remote
// best-effort; OFFLINE never does.
func (m Mode) RequiresRemote() bool {
	return m == Online || m == Refresh || m == Destructive
}

// AllowsLocalReadFirst reports whether reads should consult disk before the
// remote (OFFLINE, ACCELERATED).
func (m Mode) AllowsLocalReadFirst() bool {
	return m == Offline || m == Accelerated
}

// AllowsWrite reports whether this mode permits any mutation at all.
// OFFLINE is the only mode that rejects every write outright.
func (m Mode) AllowsWrite() bool {
	return m != Offline
}

// AllowsPurge reports whether Folder.PurgeOlderThan (and so
// CacheManager.PurgeOlderThan) is permitted. Only DESTRUCTIVE does;
// CacheManager.ClearCache is not gated by mode.
func (m Mode) AllowsPurge() bool {
	return m == Destructive
}

// BestEffortRemote reports whether a remote failure on this mode's writes
// is swallowed rather than surfaced. Message.SetFlags reports such a
// failure to its caller as pending; Folder.AppendMessages and Folder.Create
// drop it without recording a pending write.
func (m Mode) BestEffortRemote() bool {
	return m == Accelerated
}
