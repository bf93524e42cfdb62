package message

import (
	"sort"
	"strings"
)

// Flag is one of the standard flag names spec.md §6 recognizes in
// flags.txt. Unrecognized lines in flags.txt are ignored when parsed.
type Flag string

const (
	FlagSeen     Flag = "SEEN"
	FlagAnswered Flag = "ANSWERED"
	FlagFlagged  Flag = "FLAGGED"
	FlagDeleted  Flag = "DELETED"
	FlagDraft    Flag = "DRAFT"
	FlagRecent   Flag = "RECENT"
	FlagUser     Flag = "USER"
)

var knownFlags = map[Flag]struct{}{
	FlagSeen: {}, FlagAnswered: {}, FlagFlagged: {}, FlagDeleted: {},
	FlagDraft: {}, FlagRecent: {}, FlagUser: {},
}

// FlagSet is a small value-typed set of Flags, replacing JavaMail's Flags
// bitmask per spec.md §9's redesign guidance.
type FlagSet map[Flag]struct{}

// NewFlagSet builds a FlagSet from individual flags.
func NewFlagSet(flags ...Flag) FlagSet {
	fs := make(FlagSet, len(flags))
	for _, f := range flags {
		fs[f] = struct{}{}
	}
	return fs
}

// Has reports whether f is set.
func (fs FlagSet) Has(f Flag) bool {
	_, ok := fs[f]
	return ok
}

// Add returns a copy of fs with f set.
func (fs FlagSet) Add(f Flag) FlagSet {
	out := fs.clone()
	out[f] = struct{}{}
	return out
}

// Remove returns a copy of fs with f cleared.
func (fs FlagSet) Remove(f Flag) FlagSet {
	out := fs.clone()
	delete(out, f)
	return out
}

// Equal reports whether fs and other contain the same flags.
func (fs FlagSet) Equal(other FlagSet) bool {
	if len(fs) != len(other) {
		return false
	}
	for f := range fs {
		if !other.Has(f) {
			return false
		}
	}
	return true
}

func (fs FlagSet) clone() FlagSet {
	out := make(FlagSet, len(fs))
	for f := range fs {
		out[f] = struct{}{}
	}
	return out
}

// EncodeFlags renders fs as flags.txt content: one flag name per line.
// Absence of the file is equivalent to an empty set (spec.md §6).
func EncodeFlags(fs FlagSet) []byte {
	names := make([]string, 0, len(fs))
	for f := range fs {
		names = append(names, string(f))
	}
	sort.Strings(names)
	return []byte(strings.Join(names, "\n") + "\n")
}

// DecodeFlags parses flags.txt content, ignoring unrecognized lines.
func DecodeFlags(data []byte) FlagSet {
	fs := make(FlagSet)
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		f := Flag(strings.ToUpper(line))
		if _, known := knownFlags[f]; known {
			fs[f] = struct{}{}
		}
	}
	return fs
}
