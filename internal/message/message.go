// Package message implements CachedMessage: a single mail item hydrated
// lazily from disk or remote, writing attribute snapshots back to disk
// after any authoritative read (spec.md §4.4).
package message

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/microcosm-cc/bluemonday"

	"mailcache/internal/cacheerr"
	"mailcache/internal/cachemode"
	"mailcache/internal/layout"
)

// Attachment metadata; content is fetched on demand via ReadAttachment,
// matching spec.md §4.4's "attachment metadata (content fetched on demand)".
type Attachment struct {
	Filename    string
	ContentType string
	Size        int64
}

// Snapshot is what a RemoteHandle.Fetch returns: a fully hydrated remote
// message ready to persist. Built by the RemoteStore adapter using
// github.com/emersion/go-message to decompose the wire format.
type Snapshot struct {
	Headers         Headers
	SentDate        time.Time
	ContentType     string
	PlainBody       string
	HTMLBody        string
	RawMIME         []byte
	AttachmentFiles map[string][]byte
	Flags           FlagSet
}

// RemoteHandle is the per-message capability a RemoteStore exposes once a
// message has been identified (by UID or Message-ID). It is the "remote
// handle" referenced throughout spec.md §4.4.
type RemoteHandle interface {
	Fetch() (Snapshot, error)
	SetFlags(FlagSet) error
	Delete() error
}

// Message represents one mail item: stable id, headers, flags, body,
// attachments. It hydrates lazily, consulting memory, then disk, then the
// remote handle (if the mode permits), per spec.md §4.4.
type Message struct {
	mgr        *layout.Manager
	folderPath string
	id         string
	mode       cachemode.Mode
	remote     RemoteHandle

	mu                sync.Mutex
	headersLoaded     bool
	headers           Headers
	flagsLoaded       bool
	flags             FlagSet
	contentLoaded     bool
	plainBody         string
	attachmentsLoaded bool
	attachments       []Attachment
}

var htmlReducer = bluemonday.StrictPolicy()

// ID returns the sanitized, stable directory name for this message.
func (m *Message) ID() string { return m.id }

// Dir returns this message's on-disk directory.
func (m *Message) Dir() (string, error) {
	return m.mgr.MessageDir(m.folderPath, m.id)
}

// Open constructs a Message for the "from disk" path (spec.md §4.4,
// construction path 2): attributes are parsed lazily on first access.
// remote may be nil when no live connection backs this message.
func Open(mgr *layout.Manager, folderPath, id string, mode cachemode.Mode, remote RemoteHandle) *Message {
	return &Message{mgr: mgr, folderPath: folderPath, id: id, mode: mode, remote: remote}
}

// NewFromRemote constructs a Message for the "from remote" path (spec.md
// §4.4, construction path 1): persists headers, body, attachments, and
// flags immediately, then holds both the remote handle and the on-disk
// directory.
func NewFromRemote(mgr *layout.Manager, folderPath string, mode cachemode.Mode, snap Snapshot, remote RemoteHandle) (*Message, error) {
	id := messageIDFor(snap)
	msg := &Message{mgr: mgr, folderPath: folderPath, id: id, mode: mode, remote: remote}
	if err := msg.persist(snap); err != nil {
		return nil, err
	}
	return msg, nil
}

func messageIDFor(snap Snapshot) string {
	if raw := snap.Headers.Get("Message-ID"); raw != "" {
		return layout.SanitizeMessageID(raw)
	}
	return layout.FallbackMessageID(snap.SentDate.Format(time.RFC3339), snap.Headers.Get("From"), snap.Headers.Get("Subject"))
}

// persist writes message.properties, content.txt/content.mime, flags.txt,
// and attachments/ to disk and primes the in-memory cache, per spec.md
// §4.2's write discipline.
func (m *Message) persist(snap Snapshot) error {
	dir, err := m.Dir()
	if err != nil {
		return err
	}

	headers := snap.Headers
	if headers == nil {
		headers = Headers{}
	}
	headers["Date"] = snap.SentDate.Format(time.RFC3339)
	if snap.ContentType != "" {
		headers["Content-Type"] = snap.ContentType
	}

	if err := m.mgr.WriteFileAtomic(dir, layout.PropertiesFile, EncodeProperties(headers)); err != nil {
		return fmt.Errorf("message: persist properties: %w", err)
	}

	plain := snap.PlainBody
	if plain == "" && snap.HTMLBody != "" {
		plain = strings.TrimSpace(htmlReducer.Sanitize(snap.HTMLBody))
	}
	if plain != "" {
		if err := m.mgr.WriteFileAtomic(dir, layout.ContentText, []byte(plain)); err != nil {
			return fmt.Errorf("message: persist content.txt: %w", err)
		}
	}
	if len(snap.RawMIME) > 0 {
		if err := m.mgr.WriteFileAtomic(dir, layout.ContentMIME, snap.RawMIME); err != nil {
			return fmt.Errorf("message: persist content.mime: %w", err)
		}
	}
	if plain == "" && len(snap.RawMIME) == 0 {
		// Guarantee the completeness invariant even for an empty body.
		if err := m.mgr.WriteFileAtomic(dir, layout.ContentText, []byte{}); err != nil {
			return fmt.Errorf("message: persist empty content.txt: %w", err)
		}
	}

	if err := m.mgr.WriteFileAtomic(dir, layout.FlagsFile, EncodeFlags(snap.Flags)); err != nil {
		return fmt.Errorf("message: persist flags: %w", err)
	}

	var attachments []Attachment
	for name, data := range snap.AttachmentFiles {
		attDir, err := attachmentsDir(m.mgr, m.folderPath, m.id)
		if err != nil {
			return err
		}
		if err := m.mgr.WriteFileAtomic(attDir, name, data); err != nil {
			return fmt.Errorf("message: persist attachment %s: %w", name, err)
		}
		attachments = append(attachments, Attachment{Filename: name, Size: int64(len(data))})
	}

	m.mu.Lock()
	m.headers = headers
	m.headersLoaded = true
	m.flags = snap.Flags
	m.flagsLoaded = true
	m.plainBody = plain
	m.contentLoaded = true
	m.attachments = attachments
	m.attachmentsLoaded = true
	m.mu.Unlock()
	return nil
}

func attachmentsDir(mgr *layout.Manager, folderPath, id string) (string, error) {
	dir, err := mgr.MessageDir(folderPath, id)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, layout.AttachmentsDirName), nil
}

func readDirSafe(dir string) ([]Attachment, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("message: list attachments: %w", err)
	}
	var out []Attachment
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, Attachment{Filename: e.Name(), Size: info.Size()})
	}
	return out, nil
}

func (m *Message) ensureHeaders() error {
	m.mu.Lock()
	if m.headersLoaded {
		m.mu.Unlock()
		return nil
	}
	dir, err := m.Dir()
	if err != nil {
		m.mu.Unlock()
		return err
	}
	data, err := m.mgr.ReadFile(dir, layout.PropertiesFile)
	if err == nil {
		m.headers = DecodeProperties(data)
		m.headersLoaded = true
		m.mu.Unlock()
		return nil
	}
	if m.mode == cachemode.Offline || m.remote == nil {
		m.mu.Unlock()
		return cacheerr.Wrap("message.headers", m.folderPath, m.id, cacheerr.ErrNotFound)
	}
	m.mu.Unlock()

	// Remote I/O and the persist that follows take no lock until they
	// update the in-memory fields, so concurrent readers of already-loaded
	// attributes are never blocked on network I/O.
	snap, ferr := m.remote.Fetch()
	if ferr != nil {
		return cacheerr.Wrap("message.headers", m.folderPath, m.id, ferr)
	}
	return m.persist(snap)
}

func (m *Message) ensureFlags() error {
	m.mu.Lock()
	if m.flagsLoaded {
		m.mu.Unlock()
		return nil
	}
	dir, err := m.Dir()
	if err != nil {
		m.mu.Unlock()
		return err
	}
	data, err := m.mgr.ReadFile(dir, layout.FlagsFile)
	if err == nil {
		m.flags = DecodeFlags(data)
		m.flagsLoaded = true
		m.mu.Unlock()
		return nil
	}
	// Absence of flags.txt means an empty flag set, not an error.
	if m.headersLoaded || m.mode == cachemode.Offline || m.remote == nil {
		m.flags = FlagSet{}
		m.flagsLoaded = true
		m.mu.Unlock()
		return nil
	}
	m.mu.Unlock()
	return m.ensureHeaders()
}

func (m *Message) ensureContent() error {
	m.mu.Lock()
	if m.contentLoaded {
		m.mu.Unlock()
		return nil
	}
	dir, err := m.Dir()
	if err != nil {
		m.mu.Unlock()
		return err
	}
	if data, rerr := m.mgr.ReadFile(dir, layout.ContentText); rerr == nil {
		m.plainBody = string(data)
		m.contentLoaded = true
		m.mu.Unlock()
		return nil
	}
	if data, rerr := m.mgr.ReadFile(dir, layout.ContentMIME); rerr == nil {
		m.plainBody = string(data)
		m.contentLoaded = true
		m.mu.Unlock()
		return nil
	}
	m.mu.Unlock()
	return m.ensureHeaders()
}

// GetSubject returns the Subject header, hydrating as needed.
func (m *Message) GetSubject() (string, error) {
	if err := m.ensureHeaders(); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.headers.Get("Subject"), nil
}

// GetFrom returns the raw From header, hydrating as needed.
func (m *Message) GetFrom() (string, error) {
	if err := m.ensureHeaders(); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.headers.Get("From"), nil
}

var angleAddrRe = regexp.MustCompile(`<([^>]+)>`)

// GetCleanFrom strips display-name cruft from the From header, returning
// the bare address (spec.md §4.4).
func (m *Message) GetCleanFrom() (string, error) {
	from, err := m.GetFrom()
	if err != nil {
		return "", err
	}
	if match := angleAddrRe.FindStringSubmatch(from); match != nil {
		return strings.TrimSpace(match[1]), nil
	}
	return strings.TrimSpace(from), nil
}

// GetSentDate returns the parsed sent date, hydrating as needed.
func (m *Message) GetSentDate() (time.Time, error) {
	if err := m.ensureHeaders(); err != nil {
		return time.Time{}, err
	}
	m.mu.Lock()
	raw := m.headers.Get("Date")
	m.mu.Unlock()
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("message: parse sent date: %w", err)
	}
	return t, nil
}

// GetHeaders returns a copy of every persisted header.
func (m *Message) GetHeaders() (Headers, error) {
	if err := m.ensureHeaders(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(Headers, len(m.headers))
	for k, v := range m.headers {
		out[k] = v
	}
	return out, nil
}

// GetFlags returns the current flag set, hydrating as needed.
func (m *Message) GetFlags() (FlagSet, error) {
	if err := m.ensureFlags(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.flags.clone(), nil
}

// SetFlags updates flags per the mode routing of spec.md §4.4. pending
// reports whether the remote side could not be reached and the write
// should be recorded for later reconciliation (ACCELERATED only); err is
// non-nil only for a hard failure.
func (m *Message) SetFlags(fs FlagSet) (pending bool, err error) {
	if m.mode == cachemode.Offline {
		return false, cacheerr.Wrap("message.setflags", m.folderPath, m.id, cacheerr.ErrReadOnlyMode)
	}

	if m.mode.BestEffortRemote() {
		if werr := m.writeFlags(fs); werr != nil {
			return false, werr
		}
		if m.remote == nil {
			return true, nil
		}
		if rerr := m.remote.SetFlags(fs); rerr != nil {
			return true, nil
		}
		return false, nil
	}

	// ONLINE / REFRESH / DESTRUCTIVE: remote is authoritative.
	if m.remote == nil {
		return false, cacheerr.Wrap("message.setflags", m.folderPath, m.id, cacheerr.ErrRemoteUnavailable)
	}
	if rerr := m.remote.SetFlags(fs); rerr != nil {
		return false, cacheerr.Wrap("message.setflags", m.folderPath, m.id, rerr)
	}
	if werr := m.writeFlags(fs); werr != nil {
		return false, werr
	}
	return false, nil
}

func (m *Message) writeFlags(fs FlagSet) error {
	dir, err := m.Dir()
	if err != nil {
		return err
	}
	if err := m.mgr.WriteFileAtomic(dir, layout.FlagsFile, EncodeFlags(fs)); err != nil {
		return fmt.Errorf("message: write flags: %w", err)
	}
	m.mu.Lock()
	m.flags = fs.clone()
	m.flagsLoaded = true
	m.mu.Unlock()
	return nil
}

// GetBody returns the stored plain-text body, hydrating as needed.
func (m *Message) GetBody() (string, error) {
	if err := m.ensureContent(); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.plainBody, nil
}

// GetAttachments lists attachment metadata for this message.
func (m *Message) GetAttachments() ([]Attachment, error) {
	m.mu.Lock()
	if m.attachmentsLoaded {
		defer m.mu.Unlock()
		return append([]Attachment(nil), m.attachments...), nil
	}
	m.mu.Unlock()

	dir, err := attachmentsDir(m.mgr, m.folderPath, m.id)
	if err != nil {
		return nil, err
	}
	entries, err := readDirSafe(dir)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.attachments = entries
	m.attachmentsLoaded = true
	out := append([]Attachment(nil), entries...)
	m.mu.Unlock()
	return out, nil
}

// ReadAttachment returns the content of a previously listed attachment.
func (m *Message) ReadAttachment(filename string) ([]byte, error) {
	dir, err := attachmentsDir(m.mgr, m.folderPath, m.id)
	if err != nil {
		return nil, err
	}
	return m.mgr.ReadFile(dir, filename)
}

// Delete removes this message's directory under its folder's routing
// rules; callers (CachedFolder) are responsible for the mode check.
func (m *Message) Delete() error {
	dir, err := m.Dir()
	if err != nil {
		return err
	}
	return m.mgr.RemoveAll(dir)
}
