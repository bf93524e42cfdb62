// Package remote adapts github.com/emersion/go-imap/v2's imapclient to the
// folder.RemoteFolder and message.RemoteHandle capability interfaces the
// Cache Engine routes to in ONLINE/REFRESH/ACCELERATED modes.
package remote

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"github.com/emersion/go-message/mail"
	_ "github.com/emersion/go-message/charset"
	"github.com/rs/zerolog"

	"mailcache/internal/folder"
	"mailcache/internal/logging"
	"mailcache/internal/message"
)

// Credentials bundles what's needed to open an IMAP session. Password is
// supplied by the host's own credential store (spec.md §1 leaves
// credential storage out of scope); internal/clicmd's interactive prompt
// is one way a host can obtain it.
type Credentials struct {
	Host     string
	Port     int
	Username string
	Password string
}

// Store wraps a single IMAP connection shared by every folder of a
// CachedStore, protected by a mutex around the request/response round-trip
// (spec.md §5's "remote connection ... protected by a mutex").
type Store struct {
	mu     sync.Mutex
	client *imapclient.Client
	log    zerolog.Logger
}

// Dial connects and authenticates against an IMAP server over implicit
// TLS, mirroring the teacher's NewIMAPClient dial-then-login sequence.
func Dial(creds Credentials) (*Store, error) {
	log := logging.WithComponent("remote")
	addr := fmt.Sprintf("%s:%d", creds.Host, creds.Port)
	client, err := imapclient.DialTLS(addr, nil)
	if err != nil {
		return nil, fmt.Errorf("remote: connect to %s: %w", addr, err)
	}
	if err := client.Login(creds.Username, creds.Password).Wait(); err != nil {
		client.Close()
		return nil, fmt.Errorf("remote: login: %w", err)
	}
	log.Debug().Str("host", creds.Host).Str("user", creds.Username).Msg("connected to IMAP server")
	return &Store{client: client, log: log}, nil
}

// Close tears down the connection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client == nil {
		return nil
	}
	return s.client.Close()
}

// ListMailboxes returns every mailbox name the server reports.
func (s *Store) ListMailboxes() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	mailboxes, err := s.client.List("", "*", nil).Collect()
	if err != nil {
		return nil, fmt.Errorf("remote: list mailboxes: %w", err)
	}
	names := make([]string, len(mailboxes))
	for i, mbox := range mailboxes {
		names[i] = mbox.Mailbox
	}
	return names, nil
}

// Folder returns a folder.RemoteFolder adapter bound to one mailbox path.
func (s *Store) Folder(path string) folder.RemoteFolder {
	return &Folder{store: s, path: path}
}

// Folder implements folder.RemoteFolder against one IMAP mailbox.
type Folder struct {
	store *Store
	path  string
}

func (f *Folder) Exists() (bool, error) {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	mailboxes, err := f.store.client.List("", f.path, nil).Collect()
	if err != nil {
		return false, fmt.Errorf("remote: check mailbox %s: %w", f.path, err)
	}
	return len(mailboxes) > 0, nil
}

func (f *Folder) Create() error {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	if err := f.store.client.Create(f.path, nil).Wait(); err != nil {
		return fmt.Errorf("remote: create mailbox %s: %w", f.path, err)
	}
	return nil
}

func (f *Folder) Delete() error {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	if err := f.store.client.Delete(f.path).Wait(); err != nil {
		return fmt.Errorf("remote: delete mailbox %s: %w", f.path, err)
	}
	return nil
}

func (f *Folder) MessageCount() (int, error) {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	mbox, err := f.store.client.Select(f.path, nil).Wait()
	if err != nil {
		return 0, fmt.Errorf("remote: select mailbox %s: %w", f.path, err)
	}
	return int(mbox.NumMessages), nil
}

var fullFetchOptions = &imap.FetchOptions{
	UID:           true,
	Flags:         true,
	Envelope:      true,
	InternalDate:  true,
	BodyStructure: &imap.FetchItemBodyStructure{Extended: true},
	BodySection:   []*imap.FetchItemBodySection{{Peek: true}},
}

func (f *Folder) ListMessages() ([]message.RemoteHandle, []message.Snapshot, error) {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()

	mbox, err := f.store.client.Select(f.path, nil).Wait()
	if err != nil {
		return nil, nil, fmt.Errorf("remote: select mailbox %s: %w", f.path, err)
	}
	if mbox.NumMessages == 0 {
		return nil, nil, nil
	}

	seqSet := imap.SeqSet{}
	seqSet.AddRange(1, mbox.NumMessages)

	msgs, err := f.store.client.Fetch(seqSet, fullFetchOptions).Collect()
	if err != nil {
		return nil, nil, fmt.Errorf("remote: fetch messages in %s: %w", f.path, err)
	}
	return f.buildResults(msgs)
}

func (f *Folder) Search(criteria interface{}) ([]message.RemoteHandle, []message.Snapshot, error) {
	searchCriteria, ok := criteria.(*imap.SearchCriteria)
	if !ok || searchCriteria == nil {
		return nil, nil, fmt.Errorf("remote: search: unsupported criteria type %T", criteria)
	}

	f.store.mu.Lock()
	defer f.store.mu.Unlock()

	if _, err := f.store.client.Select(f.path, nil).Wait(); err != nil {
		return nil, nil, fmt.Errorf("remote: select mailbox %s: %w", f.path, err)
	}
	searchData, err := f.store.client.Search(searchCriteria, nil).Wait()
	if err != nil {
		return nil, nil, fmt.Errorf("remote: search %s: %w", f.path, err)
	}
	seqNums := searchData.AllSeqNums()
	if len(seqNums) == 0 {
		return nil, nil, nil
	}
	seqSet := imap.SeqSet{}
	for _, n := range seqNums {
		seqSet.AddNum(n)
	}
	msgs, err := f.store.client.Fetch(seqSet, fullFetchOptions).Collect()
	if err != nil {
		return nil, nil, fmt.Errorf("remote: fetch search results in %s: %w", f.path, err)
	}
	return f.buildResults(msgs)
}

func (f *Folder) buildResults(msgs []*imapclient.FetchMessageBuffer) ([]message.RemoteHandle, []message.Snapshot, error) {
	handles := make([]message.RemoteHandle, 0, len(msgs))
	snaps := make([]message.Snapshot, 0, len(msgs))
	for _, m := range msgs {
		snaps = append(snaps, snapshotFromFetch(m))
		handles = append(handles, &messageHandle{folder: f, uid: m.UID})
		if m.BodyStructure != nil {
			if atts := attachmentMetadata(m.BodyStructure, ""); len(atts) > 0 {
				f.store.log.Debug().Uint32("uid", uint32(m.UID)).Int("attachments", len(atts)).Msg("message has attachments")
			}
		}
	}
	return handles, snaps, nil
}

func (f *Folder) Append(snap message.Snapshot) (message.RemoteHandle, error) {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()

	raw := snap.RawMIME
	if len(raw) == 0 {
		raw = buildRFC822(snap)
	}

	flags := flagsFromSet(snap.Flags)
	options := &imap.AppendOptions{Flags: flags}
	if !snap.SentDate.IsZero() {
		options.Time = snap.SentDate
	}

	appendCmd := f.store.client.Append(f.path, int64(len(raw)), options)
	if _, err := appendCmd.Write(raw); err != nil {
		return nil, fmt.Errorf("remote: write append data: %w", err)
	}
	if err := appendCmd.Close(); err != nil {
		return nil, fmt.Errorf("remote: close append command: %w", err)
	}
	data, err := appendCmd.Wait()
	if err != nil {
		return nil, fmt.Errorf("remote: append to %s: %w", f.path, err)
	}
	f.store.log.Debug().Str("mailbox", f.path).Uint32("uid", uint32(data.UID)).Msg("appended message")
	return &messageHandle{folder: f, uid: data.UID}, nil
}

// messageHandle implements message.RemoteHandle for one UID within a
// folder, re-selecting the mailbox before each operation since the IMAP
// connection is shared across folders (spec.md §5).
type messageHandle struct {
	folder *Folder
	uid    imap.UID
}

func (h *messageHandle) Fetch() (message.Snapshot, error) {
	h.folder.store.mu.Lock()
	defer h.folder.store.mu.Unlock()

	if _, err := h.folder.store.client.Select(h.folder.path, nil).Wait(); err != nil {
		return message.Snapshot{}, fmt.Errorf("remote: select mailbox %s: %w", h.folder.path, err)
	}
	uidSet := imap.UIDSet{}
	uidSet.AddNum(h.uid)
	msgs, err := h.folder.store.client.Fetch(uidSet, fullFetchOptions).Collect()
	if err != nil {
		return message.Snapshot{}, fmt.Errorf("remote: fetch uid %d: %w", h.uid, err)
	}
	if len(msgs) == 0 {
		return message.Snapshot{}, fmt.Errorf("remote: message uid %d no longer exists", h.uid)
	}
	return snapshotFromFetch(msgs[0]), nil
}

func (h *messageHandle) SetFlags(fs message.FlagSet) error {
	h.folder.store.mu.Lock()
	defer h.folder.store.mu.Unlock()

	if _, err := h.folder.store.client.Select(h.folder.path, nil).Wait(); err != nil {
		return fmt.Errorf("remote: select mailbox %s: %w", h.folder.path, err)
	}
	uidSet := imap.UIDSet{}
	uidSet.AddNum(h.uid)
	storeFlags := &imap.StoreFlags{
		Op:    imap.StoreFlagsSet,
		Flags: flagsFromSet(fs),
	}
	if err := h.folder.store.client.Store(uidSet, storeFlags, nil).Close(); err != nil {
		return fmt.Errorf("remote: store flags uid %d: %w", h.uid, err)
	}
	return nil
}

func (h *messageHandle) Delete() error {
	h.folder.store.mu.Lock()
	defer h.folder.store.mu.Unlock()

	if _, err := h.folder.store.client.Select(h.folder.path, nil).Wait(); err != nil {
		return fmt.Errorf("remote: select mailbox %s: %w", h.folder.path, err)
	}
	uidSet := imap.UIDSet{}
	uidSet.AddNum(h.uid)
	storeFlags := &imap.StoreFlags{Op: imap.StoreFlagsAdd, Flags: []imap.Flag{imap.FlagDeleted}}
	if err := h.folder.store.client.Store(uidSet, storeFlags, nil).Close(); err != nil {
		return fmt.Errorf("remote: mark deleted uid %d: %w", h.uid, err)
	}
	if err := h.folder.store.client.Expunge().Close(); err != nil {
		return fmt.Errorf("remote: expunge uid %d: %w", h.uid, err)
	}
	return nil
}

func flagsFromSet(fs message.FlagSet) []imap.Flag {
	var out []imap.Flag
	if fs.Has(message.FlagSeen) {
		out = append(out, imap.FlagSeen)
	}
	if fs.Has(message.FlagAnswered) {
		out = append(out, imap.FlagAnswered)
	}
	if fs.Has(message.FlagFlagged) {
		out = append(out, imap.FlagFlagged)
	}
	if fs.Has(message.FlagDeleted) {
		out = append(out, imap.FlagDeleted)
	}
	if fs.Has(message.FlagDraft) {
		out = append(out, imap.FlagDraft)
	}
	return out
}

func flagSetFromFlags(flags []imap.Flag) message.FlagSet {
	fs := message.FlagSet{}
	for _, f := range flags {
		switch f {
		case imap.FlagSeen:
			fs[message.FlagSeen] = struct{}{}
		case imap.FlagAnswered:
			fs[message.FlagAnswered] = struct{}{}
		case imap.FlagFlagged:
			fs[message.FlagFlagged] = struct{}{}
		case imap.FlagDeleted:
			fs[message.FlagDeleted] = struct{}{}
		case imap.FlagDraft:
			fs[message.FlagDraft] = struct{}{}
		}
	}
	return fs
}

func snapshotFromFetch(m *imapclient.FetchMessageBuffer) message.Snapshot {
	headers := message.Headers{}
	var subject, from string
	if env := m.Envelope; env != nil {
		subject = env.Subject
		if env.MessageID != "" {
			headers["Message-ID"] = env.MessageID
		}
		if len(env.From) > 0 {
			from = formatAddress(env.From[0])
		}
		if len(env.To) > 0 {
			headers["To"] = formatAddress(env.To[0])
		}
		if len(env.ReplyTo) > 0 {
			headers["Reply-To"] = formatAddress(env.ReplyTo[0])
		}
	}
	headers["Subject"] = subject
	headers["From"] = from

	plain, html, raw := "", "", []byte(nil)
	if len(m.BodySection) > 0 {
		raw = m.BodySection[0].Bytes
		plain, html = splitBody(raw)
	}

	// Attachment content is not fetched: AttachmentFiles stays empty, so
	// nothing is written under attachments/ for a message from the server.
	// buildResults only logs how many attachments the body structure lists.
	attachments := map[string][]byte{}

	return message.Snapshot{
		Headers:         headers,
		SentDate:        m.InternalDate,
		ContentType:     "text/plain",
		PlainBody:       plain,
		HTMLBody:        html,
		RawMIME:         raw,
		AttachmentFiles: attachments,
		Flags:           flagSetFromFlags(m.Flags),
	}
}

func formatAddress(addr imap.Address) string {
	if addr.Name != "" {
		return fmt.Sprintf("%s <%s@%s>", addr.Name, addr.Mailbox, addr.Host)
	}
	return fmt.Sprintf("%s@%s", addr.Mailbox, addr.Host)
}

func splitBody(raw []byte) (plain, html string) {
	mr, err := mail.CreateReader(strings.NewReader(string(raw)))
	if err != nil {
		return string(raw), ""
	}
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue
		}
		if h, ok := part.Header.(*mail.InlineHeader); ok {
			contentType, _, _ := h.ContentType()
			body, _ := io.ReadAll(part.Body)
			switch {
			case strings.HasPrefix(contentType, "text/plain"):
				plain = string(body)
			case strings.HasPrefix(contentType, "text/html"):
				html = string(body)
			}
		}
	}
	return plain, html
}

func attachmentMetadata(bs imap.BodyStructure, partID string) []message.Attachment {
	var out []message.Attachment
	switch b := bs.(type) {
	case *imap.BodyStructureSinglePart:
		filename := b.Filename()
		disposition := ""
		if disp := b.Disposition(); disp != nil {
			disposition = strings.ToLower(disp.Value)
		}
		isAttachment := disposition == "attachment"
		contentType := strings.ToLower(b.Type + "/" + b.Subtype)
		if !isAttachment && filename != "" && contentType != "text/plain" && contentType != "text/html" {
			isAttachment = true
		}
		if isAttachment && filename != "" {
			out = append(out, message.Attachment{Filename: filename, ContentType: contentType, Size: int64(b.Size)})
		}
	case *imap.BodyStructureMultiPart:
		for i, child := range b.Children {
			childID := fmt.Sprintf("%d", i+1)
			if partID != "" {
				childID = partID + "." + childID
			}
			out = append(out, attachmentMetadata(child, childID)...)
		}
	}
	return out
}

func buildRFC822(snap message.Snapshot) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", snap.Headers.Get("From"))
	fmt.Fprintf(&b, "To: %s\r\n", snap.Headers.Get("To"))
	fmt.Fprintf(&b, "Subject: %s\r\n", snap.Headers.Get("Subject"))
	fmt.Fprintf(&b, "Date: %s\r\n", snap.SentDate.Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n\r\n")
	b.WriteString(snap.PlainBody)
	return []byte(b.String())
}
