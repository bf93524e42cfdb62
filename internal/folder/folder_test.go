package folder

import (
	"errors"
	"testing"
	"time"

	"mailcache/internal/cacheerr"
	"mailcache/internal/cachemode"
	"mailcache/internal/layout"
	"mailcache/internal/message"
)

type fakeRemoteHandle struct{ snap message.Snapshot }

func (h *fakeRemoteHandle) Fetch() (message.Snapshot, error)     { return h.snap, nil }
func (h *fakeRemoteHandle) SetFlags(message.FlagSet) error       { return nil }
func (h *fakeRemoteHandle) Delete() error                        { return nil }

type fakeRemoteFolder struct {
	existsVal   bool
	createErr   error
	deleteErr   error
	count       int
	snaps       []message.Snapshot
	appendCalls int
	appendErr   error
}

func (r *fakeRemoteFolder) Exists() (bool, error) { return r.existsVal, nil }
func (r *fakeRemoteFolder) Create() error         { return r.createErr }
func (r *fakeRemoteFolder) Delete() error         { return r.deleteErr }
func (r *fakeRemoteFolder) MessageCount() (int, error) { return r.count, nil }
func (r *fakeRemoteFolder) ListMessages() ([]message.RemoteHandle, []message.Snapshot, error) {
	handles := make([]message.RemoteHandle, len(r.snaps))
	for i, s := range r.snaps {
		handles[i] = &fakeRemoteHandle{snap: s}
	}
	return handles, r.snaps, nil
}
func (r *fakeRemoteFolder) Search(criteria interface{}) ([]message.RemoteHandle, []message.Snapshot, error) {
	return r.ListMessages()
}
func (r *fakeRemoteFolder) Append(snap message.Snapshot) (message.RemoteHandle, error) {
	r.appendCalls++
	if r.appendErr != nil {
		return nil, r.appendErr
	}
	return &fakeRemoteHandle{snap: snap}, nil
}

func newTestFolder(t *testing.T, mode cachemode.Mode, remote RemoteFolder) *Folder {
	t.Helper()
	mgr, err := layout.New(t.TempDir(), "/")
	if err != nil {
		t.Fatalf("layout.New: %v", err)
	}
	return New(mgr, "INBOX", remote, func() cachemode.Mode { return mode })
}

func TestAppendMessagesOffline(t *testing.T) {
	f := newTestFolder(t, cachemode.Offline, nil)
	_, err := f.AppendMessages([]message.Snapshot{{Headers: message.Headers{"Subject": "hi"}, SentDate: time.Now()}})
	if !errors.Is(err, cacheerr.ErrReadOnlyMode) {
		t.Fatalf("expected ErrReadOnlyMode, got %v", err)
	}
}

func TestAppendMessagesAcceleratedLocalAuthoritative(t *testing.T) {
	remote := &fakeRemoteFolder{}
	f := newTestFolder(t, cachemode.Accelerated, remote)
	msgs, err := f.AppendMessages([]message.Snapshot{
		{Headers: message.Headers{"Message-ID": "<a@x>", "Subject": "hi"}, SentDate: time.Now()},
	})
	if err != nil {
		t.Fatalf("AppendMessages error: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}
	if remote.appendCalls != 1 {
		t.Fatalf("expected remote append attempted, got %d calls", remote.appendCalls)
	}

	count, err := f.GetMessageCount()
	if err != nil {
		t.Fatalf("GetMessageCount error: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected count 1, got %d", count)
	}
}

func TestAppendMessagesOnlineRequiresRemoteSuccess(t *testing.T) {
	remote := &fakeRemoteFolder{appendErr: errors.New("boom")}
	f := newTestFolder(t, cachemode.Online, remote)
	_, err := f.AppendMessages([]message.Snapshot{
		{Headers: message.Headers{"Message-ID": "<a@x>"}, SentDate: time.Now()},
	})
	if err == nil {
		t.Fatalf("expected error when remote append fails in ONLINE mode")
	}
}

func TestOpenCloseStateMachine(t *testing.T) {
	f := newTestFolder(t, cachemode.Accelerated, nil)
	if err := f.OpenFolder(ReadOnly); err != nil {
		t.Fatalf("OpenFolder: %v", err)
	}
	if _, err := f.AppendMessages([]message.Snapshot{{Headers: message.Headers{}, SentDate: time.Now()}}); !errors.Is(err, cacheerr.ErrReadOnlyState) {
		t.Fatalf("expected ErrReadOnlyState on read-only folder, got %v", err)
	}
	if err := f.OpenFolder(ReadWrite); err != nil {
		t.Fatalf("re-open ReadWrite: %v", err)
	}
	if _, err := f.AppendMessages([]message.Snapshot{{Headers: message.Headers{"Message-ID": "<b@x>"}, SentDate: time.Now()}}); err != nil {
		t.Fatalf("expected append to succeed after upgrading access, got %v", err)
	}
	if err := f.CloseFolder(false); err != nil {
		t.Fatalf("CloseFolder: %v", err)
	}
	if err := f.CloseFolder(false); err != nil {
		t.Fatalf("second CloseFolder: %v", err)
	}
}

func TestSearchLocalFallback(t *testing.T) {
	f := newTestFolder(t, cachemode.Accelerated, nil)
	if _, err := f.AppendMessages([]message.Snapshot{
		{Headers: message.Headers{"Message-ID": "<a@x>", "Subject": "quarterly report"}, SentDate: time.Now()},
		{Headers: message.Headers{"Message-ID": "<b@x>", "Subject": "lunch plans"}, SentDate: time.Now()},
	}); err != nil {
		t.Fatalf("AppendMessages: %v", err)
	}
	matched, err := f.Search(message.SubjectContains("report"))
	if err != nil {
		t.Fatalf("Search error: %v", err)
	}
	if len(matched) != 1 {
		t.Fatalf("expected 1 match, got %d", len(matched))
	}
}

func TestPurgeOlderThanRespectsFlagged(t *testing.T) {
	// Appends and counts under DESTRUCTIVE go through the remote, so the
	// messages are appended and counted under ACCELERATED and purged under
	// DESTRUCTIVE.
	mode := cachemode.Accelerated
	mgr, err := layout.New(t.TempDir(), "/")
	if err != nil {
		t.Fatalf("layout.New: %v", err)
	}
	f := New(mgr, "INBOX", nil, func() cachemode.Mode { return mode })
	old := time.Now().AddDate(0, 0, -30)
	msgs, err := f.AppendMessages([]message.Snapshot{
		{Headers: message.Headers{"Message-ID": "<old@x>"}, SentDate: old, Flags: message.NewFlagSet(message.FlagFlagged)},
		{Headers: message.Headers{"Message-ID": "<old2@x>"}, SentDate: old},
	})
	if err != nil {
		t.Fatalf("AppendMessages: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages appended")
	}

	mode = cachemode.Destructive
	purged, err := f.PurgeOlderThan(7, false)
	if err != nil {
		t.Fatalf("PurgeOlderThan error: %v", err)
	}
	if purged != 1 {
		t.Fatalf("expected 1 purged (flagged kept), got %d", purged)
	}

	mode = cachemode.Accelerated
	count, _ := f.GetMessageCount()
	if count != 1 {
		t.Fatalf("expected 1 remaining message, got %d", count)
	}
}

func TestPurgeOlderThanRejectedOutsideDestructive(t *testing.T) {
	for _, mode := range []cachemode.Mode{cachemode.Offline, cachemode.Accelerated, cachemode.Online, cachemode.Refresh} {
		f := newTestFolder(t, mode, nil)
		if _, err := f.PurgeOlderThan(7, false); !errors.Is(err, cacheerr.ErrReadOnlyMode) {
			t.Fatalf("mode %v: expected ErrReadOnlyMode from PurgeOlderThan, got %v", mode, err)
		}
	}
}

func TestDeleteRejectedInAccelerated(t *testing.T) {
	remote := &fakeRemoteFolder{}
	f := newTestFolder(t, cachemode.Accelerated, remote)
	if err := f.Create(); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := f.Delete(); !errors.Is(err, cacheerr.ErrReadOnlyMode) {
		t.Fatalf("expected ErrReadOnlyMode deleting a folder in ACCELERATED mode, got %v", err)
	}
}
