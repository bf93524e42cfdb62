package cachemanager

import (
	"context"
	"testing"
	"time"

	"mailcache/internal/cachemode"
	"mailcache/internal/message"
	"mailcache/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	root := t.TempDir()
	st, err := store.Open(root, "stats-user-"+t.Name(), "/", cachemode.Accelerated, nil)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func TestGetStatisticsCountsFoldersAndMessages(t *testing.T) {
	st := newTestStore(t)
	inbox := st.GetFolder("INBOX")
	if _, err := inbox.AppendMessages([]message.Snapshot{
		{Headers: message.Headers{"Message-ID": "<a@x>", "Subject": "hi"}, SentDate: time.Now(), PlainBody: "body"},
	}); err != nil {
		t.Fatalf("AppendMessages: %v", err)
	}
	sub := st.GetFolder("INBOX/Archive")
	if err := sub.Create(); err != nil {
		t.Fatalf("Create subfolder: %v", err)
	}

	mgr := New(st)
	stats, err := mgr.GetStatistics()
	if err != nil {
		t.Fatalf("GetStatistics: %v", err)
	}
	if stats.MessageCount != 1 {
		t.Fatalf("expected 1 message, got %d", stats.MessageCount)
	}
	if stats.FolderCount < 2 {
		t.Fatalf("expected at least 2 folders (INBOX, INBOX/Archive), got %d", stats.FolderCount)
	}
	if stats.TotalBytes == 0 {
		t.Fatalf("expected nonzero bytes on disk")
	}
}

func TestClearCacheRemovesFolder(t *testing.T) {
	st := newTestStore(t)
	inbox := st.GetFolder("INBOX")
	if err := inbox.Create(); err != nil {
		t.Fatalf("Create: %v", err)
	}
	exists, err := inbox.Exists()
	if err != nil || !exists {
		t.Fatalf("expected INBOX to exist before clear")
	}

	mgr := New(st)
	if err := mgr.ClearCache("INBOX"); err != nil {
		t.Fatalf("ClearCache: %v", err)
	}
	exists, err = inbox.Exists()
	if err != nil {
		t.Fatalf("Exists: %v", err)
	}
	if exists {
		t.Fatalf("expected INBOX to be removed after ClearCache")
	}
}

func TestRecordAndDrainPending(t *testing.T) {
	st := newTestStore(t)
	mgr := New(st)

	id, err := mgr.RecordPending("INBOX", "abc_x", message.NewFlagSet(message.FlagSeen))
	if err != nil {
		t.Fatalf("RecordPending: %v", err)
	}
	if id == "" {
		t.Fatalf("expected a non-empty pending id")
	}

	pending, err := mgr.ListPending()
	if err != nil {
		t.Fatalf("ListPending: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("expected 1 pending entry, got %d", len(pending))
	}

	applied := &fakeHandle{}
	drained, err := mgr.DrainPending(context.Background(), func(folderPath, messageID string) (message.RemoteHandle, error) {
		return applied, nil
	})
	if err != nil {
		t.Fatalf("DrainPending: %v", err)
	}
	if drained != 1 {
		t.Fatalf("expected 1 drained entry, got %d", drained)
	}
	if !applied.setFlagsCalled {
		t.Fatalf("expected SetFlags to be replayed against the resolved handle")
	}

	remaining, err := mgr.ListPending()
	if err != nil {
		t.Fatalf("ListPending after drain: %v", err)
	}
	if len(remaining) != 0 {
		t.Fatalf("expected pending ledger to be empty after drain, got %d", len(remaining))
	}
}

type fakeHandle struct{ setFlagsCalled bool }

func (h *fakeHandle) Fetch() (message.Snapshot, error) { return message.Snapshot{}, nil }
func (h *fakeHandle) SetFlags(message.FlagSet) error {
	h.setFlagsCalled = true
	return nil
}
func (h *fakeHandle) Delete() error { return nil }
