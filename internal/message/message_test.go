package message

import (
	"errors"
	"testing"
	"time"

	"mailcache/internal/cacheerr"
	"mailcache/internal/cachemode"
	"mailcache/internal/layout"
)

type fakeRemote struct {
	snap      Snapshot
	fetchErr  error
	setErr    error
	setCalled FlagSet
}

func (f *fakeRemote) Fetch() (Snapshot, error) { return f.snap, f.fetchErr }
func (f *fakeRemote) SetFlags(fs FlagSet) error {
	f.setCalled = fs
	return f.setErr
}
func (f *fakeRemote) Delete() error { return nil }

func newTestManager(t *testing.T) *layout.Manager {
	t.Helper()
	mgr, err := layout.New(t.TempDir(), "/")
	if err != nil {
		t.Fatalf("layout.New: %v", err)
	}
	return mgr
}

func TestNewFromRemoteRoundTrip(t *testing.T) {
	mgr := newTestManager(t)
	snap := Snapshot{
		Headers:     Headers{"Message-ID": "<abc@x>", "Subject": "Hello", "From": "Alice <alice@example.com>"},
		SentDate:    time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		ContentType: "text/plain",
		PlainBody:   "hi there",
		Flags:       NewFlagSet(FlagSeen),
	}

	msg, err := NewFromRemote(mgr, "INBOX", cachemode.Accelerated, snap, nil)
	if err != nil {
		t.Fatalf("NewFromRemote error: %v", err)
	}
	if msg.ID() != "_abc_x_" {
		t.Fatalf("unexpected id: %q", msg.ID())
	}

	reopened := Open(mgr, "INBOX", msg.ID(), cachemode.Offline, nil)
	subj, err := reopened.GetSubject()
	if err != nil {
		t.Fatalf("GetSubject error: %v", err)
	}
	if subj != "Hello" {
		t.Fatalf("subject = %q, want Hello", subj)
	}
	from, err := reopened.GetCleanFrom()
	if err != nil {
		t.Fatalf("GetCleanFrom error: %v", err)
	}
	if from != "alice@example.com" {
		t.Fatalf("clean from = %q", from)
	}
	body, err := reopened.GetBody()
	if err != nil {
		t.Fatalf("GetBody error: %v", err)
	}
	if body != "hi there" {
		t.Fatalf("body = %q", body)
	}
	flags, err := reopened.GetFlags()
	if err != nil {
		t.Fatalf("GetFlags error: %v", err)
	}
	if !flags.Has(FlagSeen) {
		t.Fatalf("expected SEEN flag, got %v", flags)
	}
}

func TestSetFlagsOfflineRejected(t *testing.T) {
	mgr := newTestManager(t)
	msg := Open(mgr, "INBOX", "abc_x", cachemode.Offline, nil)
	_, err := msg.SetFlags(NewFlagSet(FlagSeen))
	if !errors.Is(err, cacheerr.ErrReadOnlyMode) {
		t.Fatalf("expected ErrReadOnlyMode, got %v", err)
	}
}

func TestSetFlagsAcceleratedPendingOnRemoteFailure(t *testing.T) {
	mgr := newTestManager(t)
	snap := Snapshot{
		Headers:  Headers{"Message-ID": "<abc@x>", "Subject": "Hi"},
		SentDate: time.Now(),
		Flags:    FlagSet{},
	}
	remote := &fakeRemote{setErr: errors.New("network down")}
	msg, err := NewFromRemote(mgr, "INBOX", cachemode.Accelerated, snap, remote)
	if err != nil {
		t.Fatalf("NewFromRemote error: %v", err)
	}

	pending, err := msg.SetFlags(NewFlagSet(FlagFlagged))
	if err != nil {
		t.Fatalf("SetFlags returned unexpected error: %v", err)
	}
	if !pending {
		t.Fatalf("expected pending=true when remote fails in ACCELERATED mode")
	}

	flags, err := msg.GetFlags()
	if err != nil {
		t.Fatalf("GetFlags error: %v", err)
	}
	if !flags.Has(FlagFlagged) {
		t.Fatalf("expected local flags to reflect the write regardless of remote failure")
	}
}

func TestSetFlagsOnlineRequiresRemote(t *testing.T) {
	mgr := newTestManager(t)
	msg := Open(mgr, "INBOX", "abc_x", cachemode.Online, nil)
	_, err := msg.SetFlags(NewFlagSet(FlagSeen))
	if !errors.Is(err, cacheerr.ErrRemoteUnavailable) {
		t.Fatalf("expected ErrRemoteUnavailable, got %v", err)
	}
}

func TestPredicateMatch(t *testing.T) {
	mgr := newTestManager(t)
	snap := Snapshot{
		Headers:  Headers{"Message-ID": "<abc@x>", "Subject": "Quarterly report", "From": "bob@example.com"},
		SentDate: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
	}
	msg, err := NewFromRemote(mgr, "INBOX", cachemode.Accelerated, snap, nil)
	if err != nil {
		t.Fatalf("NewFromRemote error: %v", err)
	}

	p := And(SubjectContains("report"), SenderContains("bob"))
	if !p.Match(msg) {
		t.Fatalf("expected predicate to match")
	}
	if Not(p).Match(msg) {
		t.Fatalf("expected negated predicate not to match")
	}
	window := SentDateBetween(time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC))
	if !window.Match(msg) {
		t.Fatalf("expected date window to match")
	}
}
