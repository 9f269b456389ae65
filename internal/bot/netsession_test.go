package bot

import (
	"context"
	"strings"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"aprsbot/pkg/logx"
)

func newTestNets(st *fakeStore, rec *sendRecorder) *NetSessions {
	n := NewNetSessions(st, rec.send, logx.Nop())
	n.now = func() time.Time { return time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC) }
	// Unlimited pacing; the tests assert send counts, not timing.
	n.pace = rate.NewLimiter(rate.Inf, 1)
	return n
}

func TestCheckInThenListUsers(t *testing.T) {
	t.Parallel()
	st := &fakeStore{}
	rec := &sendRecorder{}
	n := newTestNets(st, rec)
	ctx := context.Background()

	if !n.CheckIn(ctx, "W1AW", "NET1") {
		t.Fatal("CheckIn failed")
	}
	if !n.ListUsers(ctx, "W1AW", "NET1", false) {
		t.Fatal("ListUsers failed")
	}
	if len(rec.sent) != 1 {
		t.Fatalf("sent = %d messages, want 1", len(rec.sent))
	}
	if rec.sent[0].to != "W1AW" || !strings.Contains(rec.sent[0].text, "W1AW") {
		t.Fatalf("roster reply = %+v", rec.sent[0])
	}
}

func TestCheckOutEmptiesRoster(t *testing.T) {
	t.Parallel()
	st := &fakeStore{}
	rec := &sendRecorder{}
	n := newTestNets(st, rec)
	ctx := context.Background()

	n.CheckIn(ctx, "W1AW", "NET1")
	if !n.CheckOut(ctx, "W1AW", "NET1") {
		t.Fatal("CheckOut failed")
	}
	rec.sent = nil
	n.ListUsers(ctx, "W1AW", "NET1", false)
	if len(rec.sent) != 1 {
		t.Fatalf("sent = %d messages, want the final partial", len(rec.sent))
	}
	if strings.Contains(rec.sent[0].text, "W1AW ") || strings.HasSuffix(rec.sent[0].text, " W1AW") {
		t.Fatalf("roster still lists W1AW: %q", rec.sent[0].text)
	}
}

func TestListUsersChunksLongRosters(t *testing.T) {
	t.Parallel()
	st := &fakeStore{}
	rec := &sendRecorder{}
	n := newTestNets(st, rec)
	ctx := context.Background()

	for i := 0; i < 9; i++ {
		st.sessions = append(st.sessions, sessionRow{"W1AW", "NET1", "20240101"})
	}
	if !n.ListUsers(ctx, "W1AW", "NET1", true) {
		t.Fatal("ListUsers failed")
	}
	if len(rec.sent) < 2 {
		t.Fatalf("sent = %d messages, want chunked output", len(rec.sent))
	}
	for _, m := range rec.sent {
		if len(m.text) > rosterChunkLen+6 {
			t.Fatalf("chunk too long: %q", m.text)
		}
	}
}

func TestListUsersHonorsDefaultCap(t *testing.T) {
	t.Parallel()
	st := &fakeStore{}
	rec := &sendRecorder{}
	n := newTestNets(st, rec)
	ctx := context.Background()

	for i := 0; i < 8; i++ {
		st.sessions = append(st.sessions, sessionRow{"W1AW", "NET1", "20240101"})
	}
	n.ListUsers(ctx, "W1AW", "NET1", false)

	total := 0
	for _, m := range rec.sent {
		total += strings.Count(m.text, "W1AW")
	}
	if total != rosterDefaultLimit {
		t.Fatalf("listed %d entries, want %d", total, rosterDefaultLimit)
	}
}

func TestBlastMessageReachesWholeNet(t *testing.T) {
	t.Parallel()
	st := &fakeStore{}
	rec := &sendRecorder{}
	n := newTestNets(st, rec)
	ctx := context.Background()

	st.sessions = append(st.sessions,
		sessionRow{"W1AW", "NET1", "20240101"},
		sessionRow{"KB2XYZ", "NET1", "20240101"},
		sessionRow{"N0CALL", "NET2", "20240101"},
	)
	if !n.BlastMessage(ctx, "W1AW", "NET1", "net closing soon") {
		t.Fatal("BlastMessage failed")
	}
	if len(rec.sent) != 2 {
		t.Fatalf("sent = %d messages, want 2", len(rec.sent))
	}
	if rec.sent[0].to != "W1AW" || rec.sent[1].to != "KB2XYZ" {
		t.Fatalf("recipients = %+v, want roster order", rec.sent)
	}
	for _, m := range rec.sent {
		if m.text != "W1AW> net closing soon" {
			t.Fatalf("blast text = %q", m.text)
		}
	}
}

func TestOperationsSurviveStorageFailure(t *testing.T) {
	t.Parallel()
	st := &fakeStore{fail: true}
	rec := &sendRecorder{}
	n := newTestNets(st, rec)
	ctx := context.Background()

	if n.CheckIn(ctx, "W1AW", "NET1") {
		t.Fatal("CheckIn must report failure")
	}
	if n.CheckOut(ctx, "W1AW", "NET1") {
		t.Fatal("CheckOut must report failure")
	}
	if n.ListUsers(ctx, "W1AW", "NET1", false) {
		t.Fatal("ListUsers must report failure")
	}
	if n.BlastMessage(ctx, "W1AW", "NET1", "x") {
		t.Fatal("BlastMessage must report failure")
	}
	if len(rec.sent) != 0 {
		t.Fatalf("sent = %d messages, want none on failure", len(rec.sent))
	}
}
