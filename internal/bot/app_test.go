package bot

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"aprsbot/internal/aprs"
	"aprsbot/internal/remote"
	"aprsbot/pkg/logx"
)

type fakeTransport struct {
	connected    bool
	connectCalls int
	connectErr   error
	frames       []*aprs.Frame
}

func (f *fakeTransport) Connect() error {
	f.connectCalls++
	if f.connectErr != nil {
		return f.connectErr
	}
	f.connected = true
	return nil
}

func (f *fakeTransport) Connected() bool             { return f.connected }
func (f *fakeTransport) EnqueueFrame(fr *aprs.Frame) { f.frames = append(f.frames, fr) }

func newTestApp(trans Transport) *App {
	a := &App{
		log:      logx.Nop(),
		trans:    trans,
		pump:     remote.NewPump(1, logx.Nop()),
		callsign: "MYBOT-10",
		path:     "WIDE1-1",
		now:      time.Now,
	}
	return a
}

func TestReconnectRespectsFloor(t *testing.T) {
	t.Parallel()
	ft := &fakeTransport{connectErr: errors.New("refused")}
	a := newTestApp(ft)

	base := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	now := base
	a.now = func() time.Time { return now }

	a.checkReconnection()
	if ft.connectCalls != 1 {
		t.Fatalf("connectCalls = %d, want 1", ft.connectCalls)
	}

	// Inside the floor: no retry.
	now = base.Add(3 * time.Second)
	a.checkReconnection()
	if ft.connectCalls != 1 {
		t.Fatalf("connectCalls = %d, want still 1", ft.connectCalls)
	}

	// Past the floor: retry.
	now = base.Add(6 * time.Second)
	a.checkReconnection()
	if ft.connectCalls != 2 {
		t.Fatalf("connectCalls = %d, want 2", ft.connectCalls)
	}
}

func TestReconnectSkippedWhenConnected(t *testing.T) {
	t.Parallel()
	ft := &fakeTransport{connected: true}
	a := newTestApp(ft)

	a.checkReconnection()
	if ft.connectCalls != 0 {
		t.Fatalf("connectCalls = %d, want 0", ft.connectCalls)
	}
}

func TestStatusSubmissionAndDrain(t *testing.T) {
	t.Parallel()
	ft := &fakeTransport{connected: true}
	a := newTestApp(ft)
	a.statusFreq = 10 * time.Minute

	base := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	now := base
	a.now = func() time.Time { return now }
	a.lastStatus = base

	a.pump.Start(context.Background())
	defer a.pump.Stop()

	// Before the interval: nothing submitted.
	a.updateStatus()
	a.drainResults()
	if len(ft.frames) != 0 {
		t.Fatalf("frames = %d, want 0", len(ft.frames))
	}

	// Past the interval: a job is submitted; its result becomes a status
	// frame on a later drain.
	now = base.Add(11 * time.Minute)
	a.updateStatus()

	deadline := time.After(2 * time.Second)
	for len(ft.frames) == 0 {
		select {
		case <-deadline:
			t.Fatal("no status frame before deadline")
		case <-time.After(5 * time.Millisecond):
			a.drainResults()
		}
	}
	if !strings.HasPrefix(ft.frames[0].Info, ">") {
		t.Fatalf("info = %q, want a status frame", ft.frames[0].Info)
	}
}

func TestSendMessageBuildsAddressedFrame(t *testing.T) {
	t.Parallel()
	ft := &fakeTransport{connected: true}
	a := newTestApp(ft)

	a.sendMessage("W1AW", "hello")
	if len(ft.frames) != 1 {
		t.Fatalf("frames = %d, want 1", len(ft.frames))
	}
	f := ft.frames[0]
	if f.Source != "MYBOT-10" || f.Dest != aprs.DestAddress {
		t.Fatalf("frame = %+v", f)
	}
	if f.Info != ":W1AW     :hello" {
		t.Fatalf("info = %q", f.Info)
	}
	m, ok := aprs.MessageFromFrame(f)
	if !ok || m.Addressee != "W1AW" || m.Text != "hello" {
		t.Fatalf("decoded = %+v (ok=%v)", m, ok)
	}
}
