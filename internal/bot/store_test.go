package bot

import (
	"context"
	"errors"
)

// fakeStore is an in-memory storage.Store for the core tests.
type fakeStore struct {
	debounce []debounceRow
	sessions []sessionRow

	// fail makes every operation return an error.
	fail bool
}

type debounceRow struct {
	callsign string
	command  string
	stamp    int64
}

type sessionRow struct {
	callsign string
	net      string
	date     string
}

var errStoreDown = errors.New("storage down")

func (f *fakeStore) InsertDebounce(_ context.Context, callsign, command string, stamp int64) error {
	if f.fail {
		return errStoreDown
	}
	f.debounce = append(f.debounce, debounceRow{callsign, command, stamp})
	return nil
}

func (f *fakeStore) HasRecentDebounce(_ context.Context, callsign, command string, cutoff int64) (bool, error) {
	if f.fail {
		return false, errStoreDown
	}
	for _, r := range f.debounce {
		if r.callsign == callsign && r.command == command && r.stamp > cutoff {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) CheckIn(_ context.Context, callsign, net, date string) error {
	if f.fail {
		return errStoreDown
	}
	f.sessions = append(f.sessions, sessionRow{callsign, net, date})
	return nil
}

func (f *fakeStore) CheckOut(_ context.Context, callsign, net string) error {
	if f.fail {
		return errStoreDown
	}
	kept := f.sessions[:0]
	for _, s := range f.sessions {
		if !(s.callsign == callsign && s.net == net) {
			kept = append(kept, s)
		}
	}
	f.sessions = kept
	return nil
}

func (f *fakeStore) NetRoster(_ context.Context, callsign, net, date string, limit int) ([]string, error) {
	if f.fail {
		return nil, errStoreDown
	}
	var out []string
	for _, s := range f.sessions {
		if s.callsign == callsign && s.net == net && s.date == date {
			out = append(out, s.callsign)
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (f *fakeStore) NetMembers(_ context.Context, net, date string) ([]string, error) {
	if f.fail {
		return nil, errStoreDown
	}
	var out []string
	for _, s := range f.sessions {
		if s.net == net && s.date == date {
			out = append(out, s.callsign)
		}
	}
	return out, nil
}

func (f *fakeStore) Close() error { return nil }

// sendRecorder captures outbound (to, text) pairs.
type sendRecorder struct {
	sent []sentMsg
}

type sentMsg struct {
	to   string
	text string
}

func (r *sendRecorder) send(to, text string) {
	r.sent = append(r.sent, sentMsg{to: to, text: text})
}
