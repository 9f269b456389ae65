package bot

import (
	"context"
	"strings"
	"time"

	"aprsbot/internal/storage"
	"aprsbot/pkg/logx"
)

// debounceWindow is the suppression window in units of the YYYYMMDDHHMMSS
// integer encoding, as subtracted from the current stamp.
const debounceWindow = 30

// Debouncer suppresses repeated (callsign, command) pairs inside a short
// window so digipeated duplicates of one transmission are answered once.
type Debouncer struct {
	store storage.Store
	log   logx.Logger
	now   func() time.Time
}

func NewDebouncer(store storage.Store, log logx.Logger) *Debouncer {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Debouncer{store: store, log: log, now: time.Now}
}

// Accept reports whether the command should be processed. The first
// occurrence inside the window records a ledger entry and is accepted;
// later occurrences are suppressed. Storage failures are logged and count
// as acceptance.
func (d *Debouncer) Accept(ctx context.Context, callsign, command string) bool {
	command = strings.ToLower(command)
	stamp := datetimeInt(d.now())

	recent, err := d.store.HasRecentDebounce(ctx, callsign, command, stamp-debounceWindow)
	if err != nil {
		d.log.Warn("debounce lookup failed", logx.String("from", callsign), logx.Err(err))
		return true
	}
	if recent {
		return false
	}

	if err := d.store.InsertDebounce(ctx, callsign, command, stamp); err != nil {
		d.log.Warn("debounce insert failed", logx.String("from", callsign), logx.Err(err))
	}
	return true
}
