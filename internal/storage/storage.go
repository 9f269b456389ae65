package storage

import (
	"context"
	"time"
)

// Store is the persistence API shared by the debounce ledger and the net
// session store. Implementations must be safe for use from a single
// goroutine; callers serialize access.
type Store interface {
	// InsertDebounce records that (callsign, command) was processed at
	// stamp, encoded as an integer YYYYMMDDHHMMSS.
	InsertDebounce(ctx context.Context, callsign, command string, stamp int64) error

	// HasRecentDebounce reports whether a record for (callsign, command)
	// exists with a stamp strictly greater than cutoff.
	HasRecentDebounce(ctx context.Context, callsign, command string, cutoff int64) (bool, error)

	// CheckIn inserts a net session row. Duplicate check-ins insert
	// duplicate rows; that is deliberate.
	CheckIn(ctx context.Context, callsign, net, date string) error

	// CheckOut deletes every session row for callsign+net, any date.
	CheckOut(ctx context.Context, callsign, net string) error

	// NetRoster returns the callsigns checked into net on date by the
	// given callsign, in insertion order. limit <= 0 means unlimited.
	NetRoster(ctx context.Context, callsign, net, date string, limit int) ([]string, error)

	// NetMembers returns every callsign checked into net on date, in
	// insertion order.
	NetMembers(ctx context.Context, net, date string) ([]string, error)

	Close() error
}

// Config configures the sqlite store.
type Config struct {
	Path        string
	BusyTimeout time.Duration // 0 means default
}
