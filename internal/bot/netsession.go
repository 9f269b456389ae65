package bot

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"aprsbot/internal/storage"
	"aprsbot/pkg/logx"
)

const (
	// rosterDefaultLimit caps the netusers reply when "all" is not given.
	rosterDefaultLimit = 5
	// rosterChunkLen is the point at which an accumulating roster reply is
	// flushed into its own message.
	rosterChunkLen = 50
)

// NetSessions tracks check-ins to named nets. Rosters are scoped to the
// current day by date equality; yesterday's check-ins simply stop matching.
//
// Every operation converts storage failure into a logged false so a bad
// database never takes the message handler down.
type NetSessions struct {
	store storage.Store
	log   logx.Logger
	send  func(to, text string)

	// pace throttles roster broadcasts to one message per second so the
	// outbound channel is not flooded.
	pace *rate.Limiter
	now  func() time.Time
}

func NewNetSessions(store storage.Store, send func(to, text string), log logx.Logger) *NetSessions {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &NetSessions{
		store: store,
		log:   log,
		send:  send,
		pace:  rate.NewLimiter(rate.Every(time.Second), 1),
		now:   time.Now,
	}
}

// CheckIn registers callsign in net for today. Re-check-in without a
// check-out inserts another row; that mirrors paper net logs.
func (n *NetSessions) CheckIn(ctx context.Context, callsign, net string) bool {
	n.log.Info("net check-in", logx.String("from", callsign), logx.String("net", net))
	if err := n.store.CheckIn(ctx, callsign, net, dayString(n.now())); err != nil {
		n.log.Warn("net check-in failed", logx.String("from", callsign), logx.String("net", net), logx.Err(err))
		return false
	}
	return true
}

// CheckOut removes callsign from net across all dates.
func (n *NetSessions) CheckOut(ctx context.Context, callsign, net string) bool {
	n.log.Info("net check-out", logx.String("from", callsign), logx.String("net", net))
	if err := n.store.CheckOut(ctx, callsign, net); err != nil {
		n.log.Warn("net check-out failed", logx.String("from", callsign), logx.String("net", net), logx.Err(err))
		return false
	}
	return true
}

// ListUsers sends today's roster to the requester, chunked so no single
// message grows past rosterChunkLen. The final partial chunk is always
// sent, even when no rows matched.
//
// Note: the roster query filters by the requesting callsign in both modes;
// "all" only lifts the row cap. See DESIGN.md.
func (n *NetSessions) ListUsers(ctx context.Context, callsign, net string, includeAll bool) bool {
	n.log.Info("net user list", logx.String("from", callsign), logx.String("net", net), logx.Bool("all", includeAll))

	limit := rosterDefaultLimit
	if includeAll {
		limit = 0
	}
	rows, err := n.store.NetRoster(ctx, callsign, net, dayString(n.now()), limit)
	if err != nil {
		n.log.Warn("net roster query failed", logx.String("net", net), logx.Err(err))
		return false
	}

	msg := "Current Calls for " + net + ":"
	for _, cs := range rows {
		if len(msg)+1+len(cs) > rosterChunkLen {
			n.send(callsign, msg)
			msg = ""
		}
		msg += " " + cs
	}
	n.send(callsign, msg)
	return true
}

// BlastMessage relays text to every station checked into net today as
// "<requester>> <text>", paced at one message per second.
func (n *NetSessions) BlastMessage(ctx context.Context, callsign, net, text string) bool {
	n.log.Info("net blast", logx.String("from", callsign), logx.String("net", net))

	members, err := n.store.NetMembers(ctx, net, dayString(n.now()))
	if err != nil {
		n.log.Warn("net members query failed", logx.String("net", net), logx.Err(err))
		return false
	}

	for _, member := range members {
		if err := n.pace.Wait(ctx); err != nil {
			return false
		}
		n.send(member, callsign+"> "+text)
	}
	return true
}
