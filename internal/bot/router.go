package bot

import (
	"context"
	"regexp"
	"runtime"
	"strings"
	"time"

	"aprsbot/internal/aprs"
	"aprsbot/pkg/logx"
)

// controlTokenRe matches bare protocol acknowledgements/rejections. These
// are control traffic, never commands.
var controlTokenRe = regexp.MustCompile(`^(ack|rej)\d+`)

// cannedReplies maps whole-command tokens to fixed replies.
var cannedReplies = map[string]string{
	"mellon":  "*door opens*",
	"mellon!": "**door opens**  🚶🚶🚶🚶🚶🚶🚶🚶🚶  💍→🌋",
	"meow":    "=^.^=  purr purr  =^.^=",
	"clacks":  "GNU Terry Pratchett",
	"73":      "73 🖖",
}

// Router turns addressed messages into command executions and replies.
type Router struct {
	log      logx.Logger
	debounce *Debouncer
	nets     *NetSessions
	send     func(to, text string)
	now      func() time.Time

	callsign string
}

func NewRouter(debounce *Debouncer, nets *NetSessions, send func(to, text string), log logx.Logger) *Router {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Router{
		log:      log,
		debounce: debounce,
		nets:     nets,
		send:     send,
		now:      time.Now,
	}
}

// SetCallsign updates the bot identity used for addressee matching.
func (r *Router) SetCallsign(cs string) { r.callsign = cs }

// Route handles one inbound addressed message. Messages for other stations
// and control tokens are dropped; everything else is debounced and
// dispatched. When the sender asked for confirmation the ack goes out even
// if the command was unknown.
func (r *Router) Route(ctx context.Context, m *aprs.Message) {
	if !strings.EqualFold(strings.TrimSpace(m.Addressee), r.callsign) {
		return
	}

	if controlTokenRe.MatchString(m.Text) {
		r.log.Info("ignoring control message", logx.String("from", m.Source), logx.String("text", m.Text))
		return
	}

	r.handleQuery(ctx, m)

	if m.ID != "" {
		// The protocol allows rejecting with rejNNN, but an unknown query
		// is still a deliverable message, so always ack.
		r.log.Info("sending ack", logx.String("to", m.Source), logx.String("msgid", m.ID))
		r.send(m.Source, aprs.AckText(m.ID))
	}
}

func (r *Router) handleQuery(ctx context.Context, m *aprs.Message) {
	command, args := splitCommand(m.Text)

	if !r.debounce.Accept(ctx, m.Source, command) {
		r.log.Info("ignoring duplicate message", logx.String("from", m.Source), logx.String("command", command))
		return
	}

	switch command {
	case "ping":
		r.send(m.Source, "Pong! "+args)

	case "?aprst", "?ping?":
		// Echo the sender's frame header back so they can see the path
		// their packet took. Truncate at the message delimiter.
		head, _, _ := strings.Cut(m.Frame.String(), "::")
		r.send(m.Source, head+":")

	case "netcheckin", "cq":
		net := firstToken(args)
		if r.nets.CheckIn(ctx, m.Source, net) {
			r.send(m.Source, "OK, Net Check in for "+net+" Successful!")
		} else {
			r.send(m.Source, "OK, Net Check in for "+net+" Failed. Uh oh")
		}

	case "netcheckout":
		net := firstToken(args)
		if r.nets.CheckOut(ctx, m.Source, net) {
			r.send(m.Source, "OK, Net Check out for "+net+" Successful! 73!")
		} else {
			r.send(m.Source, "OK, Net Check out for "+net+" Failed. Uh oh")
		}

	case "netusers":
		net, flags := splitArg(args)
		r.nets.ListUsers(ctx, m.Source, net, flags == "all")

	case "netmsg":
		net, text := splitArg(args)
		if text == "" {
			r.send(m.Source, "Pretty cowardly not giving me a message to send!")
			return
		}
		r.nets.BlastMessage(ctx, m.Source, net, text)

	case "version":
		r.send(m.Source, "Go "+runtime.Version())

	case "time":
		r.send(m.Source, "Localtime is "+r.now().Format("2006-01-02 15:04:05 UTCMST"))

	case "help":
		r.send(m.Source, "Valid commands: ping, version, time, help")

	default:
		if reply, ok := cannedReplies[command]; ok {
			r.send(m.Source, reply)
			return
		}
		r.send(m.Source, "I'm a bot. Send 'help' for command list")
	}
}

// splitCommand splits text on the first space into a lowercased command and
// the untouched remainder.
func splitCommand(text string) (command, args string) {
	command, args, _ = strings.Cut(strings.TrimLeft(text, " "), " ")
	return strings.ToLower(command), args
}

// splitArg splits an argument string into its first token and the rest,
// preserving case.
func splitArg(s string) (first, rest string) {
	first, rest, _ = strings.Cut(strings.TrimLeft(s, " "), " ")
	return first, rest
}

func firstToken(s string) string {
	tok, _ := splitArg(s)
	return tok
}
