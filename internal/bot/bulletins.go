package bot

import (
	"fmt"
	"math/rand"
	"sort"
	"time"

	"github.com/robfig/cron/v3"

	"aprsbot/internal/config"
	"aprsbot/pkg/logx"
)

// ruleParser accepts standard five-field cron expressions plus descriptors
// like @daily.
var ruleParser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// ValidateRules reports whether every rule expression compiles. Installed
// as the config manager's validator hook so a bad rule rejects the whole
// reload instead of half-applying.
func ValidateRules(cfg *config.Config) error {
	if cfg.Bulletins == nil {
		return nil
	}
	_, err := compileRules(cfg.Bulletins.Rules)
	return err
}

func compileRules(rules []config.RuleBulletin) ([]ruleBulletin, error) {
	out := make([]ruleBulletin, 0, len(rules))
	for i, r := range rules {
		sched, err := ruleParser.Parse(r.Rule)
		if err != nil {
			return nil, fmt.Errorf("bulletins.rules[%d] (%s): %w", i, r.ID, err)
		}
		out = append(out, ruleBulletin{id: r.ID, sched: sched, text: r.Text})
	}
	return out, nil
}

type ruleBulletin struct {
	id    string
	sched cron.Schedule
	text  string
}

// matchesMinute reports whether the rule fires in the minute containing
// ref. ref must be truncated to the minute.
func (r ruleBulletin) matchesMinute(ref time.Time) bool {
	return r.sched.Next(ref.Add(-time.Second)).Equal(ref)
}

// Bulletins reconciles two trigger sources into one ordered batch per pass:
// static bulletins on a monotonic interval, rule bulletins on wall-clock
// minutes. Static bulletins use the monotonic clock so a stepped system
// clock cannot make them burst or stall; rule bulletins follow real
// calendar time and are gated to at most one evaluation per wall-clock
// minute.
type Bulletins struct {
	log  logx.Logger
	send func(to, text string)

	sendFreq time.Duration
	static   map[string]string
	rules    []ruleBulletin

	lastStatic   time.Time
	lastRuleEval time.Time

	now     func() time.Time
	jitterN func(n int) int
}

func NewBulletins(send func(to, text string), log logx.Logger) *Bulletins {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Bulletins{
		log:  log,
		send: send,
		now:  time.Now,
		// Go time.Time carries a monotonic reading, so Sub() on values
		// from time.Now is step-proof for the static interval.
		lastStatic: time.Now(),
		jitterN:    rand.Intn,
	}
}

const defaultSendFreq = 10 * time.Minute

// Apply replaces the bulletin set wholesale from a freshly loaded config.
// Timers survive the reload. cfg may be nil (section removed).
func (b *Bulletins) Apply(cfg *config.BulletinsConfig) error {
	if cfg == nil {
		b.sendFreq = 0
		b.static = nil
		b.rules = nil
		return nil
	}
	freq, err := config.ParseDurationOrDefault("bulletins.send_freq", cfg.SendFreq, defaultSendFreq)
	if err != nil {
		return err
	}
	rules, err := compileRules(cfg.Rules)
	if err != nil {
		return err
	}

	static := make(map[string]string, len(cfg.Static))
	for id, text := range cfg.Static {
		static[id] = text
	}

	b.sendFreq = freq
	b.static = static
	b.rules = rules
	return nil
}

// Tick runs one scheduling pass.
func (b *Bulletins) Tick() {
	if len(b.static) == 0 && len(b.rules) == 0 {
		return
	}

	now := b.now()

	staticDue := len(b.static) > 0 && b.sendFreq > 0 && now.Sub(b.lastStatic) > b.sendFreq
	ruleDue := now.Sub(b.lastRuleEval) > time.Minute

	// Fast path: nothing to do this pass.
	if !staticDue && !ruleDue {
		return
	}

	batch := map[string]string{}

	// Do not evaluate calendar rules before the clock is set (e.g. boards
	// waiting for NTP after boot).
	timeWasSet := now.Year() > 2000

	if ruleDue && timeWasSet {
		minute := now.Truncate(time.Minute)
		// Re-open the gate at a jittered instant inside the next minute so
		// multiple instances do not burst at second zero.
		b.lastRuleEval = minute.Add(time.Duration(b.jitterN(31)) * time.Second)

		for _, r := range b.rules {
			if r.matchesMinute(minute) {
				// Same-id rules within one pass: last write wins.
				batch[r.id] = r.text
			}
		}
	}

	if staticDue {
		b.lastStatic = now
		// Static entries land after rule entries, so they win same-pass id
		// collisions.
		for id, text := range b.static {
			batch[id] = text
		}
	}

	if len(batch) == 0 {
		return
	}

	ids := make([]string, 0, len(batch))
	for id := range batch {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		b.log.Info("posting bulletin", logx.String("id", id), logx.String("text", batch[id]))
		b.send(id, batch[id])
	}
}
