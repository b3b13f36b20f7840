// Package report sends periodic summaries of open outages and the
// message announcing that monitoring has started.
package report

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/HerbHall/linkpulse/internal/linkmon"
	"github.com/HerbHall/linkpulse/internal/notify"
	"go.uber.org/zap"
)

// LedgerSource supplies the current outage ledger.
type LedgerSource interface {
	Ledger() linkmon.Ledger
}

// Summary renders the scheduled report for ledger.
func Summary(ledger linkmon.Ledger) string {
	entries := ledger.Entries()
	if len(entries) == 0 {
		return "✅ No links down."
	}
	var b strings.Builder
	b.WriteString("📡 *Automatic report*\n\n")
	for _, e := range entries {
		b.WriteString("- " + e.Unit + " | " + e.Provider + " | since: " + e.SinceText() + "\n")
	}
	return b.String()
}

// StartupMessage renders the message sent once when monitoring starts,
// listing outages carried over from a previous run.
func StartupMessage(ledger linkmon.Ledger) string {
	entries := ledger.Entries()
	if len(entries) == 0 {
		return "🚀 Monitoring started."
	}
	var b strings.Builder
	b.WriteString("⚠️ *Links already offline at startup:*\n")
	for _, e := range entries {
		b.WriteString("- " + e.Unit + " | " + e.Provider + " (since " + e.SinceText() + ")\n")
	}
	return b.String()
}

// Reporter decides when a scheduled report is due and sends it.
//
// A slot is due when its instant falls after the previous check and at
// or before the current one, so a late poll still fires and a restart
// in the middle of the day does not replay the morning report. Each slot
// fires at most once per calendar day.
type Reporter struct {
	source       LedgerSource
	notifier     notify.Notifier
	clock        linkmon.Clock
	slots        []slot
	weekdaysOnly bool
	logger       *zap.Logger

	mu        sync.Mutex
	lastCheck time.Time
	fired     map[string]string // slot label -> date it last fired
}

// NewReporter creates a reporter. The first Check looks back one poll
// interval so a process started during a slot's minute still reports.
func NewReporter(source LedgerSource, notifier notify.Notifier, clock linkmon.Clock, slots []slot, weekdaysOnly bool, poll time.Duration, logger *zap.Logger) *Reporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reporter{
		source:       source,
		notifier:     notifier,
		clock:        clock,
		slots:        slots,
		weekdaysOnly: weekdaysOnly,
		logger:       logger,
		lastCheck:    clock.Now().Add(-poll),
		fired:        make(map[string]string),
	}
}

// Check sends the report if a slot came due since the previous call and
// reports whether it did.
func (r *Reporter) Check(ctx context.Context) bool {
	now := r.clock.Now()

	r.mu.Lock()
	due := r.claimDue(now)
	r.lastCheck = now
	r.mu.Unlock()

	if len(due) == 0 {
		return false
	}

	text := Summary(r.source.Ledger())
	if err := r.notifier.Notify(ctx, text); err != nil {
		r.logger.Warn("scheduled report failed",
			zap.Strings("slots", due),
			zap.String("notifier", r.notifier.Type()),
			zap.Error(err),
		)
		return true
	}
	r.logger.Info("scheduled report sent", zap.Strings("slots", due))
	return true
}

// claimDue lists slots crossed in (lastCheck, now] and marks them fired.
// Caller holds r.mu.
func (r *Reporter) claimDue(now time.Time) []string {
	if !now.After(r.lastCheck) {
		return nil
	}

	var due []string
	for _, s := range r.slots {
		// A poll gap can span midnight, so yesterday's instant is a candidate too.
		for _, day := range []time.Time{now.AddDate(0, 0, -1), now} {
			at := s.at(day)
			if !at.After(r.lastCheck) || at.After(now) {
				continue
			}
			if r.weekdaysOnly && isWeekend(at) {
				continue
			}
			date := at.Format(time.DateOnly)
			if r.fired[s.label] == date {
				continue
			}
			r.fired[s.label] = date
			due = append(due, s.label)
			break
		}
	}
	return due
}

// Next returns the next instant a report is scheduled after now, or the
// zero time when no slot is configured.
func (r *Reporter) Next() time.Time {
	now := r.clock.Now()
	for offset := 0; offset <= 7; offset++ {
		day := now.AddDate(0, 0, offset)
		var best time.Time
		for _, s := range r.slots {
			at := s.at(day)
			if !at.After(now) || (r.weekdaysOnly && isWeekend(at)) {
				continue
			}
			if best.IsZero() || at.Before(best) {
				best = at
			}
		}
		if !best.IsZero() {
			return best
		}
	}
	return time.Time{}
}

func isWeekend(t time.Time) bool {
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}
