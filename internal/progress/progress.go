// Package progress carries per-step run events from the navigator and the
// reconciliation engine to whoever is watching: the log, the run result, the
// websocket stream, NATS.
package progress

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

type Level string

const (
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Outcome is the per-record decision of a reconciliation.
type Outcome string

const (
	OutcomeCreated Outcome = "created"
	OutcomeUpdated Outcome = "updated"
	OutcomeSkipped Outcome = "skipped"
	OutcomeFailed  Outcome = "failed"
	OutcomeAborted Outcome = "aborted"
)

// Entities a record outcome can refer to.
const (
	EntityCountry = "country"
	EntityState   = "state"
	EntitySetting = "setting"
)

// Event is one progress line. Evidence is the path of a screenshot taken at
// that step, empty when none was captured.
type Event struct {
	Time     time.Time `json:"time"`
	RunID    string    `json:"run_id,omitempty"`
	Level    Level     `json:"level"`
	Message  string    `json:"message"`
	Evidence string    `json:"evidence,omitempty"`
	Entity   string    `json:"entity,omitempty"`
	IsoCode  string    `json:"iso_code,omitempty"`
	Outcome  Outcome   `json:"outcome,omitempty"`
}

// Reporter receives events. Implementations must not block the caller for
// long; the browser is waiting.
type Reporter interface {
	Report(Event)
}

// Func adapts a function to Reporter.
type Func func(Event)

func (f Func) Report(e Event) { f(e) }

// Nop discards events.
var Nop Reporter = Func(func(Event) {})

type multi []Reporter

func (m multi) Report(e Event) {
	for _, r := range m {
		r.Report(e)
	}
}

// Multi fans an event out to every non-nil reporter in order.
func Multi(reporters ...Reporter) Reporter {
	var m multi
	for _, r := range reporters {
		if r != nil {
			m = append(m, r)
		}
	}
	return m
}

// Scoped stamps RunID and, when unset, Time onto every event.
func Scoped(r Reporter, runID string) Reporter {
	return Func(func(e Event) {
		e.RunID = runID
		if e.Time.IsZero() {
			e.Time = time.Now()
		}
		r.Report(e)
	})
}

// LogReporter writes events as structured log lines.
type LogReporter struct {
	Logger zerolog.Logger
}

func (l LogReporter) Report(e Event) {
	var ev *zerolog.Event
	switch e.Level {
	case LevelError:
		ev = l.Logger.Error()
	case LevelWarn:
		ev = l.Logger.Warn()
	default:
		ev = l.Logger.Info()
	}
	if e.RunID != "" {
		ev = ev.Str("run_id", e.RunID)
	}
	if e.Entity != "" {
		ev = ev.Str("entity", e.Entity).Str("iso_code", e.IsoCode)
	}
	if e.Outcome != "" {
		ev = ev.Str("outcome", string(e.Outcome))
	}
	if e.Evidence != "" {
		ev = ev.Str("evidence", e.Evidence)
	}
	ev.Msg(e.Message)
}

// Recorder keeps every event for the run result.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Report(e Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

// Events returns a copy of what was recorded so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}
