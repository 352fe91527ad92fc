// Package reconcile creates the desired picklist entries and settings that
// the console does not have yet. It only ever adds: an entry whose iso-code
// is already present is skipped even when its other fields differ.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"orgsetup/internal/dom"
	"orgsetup/internal/progress"
	"orgsetup/internal/setup"
)

var ErrSaveButtonMissing = errors.New("save button not found")

// CountryState is a node of the per-country state machine.
type CountryState int

const (
	NotVisited CountryState = iota
	PageReached
	CountryMissing
	CountryCreated
	CountryPresent
	StatesReconciled
	Aborted
)

var countryStateNames = [...]string{
	NotVisited:       "not_visited",
	PageReached:      "page_reached",
	CountryMissing:   "country_missing",
	CountryCreated:   "country_created",
	CountryPresent:   "country_present",
	StatesReconciled: "states_reconciled",
	Aborted:          "aborted",
}

func (s CountryState) String() string {
	if int(s) < len(countryStateNames) {
		return countryStateNames[s]
	}
	return fmt.Sprintf("CountryState(%d)", int(s))
}

func (s CountryState) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Record is the outcome of one desired entity. Key is the iso-code of a
// country, "CA/ON" for a state, or the setting name.
type Record struct {
	Entity  string           `json:"entity"`
	Key     string           `json:"key"`
	Name    string           `json:"name,omitempty"`
	Outcome progress.Outcome `json:"outcome"`
	Error   string           `json:"error,omitempty"`
}

// CountryTrace is the path one country took through the state machine.
type CountryTrace struct {
	IsoCode string         `json:"iso_code"`
	Path    []CountryState `json:"path"`
	Error   string         `json:"error,omitempty"`
}

func (t *CountryTrace) enter(s CountryState) { t.Path = append(t.Path, s) }

// Final is the terminal state, or NotVisited when the country was never
// reached.
func (t CountryTrace) Final() CountryState {
	if len(t.Path) == 0 {
		return NotVisited
	}
	return t.Path[len(t.Path)-1]
}

// Report is what a workflow did.
type Report struct {
	Records   []Record       `json:"records"`
	Countries []CountryTrace `json:"countries,omitempty"`
}

// Count returns how many records ended with outcome.
func (r *Report) Count(outcome progress.Outcome) int {
	n := 0
	for _, rec := range r.Records {
		if rec.Outcome == outcome {
			n++
		}
	}
	return n
}

func (r *Report) add(rec Record) { r.Records = append(r.Records, rec) }

type Options struct {
	// FieldDelay is waited between filling form fields.
	FieldDelay time.Duration
	// BannerTimeout bounds the wait for the success banner after a create.
	BannerTimeout time.Duration
	SuccessText   string
}

func (o Options) withDefaults() Options {
	if o.BannerTimeout <= 0 {
		o.BannerTimeout = 15 * time.Second
	}
	if o.SuccessText == "" {
		o.SuccessText = "Success"
	}
	return o
}

// Engine runs workflows over one navigator, and so over one page. It is not
// safe for concurrent use.
type Engine struct {
	nav  *setup.Navigator
	opts Options
}

func NewEngine(nav *setup.Navigator, opts Options) *Engine {
	return &Engine{nav: nav, opts: opts.withDefaults()}
}

// structural reports whether err is a failure of the page layout rather than
// of the session. Structural failures abort a record, anything else aborts
// the run.
func structural(err error) bool {
	return errors.Is(err, dom.ErrUnexpectedFrameTopology) || errors.Is(err, setup.ErrControlMissing)
}

func (e *Engine) record(ctx context.Context, rep *Report, rec Record, msg, shot string) {
	rep.add(rec)
	level := progress.LevelInfo
	switch rec.Outcome {
	case progress.OutcomeFailed:
		level = progress.LevelError
	case progress.OutcomeAborted:
		level = progress.LevelWarn
	}
	e.nav.Report(ctx, progress.Event{
		Level:   level,
		Message: msg,
		Entity:  rec.Entity,
		IsoCode: rec.Key,
		Outcome: rec.Outcome,
	}, shot)
}

func (e *Engine) fieldPause(ctx context.Context) error {
	return dom.Sleep(ctx, e.opts.FieldDelay)
}

func input(ctx context.Context, s dom.Surface, fragment string) (dom.Element, error) {
	el, err := dom.FindByID(ctx, s, "input", fragment)
	if err != nil {
		return nil, err
	}
	if el == nil {
		return nil, fmt.Errorf("%w: input %q", setup.ErrControlMissing, fragment)
	}
	return el, nil
}

// setChecked clicks el only when its checked state differs from want, and
// reports whether it clicked.
func setChecked(ctx context.Context, el dom.Element, want bool) (bool, error) {
	checked, err := dom.ReadProperty(ctx, el, "checked")
	if err != nil {
		return false, err
	}
	if (checked == "true") == want {
		return false, nil
	}
	if err := el.Click(ctx); err != nil {
		return false, fmt.Errorf("toggle checkbox: %w", err)
	}
	return true, nil
}

// awaitBanner polls the content frame for the success banner.
func (e *Engine) awaitBanner(ctx context.Context) (bool, error) {
	nopts := e.nav.Options()
	return dom.Poll(ctx, nopts.PollInterval, e.opts.BannerTimeout, func(ctx context.Context) (bool, error) {
		frame, err := dom.ResolveFrame(ctx, e.nav.Page(), nopts.ContentFrame)
		if errors.Is(err, dom.ErrUnexpectedFrameTopology) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		banner, err := dom.FindByText(ctx, frame, "h4", e.opts.SuccessText)
		return banner != nil, err
	})
}
