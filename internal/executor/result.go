package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"orgsetup/internal/picklist"
	"orgsetup/internal/progress"
	"orgsetup/internal/reconcile"
)

// ErrNotConfirmed is returned when the operator rejects the validation
// screenshots.
var ErrNotConfirmed = errors.New("operator did not confirm the picklist setup")

type Kind string

const (
	KindStateCountry        Kind = "state_country"
	KindPicklistValidate    Kind = "picklist_validate"
	KindEmailDeliverability Kind = "email_deliverability"
)

type Status string

const (
	StatusRunning Status = "running"
	StatusOK      Status = "ok"
	StatusFailed  Status = "failed"
)

// Request describes one run. Countries, when set, is used as-is; otherwise
// CountryCSV and StateCSV are loaded and joined.
type Request struct {
	Kind        Kind                    `json:"kind"`
	Trigger     string                  `json:"trigger,omitempty"`
	CountryCSV  string                  `json:"country_csv,omitempty"`
	StateCSV    string                  `json:"state_csv,omitempty"`
	Countries   []picklist.Country      `json:"countries,omitempty"`
	Email       *reconcile.EmailOptions `json:"email,omitempty"`
	Screenshots bool                    `json:"screenshots"`
	Strict      bool                    `json:"strict"`
	// CheckOnly stops after the validation gate.
	CheckOnly bool `json:"check_only,omitempty"`

	// Confirm is asked after a successful picklist validation.
	Confirm func(ctx context.Context, screenshots []string) (bool, error) `json:"-"`
}

func (r Request) Validate() error {
	switch r.Kind {
	case KindStateCountry:
		if r.Countries == nil && (r.CountryCSV == "" || r.StateCSV == "") {
			return errors.New("state_country run needs a country and a state csv")
		}
	case KindPicklistValidate, KindEmailDeliverability:
	default:
		return fmt.Errorf("unknown run kind %q", r.Kind)
	}
	return nil
}

func (r Request) desiredCountries() ([]picklist.Country, error) {
	if r.Countries != nil {
		var states []picklist.State
		for _, c := range r.Countries {
			states = append(states, c.States...)
		}
		return picklist.Join(r.Countries, states)
	}
	return picklist.LoadFiles(r.CountryCSV, r.StateCSV)
}

func (r Request) emailOptions() reconcile.EmailOptions {
	if r.Email == nil {
		return reconcile.DefaultEmailOptions()
	}
	return *r.Email
}

// Result is what a run reports back. Per-record failures leave Status "ok"
// unless the run was strict; the counts tell the whole story.
type Result struct {
	RunID       string                   `json:"run_id"`
	Kind        Kind                     `json:"kind"`
	Trigger     string                   `json:"trigger,omitempty"`
	Status      Status                   `json:"status"`
	Error       string                   `json:"error,omitempty"`
	Created     int                      `json:"created"`
	Updated     int                      `json:"updated"`
	Skipped     int                      `json:"skipped"`
	Failed      int                      `json:"failed"`
	Aborted     int                      `json:"aborted"`
	Records     []reconcile.Record       `json:"records,omitempty"`
	Countries   []reconcile.CountryTrace `json:"countries,omitempty"`
	Events      []progress.Event         `json:"events,omitempty"`
	Screenshots []string                 `json:"screenshots,omitempty"`
	Started     time.Time                `json:"started"`
	Finished    time.Time                `json:"finished"`
}

// Duration is how long the run took, or how long it has been running.
func (r *Result) Duration() time.Duration {
	if r.Finished.IsZero() {
		return time.Since(r.Started)
	}
	return r.Finished.Sub(r.Started)
}

func (r *Result) apply(rep *reconcile.Report) {
	if rep == nil {
		return
	}
	r.Records = rep.Records
	r.Countries = rep.Countries
	r.Created = rep.Count(progress.OutcomeCreated)
	r.Updated = rep.Count(progress.OutcomeUpdated)
	r.Skipped = rep.Count(progress.OutcomeSkipped)
	r.Failed = rep.Count(progress.OutcomeFailed)
	r.Aborted = rep.Count(progress.OutcomeAborted)
}

func (r *Result) fail(err error) {
	r.Status = StatusFailed
	if r.Error == "" {
		r.Error = err.Error()
	}
}

func (r *Result) finish(strict bool) {
	r.Finished = time.Now()
	if r.Status == StatusFailed {
		return
	}
	r.Status = StatusOK
	if strict && r.Failed+r.Aborted > 0 {
		r.Status = StatusFailed
		r.Error = fmt.Sprintf("%d records failed and %d aborted", r.Failed, r.Aborted)
	}
}
