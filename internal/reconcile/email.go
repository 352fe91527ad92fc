package reconcile

import (
	"context"
	"fmt"

	"orgsetup/internal/credentials"
	"orgsetup/internal/dom"
	"orgsetup/internal/progress"
	"orgsetup/internal/setup"
)

// Access level option values of the deliverability select.
const (
	AccessNone       = "0"
	AccessSystemOnly = "1"
	AccessAllEmail   = "2"
)

type EmailOptions struct {
	AccessLevel          string `json:"access_level"`
	BounceManagement     bool   `json:"bounce_management"`
	ReturnBounceToSender bool   `json:"return_bounce_to_sender"`
	EnforceEmailPrivacy  bool   `json:"enforce_email_privacy"`
}

// DefaultEmailOptions opens deliverability to all email with bounce
// management on.
func DefaultEmailOptions() EmailOptions {
	return EmailOptions{AccessLevel: AccessAllEmail, BounceManagement: true}
}

// UpdateEmailDeliverability brings the deliverability settings to opts. Each
// control is touched only when it differs, and the form is saved only when
// something changed, so a repeated run leaves the console alone. A page that
// does not render the expected controls fails the run.
func (e *Engine) UpdateEmailDeliverability(ctx context.Context, cred credentials.Credential, opts EmailOptions) (*Report, error) {
	if opts.AccessLevel == "" {
		opts.AccessLevel = AccessAllEmail
	}
	rep := &Report{}
	if err := e.nav.GoHome(ctx, cred); err != nil {
		return rep, fmt.Errorf("navigate to setup home: %w", err)
	}
	reached, err := e.nav.EmailDeliverabilitySetup(ctx)
	if err != nil {
		return rep, err
	}
	if !reached {
		return rep, fmt.Errorf("%w: quick find result for %s", setup.ErrControlMissing, setup.EmailDeliverabilityHref)
	}
	e.nav.Step(ctx, "Navigating to Email Deliverability setup", "email_deliverability_setup")

	frame, err := e.nav.ContentFrame(ctx)
	if err != nil {
		return rep, err
	}

	access, err := dom.FindByID(ctx, frame, "select", "sendEmailAccessControlSelect")
	if err != nil {
		return rep, err
	}
	if access == nil {
		return rep, fmt.Errorf("%w: access level select", setup.ErrControlMissing)
	}
	current, err := dom.ReadProperty(ctx, access, "value")
	if err != nil {
		return rep, err
	}
	changed := current != opts.AccessLevel
	if changed {
		if err := access.Select(ctx, opts.AccessLevel); err != nil {
			return rep, fmt.Errorf("select access level: %w", err)
		}
	}
	e.settingRecord(ctx, rep, "sendEmailAccessControl", changed,
		fmt.Sprintf("Access level %s (was %s)", opts.AccessLevel, current), "email_all_emails")

	// only bounce management is required; the other two may be absent as long
	// as nobody asked to turn them on
	checkboxes := []struct {
		name, fragment string
		want, optional bool
	}{
		{"bounceManagement", "cbHandleBouncedEmails", opts.BounceManagement, false},
		{"returnBounceToSender", "cbReturnBouncedEmailsToSender", opts.ReturnBounceToSender, true},
		{"enforceEmailPrivacy", "cbEnforceEmailPrivacy", opts.EnforceEmailPrivacy, true},
	}
	for _, cb := range checkboxes {
		el, err := dom.FindByID(ctx, frame, "input", cb.fragment)
		if err != nil {
			return rep, err
		}
		if el == nil {
			if !cb.optional || cb.want {
				return rep, fmt.Errorf("%w: input %q", setup.ErrControlMissing, cb.fragment)
			}
			e.record(ctx, rep, Record{Entity: progress.EntitySetting, Key: cb.name, Outcome: progress.OutcomeSkipped},
				cb.name+" not on the page, left alone", "")
			continue
		}
		clicked, err := setChecked(ctx, el, cb.want)
		if err != nil {
			return rep, fmt.Errorf("%s: %w", cb.name, err)
		}
		changed = changed || clicked
		e.settingRecord(ctx, rep, cb.name, clicked, fmt.Sprintf("%s set to %t", cb.name, cb.want), "")
	}

	save, err := dom.FindByID(ctx, frame, "input", "saveBtn")
	if err != nil {
		return rep, err
	}
	if save == nil {
		return rep, ErrSaveButtonMissing
	}
	if !changed {
		e.nav.Step(ctx, "Email deliverability already up to date", "")
		return rep, nil
	}
	if err := e.nav.Page().ClickAndWait(ctx, save); err != nil {
		return rep, fmt.Errorf("save email settings: %w", err)
	}
	if err := e.nav.Settle(ctx); err != nil {
		return rep, err
	}
	e.nav.Step(ctx, "After clicking save button", "email_after_save")
	return rep, nil
}

func (e *Engine) settingRecord(ctx context.Context, rep *Report, name string, changed bool, msg, shot string) {
	rec := Record{Entity: progress.EntitySetting, Key: name, Outcome: progress.OutcomeSkipped}
	if changed {
		rec.Outcome = progress.OutcomeUpdated
	} else {
		msg = name + " already set"
	}
	e.record(ctx, rep, rec, msg, shot)
}
