package reconcile

import (
	"context"
	"fmt"

	"orgsetup/internal/credentials"
	"orgsetup/internal/dom"
	"orgsetup/internal/picklist"
	"orgsetup/internal/progress"
	"orgsetup/internal/setup"
)

const newCountrySelector = "input[type='submit'][value='New Country/Territory']"

// ReconcileStateCountry walks countries in order and creates every country
// and state the console is missing. Per-record failures are recorded in the
// report and do not stop the walk. The returned error is set only when the
// run itself cannot continue: no quick find, picklists not enabled, or a
// session failure.
func (e *Engine) ReconcileStateCountry(ctx context.Context, cred credentials.Credential, countries []picklist.Country) (*Report, error) {
	rep := &Report{}
	if err := e.nav.GoHome(ctx, cred); err != nil {
		return rep, fmt.Errorf("navigate to setup home: %w", err)
	}
	for _, country := range countries {
		trace := CountryTrace{IsoCode: country.IsoCode}
		trace.enter(NotVisited)
		err := e.reconcileCountry(ctx, country, rep, &trace)
		if err != nil && structural(err) {
			trace.enter(Aborted)
			trace.Error = err.Error()
			e.abortCountry(ctx, rep, country, err)
			err = nil
		}
		rep.Countries = append(rep.Countries, trace)
		if err != nil {
			return rep, fmt.Errorf("country %s: %w", country.IsoCode, err)
		}
	}
	return rep, nil
}

// abortCountry records the country and every state not yet decided as
// aborted.
func (e *Engine) abortCountry(ctx context.Context, rep *Report, country picklist.Country, cause error) {
	decided := make(map[string]bool)
	for _, rec := range rep.Records {
		decided[rec.Entity+":"+rec.Key] = true
	}
	if !decided[progress.EntityCountry+":"+country.IsoCode] {
		e.record(ctx, rep, Record{
			Entity:  progress.EntityCountry,
			Key:     country.IsoCode,
			Name:    country.Name,
			Outcome: progress.OutcomeAborted,
			Error:   cause.Error(),
		}, fmt.Sprintf("Country %s aborted: %v", country.IsoCode, cause), "")
	}
	for _, state := range country.States {
		key := country.IsoCode + "/" + state.IsoCode
		if decided[progress.EntityState+":"+key] {
			continue
		}
		e.record(ctx, rep, Record{
			Entity:  progress.EntityState,
			Key:     key,
			Name:    state.Name,
			Outcome: progress.OutcomeAborted,
			Error:   cause.Error(),
		}, fmt.Sprintf("State %s aborted: %v", key, cause), "")
	}
}

func (e *Engine) reconcileCountry(ctx context.Context, country picklist.Country, rep *Report, trace *CountryTrace) error {
	iso := country.IsoCode
	reached, err := e.nav.StateCountryPicklistHome(ctx)
	if err != nil {
		return err
	}
	if !reached {
		return fmt.Errorf("%w: quick find result for %s", setup.ErrControlMissing, setup.StateCountryHref)
	}
	e.nav.Step(ctx, "Navigating to State & Country picklist setup home", "state_country_home_"+iso)

	overview, err := e.nav.ContentFrame(ctx)
	if err != nil {
		return err
	}
	if err := e.nav.EnsurePicklistEnabled(ctx, overview); err != nil {
		return err
	}
	if err := e.nav.OpenPicklistConfiguration(ctx, overview); err != nil {
		return err
	}
	trace.enter(PageReached)
	e.nav.Step(ctx, "State & Country picklist setup home", "state_country_config_"+iso)

	table, err := e.nav.ContentFrame(ctx)
	if err != nil {
		return err
	}
	exists, err := IsoCodeExists(ctx, table, iso)
	if err != nil {
		return err
	}

	if exists {
		trace.enter(CountryPresent)
		if err := e.openCountry(ctx, table, country, rep); err != nil {
			return err
		}
	} else {
		trace.enter(CountryMissing)
		if err := e.createCountry(ctx, table, country, rep); err != nil {
			return err
		}
		trace.enter(CountryCreated)
	}

	for _, state := range country.States {
		if err := e.reconcileState(ctx, country, state, rep); err != nil {
			return err
		}
	}
	trace.enter(StatesReconciled)
	return nil
}

func (e *Engine) openCountry(ctx context.Context, table dom.Surface, country picklist.Country, rep *Report) error {
	iso := country.IsoCode
	link, err := EditLink(ctx, table, iso)
	if err != nil {
		return err
	}
	if link == nil {
		return fmt.Errorf("%w: edit link for %s", setup.ErrControlMissing, iso)
	}
	e.record(ctx, rep, Record{
		Entity:  progress.EntityCountry,
		Key:     iso,
		Name:    country.Name,
		Outcome: progress.OutcomeSkipped,
	}, fmt.Sprintf("Country: %s already exists. Adding states...", iso), "")
	if err := e.nav.Page().ClickAndWait(ctx, link); err != nil {
		return fmt.Errorf("open country %s: %w", iso, err)
	}
	if err := e.nav.Settle(ctx); err != nil {
		return err
	}
	e.nav.Step(ctx, fmt.Sprintf("Navigating to %s setup page", iso), "after_clicking_edit_existing_iso_"+iso)
	return nil
}

func (e *Engine) createCountry(ctx context.Context, table dom.Surface, country picklist.Country, rep *Report) error {
	iso := country.IsoCode
	btn, err := dom.First(ctx, table, newCountrySelector)
	if err != nil {
		return err
	}
	if btn == nil {
		return fmt.Errorf("%w: new country button", setup.ErrControlMissing)
	}
	if err := e.nav.Page().ClickAndWait(ctx, btn); err != nil {
		return fmt.Errorf("open new country form: %w", err)
	}
	if err := e.nav.Settle(ctx); err != nil {
		return err
	}
	e.nav.Step(ctx, "Adding New Country", "state_country_new_country_"+iso)

	ok, err := e.submitEntry(ctx, entry{name: country.Name, iso: iso, intVal: country.IntVal},
		"state_country_new_country_filled_"+iso, "state_country_new_country_after_save_"+iso)
	if err != nil {
		return err
	}
	rec := Record{Entity: progress.EntityCountry, Key: iso, Name: country.Name, Outcome: progress.OutcomeCreated}
	msg := fmt.Sprintf("Country:%s[Iso Code:%s, IntVal:%s] successfully added", country.Name, iso, country.IntVal)
	if !ok {
		rec.Outcome = progress.OutcomeFailed
		rec.Error = "no success banner after save"
		msg = fmt.Sprintf("Country:%s[Iso Code:%s, IntVal:%s] failed", country.Name, iso, country.IntVal)
	}
	e.record(ctx, rep, rec, msg, "")
	return nil
}

// reconcileState creates state under the country whose edit page is open,
// unless the page already lists it. Structural failures are recorded against
// the state only.
func (e *Engine) reconcileState(ctx context.Context, country picklist.Country, state picklist.State, rep *Report) error {
	key := country.IsoCode + "/" + state.IsoCode
	rec := Record{Entity: progress.EntityState, Key: key, Name: state.Name}

	created, err := e.createState(ctx, country, state)
	switch {
	case err != nil && structural(err):
		rec.Outcome = progress.OutcomeAborted
		rec.Error = err.Error()
		e.record(ctx, rep, rec, fmt.Sprintf("State %s aborted: %v", key, err), "")
		return nil
	case err != nil:
		return fmt.Errorf("state %s: %w", key, err)
	}

	switch created {
	case stateExisted:
		rec.Outcome = progress.OutcomeSkipped
		e.record(ctx, rep, rec, fmt.Sprintf("State with IsoCode:%s already exists. Skipping.", state.IsoCode), "")
	case stateCreated:
		rec.Outcome = progress.OutcomeCreated
		e.record(ctx, rep, rec, fmt.Sprintf("State:%s[Iso Code:%s, IntVal:%s] successfully added", state.Name, state.IsoCode, state.IntVal), "")
	default:
		rec.Outcome = progress.OutcomeFailed
		rec.Error = "no success banner after save"
		e.record(ctx, rep, rec, fmt.Sprintf("State:%s[Iso Code:%s, IntVal:%s] load failed", state.Name, state.IsoCode, state.IntVal), "")
	}
	return nil
}

type stateResult int

const (
	stateExisted stateResult = iota
	stateCreated
	stateNotConfirmed
)

func (e *Engine) createState(ctx context.Context, country picklist.Country, state picklist.State) (stateResult, error) {
	suffix := country.IsoCode + "_" + state.IsoCode
	page, err := e.nav.ContentFrame(ctx)
	if err != nil {
		return 0, err
	}
	// state iso codes are only read once the country's edit page is up
	btn, err := input(ctx, page, "buttonAddNew")
	if err != nil {
		return 0, err
	}
	exists, err := IsoCodeExists(ctx, page, state.IsoCode)
	if err != nil {
		return 0, err
	}
	if exists {
		return stateExisted, nil
	}

	if err := e.nav.Page().ClickAndWait(ctx, btn); err != nil {
		return 0, fmt.Errorf("open new state form: %w", err)
	}
	if err := e.nav.Settle(ctx); err != nil {
		return 0, err
	}
	e.nav.Step(ctx, "After clicking Add State button", "state_country_new_state_"+suffix)

	ok, err := e.submitEntry(ctx, entry{name: state.Name, iso: state.IsoCode, intVal: state.IntVal},
		"state_country_new_state_filled_"+suffix, "state_country_new_state_after_save_"+suffix)
	if err != nil {
		return 0, err
	}
	if !ok {
		return stateNotConfirmed, nil
	}
	return stateCreated, nil
}

type entry struct {
	name, iso, intVal string
}

// submitEntry fills the open create form, submits it and reports whether the
// console confirmed the save.
func (e *Engine) submitEntry(ctx context.Context, en entry, filledShot, savedShot string) (bool, error) {
	form, err := e.nav.ContentFrame(ctx)
	if err != nil {
		return false, err
	}

	fields := []struct {
		fragment, value string
		clear           bool
	}{
		{"editName", en.name, false},
		{"editIsoCode", en.iso, false},
		// the console pre-fills a default integer value
		{"editIntVal", en.intVal, true},
	}
	for _, f := range fields {
		el, err := input(ctx, form, f.fragment)
		if err != nil {
			return false, err
		}
		if f.clear {
			if err := el.Clear(ctx); err != nil {
				return false, fmt.Errorf("clear %s: %w", f.fragment, err)
			}
		}
		if err := el.Type(ctx, f.value); err != nil {
			return false, fmt.Errorf("type %s: %w", f.fragment, err)
		}
		if err := e.fieldPause(ctx); err != nil {
			return false, err
		}
	}
	for _, fragment := range []string{"editActive", "editVisible"} {
		el, err := input(ctx, form, fragment)
		if err != nil {
			return false, err
		}
		if _, err := setChecked(ctx, el, true); err != nil {
			return false, err
		}
		if err := e.fieldPause(ctx); err != nil {
			return false, err
		}
	}
	e.nav.Step(ctx, "Values filled", filledShot)

	add, err := input(ctx, form, "addButton")
	if err != nil {
		return false, err
	}
	if err := e.nav.Page().ClickAndWait(ctx, add); err != nil {
		return false, fmt.Errorf("submit: %w", err)
	}
	if err := e.nav.Settle(ctx); err != nil {
		return false, err
	}
	e.nav.Step(ctx, "After clicking Add button", savedShot)
	return e.awaitBanner(ctx)
}
