package reconcile

import (
	"context"
	"fmt"

	"orgsetup/internal/credentials"
	"orgsetup/internal/setup"
)

// ValidatePicklistSetup walks to the picklist configuration page without
// changing anything, leaving screenshots of every step for an operator to
// review. Any step that does not render is an error.
func (e *Engine) ValidatePicklistSetup(ctx context.Context, cred credentials.Credential) (*Report, error) {
	rep := &Report{}
	if err := e.nav.GoHome(ctx, cred); err != nil {
		return rep, fmt.Errorf("navigate to setup home: %w", err)
	}
	reached, err := e.nav.StateCountryPicklistHome(ctx)
	if err != nil {
		return rep, err
	}
	if !reached {
		return rep, fmt.Errorf("%w: quick find result for %s", setup.ErrControlMissing, setup.StateCountryHref)
	}
	e.nav.Step(ctx, "Navigating to State & Country picklist setup home", "state_country_home")

	overview, err := e.nav.ContentFrame(ctx)
	if err != nil {
		return rep, err
	}
	if err := e.nav.EnsurePicklistEnabled(ctx, overview); err != nil {
		return rep, err
	}
	if err := e.nav.OpenPicklistConfiguration(ctx, overview); err != nil {
		return rep, err
	}
	if _, err := e.nav.ContentFrame(ctx); err != nil {
		return rep, err
	}
	e.nav.Step(ctx, "State & Country picklist configuration", "state_country_config")
	return rep, nil
}
