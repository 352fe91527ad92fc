package reconcile_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orgsetup/internal/dom"
	"orgsetup/internal/progress"
	"orgsetup/internal/reconcile"
	"orgsetup/internal/setup"
	"orgsetup/internal/setup/setuptest"
)

func saves(c *setuptest.Console) int {
	n := 0
	for _, id := range c.Page.Clicks() {
		if id == setuptest.IDSave {
			n++
		}
	}
	return n
}

func TestUpdateEmailDeliverabilityDefaults(t *testing.T) {
	console := setuptest.NewConsole()
	rep, err := newEngine(console, nil, nil).UpdateEmailDeliverability(context.Background(), cred, reconcile.DefaultEmailOptions())
	require.NoError(t, err)

	assert.Equal(t, setuptest.Email{Access: reconcile.AccessAllEmail, Bounce: true}, console.Email)
	assert.Equal(t, []string{"sendEmailAccessControl", "bounceManagement"}, keys(rep, progress.OutcomeUpdated))
	assert.Equal(t, []string{"returnBounceToSender", "enforceEmailPrivacy"}, keys(rep, progress.OutcomeSkipped))
	assert.Equal(t, 1, saves(console))
}

func TestUpdateEmailDeliverabilityIsIdempotent(t *testing.T) {
	ctx := context.Background()
	console := setuptest.NewConsole()
	opts := reconcile.EmailOptions{AccessLevel: reconcile.AccessAllEmail, BounceManagement: true, EnforceEmailPrivacy: true}

	_, err := newEngine(console, nil, nil).UpdateEmailDeliverability(ctx, cred, opts)
	require.NoError(t, err)
	rep, err := newEngine(console, nil, nil).UpdateEmailDeliverability(ctx, cred, opts)
	require.NoError(t, err)

	assert.Empty(t, keys(rep, progress.OutcomeUpdated))
	assert.Len(t, keys(rep, progress.OutcomeSkipped), 4)
	assert.Equal(t, 1, saves(console))
	assert.Equal(t, setuptest.Email{Access: "2", Bounce: true, Privacy: true}, console.Email)
}

func TestUpdateEmailDeliverabilityClearsCheckboxes(t *testing.T) {
	console := setuptest.NewConsole()
	console.Email = setuptest.Email{Access: "2", Bounce: true, ReturnToSender: true, Privacy: true}

	rep, err := newEngine(console, nil, nil).UpdateEmailDeliverability(context.Background(), cred,
		reconcile.EmailOptions{AccessLevel: reconcile.AccessSystemOnly})
	require.NoError(t, err)
	assert.Equal(t, setuptest.Email{Access: "1"}, console.Email)
	assert.Len(t, keys(rep, progress.OutcomeUpdated), 4)
}

func TestUpdateEmailDeliverabilityWithoutOptionalCheckboxes(t *testing.T) {
	console := setuptest.NewConsole()
	console.HideOptionalCheckboxes = true

	rep, err := newEngine(console, nil, nil).UpdateEmailDeliverability(context.Background(), cred, reconcile.DefaultEmailOptions())
	require.NoError(t, err)
	assert.Equal(t, setuptest.Email{Access: reconcile.AccessAllEmail, Bounce: true}, console.Email)
	assert.Equal(t, []string{"returnBounceToSender", "enforceEmailPrivacy"}, keys(rep, progress.OutcomeSkipped))
	assert.Equal(t, 1, saves(console))
}

func TestUpdateEmailDeliverabilityMissingRequestedCheckbox(t *testing.T) {
	console := setuptest.NewConsole()
	console.HideOptionalCheckboxes = true
	opts := reconcile.DefaultEmailOptions()
	opts.EnforceEmailPrivacy = true

	_, err := newEngine(console, nil, nil).UpdateEmailDeliverability(context.Background(), cred, opts)
	require.ErrorIs(t, err, setup.ErrControlMissing)
	assert.Contains(t, err.Error(), "cbEnforceEmailPrivacy")
	assert.Zero(t, saves(console))
}

func TestUpdateEmailDeliverabilityMissingSaveButton(t *testing.T) {
	console := setuptest.NewConsole()
	console.HideSaveButton = true

	_, err := newEngine(console, nil, nil).UpdateEmailDeliverability(context.Background(), cred, reconcile.DefaultEmailOptions())
	require.ErrorIs(t, err, reconcile.ErrSaveButtonMissing)
	assert.Equal(t, setuptest.Email{Access: "1"}, console.Email)
}

func TestUpdateEmailDeliverabilityStructuralFailures(t *testing.T) {
	console := setuptest.NewConsole()
	console.ExtraFrames = 2
	_, err := newEngine(console, nil, nil).UpdateEmailDeliverability(context.Background(), cred, reconcile.DefaultEmailOptions())
	assert.ErrorIs(t, err, dom.ErrUnexpectedFrameTopology)

	console = setuptest.NewConsole()
	console.HideLinks = true
	_, err = newEngine(console, nil, nil).UpdateEmailDeliverability(context.Background(), cred, reconcile.DefaultEmailOptions())
	assert.ErrorIs(t, err, setup.ErrControlMissing)
}

func TestValidatePicklistSetup(t *testing.T) {
	ctx := context.Background()
	console := setuptest.NewConsole()
	rec := &progress.Recorder{}

	rep, err := newEngine(console, nil, rec).ValidatePicklistSetup(ctx, cred)
	require.NoError(t, err)
	assert.Empty(t, rep.Records)
	assert.Empty(t, console.CreateLog())

	var messages []string
	for _, e := range rec.Events() {
		messages = append(messages, e.Message)
	}
	assert.Contains(t, messages, "State & Country picklist configuration")

	console.PicklistEnabled = false
	_, err = newEngine(console, nil, nil).ValidatePicklistSetup(ctx, cred)
	assert.ErrorIs(t, err, setup.ErrPicklistDisabled)
}

func TestCountryStateString(t *testing.T) {
	assert.Equal(t, "states_reconciled", reconcile.StatesReconciled.String())
	assert.Equal(t, "CountryState(42)", reconcile.CountryState(42).String())
	text, err := reconcile.Aborted.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "aborted", string(text))
}
