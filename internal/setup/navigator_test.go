package setup_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orgsetup/internal/credentials"
	"orgsetup/internal/dom"
	"orgsetup/internal/progress"
	"orgsetup/internal/setup"
	"orgsetup/internal/setup/setuptest"
)

var cred = credentials.Credential{InstanceURL: "https://acme.my.salesforce.com", AccessToken: "00D!tok"}

func newNavigator(c *setuptest.Console, rec progress.Reporter) *setup.Navigator {
	return setup.NewNavigator(c, c.Page, nil, rec, setup.Options{
		PollInterval:  time.Millisecond,
		MarkerTimeout: 30 * time.Millisecond,
	})
}

func TestGotoSetupOption(t *testing.T) {
	ctx := context.Background()
	console := setuptest.NewConsole()
	rec := &progress.Recorder{}
	nav := newNavigator(console, rec)

	require.NoError(t, nav.GoHome(ctx, cred))
	assert.Equal(t, 1, console.Homes)

	reached, err := nav.StateCountryPicklistHome(ctx)
	require.NoError(t, err)
	assert.True(t, reached)
	assert.Equal(t, 1, console.Page.Navigations())

	qf, err := dom.First(ctx, console.Page, setup.QuickFindSelector)
	require.NoError(t, err)
	require.NotNil(t, qf)

	frame, err := nav.ContentFrame(ctx)
	require.NoError(t, err)
	require.NoError(t, nav.EnsurePicklistEnabled(ctx, frame))

	events := rec.Events()
	require.Len(t, events, 2)
	assert.Equal(t, "Navigating to Setup page", events[0].Message)
	assert.Contains(t, events[1].Message, `"State"`)
}

func TestGotoSetupOptionMissingLink(t *testing.T) {
	ctx := context.Background()
	console := setuptest.NewConsole()
	console.HideLinks = true
	rec := &progress.Recorder{}
	nav := newNavigator(console, rec)
	require.NoError(t, nav.GoHome(ctx, cred))

	reached, err := nav.EmailDeliverabilitySetup(ctx)
	require.NoError(t, err)
	assert.False(t, reached)
	assert.Zero(t, console.Page.Navigations())

	events := rec.Events()
	assert.Equal(t, progress.LevelWarn, events[len(events)-1].Level)
}

func TestGotoSetupOptionNoQuickFind(t *testing.T) {
	ctx := context.Background()
	console := setuptest.NewConsole()
	console.HideQuickFind = true
	nav := newNavigator(console, nil)
	require.NoError(t, nav.GoHome(ctx, cred))

	_, err := nav.StateCountryPicklistHome(ctx)
	assert.ErrorIs(t, err, setup.ErrQuickFindMissing)
}

func TestContentFrameTopology(t *testing.T) {
	ctx := context.Background()
	console := setuptest.NewConsole()
	nav := newNavigator(console, nil)
	require.NoError(t, nav.GoHome(ctx, cred))

	_, err := nav.ContentFrame(ctx)
	var topo *dom.UnexpectedFrameTopologyError
	require.True(t, errors.As(err, &topo))
	assert.Equal(t, 0, topo.Found)

	console.ExtraFrames = 1
	_, err = nav.StateCountryPicklistHome(ctx)
	require.NoError(t, err)
	_, err = nav.ContentFrame(ctx)
	require.True(t, errors.As(err, &topo))
	assert.Equal(t, 2, topo.Found)
}

func TestContentFrameByName(t *testing.T) {
	ctx := context.Background()
	console := setuptest.NewConsole()
	console.ExtraFrames = 2
	nav := setup.NewNavigator(console, console.Page, nil, nil, setup.Options{
		PollInterval:  time.Millisecond,
		MarkerTimeout: 30 * time.Millisecond,
		ContentFrame:  dom.NamePrefixRole("setup content", "vfFrameId_"),
	})
	require.NoError(t, nav.GoHome(ctx, cred))
	_, err := nav.StateCountryPicklistHome(ctx)
	require.NoError(t, err)

	frame, err := nav.ContentFrame(ctx)
	require.NoError(t, err)
	link, err := dom.FindLinkByText(ctx, frame, setup.ConfigureLinkText)
	require.NoError(t, err)
	assert.NotNil(t, link)
}

func TestEnsurePicklistEnabled(t *testing.T) {
	ctx := context.Background()
	console := setuptest.NewConsole()
	console.PicklistEnabled = false
	nav := newNavigator(console, nil)
	require.NoError(t, nav.GoHome(ctx, cred))
	_, err := nav.StateCountryPicklistHome(ctx)
	require.NoError(t, err)

	frame, err := nav.ContentFrame(ctx)
	require.NoError(t, err)
	assert.ErrorIs(t, nav.EnsurePicklistEnabled(ctx, frame), setup.ErrPicklistDisabled)
}

func TestEnsurePicklistEnabledAcrossLines(t *testing.T) {
	ctx := context.Background()
	console := setuptest.NewConsole()
	console.WrapOverview = true
	nav := newNavigator(console, nil)
	require.NoError(t, nav.GoHome(ctx, cred))
	_, err := nav.StateCountryPicklistHome(ctx)
	require.NoError(t, err)

	frame, err := nav.ContentFrame(ctx)
	require.NoError(t, err)
	assert.NoError(t, nav.EnsurePicklistEnabled(ctx, frame))
}

func TestOpenPicklistConfiguration(t *testing.T) {
	ctx := context.Background()
	console := setuptest.NewConsole(setuptest.CountryWith("CA", "ON"))
	nav := newNavigator(console, nil)
	require.NoError(t, nav.GoHome(ctx, cred))
	_, err := nav.StateCountryPicklistHome(ctx)
	require.NoError(t, err)
	overview, err := nav.ContentFrame(ctx)
	require.NoError(t, err)

	require.NoError(t, nav.OpenPicklistConfiguration(ctx, overview))

	// the overview frame was replaced by the country table
	_, err = dom.First(ctx, overview, "body")
	assert.Error(t, err)

	table, err := nav.ContentFrame(ctx)
	require.NoError(t, err)
	btn, err := dom.First(ctx, table, "input[type='submit'][value='New Country/Territory']")
	require.NoError(t, err)
	assert.NotNil(t, btn)
}
