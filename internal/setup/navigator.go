// Package setup drives the admin console's Setup area: the authenticated
// home, the quick-find jump to a settings page, and the frames those pages
// render their content into.
package setup

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"orgsetup/internal/credentials"
	"orgsetup/internal/diagnostics"
	"orgsetup/internal/dom"
	"orgsetup/internal/progress"
)

const (
	QuickFindSelector       = "input[class='filter-box input'][type='search']"
	StateCountryHref        = "/one/one.app#/setup/AddressCleanerOverview/home"
	EmailDeliverabilityHref = "/one/one.app#/setup/OrgEmailSettings/home"
	ConfigureLinkText       = "Configure states and countries."

	DefaultPicklistEnabledText = "State and Country/Territory Picklists are enabled"
)

var (
	ErrQuickFindMissing = errors.New("quick find search box not found")
	ErrPicklistDisabled = errors.New("state and country/territory picklists are not enabled for this org")
	ErrControlMissing   = errors.New("expected control not found")
)

// Home is the part of a browser session the navigator needs.
type Home interface {
	NavigateToHome(ctx context.Context, cred credentials.Credential) error
}

type Options struct {
	// SettleDelay is waited after every transition that renders no marker.
	SettleDelay time.Duration
	// PollInterval and MarkerTimeout bound every wait for a rendered marker.
	PollInterval  time.Duration
	MarkerTimeout time.Duration
	ContentFrame  dom.FrameRole
	// PicklistEnabledText is matched case-insensitively against the overview
	// page text.
	PicklistEnabledText string
}

func (o Options) withDefaults() Options {
	if o.PollInterval <= 0 {
		o.PollInterval = 500 * time.Millisecond
	}
	if o.MarkerTimeout <= 0 {
		o.MarkerTimeout = 15 * time.Second
	}
	if o.ContentFrame.Match == nil {
		o.ContentFrame = dom.ContentFrame
	}
	if o.PicklistEnabledText == "" {
		o.PicklistEnabledText = DefaultPicklistEnabledText
	}
	return o
}

// Navigator moves the run's single page between Setup pages.
type Navigator struct {
	home     Home
	page     dom.Page
	sink     diagnostics.Sink
	reporter progress.Reporter
	opts     Options
}

func NewNavigator(home Home, page dom.Page, sink diagnostics.Sink, reporter progress.Reporter, opts Options) *Navigator {
	if sink == nil {
		sink = diagnostics.Disabled
	}
	if reporter == nil {
		reporter = progress.Nop
	}
	return &Navigator{home: home, page: page, sink: sink, reporter: reporter, opts: opts.withDefaults()}
}

func (n *Navigator) Page() dom.Page   { return n.page }
func (n *Navigator) Options() Options { return n.opts }

// Step reports an info event, attaching a screenshot named shot when shot is
// not empty.
func (n *Navigator) Step(ctx context.Context, msg, shot string) {
	n.Report(ctx, progress.Event{Level: progress.LevelInfo, Message: msg}, shot)
}

// Report emits e, attaching a screenshot named shot when shot is not empty.
func (n *Navigator) Report(ctx context.Context, e progress.Event, shot string) {
	if shot != "" {
		e.Evidence = n.sink.Capture(ctx, n.page, shot)
	}
	n.reporter.Report(e)
}

// Settle waits the fixed settle delay.
func (n *Navigator) Settle(ctx context.Context) error {
	return dom.Sleep(ctx, n.opts.SettleDelay)
}

// GoHome enters the console through the front door.
func (n *Navigator) GoHome(ctx context.Context, cred credentials.Credential) error {
	if err := n.home.NavigateToHome(ctx, cred); err != nil {
		return err
	}
	n.Step(ctx, "Navigating to Setup page", "setuphome")
	return nil
}

// GotoSetupOption searches quick-find for search and clicks the result link
// whose href is exactly href. It reports false when the link never rendered,
// in which case the page was left where it was.
func (n *Navigator) GotoSetupOption(ctx context.Context, search, href string) (bool, error) {
	var quickFind dom.Element
	found, err := dom.Poll(ctx, n.opts.PollInterval, n.opts.MarkerTimeout, func(ctx context.Context) (bool, error) {
		el, err := dom.First(ctx, n.page, QuickFindSelector)
		quickFind = el
		return el != nil, err
	})
	if err != nil {
		return false, fmt.Errorf("find quick find: %w", err)
	}
	if !found {
		return false, ErrQuickFindMissing
	}

	if err := quickFind.Clear(ctx); err != nil {
		return false, fmt.Errorf("clear quick find: %w", err)
	}
	if err := quickFind.Type(ctx, search); err != nil {
		return false, fmt.Errorf("type into quick find: %w", err)
	}
	if err := n.Settle(ctx); err != nil {
		return false, err
	}
	n.Step(ctx, fmt.Sprintf("Quick find search for %q", search), "setup_quick_find_search")

	link, err := dom.First(ctx, n.page, "a[href='"+href+"']")
	if err != nil {
		return false, err
	}
	if link == nil {
		n.reporter.Report(progress.Event{Level: progress.LevelWarn, Message: fmt.Sprintf("No quick find result links to %s", href)})
		return false, nil
	}
	if err := n.page.ClickAndWait(ctx, link); err != nil {
		return false, fmt.Errorf("open %s: %w", href, err)
	}
	return true, n.Settle(ctx)
}

// StateCountryPicklistHome opens the State and Country/Territory Picklists
// overview.
func (n *Navigator) StateCountryPicklistHome(ctx context.Context) (bool, error) {
	return n.GotoSetupOption(ctx, "State", StateCountryHref)
}

// EmailDeliverabilitySetup opens the Deliverability settings.
func (n *Navigator) EmailDeliverabilitySetup(ctx context.Context) (bool, error) {
	return n.GotoSetupOption(ctx, "Deliverability", EmailDeliverabilityHref)
}

// ContentFrame waits for the page to render exactly one content frame and
// returns its surface. The topology error of the last look is returned when
// that never happens.
func (n *Navigator) ContentFrame(ctx context.Context) (dom.Surface, error) {
	var (
		surface dom.Surface
		lastErr error
	)
	ok, err := dom.Poll(ctx, n.opts.PollInterval, n.opts.MarkerTimeout, func(ctx context.Context) (bool, error) {
		s, err := dom.ResolveFrame(ctx, n.page, n.opts.ContentFrame)
		if errors.Is(err, dom.ErrUnexpectedFrameTopology) {
			lastErr = err
			return false, nil
		}
		surface = s
		return err == nil, err
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, lastErr
	}
	return surface, nil
}

// EnsurePicklistEnabled waits for the overview to confirm the picklists are
// enabled. Without that confirmation nothing may be created.
func (n *Navigator) EnsurePicklistEnabled(ctx context.Context, overview dom.Surface) error {
	want := foldText(n.opts.PicklistEnabledText)
	ok, err := dom.Poll(ctx, n.opts.PollInterval, n.opts.MarkerTimeout, func(ctx context.Context) (bool, error) {
		body, err := dom.First(ctx, overview, "body")
		if err != nil || body == nil {
			return false, err
		}
		text, err := dom.ReadProperty(ctx, body, "textContent")
		if err != nil {
			return false, err
		}
		return strings.Contains(foldText(text), want), nil
	})
	if err != nil {
		return fmt.Errorf("read picklist overview: %w", err)
	}
	if !ok {
		return ErrPicklistDisabled
	}
	return nil
}

// foldText lowercases s and reduces every whitespace run, line breaks
// included, to one space.
func foldText(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(dom.Normalize(s)), " "))
}

// OpenPicklistConfiguration follows the overview's configuration link.
func (n *Navigator) OpenPicklistConfiguration(ctx context.Context, overview dom.Surface) error {
	link, err := dom.FindLinkByText(ctx, overview, ConfigureLinkText)
	if err != nil {
		return err
	}
	if link == nil {
		return fmt.Errorf("%w: link %q", ErrControlMissing, ConfigureLinkText)
	}
	if err := n.page.ClickAndWait(ctx, link); err != nil {
		return fmt.Errorf("open picklist configuration: %w", err)
	}
	return n.Settle(ctx)
}
