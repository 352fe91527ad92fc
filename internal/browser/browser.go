// Package browser owns the one headless Chrome a run drives. It launches the
// process through pkg/chrome and exposes the tab as a dom.Page through either
// chromedp or rod.
package browser

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"orgsetup/internal/credentials"
	"orgsetup/internal/dom"
	"orgsetup/pkg/chrome"
)

// Driver names accepted by New.
const (
	DriverChromedp = "chromedp"
	DriverRod      = "rod"
)

// SetupHomePath is where the front door redirects after authenticating.
const SetupHomePath = "/lightning/setup/SetupOneHome/home"

// Session is the lifecycle of one browser and its single tab. Open is called
// once; Close must be called on every exit path once Open was attempted.
type Session interface {
	Open(ctx context.Context) (dom.Page, error)
	// NavigateToHome authenticates through the front door, waits for the
	// navigation and then for the settle delay.
	NavigateToHome(ctx context.Context, cred credentials.Credential) error
	Close() error
}

// Options configures a Session.
type Options struct {
	Driver            string
	RunID             string
	Launch            chrome.LaunchOptions
	SettleDelay       time.Duration
	NavigationTimeout time.Duration
	ActionTimeout     time.Duration
	Manager           *chrome.Manager
	Logger            zerolog.Logger
}

func (o Options) withDefaults() Options {
	if o.NavigationTimeout <= 0 {
		o.NavigationTimeout = 30 * time.Second
	}
	if o.ActionTimeout <= 0 {
		o.ActionTimeout = 20 * time.Second
	}
	if o.Manager == nil {
		o.Manager = chrome.GlobalChromeManager
	}
	if o.Launch.Width <= 0 {
		o.Launch.Width = 1200
	}
	if o.Launch.Height <= 0 {
		o.Launch.Height = 1200
	}
	return o
}

// New returns an unopened session for the configured driver.
func New(opts Options) (Session, error) {
	opts = opts.withDefaults()
	logger := opts.Logger.With().Str("component", "browser").Str("driver", opts.Driver).Logger()
	switch opts.Driver {
	case "", DriverChromedp:
		return &chromedpSession{opts: opts, log: logger}, nil
	case DriverRod:
		return &rodSession{opts: opts, log: logger}, nil
	default:
		return nil, fmt.Errorf("unknown browser driver %q", opts.Driver)
	}
}

// FrontdoorURL is the authenticated entry URL for cred that lands on retURL.
func FrontdoorURL(cred credentials.Credential, retURL string) string {
	return cred.InstanceURL + "/secur/frontdoor.jsp?sid=" + url.QueryEscape(cred.AccessToken) +
		"&retURL=" + url.QueryEscape(retURL)
}
