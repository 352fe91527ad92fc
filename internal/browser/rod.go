package browser

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/rs/zerolog"

	"orgsetup/internal/credentials"
	"orgsetup/internal/dom"
	"orgsetup/pkg/chrome"
)

type rodSession struct {
	opts Options
	log  zerolog.Logger

	proc    *chrome.ChromeProcess
	browser *rod.Browser
	page    *rodPage
}

func (s *rodSession) Open(ctx context.Context) (dom.Page, error) {
	proc, err := s.opts.Manager.Start(ctx, s.opts.RunID, s.opts.Launch)
	if err != nil {
		return nil, err
	}
	s.proc = proc

	browser := rod.New().ControlURL(proc.WebSocketURL)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("connect to chrome: %w", err)
	}
	s.browser = browser

	p, err := browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return nil, fmt.Errorf("open tab: %w", err)
	}
	err = p.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             s.opts.Launch.Width,
		Height:            s.opts.Launch.Height,
		DeviceScaleFactor: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("set viewport: %w", err)
	}

	s.page = &rodPage{page: p, timeout: s.opts.ActionTimeout, navTimeout: s.opts.NavigationTimeout, log: s.log}
	s.log.Info().Str("run_id", s.opts.RunID).Msg("🌐 Browser session opened")
	return s.page, nil
}

func (s *rodSession) NavigateToHome(ctx context.Context, cred credentials.Credential) error {
	if s.page == nil {
		return errors.New("session not open")
	}
	navCtx, cancel := context.WithTimeout(ctx, s.opts.NavigationTimeout)
	defer cancel()
	p := s.page.page.Context(navCtx)
	if err := p.Navigate(FrontdoorURL(cred, SetupHomePath)); err != nil {
		return fmt.Errorf("navigate to setup home: %w", err)
	}
	if err := p.WaitLoad(); err != nil {
		return fmt.Errorf("wait for setup home: %w", err)
	}
	return dom.Sleep(ctx, s.opts.SettleDelay)
}

func (s *rodSession) Close() error {
	var err error
	if s.browser != nil {
		err = s.browser.Close()
		s.browser = nil
	}
	if s.proc != nil {
		s.opts.Manager.Stop(s.opts.RunID)
		s.proc = nil
	}
	s.log.Debug().Str("run_id", s.opts.RunID).Msg("🛑 Browser session closed")
	return err
}

type rodPage struct {
	page       *rod.Page
	timeout    time.Duration
	navTimeout time.Duration
	log        zerolog.Logger
}

func (p *rodPage) QueryAll(ctx context.Context, selector string) ([]dom.Element, error) {
	return (&rodSurface{page: p.page, timeout: p.timeout}).QueryAll(ctx, selector)
}

func (p *rodPage) Frames(ctx context.Context) ([]dom.Frame, error) {
	opCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	iframes, err := p.page.Context(opCtx).Elements("iframe")
	if err != nil {
		return nil, err
	}
	frames := make([]dom.Frame, 0, len(iframes))
	for _, el := range iframes {
		content, err := el.Frame()
		if err != nil {
			return nil, fmt.Errorf("enter frame: %w", err)
		}
		frames = append(frames, dom.Frame{
			Name:    attribute(el, "name"),
			ID:      attribute(el, "id"),
			Title:   attribute(el, "title"),
			Src:     attribute(el, "src"),
			Surface: &rodSurface{page: content, timeout: p.timeout},
		})
	}
	return frames, nil
}

func attribute(el *rod.Element, name string) string {
	v, err := el.Attribute(name)
	if err != nil || v == nil {
		return ""
	}
	return *v
}

func (p *rodPage) ClickAndWait(ctx context.Context, el dom.Element) error {
	waitCtx, cancel := context.WithTimeout(ctx, p.navTimeout)
	defer cancel()
	wait := p.page.Context(waitCtx).WaitEvent(&proto.PageFrameStoppedLoading{})

	if err := el.Click(ctx); err != nil {
		return err
	}
	wait()
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if waitCtx.Err() != nil {
		p.log.Debug().Dur("timeout", p.navTimeout).Msg("no navigation after click")
	}
	return nil
}

func (p *rodPage) Screenshot(ctx context.Context) ([]byte, error) {
	opCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	return p.page.Context(opCtx).Screenshot(true, nil)
}

type rodSurface struct {
	page    *rod.Page
	timeout time.Duration
}

func (s *rodSurface) QueryAll(ctx context.Context, selector string) ([]dom.Element, error) {
	opCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	els, err := s.page.Context(opCtx).Elements(selector)
	if err != nil {
		return nil, err
	}
	return wrapRod(els, s.timeout), nil
}

func wrapRod(els rod.Elements, timeout time.Duration) []dom.Element {
	out := make([]dom.Element, 0, len(els))
	for _, el := range els {
		out = append(out, &rodElement{el: el, timeout: timeout})
	}
	return out
}

// rodElement re-binds the element to a fresh bounded context for every
// operation; handles outlive the query that produced them.
type rodElement struct {
	el      *rod.Element
	timeout time.Duration
}

func (e *rodElement) bind(ctx context.Context) (*rod.Element, context.CancelFunc) {
	opCtx, cancel := context.WithTimeout(ctx, e.timeout)
	return e.el.Context(opCtx), cancel
}

func (e *rodElement) Property(ctx context.Context, name string) (string, error) {
	el, cancel := e.bind(ctx)
	defer cancel()
	v, err := el.Property(name)
	if err != nil {
		return "", err
	}
	if v.Nil() {
		return "", nil
	}
	return fmt.Sprint(v.Val()), nil
}

func (e *rodElement) Children(ctx context.Context) ([]dom.Element, error) {
	el, cancel := e.bind(ctx)
	defer cancel()
	kids, err := el.Elements(":scope > *")
	if err != nil {
		return nil, err
	}
	return wrapRod(kids, e.timeout), nil
}

func (e *rodElement) Click(ctx context.Context) error {
	el, cancel := e.bind(ctx)
	defer cancel()
	return el.Click(proto.InputMouseButtonLeft, 1)
}

func (e *rodElement) Type(ctx context.Context, text string) error {
	el, cancel := e.bind(ctx)
	defer cancel()
	return el.Input(text)
}

func (e *rodElement) Clear(ctx context.Context) error {
	el, cancel := e.bind(ctx)
	defer cancel()
	_, err := el.Eval(`function () {
		this.value = "";
		this.dispatchEvent(new Event("input", {bubbles: true}));
		this.dispatchEvent(new Event("change", {bubbles: true}));
	}`)
	return err
}

func (e *rodElement) Select(ctx context.Context, value string) error {
	el, cancel := e.bind(ctx)
	defer cancel()
	res, err := el.Eval(`function (v) {
		this.value = v;
		this.dispatchEvent(new Event("change", {bubbles: true}));
		return this.value === v;
	}`, value)
	if err != nil {
		return err
	}
	if !res.Value.Bool() {
		return fmt.Errorf("no option with value %q", value)
	}
	return nil
}
