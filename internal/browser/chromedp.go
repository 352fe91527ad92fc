package browser

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog"

	"orgsetup/internal/credentials"
	"orgsetup/internal/dom"
	"orgsetup/pkg/chrome"
)

type chromedpSession struct {
	opts Options
	log  zerolog.Logger

	proc        *chrome.ChromeProcess
	allocCancel context.CancelFunc
	tabCancel   context.CancelFunc
	page        *cdpPage
}

func (s *chromedpSession) Open(ctx context.Context) (dom.Page, error) {
	proc, err := s.opts.Manager.Start(ctx, s.opts.RunID, s.opts.Launch)
	if err != nil {
		return nil, err
	}
	s.proc = proc

	allocCtx, allocCancel := chromedp.NewRemoteAllocator(context.Background(), proc.WebSocketURL)
	s.allocCancel = allocCancel

	logger := s.log
	tabCtx, tabCancel := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(format string, args ...interface{}) {
		logger.Debug().Msgf(format, args...)
	}))
	s.tabCancel = tabCancel

	s.page = &cdpPage{
		tabCtx:     tabCtx,
		timeout:    s.opts.ActionTimeout,
		navTimeout: s.opts.NavigationTimeout,
		log:        s.log,
	}
	s.page.top = &cdpSurface{page: s.page}

	// the first Run allocates the tab and must not be bound to a timeout
	if err := chromedp.Run(tabCtx); err != nil {
		return nil, fmt.Errorf("attach to chrome: %w", err)
	}
	if err := s.page.run(ctx, s.opts.ActionTimeout,
		chromedp.EmulateViewport(int64(s.opts.Launch.Width), int64(s.opts.Launch.Height)),
	); err != nil {
		return nil, fmt.Errorf("open tab: %w", err)
	}
	s.log.Info().Str("run_id", s.opts.RunID).Msg("🌐 Browser session opened")
	return s.page, nil
}

func (s *chromedpSession) NavigateToHome(ctx context.Context, cred credentials.Credential) error {
	if s.page == nil {
		return errors.New("session not open")
	}
	entry := FrontdoorURL(cred, SetupHomePath)
	if err := s.page.run(ctx, s.opts.NavigationTimeout, chromedp.Navigate(entry)); err != nil {
		return fmt.Errorf("navigate to setup home: %w", err)
	}
	return dom.Sleep(ctx, s.opts.SettleDelay)
}

func (s *chromedpSession) Close() error {
	if s.tabCancel != nil {
		s.tabCancel()
	}
	if s.allocCancel != nil {
		s.allocCancel()
	}
	if s.proc != nil {
		s.opts.Manager.Stop(s.opts.RunID)
		s.proc = nil
	}
	s.log.Debug().Str("run_id", s.opts.RunID).Msg("🛑 Browser session closed")
	return nil
}

type cdpPage struct {
	tabCtx     context.Context
	timeout    time.Duration
	navTimeout time.Duration
	log        zerolog.Logger
	top        *cdpSurface
}

// run executes actions on the tab bounded by timeout and by the caller's ctx.
func (p *cdpPage) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	opCtx, cancel := context.WithTimeout(p.tabCtx, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	err := chromedp.Run(opCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (p *cdpPage) QueryAll(ctx context.Context, selector string) ([]dom.Element, error) {
	return p.top.QueryAll(ctx, selector)
}

func (p *cdpPage) Frames(ctx context.Context) ([]dom.Frame, error) {
	var frames []dom.Frame
	err := p.run(ctx, p.timeout, chromedp.ActionFunc(func(ctx context.Context) error {
		tree, err := page.GetFrameTree().Do(ctx)
		if err != nil {
			return err
		}
		for _, child := range tree.ChildFrames {
			world, err := page.CreateIsolatedWorld(child.Frame.ID).WithWorldName("orgsetup").Do(ctx)
			if err != nil {
				return fmt.Errorf("frame %s: %w", child.Frame.ID, err)
			}
			frames = append(frames, dom.Frame{
				Name:    child.Frame.Name,
				Src:     child.Frame.URL,
				Surface: &cdpSurface{page: p, contextID: world},
			})
		}
		return nil
	}))
	return frames, err
}

func (p *cdpPage) ClickAndWait(ctx context.Context, el dom.Element) error {
	listenCtx, cancel := context.WithCancel(p.tabCtx)
	defer cancel()

	loaded := make(chan struct{}, 1)
	chromedp.ListenTarget(listenCtx, func(ev interface{}) {
		switch ev.(type) {
		case *page.EventLoadEventFired, *page.EventFrameStoppedLoading:
			select {
			case loaded <- struct{}{}:
			default:
			}
		}
	})

	if err := el.Click(ctx); err != nil {
		return err
	}

	timer := time.NewTimer(p.navTimeout)
	defer timer.Stop()
	select {
	case <-loaded:
	case <-timer.C:
		p.log.Debug().Dur("timeout", p.navTimeout).Msg("no navigation after click")
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

func (p *cdpPage) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := p.run(ctx, p.timeout, chromedp.FullScreenshot(&buf, 100)); err != nil {
		return nil, err
	}
	return buf, nil
}

// cdpSurface evaluates in the page's main world when contextID is zero and
// in a frame's isolated world otherwise.
type cdpSurface struct {
	page      *cdpPage
	contextID runtime.ExecutionContextID
}

func (s *cdpSurface) eval(ctx context.Context, script string, res interface{}) error {
	var opts []chromedp.EvaluateOption
	if s.contextID != 0 {
		id := s.contextID
		opts = append(opts, func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
			return p.WithContextID(id)
		})
	}
	return s.page.run(ctx, s.page.timeout, chromedp.Evaluate(script, res, opts...))
}

func (s *cdpSurface) wrap(h handles) []dom.Element {
	out := make([]dom.Element, 0, len(h.IDs))
	for _, id := range h.IDs {
		out = append(out, &cdpElement{surface: s, gen: h.Gen, id: id})
	}
	return out
}

func (s *cdpSurface) QueryAll(ctx context.Context, selector string) ([]dom.Element, error) {
	var h handles
	if err := s.eval(ctx, queryScript(selector), &h); err != nil {
		return nil, err
	}
	return s.wrap(h), nil
}

type cdpElement struct {
	surface *cdpSurface
	gen     string
	id      int
}

func (e *cdpElement) do(ctx context.Context, body string, res interface{}) error {
	return e.surface.eval(ctx, elementScript(e.gen, e.id, body), res)
}

func (e *cdpElement) Property(ctx context.Context, name string) (string, error) {
	var v string
	err := e.do(ctx, propertyBody(name), &v)
	return v, err
}

func (e *cdpElement) Children(ctx context.Context) ([]dom.Element, error) {
	var h handles
	if err := e.do(ctx, childrenBody, &h); err != nil {
		return nil, err
	}
	return e.surface.wrap(h), nil
}

func (e *cdpElement) Click(ctx context.Context) error {
	var ok bool
	return e.do(ctx, clickBody, &ok)
}

func (e *cdpElement) Type(ctx context.Context, text string) error {
	var ok bool
	if err := e.do(ctx, focusBody, &ok); err != nil {
		return err
	}
	return e.surface.page.run(ctx, e.surface.page.timeout, chromedp.KeyEvent(text))
}

func (e *cdpElement) Clear(ctx context.Context) error {
	var ok bool
	return e.do(ctx, clearBody, &ok)
}

func (e *cdpElement) Select(ctx context.Context, value string) error {
	var ok bool
	if err := e.do(ctx, selectBody(value), &ok); err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("no option with value %q", value)
	}
	return nil
}
