package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"orgsetup/internal/browser"
	"orgsetup/internal/config"
	"orgsetup/internal/credentials"
	"orgsetup/internal/dom"
	"orgsetup/internal/executor"
	"orgsetup/internal/progress"
	"orgsetup/internal/reconcile"
	"orgsetup/internal/setup"
	"orgsetup/pkg/chrome"
)

// executorConfig maps configuration onto the executor. A missing credential
// is not an error here: check-only runs never need one.
func executorConfig(cfg *config.Config) executor.Config {
	creds, err := credentials.FromConfig(cfg.Org.InstanceURL, cfg.Org.AccessToken, cfg.Org.TargetOrg)
	if err != nil {
		creds = nil
	}
	return executor.Config{
		Browser: browser.Options{
			Driver: cfg.Chrome.Driver,
			Launch: chrome.LaunchOptions{
				ExecPath: chrome.ResolveExecPath(cfg.Chrome.ExecPath),
				Headless: cfg.Chrome.Headless,
				Width:    cfg.Chrome.ViewportWidth,
				Height:   cfg.Chrome.ViewportHeight,
			},
			SettleDelay:       cfg.Chrome.SettleDelay,
			NavigationTimeout: cfg.Chrome.NavigationTimeout,
			ActionTimeout:     cfg.Chrome.ActionTimeout,
			Logger:            log.Logger,
		},
		Setup: setup.Options{
			SettleDelay:         cfg.Chrome.SettleDelay,
			PollInterval:        cfg.Chrome.PollInterval,
			MarkerTimeout:       cfg.Chrome.MarkerTimeout,
			ContentFrame:        dom.NamePrefixRole("setup content", cfg.Chrome.FrameNamePrefix),
			PicklistEnabledText: cfg.Chrome.PicklistEnabledText,
		},
		Reconcile: reconcile.Options{
			FieldDelay:    cfg.Chrome.FieldDelay,
			BannerTimeout: cfg.Chrome.BannerTimeout,
		},
		Credentials:   creds,
		ScreenshotDir: cfg.Run.ScreenshotDir,
		Strict:        cfg.Run.Strict,
	}
}

// runOnce executes req on a fresh executor, logging progress as it goes.
// Ctrl-C cancels the run; the browser is still closed.
func (a *app) runOnce(req executor.Request, opts ...executor.Option) *executor.Result {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reporter := progress.LogReporter{Logger: log.Logger.With().Str("component", "progress").Logger()}
	opts = append([]executor.Option{executor.WithReporter(reporter)}, opts...)
	exec := executor.New(executorConfig(a.cfg), opts...)
	defer chrome.GlobalChromeManager.CleanupAll()
	return exec.Run(ctx, req)
}

// finish prints result and turns a failed status into errRunFailed.
func (a *app) finish(result *executor.Result) error {
	if err := printResult(a.out, result, a.jsonOut); err != nil {
		return err
	}
	if result.Status != executor.StatusOK {
		return errRunFailed
	}
	return nil
}
