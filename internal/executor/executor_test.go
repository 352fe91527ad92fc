package executor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orgsetup/internal/browser"
	"orgsetup/internal/credentials"
	"orgsetup/internal/dom"
	"orgsetup/internal/picklist"
	"orgsetup/internal/progress"
	"orgsetup/internal/reconcile"
	"orgsetup/internal/setup"
	"orgsetup/internal/setup/setuptest"
)

type fakeSession struct {
	console *setuptest.Console
	openErr error
	panicOn bool

	mu     sync.Mutex
	opened int
	closed int
}

func (s *fakeSession) Open(context.Context) (dom.Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opened++
	if s.openErr != nil {
		return nil, s.openErr
	}
	return s.console.Page, nil
}

func (s *fakeSession) NavigateToHome(ctx context.Context, cred credentials.Credential) error {
	if s.panicOn {
		panic("target crashed")
	}
	return s.console.NavigateToHome(ctx, cred)
}

func (s *fakeSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed++
	return nil
}

func (s *fakeSession) counts() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opened, s.closed
}

func newTestExecutor(t *testing.T, session *fakeSession, strict bool, opts ...Option) *Executor {
	t.Helper()
	cfg := Config{
		Setup:         setup.Options{PollInterval: time.Millisecond, MarkerTimeout: 20 * time.Millisecond},
		Reconcile:     reconcile.Options{BannerTimeout: 20 * time.Millisecond},
		Credentials:   credentials.Static{InstanceURL: "https://acme.my.salesforce.com/", AccessToken: "tok"},
		ScreenshotDir: filepath.Join(t.TempDir(), "tmp"),
		Strict:        strict,
	}
	opts = append(opts, WithSessionFactory(func(browser.Options) (browser.Session, error) { return session, nil }))
	return New(cfg, opts...)
}

func writeCSV(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func stateCountryRequest(t *testing.T, states string) Request {
	return Request{
		Kind:       KindStateCountry,
		CountryCSV: writeCSV(t, "countries.csv", "Name,IsoCode,IntVal\nCanada,CA,39\n"),
		StateCSV:   writeCSV(t, "states.csv", "Name,IsoCode,IntVal,CountryIso\n"+states),
	}
}

func TestRunStateCountry(t *testing.T) {
	session := &fakeSession{console: setuptest.NewConsole()}
	rec := &progress.Recorder{}
	e := newTestExecutor(t, session, false, WithReporter(rec))

	res := e.Run(context.Background(), stateCountryRequest(t, "Ontario,ON,1,CA\n"))
	assert.Equal(t, StatusOK, res.Status, res.Error)
	assert.Equal(t, 2, res.Created)
	assert.Equal(t, KindStateCountry, res.Kind)
	assert.False(t, res.Finished.Before(res.Started))
	assert.NotEmpty(t, res.Events)
	for _, ev := range res.Events {
		assert.Equal(t, res.RunID, ev.RunID)
	}
	assert.Len(t, rec.Events(), len(res.Events))

	opened, closed := session.counts()
	assert.Equal(t, 1, opened)
	assert.Equal(t, 1, closed)
	assert.Empty(t, e.Running())
}

func TestRunRejectsMismatchBeforeBrowser(t *testing.T) {
	session := &fakeSession{console: setuptest.NewConsole()}
	e := newTestExecutor(t, session, false)

	res := e.Run(context.Background(), stateCountryRequest(t, "Paris,PAR,1,FR\n"))
	assert.Equal(t, StatusFailed, res.Status)
	assert.Contains(t, res.Error, "csv mismatch")
	opened, _ := session.counts()
	assert.Zero(t, opened)
	assert.Zero(t, session.console.Homes)
}

func TestRunCheckOnly(t *testing.T) {
	session := &fakeSession{console: setuptest.NewConsole()}
	req := stateCountryRequest(t, "Ontario,ON,1,CA\n")
	req.CheckOnly = true

	res := newTestExecutor(t, session, false).Run(context.Background(), req)
	assert.Equal(t, StatusOK, res.Status)
	opened, _ := session.counts()
	assert.Zero(t, opened)
}

func TestRunClosesSessionOnFailure(t *testing.T) {
	session := &fakeSession{console: setuptest.NewConsole(), openErr: errors.New("connection refused")}
	res := newTestExecutor(t, session, false).Run(context.Background(), Request{Kind: KindEmailDeliverability})
	assert.Equal(t, StatusFailed, res.Status)
	assert.Contains(t, res.Error, "connection refused")
	_, closed := session.counts()
	assert.Equal(t, 1, closed)
}

func TestRunRecoversPanic(t *testing.T) {
	session := &fakeSession{console: setuptest.NewConsole(), panicOn: true}
	res := newTestExecutor(t, session, false).Run(context.Background(), Request{Kind: KindEmailDeliverability})
	assert.Equal(t, StatusFailed, res.Status)
	assert.Contains(t, res.Error, "target crashed")
	_, closed := session.counts()
	assert.Equal(t, 1, closed)
}

func TestRunStrict(t *testing.T) {
	console := setuptest.NewConsole()
	console.NoBanner["CA"] = true
	req := stateCountryRequest(t, "Ontario,ON,1,CA\n")

	res := newTestExecutor(t, &fakeSession{console: console}, false).Run(context.Background(), req)
	assert.Equal(t, StatusOK, res.Status)
	assert.Equal(t, 1, res.Failed)

	console = setuptest.NewConsole()
	console.NoBanner["CA"] = true
	res = newTestExecutor(t, &fakeSession{console: console}, true).Run(context.Background(), req)
	assert.Equal(t, StatusFailed, res.Status)
	assert.Equal(t, "1 records failed and 0 aborted", res.Error)
}

func TestRunValidateAlwaysScreenshots(t *testing.T) {
	session := &fakeSession{console: setuptest.NewConsole()}
	var seen []string
	req := Request{Kind: KindPicklistValidate, Confirm: func(_ context.Context, shots []string) (bool, error) {
		seen = shots
		return false, nil
	}}

	res := newTestExecutor(t, session, false).Run(context.Background(), req)
	assert.Equal(t, StatusFailed, res.Status)
	assert.Equal(t, ErrNotConfirmed.Error(), res.Error)
	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, res.Screenshots)
	for _, path := range seen {
		assert.FileExists(t, path)
	}
}

func TestRunWithoutCredentials(t *testing.T) {
	e := New(Config{}, WithSessionFactory(func(browser.Options) (browser.Session, error) {
		t.Fatal("no session expected")
		return nil, nil
	}))
	res := e.Run(context.Background(), Request{Kind: KindEmailDeliverability})
	assert.Equal(t, StatusFailed, res.Status)
	assert.Equal(t, credentials.ErrMissing.Error(), res.Error)
}

func TestRequestValidate(t *testing.T) {
	assert.Error(t, Request{Kind: "bogus"}.Validate())
	assert.Error(t, Request{Kind: KindStateCountry, CountryCSV: "c.csv"}.Validate())
	assert.NoError(t, Request{Kind: KindStateCountry, Countries: []picklist.Country{}}.Validate())
	assert.NoError(t, Request{Kind: KindEmailDeliverability}.Validate())
}

type observer struct {
	mu       sync.Mutex
	started  []string
	finished []Status
}

func (o *observer) RunStarted(r *Result) {
	o.mu.Lock()
	o.started = append(o.started, r.RunID)
	o.mu.Unlock()
}

func (o *observer) RunFinished(r *Result) {
	o.mu.Lock()
	o.finished = append(o.finished, r.Status)
	o.mu.Unlock()
}

func TestSubmitRunsSequentially(t *testing.T) {
	obs := &observer{}
	session := &fakeSession{console: setuptest.NewConsole()}
	e := newTestExecutor(t, session, false, WithObserver(obs))
	e.Start(context.Background())

	id1, ch1, err := e.Submit(Request{Kind: KindEmailDeliverability})
	require.NoError(t, err)
	id2, ch2, err := e.Submit(Request{Kind: KindEmailDeliverability})
	require.NoError(t, err)
	assert.NotEqual(t, id1, id2)

	r1, r2 := <-ch1, <-ch2
	assert.Equal(t, StatusOK, r1.Status, r1.Error)
	assert.Equal(t, StatusOK, r2.Status, r2.Error)
	assert.Equal(t, 2, r1.Updated)
	assert.Zero(t, r2.Updated)
	assert.False(t, r2.Started.Before(r1.Finished))

	e.Stop()
	_, _, err = e.Submit(Request{Kind: KindEmailDeliverability})
	assert.ErrorIs(t, err, ErrStopped)
	assert.Equal(t, []string{id1, id2}, obs.started)
	assert.Equal(t, []Status{StatusOK, StatusOK}, obs.finished)
}

func TestSubmitQueueFull(t *testing.T) {
	e := newTestExecutor(t, &fakeSession{console: setuptest.NewConsole()}, false)
	// no worker: the queue only fills
	for i := 0; i < QueueSize; i++ {
		_, _, err := e.Submit(Request{Kind: KindEmailDeliverability})
		require.NoError(t, err)
	}
	_, _, err := e.Submit(Request{Kind: KindEmailDeliverability})
	assert.ErrorIs(t, err, ErrQueueFull)
}
