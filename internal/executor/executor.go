package executor

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"orgsetup/internal/browser"
	"orgsetup/internal/credentials"
	"orgsetup/internal/diagnostics"
	"orgsetup/internal/picklist"
	"orgsetup/internal/progress"
	"orgsetup/internal/reconcile"
	"orgsetup/internal/setup"
)

// ErrQueueFull is returned by Submit when QueueSize runs are already waiting.
var ErrQueueFull = errors.New("run queue is full")

// ErrStopped is returned by Submit after Stop.
var ErrStopped = errors.New("executor stopped")

// QueueSize bounds the runs waiting behind the active one.
const QueueSize = 16

// SessionFactory opens the browser a run drives.
type SessionFactory func(opts browser.Options) (browser.Session, error)

// Observer is told about every run start and finish. Calls happen on the
// goroutine executing the run.
type Observer interface {
	RunStarted(r *Result)
	RunFinished(r *Result)
}

type Config struct {
	Browser     browser.Options
	Setup       setup.Options
	Reconcile   reconcile.Options
	Credentials credentials.Source
	// ScreenshotDir is emptied at the start of every run. With PerRunDir each
	// run writes into its own subdirectory instead.
	ScreenshotDir string
	PerRunDir     bool
	Strict        bool
}

// Executor runs workflows one at a time. Runs never share a browser.
type Executor struct {
	cfg        Config
	newSession SessionFactory
	reporter   progress.Reporter
	observers  []Observer

	queue chan job
	wg    sync.WaitGroup

	mutex   sync.RWMutex
	running map[string]*Result
	stopped bool
}

type job struct {
	runID  string
	req    Request
	result chan *Result
}

type Option func(*Executor)

// WithSessionFactory replaces browser.New.
func WithSessionFactory(f SessionFactory) Option {
	return func(e *Executor) { e.newSession = f }
}

// WithReporter adds a reporter every run's events are sent to, next to the
// run's own recorder.
func WithReporter(r progress.Reporter) Option {
	return func(e *Executor) { e.reporter = progress.Multi(e.reporter, r) }
}

func WithObserver(o Observer) Option {
	return func(e *Executor) { e.observers = append(e.observers, o) }
}

func New(cfg Config, opts ...Option) *Executor {
	e := &Executor{
		cfg:        cfg,
		newSession: browser.New,
		reporter:   progress.Nop,
		queue:      make(chan job, QueueSize),
		running:    make(map[string]*Result),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start launches the single worker draining the queue.
func (e *Executor) Start(ctx context.Context) {
	e.wg.Add(1)
	go e.worker(ctx)
	log.Info().Int("queue", QueueSize).Msg("🚀 Run executor started with 1 worker")
}

func (e *Executor) worker(ctx context.Context) {
	defer e.wg.Done()
	for j := range e.queue {
		result := e.execute(ctx, j.runID, j.req)
		j.result <- result
		log.Info().Str("run_id", j.runID).Str("status", string(result.Status)).Msg("✅ Worker finished run")
	}
}

// Submit queues req and returns its run id at once. The result channel
// receives exactly one value.
func (e *Executor) Submit(req Request) (string, <-chan *Result, error) {
	e.mutex.RLock()
	defer e.mutex.RUnlock()
	if e.stopped {
		return "", nil, ErrStopped
	}
	j := job{runID: uuid.NewString(), req: req, result: make(chan *Result, 1)}
	select {
	case e.queue <- j:
		log.Info().Str("run_id", j.runID).Str("kind", string(req.Kind)).Msg("📥 Run queued")
		return j.runID, j.result, nil
	default:
		return "", nil, ErrQueueFull
	}
}

// Run executes req on the calling goroutine.
func (e *Executor) Run(ctx context.Context, req Request) *Result {
	return e.execute(ctx, uuid.NewString(), req)
}

// Stop refuses further submissions and waits for queued runs to drain.
func (e *Executor) Stop() {
	e.mutex.Lock()
	if !e.stopped {
		e.stopped = true
		close(e.queue)
	}
	e.mutex.Unlock()
	e.wg.Wait()
	log.Info().Msg("🛑 Run executor stopped")
}

// Running lists the ids of runs in progress.
func (e *Executor) Running() []string {
	e.mutex.RLock()
	defer e.mutex.RUnlock()
	ids := make([]string, 0, len(e.running))
	for id := range e.running {
		ids = append(ids, id)
	}
	return ids
}

// IsRunning reports whether runID is in progress.
func (e *Executor) IsRunning(runID string) bool {
	e.mutex.RLock()
	defer e.mutex.RUnlock()
	_, ok := e.running[runID]
	return ok
}

// execute never panics and always returns a finished result.
func (e *Executor) execute(ctx context.Context, runID string, req Request) (result *Result) {
	result = &Result{RunID: runID, Kind: req.Kind, Status: StatusRunning, Trigger: req.Trigger, Started: time.Now()}
	recorder := &progress.Recorder{}
	reporter := progress.Scoped(progress.Multi(e.reporter, recorder), runID)

	e.mutex.Lock()
	e.running[runID] = result
	e.mutex.Unlock()
	for _, o := range e.observers {
		o.RunStarted(result)
	}

	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("run_id", runID).Interface("panic", r).Msg("🚨 PANIC recovered in run")
			result.fail(fmt.Errorf("panic: %v", r))
			reporter.Report(progress.Event{Level: progress.LevelError, Message: fmt.Sprintf("Run failed due to panic: %v", r)})
		}
		result.Events = recorder.Events()
		result.finish(e.strict(req))

		e.mutex.Lock()
		delete(e.running, runID)
		e.mutex.Unlock()
		for _, o := range e.observers {
			o.RunFinished(result)
		}
	}()

	if err := e.run(ctx, runID, req, reporter, result); err != nil {
		log.Error().Err(err).Str("run_id", runID).Str("kind", string(req.Kind)).Msg("❌ Run failed")
		reporter.Report(progress.Event{Level: progress.LevelError, Message: err.Error()})
		result.fail(err)
	}
	return result
}

func (e *Executor) strict(req Request) bool {
	return e.cfg.Strict || req.Strict
}

func (e *Executor) run(ctx context.Context, runID string, req Request, reporter progress.Reporter, result *Result) error {
	if err := req.Validate(); err != nil {
		return err
	}

	// no remote interaction before the input passes the validation gate
	var countries []picklist.Country
	if req.Kind == KindStateCountry {
		var err error
		countries, err = req.desiredCountries()
		if err != nil {
			return err
		}
		reporter.Report(progress.Event{
			Level:   progress.LevelInfo,
			Message: fmt.Sprintf("Validated %d countries and %d states", len(countries), picklist.StateCount(countries)),
		})
	}
	if req.CheckOnly {
		return nil
	}

	if e.cfg.Credentials == nil {
		return credentials.ErrMissing
	}
	cred, err := e.cfg.Credentials.Credential(ctx)
	if err != nil {
		return fmt.Errorf("resolve credentials: %w", err)
	}

	sink, err := e.sink(runID, req)
	if err != nil {
		return err
	}

	opts := e.cfg.Browser
	opts.RunID = runID
	session, err := e.newSession(opts)
	if err != nil {
		return fmt.Errorf("create browser session: %w", err)
	}
	defer func() {
		if err := session.Close(); err != nil {
			log.Warn().Err(err).Str("run_id", runID).Msg("⚠️ Browser close failed")
		}
	}()

	log.Info().Str("run_id", runID).Str("kind", string(req.Kind)).Msg("🌐 Opening browser session")
	page, err := session.Open(ctx)
	if err != nil {
		return fmt.Errorf("open browser: %w", err)
	}

	nav := setup.NewNavigator(session, page, sink, reporter, e.cfg.Setup)
	engine := reconcile.NewEngine(nav, e.cfg.Reconcile)

	var rep *reconcile.Report
	switch req.Kind {
	case KindStateCountry:
		rep, err = engine.ReconcileStateCountry(ctx, cred, countries)
	case KindPicklistValidate:
		rep, err = engine.ValidatePicklistSetup(ctx, cred)
	case KindEmailDeliverability:
		rep, err = engine.UpdateEmailDeliverability(ctx, cred, req.emailOptions())
	}
	result.apply(rep)
	if files, ok := sink.(*diagnostics.ScreenshotSink); ok {
		result.Screenshots = files.Files()
	}
	if err != nil {
		return err
	}

	if req.Kind == KindPicklistValidate && req.Confirm != nil {
		ok, err := req.Confirm(ctx, result.Screenshots)
		if err != nil {
			return fmt.Errorf("confirm screenshots: %w", err)
		}
		if !ok {
			return ErrNotConfirmed
		}
	}
	return nil
}

// sink prepares the run's screenshot directory. Validation always captures.
func (e *Executor) sink(runID string, req Request) (diagnostics.Sink, error) {
	if !req.Screenshots && req.Kind != KindPicklistValidate {
		return diagnostics.Disabled, nil
	}
	dir := e.cfg.ScreenshotDir
	if dir == "" {
		dir = "./tmp"
	}
	if e.cfg.PerRunDir {
		dir = filepath.Join(dir, runID)
	}
	if err := diagnostics.PrepareRunDir(dir); err != nil {
		return nil, err
	}
	return diagnostics.NewScreenshotSink(dir, log.Logger), nil
}
