package commands

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"orgsetup/internal/api/routes"
	"orgsetup/internal/executor"
	"orgsetup/internal/metrics"
	"orgsetup/internal/progress"
	"orgsetup/internal/services"
	"orgsetup/internal/store"
	"orgsetup/pkg/auth"
	"orgsetup/pkg/chrome"
	"orgsetup/pkg/database"
)

func serveCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP control plane, the run queue and the schedules",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx)
		},
	}
	cmd.Flags().String("nats-url", "", "publish progress events to this NATS server")
	cmd.Flags().String("port", "8080", "listen port")
	cmd.Flags().Bool("screenshots", false, "capture screenshots in scheduled runs")
	return cmd
}

func (a *app) serve(ctx context.Context) error {
	cfg := a.cfg
	if cfg.JWT.Secret == "" {
		return usageError{errors.New("jwt.secret must be set to serve")}
	}
	auth.InitJWT(cfg.JWT.Secret)

	var runs store.RunStore = store.NewMemory()
	if cfg.Database.Enabled {
		db, err := database.InitDatabase(cfg)
		if err != nil {
			return err
		}
		defer database.Close()
		runs = store.NewGorm(db)
	} else {
		log.Warn().Msg("⚠️ Database disabled, run history is kept in memory")
	}

	hub := progress.NewHub()
	reporters := []progress.Reporter{hub, progress.LogReporter{Logger: log.Logger.With().Str("component", "progress").Logger()}}
	if cfg.NATS.URL != "" {
		nc, err := progress.ConnectNATS(cfg.NATS.URL)
		if err != nil {
			return err
		}
		defer nc.Drain()
		reporters = append(reporters, progress.NATSReporter{Conn: nc, Subject: cfg.NATS.Subject})
		log.Info().Str("url", cfg.NATS.URL).Str("subject", cfg.NATS.Subject).Msg("✅ Publishing progress to NATS")
	}

	opts := []executor.Option{
		executor.WithReporter(progress.Multi(reporters...)),
		executor.WithObserver(store.Observer{Store: runs}),
	}
	var metricsHandler http.Handler
	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		opts = append(opts, executor.WithObserver(metrics.MustNewMetrics(reg)))
		metricsHandler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	}

	execCfg := executorConfig(cfg)
	execCfg.PerRunDir = true
	exec := executor.New(execCfg, opts...)

	scheduler := services.NewSchedulerService(exec)
	for _, s := range services.SchedulesFromConfig(cfg.Schedule, cfg.Run) {
		if err := scheduler.Add(s); err != nil {
			return usageError{err}
		}
	}
	statusSync := services.NewStatusSyncService(runs, exec, cfg.Server.StaleRunTimeout)

	gin.SetMode(cfg.Server.Mode)
	router := routes.SetupRoutes(routes.Deps{
		Config:   cfg,
		Executor: exec,
		Store:    runs,
		Hub:      hub,
		Metrics:  metricsHandler,
	})
	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	exec.Start(gctx)
	scheduler.Start()

	g.Go(func() error {
		log.Info().Str("addr", srv.Addr).Msg("🚀 Server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		statusSync.Start(gctx)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		scheduler.Stop()
		exec.Stop()
		chrome.GlobalChromeManager.CleanupAll()
		log.Info().Msg("Server shutdown complete")
		return err
	})
	return g.Wait()
}
