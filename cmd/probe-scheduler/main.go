// Probe Scheduler — a durable-execution HTTP probe scheduler.
//
// Runs as a standalone binary. Serves:
//   - Query API (targets, schedules, runs)
//   - Metrics/health server (Prometheus exposition, healthz, version)
//   - The in-process workflow engine driving every active schedule
package main

import (
	"context"
	"flag"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/probesched/probe-scheduler/internal/activities"
	"github.com/probesched/probe-scheduler/internal/config"
	"github.com/probesched/probe-scheduler/internal/controlplane/schedules"
	"github.com/probesched/probe-scheduler/internal/controlplane/targets"
	"github.com/probesched/probe-scheduler/internal/httpapi"
	"github.com/probesched/probe-scheduler/internal/lifecycle"
	"github.com/probesched/probe-scheduler/internal/metrics"
	"github.com/probesched/probe-scheduler/internal/probe/executor"
	"github.com/probesched/probe-scheduler/internal/store"
	"github.com/probesched/probe-scheduler/internal/tracing"
	"github.com/probesched/probe-scheduler/internal/workflow"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	configPath := flag.String("config", "", "Path to a JSON config file. Env vars (PROBESCHEDULER_*) always take precedence.")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		panic("failed to build logger: " + err.Error())
	}
	defer logger.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	shutdownTracer, err := tracing.InitTraceProvider(ctx, cfg.OTLPEndpoint, version)
	if err != nil {
		logger.Fatal("failed to init trace provider", zap.Error(err))
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			logger.Warn("trace provider shutdown failed", zap.Error(err))
		}
	}()

	st, err := store.Open(cfg.Driver(), cfg.DBDSN)
	if err != nil {
		logger.Fatal("failed to open store", zap.Error(err))
	}
	defer st.Close()

	acts := activities.New(st, executor.New(logger.Named("executor")))

	observer := lifecycle.Multi(&metrics.Observer{}, &loggingObserver{logger: logger.Named("lifecycle")})

	engine, err := workflow.NewEngine(st.DB(), acts, logger.Named("workflow"), observer)
	if err != nil {
		logger.Fatal("failed to build workflow engine", zap.Error(err))
	}
	engine.SetPausedPollInterval(time.Duration(cfg.PausedPollIntervalSeconds) * time.Second)
	defer engine.Stop()

	schedSvc := schedules.New(st, engine, observer, logger.Named("schedules"))
	targetSvc := targets.New(st, schedSvc, observer, logger.Named("targets"))

	resumed, err := resumeActiveSchedules(ctx, st, engine)
	if err != nil {
		logger.Error("failed to resume active schedules", zap.Error(err))
	}
	logger.Info("resumed active schedules", zap.Int("count", resumed))

	apiSrv := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      httpapi.New(targetSvc, schedSvc, st, logger.Named("httpapi")).Mux(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	metricsMux := http.NewServeMux()
	metricsMux.Handle("GET /metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))
	metricsMux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok\n"))
	})
	metricsSrv := &http.Server{
		Addr:         cfg.MetricsAddr,
		Handler:      metricsMux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	httpapi.Version, httpapi.Commit, httpapi.Date = version, commit, date

	logger.Info("starting probe scheduler",
		zap.String("listen_addr", cfg.ListenAddr),
		zap.String("metrics_addr", cfg.MetricsAddr),
		zap.String("version", version),
	)

	go func() {
		if err := apiSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("query api server error", zap.Error(err))
		}
	}()
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("metrics server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := apiSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("query api shutdown error", zap.Error(err))
	}
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics server shutdown error", zap.Error(err))
	}
}

// resumeActiveSchedules replays every schedule that wasn't paused when the
// process last exited, so a restart picks every workflow back up from its
// last journaled wake time instead of losing it silently.
func resumeActiveSchedules(ctx context.Context, st *store.Store, engine *workflow.Engine) (int, error) {
	scheds, err := st.ListSchedules()
	if err != nil {
		return 0, err
	}
	resumed := 0
	for _, sched := range scheds {
		if sched.Paused {
			continue
		}
		engine.Resume(ctx, sched.ID, sched.Kind)
		resumed++
	}
	return resumed, nil
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(level)); err == nil {
		cfg.Level = zap.NewAtomicLevelAt(lvl)
	}
	return cfg.Build()
}

// loggingObserver logs every lifecycle event at debug level, giving an
// always-on audit trail independent of whatever metrics/tracing backends
// are configured.
type loggingObserver struct {
	logger *zap.Logger
}

func (o *loggingObserver) ObserveLifecycleEvent(evt lifecycle.Event) {
	o.logger.Debug("lifecycle event",
		zap.String("type", string(evt.Type)),
		zap.String("schedule_id", evt.ScheduleID),
		zap.String("target_id", evt.TargetID),
		zap.String("run_id", evt.RunID),
	)
}
