package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"RiskMonitor/internal/config"
	"RiskMonitor/internal/infrastructure/scheduler"
	"RiskMonitor/internal/infrastructure/storage"
	"RiskMonitor/internal/logging"
	"RiskMonitor/internal/metrics"
	"RiskMonitor/internal/ports"
	"RiskMonitor/internal/query"
	"RiskMonitor/internal/usecase"
	"RiskMonitor/internal/web"
)

// Application wires configs to use cases and owns one dashboard session.
type Application struct {
	cfg    config.Config
	logger *slog.Logger

	store      ports.RecordStore
	metrics    *metrics.Metrics
	monitor    *usecase.StatusMonitor
	dispatcher *usecase.CommandDispatcher
	dashboard  *usecase.Dashboard
	server     *web.Server
}

// New opens the record store and builds the session components.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level, cfg.Logging.Format)
	}

	store, err := storage.Open(ctx, cfg.Database, baseLogger.With("component", "storage"))
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	if err := seed(store, cfg.Database.SeedFile, baseLogger); err != nil {
		store.Close()
		return nil, err
	}

	m := metrics.New()

	monitor := usecase.NewStatusMonitor(usecase.StatusMonitorDeps{
		Logs:      store,
		Scheduler: scheduler.NewIntervalScheduler(cfg.Status.PollInterval, baseLogger.With("component", "scheduler")),
		Logger:    baseLogger.With("component", "status"),
		Metrics:   m,
	})

	dispatcher := usecase.NewCommandDispatcher(usecase.DispatcherDeps{
		Commands: store,
		Cooldown: cfg.Status.CommandCooldown,
		Timeout:  cfg.Database.QueryTimeout,
		Status:   monitor,
		Logger:   baseLogger.With("component", "dispatcher"),
		Metrics:  m,
	})

	dashboard := usecase.NewDashboard(usecase.DashboardDeps{
		Records: store,
		Builder: query.NewBuilder(cfg.Dashboard.Location(), cfg.Dashboard.ResultLimit),
		Logger:  baseLogger.With("component", "dashboard"),
		Metrics: m,
	})

	server := web.NewServer(web.Deps{
		Dashboard: dashboard,
		Status:    usecase.SessionStatus{Monitor: monitor, Dispatcher: dispatcher},
		Run:       dispatcher,
		Logger:    baseLogger.With("component", "http"),
		Metrics:   m,
		FetchWait: cfg.HTTP.FetchWait,
		Location:  cfg.Dashboard.Location(),
	})

	return &Application{
		cfg:        cfg,
		logger:     baseLogger,
		store:      store,
		metrics:    m,
		monitor:    monitor,
		dispatcher: dispatcher,
		dashboard:  dashboard,
		server:     server,
	}, nil
}

// Handler exposes the HTTP surface.
func (a *Application) Handler() http.Handler {
	return a.server.Handler()
}

// Run listens on the configured address until ctx is cancelled.
func (a *Application) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.cfg.HTTP.Addr)
	if err != nil {
		a.store.Close()
		return fmt.Errorf("listen %s: %w", a.cfg.HTTP.Addr, err)
	}
	return a.Serve(ctx, ln)
}

// Serve runs the session on ln. Cancelling ctx tears the session down: the
// poller stops, pending fetches are abandoned and the store is closed once
// in-flight command writes finish.
func (a *Application) Serve(ctx context.Context, ln net.Listener) error {
	defer a.store.Close()

	if err := a.monitor.Start(ctx); err != nil {
		ln.Close()
		return fmt.Errorf("start status monitor: %w", err)
	}
	a.dashboard.Start()

	srv := &http.Server{
		Handler:           a.server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.logger.Info("dashboard listening", "addr", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.HTTP.ShutdownTimeout)
		defer cancel()

		err := srv.Shutdown(shutdownCtx)
		if stopErr := a.monitor.Stop(shutdownCtx); stopErr != nil {
			a.logger.Warn("status monitor stop", "error", stopErr)
		}
		a.dashboard.Close()
		a.dispatcher.Wait()

		if err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	})

	err := g.Wait()
	a.logger.Info("dashboard session ended")
	return err
}

// seed preloads collector output into the memory store.
func seed(store ports.RecordStore, path string, logger *slog.Logger) error {
	if path == "" {
		return nil
	}
	mem, ok := store.(*storage.MemoryStore)
	if !ok {
		logger.Warn("seed file ignored for non-memory store", "path", path)
		return nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read seed file: %w", err)
	}
	records, err := storage.DecodeRecords(raw)
	if err != nil {
		return fmt.Errorf("seed %s: %w", path, err)
	}
	mem.AddRecords(records...)
	logger.Info("seeded memory store", "path", path, "records", len(records))
	return nil
}
