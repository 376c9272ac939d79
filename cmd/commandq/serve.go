package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/phrazzld/commandq/internal/api"
	"github.com/phrazzld/commandq/internal/command"
	"github.com/phrazzld/commandq/internal/config"
	"github.com/phrazzld/commandq/internal/connectivity"
	"github.com/phrazzld/commandq/internal/events"
	"github.com/phrazzld/commandq/internal/host"
	"github.com/phrazzld/commandq/internal/platform/logger"
	"github.com/phrazzld/commandq/internal/queue"
	"github.com/phrazzld/commandq/internal/schedule"
	"github.com/phrazzld/commandq/internal/service"
	"github.com/phrazzld/commandq/internal/service/auth"
	"github.com/phrazzld/commandq/internal/strategy"
	"github.com/phrazzld/commandq/internal/task"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// shutdownTimeout bounds the graceful shutdown of the HTTP server and the engine.
const shutdownTimeout = 10 * time.Second

func newServeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the engine and its HTTP control API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			log := logger.Setup(cfg.Server)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg, strategy.Ports{}, log)
		},
	}
}

// application holds the running components of serve.
type application struct {
	config     *config.Config
	logger     *slog.Logger
	store      *queue.Store
	closeStore func() error
	monitor    *connectivity.Monitor
	controller *service.Controller
}

// newApplication wires the engine for cfg. Commands are executed against ports.
func newApplication(ctx context.Context, cfg *config.Config, ports strategy.Ports, log *slog.Logger) (*application, error) {
	st, closeStore, err := openQueueStore(ctx, cfg.Store, log)
	if err != nil {
		return nil, err
	}

	initial, err := connectivity.ParseClass(cfg.Connectivity.Initial)
	if err != nil {
		_ = closeStore()
		return nil, err
	}
	monitor := connectivity.NewMonitor(initial, connectivity.Policy{
		SyncOverCellular:                cfg.Connectivity.SyncOverCellular,
		DownloadAttachmentsOverCellular: cfg.Connectivity.DownloadAttachmentsOverCellular,
	}, log)

	emitter := events.NewInMemoryEventEmitter(log)
	emitter.RegisterHandler(events.NewLogHandler(log))

	var engineHost service.Host = host.Nop{}
	if cfg.Engine.LockFile != "" {
		engineHost = host.NewLockFileHost(cfg.Engine.LockFile, log)
	}

	controller, err := service.NewController(service.Deps{
		Store:      st,
		Dispatcher: strategy.NewDispatcher(ports, accountResolver(cfg.Schedule.AccountIDs), log),
		Monitor:    monitor,
		Host:       engineHost,
		Emitter:    emitter,
	}, engineConfig(cfg.Engine), log)
	if err != nil {
		_ = closeStore()
		return nil, err
	}

	return &application{
		config:     cfg,
		logger:     log,
		store:      st,
		closeStore: closeStore,
		monitor:    monitor,
		controller: controller,
	}, nil
}

// engineConfig maps the configured engine tunables onto the controller.
func engineConfig(cfg config.EngineConfig) service.Config {
	return service.Config{
		Executor: task.ExecutorConfig{Budget: cfg.ExecutorBudget},
		Heartbeat: task.HeartbeatConfig{
			Period:        cfg.HeartbeatPeriod,
			MaxIterations: cfg.HeartbeatMaxIterations,
		},
		InactivityThreshold: cfg.InactivityThreshold,
		UnavailableBackoff:  cfg.UnavailableBackoff,
		RetryDelay:          cfg.RetryDelay,
		DefaultRetries:      cfg.DefaultRetries,
	}
}

// accountResolver resolves the configured accounts as usable. Other
// accounts do not resolve, so their commands complete as no-ops.
func accountResolver(ids []int64) command.StaticResolver {
	accounts := make(map[int64]command.Account, len(ids))
	for _, id := range ids {
		accounts[id] = command.Account{ID: id, Valid: true}
	}
	return command.StaticResolver{Accounts: accounts}
}

// runServe runs the engine until ctx is cancelled or a component fails.
func runServe(ctx context.Context, cfg *config.Config, ports strategy.Ports, log *slog.Logger) error {
	app, err := newApplication(ctx, cfg, ports, log)
	if err != nil {
		return err
	}
	defer app.cleanup()
	return app.run(ctx)
}

func (app *application) run(ctx context.Context) error {
	if err := app.controller.Load(ctx); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	// A stopped engine holds no connectivity subscription of its own.
	unsubscribe := app.monitor.Subscribe(func(_, current connectivity.Class) {
		if current != connectivity.Offline {
			go app.controller.Trigger(gctx)
		}
	})
	defer unsubscribe()

	if path := app.config.Connectivity.StateFile; path != "" {
		watcher := connectivity.NewFileWatcher(path, app.monitor, app.logger)
		g.Go(func() error { return watcher.Run(gctx) })
	}

	if app.config.Schedule.Enabled {
		scheduler, err := schedule.NewSyncScheduler(app.config.Schedule.TimelineSync,
			app.config.Schedule.AccountIDs, app.controller, app.logger)
		if err != nil {
			return err
		}
		g.Go(func() error { return scheduler.Run(gctx) })
	}

	if app.config.Server.Enabled {
		srv, err := app.newHTTPServer()
		if err != nil {
			return err
		}
		g.Go(func() error {
			app.logger.Info("starting server", "port", app.config.Server.Port)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server failed: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("server shutdown failed: %w", err)
			}
			return nil
		})
	}

	// Resume persisted work.
	app.controller.Trigger(gctx)

	g.Go(func() error {
		<-gctx.Done()
		app.logger.Info("shutting down engine")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
		defer cancel()
		return app.controller.Shutdown(shutdownCtx)
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	app.logger.Info("shutdown completed", "state", app.controller.State())
	return err
}

func (app *application) newHTTPServer() (*http.Server, error) {
	deps := api.RouterDeps{Engine: app.controller, Logger: app.logger}
	if app.config.Auth.Enabled {
		tokens, err := auth.NewTokenService(app.config.Auth)
		if err != nil {
			return nil, err
		}
		deps.Tokens = tokens
	}
	router, err := api.NewRouter(deps)
	if err != nil {
		return nil, err
	}
	return &http.Server{
		Addr:              fmt.Sprintf(":%d", app.config.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}, nil
}

func (app *application) cleanup() {
	if err := app.closeStore(); err != nil {
		app.logger.Error("failed to close store", "error", err)
	}
}
