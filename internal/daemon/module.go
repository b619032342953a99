package daemon

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/matheus3301/zpw/internal/api"
	"github.com/matheus3301/zpw/internal/bus"
	"github.com/matheus3301/zpw/internal/config"
	"github.com/matheus3301/zpw/internal/ledger"
	"github.com/matheus3301/zpw/internal/lock"
	"github.com/matheus3301/zpw/internal/logging"
	"github.com/matheus3301/zpw/internal/metrics"
	"github.com/matheus3301/zpw/internal/recall"
	"github.com/matheus3301/zpw/internal/session"
	"github.com/matheus3301/zpw/internal/status"
	"github.com/matheus3301/zpw/internal/store"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Params holds the resolved session configuration passed to the fx module.
type Params struct {
	SessionName string
	SocketPath  string // optional override for testing; empty = use default
}

// Module returns the fx module for the daemon, composing all providers and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("daemon",
		fx.Supply(p),
		fx.Provide(
			provideLogger,
			provideConfig,
			provideBus,
			provideStateMachine,
			provideLock,
			provideStore,
			provideMetrics,
			NewSessionUndoer,
			provideUndoer,
			provideWorker,
			provideLedger,
			provideService,
			NewServer,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideLogger(p Params) (*zap.Logger, error) {
	return logging.New(session.LogPath(p.SessionName), p.SessionName)
}

func provideConfig(logger *zap.Logger) (*config.Config, error) {
	cfg, err := config.LoadOrDefault(session.ConfigPath())
	if err != nil {
		return nil, err
	}
	logger.Info("config loaded",
		zap.Int("api_version", cfg.API.Version),
		zap.Int("api_type", cfg.API.Type),
		zap.Float64("rate_limit", cfg.API.RateLimit),
	)
	return cfg, nil
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideStateMachine(b *bus.Bus) *status.Machine {
	return status.NewMachine(b)
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	if err := session.EnsureDir(p.SessionName); err != nil {
		return nil, err
	}
	logger.Info("acquiring session lock", zap.String("session", p.SessionName))
	l, err := lock.Acquire(session.Dir(p.SessionName))
	if err != nil {
		return nil, err
	}
	logger.Info("session lock acquired")
	return l, nil
}

// provideStore depends on the lock so the database is only opened by its owner.
func provideStore(p Params, _ *lock.Lock, logger *zap.Logger) (*store.DB, error) {
	dbPath := session.AppDBPath(p.SessionName)
	db, err := store.Open(dbPath)
	if err != nil {
		return nil, err
	}
	result, err := db.Migrate()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if result.Changed {
		logger.Info("migrations applied", zap.Uint("version", result.Version))
	} else {
		logger.Info("migrations up to date", zap.Uint("version", result.Version))
	}
	logger.Info("store initialized", zap.String("path", dbPath))
	return db, nil
}

func provideMetrics() *metrics.Metrics {
	return metrics.New()
}

func provideUndoer(u *SessionUndoer, m *metrics.Metrics) recall.Undoer {
	return m.Instrument(u)
}

func provideWorker(db *store.DB, u recall.Undoer, b *bus.Bus, m *status.Machine, logger *zap.Logger) *recall.Worker {
	return recall.NewWorker(db, u, b, m.IsReady, logger)
}

func provideLedger(db *store.DB, b *bus.Bus, logger *zap.Logger) *ledger.Ledger {
	return ledger.New(db, b, logger)
}

func provideService(p Params, m *status.Machine, db *store.DB, b *bus.Bus, u recall.Undoer, su *SessionUndoer, logger *zap.Logger) *api.Service {
	return api.NewService(p.SessionName, m, db, b, u, su, logger)
}

type lifecycleDeps struct {
	fx.In

	Server  *Server
	Lock    *lock.Lock
	DB      *store.DB
	Undoer  *SessionUndoer
	Worker  *recall.Worker
	Ledger  *ledger.Ledger
	Metrics *metrics.Metrics
	Config  *config.Config
	Machine *status.Machine
	Logger  *zap.Logger
}

func registerLifecycle(lc fx.Lifecycle, d lifecycleDeps) {
	var metricsSrv *http.Server

	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			// The ledger must subscribe before anything can publish undo outcomes.
			d.Ledger.Start(context.Background())

			go func() {
				if err := d.Server.Start(); err != nil {
					d.Logger.Error("gRPC server error", zap.Error(err))
				}
			}()

			if addr := d.Config.Metrics.Listen; addr != "" {
				metricsSrv = newMetricsServer(addr, d.Metrics)
				go func() {
					d.Logger.Info("metrics server starting", zap.String("addr", addr))
					if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						d.Logger.Error("metrics server error", zap.Error(err))
					}
				}()
			}

			d.Worker.Start(context.Background())

			if err := d.Undoer.Reload(); err != nil {
				d.Logger.Info("credentials required", zap.Error(err))
			}
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if d.Machine.Current() != status.Stopping {
				_ = d.Machine.Transition(status.Stopping)
			}
			d.Worker.Stop()
			d.Ledger.Stop()
			d.Server.Stop(ctx)
			if metricsSrv != nil {
				_ = metricsSrv.Shutdown(ctx)
			}
			if err := d.DB.Close(); err != nil {
				d.Logger.Warn("error closing store", zap.Error(err))
			}
			if err := d.Lock.Release(); err != nil {
				d.Logger.Warn("error releasing lock", zap.Error(err))
			}
			d.Logger.Info("daemon stopped")
			_ = d.Logger.Sync()
			return nil
		},
	})
}

func newMetricsServer(addr string, m *metrics.Metrics) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
