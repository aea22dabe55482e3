package daemon

import (
	"context"

	"github.com/tchatdev/tchat/internal/bus"
	"github.com/tchatdev/tchat/internal/config"
	"github.com/tchatdev/tchat/internal/contacts"
	"github.com/tchatdev/tchat/internal/gateway"
	"github.com/tchatdev/tchat/internal/lock"
	"github.com/tchatdev/tchat/internal/logging"
	"github.com/tchatdev/tchat/internal/session"
	"github.com/tchatdev/tchat/internal/status"
	"github.com/tchatdev/tchat/internal/store"
	"github.com/tchatdev/tchat/internal/stranger"
	intsync "github.com/tchatdev/tchat/internal/sync"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Params holds the resolved session configuration passed to the fx module.
type Params struct {
	SessionName string
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
			provideSessionState,
			provideClient,
			provideContacts,
			provideSynchronizer,
			provideDetector,
			provideEngine,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideLogger(p Params) (*zap.Logger, error) {
	return logging.New(session.LogPath(p.SessionName), p.SessionName)
}

func provideConfig(logger *zap.Logger) *config.Config {
	cfg, err := config.Load(session.ConfigPath())
	if err != nil {
		logger.Warn("config load failed, using defaults", zap.Error(err))
		return config.Default()
	}
	return cfg
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

func provideStore(p Params, logger *zap.Logger) (*store.DB, error) {
	dbPath := session.DBPath(p.SessionName)
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

func provideSessionState(db *store.DB) (*session.State, error) {
	return session.LoadState(db)
}

func provideClient(cfg *config.Config, state *session.State, logger *zap.Logger) *gateway.Client {
	client := gateway.New(cfg.APIURL, logger, gateway.WithTimeout(cfg.RequestTimeout()))
	if state.Authenticated() {
		client.SetToken(state.Token())
	}
	return client
}

func provideContacts(client *gateway.Client, state *session.State, b *bus.Bus, logger *zap.Logger) *contacts.Cache {
	return contacts.NewCache(client, state.UserID(), b, logger)
}

func provideSynchronizer(client *gateway.Client, state *session.State, b *bus.Bus, logger *zap.Logger) *intsync.Synchronizer {
	return intsync.New(client, state.UserID(), b, logger)
}

func provideDetector(cache *contacts.Cache, b *bus.Bus, logger *zap.Logger) *stranger.Detector {
	return stranger.New(cache, b, logger)
}

func provideEngine(s *intsync.Synchronizer, cache *contacts.Cache, det *stranger.Detector, db *store.DB, m *status.Machine, cfg *config.Config, logger *zap.Logger) *intsync.Engine {
	return intsync.NewEngine(s, cache, det, db, m, intsync.EngineConfig{
		PollInterval:          cfg.PollInterval(),
		ContactInterval:       cfg.ContactInterval(),
		StrangerSweepInterval: cfg.StrangerSweepInterval(),
	}, logger)
}

func registerLifecycle(lc fx.Lifecycle, p Params, engine *intsync.Engine, state *session.State, machine *status.Machine, db *store.DB, lk *lock.Lock, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			if !state.Authenticated() {
				logger.Info("no usable token, auth required",
					zap.String("session", p.SessionName))
				_ = machine.Transition(status.AuthRequired)
				return nil
			}
			engine.Start(context.Background())
			logger.Info("polling engine started",
				zap.String("session", p.SessionName),
				zap.String("user_id", state.UserID()))
			return nil
		},
		OnStop: func(_ context.Context) error {
			engine.Stop()
			if err := db.Close(); err != nil {
				logger.Warn("error closing store", zap.Error(err))
			}
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("daemon stopped")
			return nil
		},
	})
}
