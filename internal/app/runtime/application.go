// Package runtime wires configuration, the storage backend and the
// services into one application object. The backend is picked at
// startup: postgres when a DSN is configured and reachable, otherwise a
// file-snapshotted store when a snapshot path is set, otherwise a
// transient in-memory store.
package runtime

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
	_ "github.com/lib/pq"

	"github.com/helphub/platform/internal/app/metrics"
	"github.com/helphub/platform/internal/app/services/accounts"
	"github.com/helphub/platform/internal/app/services/messaging"
	"github.com/helphub/platform/internal/app/services/reputation"
	"github.com/helphub/platform/internal/app/services/requests"
	"github.com/helphub/platform/internal/app/storage"
	"github.com/helphub/platform/internal/app/storage/memory"
	"github.com/helphub/platform/internal/app/storage/postgres"
	"github.com/helphub/platform/internal/app/storage/snapshot"
	"github.com/helphub/platform/internal/config"
	"github.com/helphub/platform/internal/platform/migrations"
	"github.com/helphub/platform/pkg/logger"
)

// Application wires core dependencies and manages background workers.
type Application struct {
	cfg   *config.Config
	log   *logger.Logger
	store storage.Store

	Accounts   *accounts.Service
	Requests   *requests.Service
	Messaging  *messaging.Service
	Reputation *reputation.Service

	janitor *accounts.Janitor
	db      *sql.DB
	redis   *redis.Client
	metrics *http.Server
}

// NewApplication constructs an application with default wiring.
func NewApplication() (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return NewApplicationWithConfig(cfg)
}

// NewApplicationWithConfig wires an application from an explicit
// configuration.
func NewApplicationWithConfig(cfg *config.Config) (*Application, error) {
	log := logger.New(cfg.Logging)

	store, db, err := buildStore(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("configure storage: %w", err)
	}

	var cache reputation.LeaderboardCache
	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		cache = reputation.NewRedisLeaderboard(redisClient, log)
	}

	repSvc := reputation.New(store, store, store, cache, log)
	acctSvc := accounts.New(store, nil, nil, cfg.OTP.TTL, log)
	reqSvc := requests.New(store, repSvc, log)
	msgSvc := messaging.New(store, log)

	janitor, err := accounts.NewJanitor(acctSvc, cfg.OTP.CleanupInterval, log)
	if err != nil {
		return nil, fmt.Errorf("schedule code cleanup: %w", err)
	}

	return &Application{
		cfg:        cfg,
		log:        log,
		store:      store,
		Accounts:   acctSvc,
		Requests:   reqSvc,
		Messaging:  msgSvc,
		Reputation: repSvc,
		janitor:    janitor,
		db:         db,
		redis:      redisClient,
	}, nil
}

// Store exposes the selected storage backend.
func (a *Application) Store() storage.Store { return a.store }

// Run starts background workers and blocks until the context is
// cancelled.
func (a *Application) Run(ctx context.Context) error {
	a.janitor.Start()

	if a.cfg.Metrics.Addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		a.metrics = &http.Server{Addr: a.cfg.Metrics.Addr, Handler: mux}
		go func() {
			a.log.Infof("metrics endpoint listening on %s", a.cfg.Metrics.Addr)
			if err := a.metrics.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.log.WithError(err).Warnf("metrics endpoint stopped")
			}
		}()
	}

	a.log.Infof("application started")
	<-ctx.Done()
	return nil
}

// Shutdown stops workers and closes external connections.
func (a *Application) Shutdown(ctx context.Context) error {
	a.janitor.Stop()

	if a.metrics != nil {
		if err := a.metrics.Shutdown(ctx); err != nil {
			a.log.WithError(err).Warnf("error stopping metrics endpoint")
		}
	}

	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.WithError(err).Warnf("error closing redis connection")
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.log.WithError(err).Warnf("error closing database connection")
		}
	}
	return nil
}

// buildStore selects the storage backend. A configured but unreachable
// database degrades to the snapshot or memory backend with a warning
// instead of failing startup.
func buildStore(cfg *config.Config, log *logger.Logger) (storage.Store, *sql.DB, error) {
	if cfg.Database.DSN != "" {
		db, err := openDatabase(cfg.Database)
		if err != nil {
			log.WithError(err).Warnf("database unavailable, falling back: %v", storage.ErrBackendUnavailable)
		} else {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := migrations.Apply(ctx, db); err != nil {
				db.Close()
				return nil, nil, fmt.Errorf("apply migrations: %w", err)
			}
			log.Infof("using postgres storage")
			return postgres.New(db), db, nil
		}
	}

	if cfg.Snapshot.Path != "" {
		store, err := snapshot.Open(cfg.Snapshot.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("open snapshot %s: %w", cfg.Snapshot.Path, err)
		}
		log.Infof("using snapshot storage at %s", cfg.Snapshot.Path)
		return store, nil, nil
	}

	log.Infof("using transient in-memory storage")
	return memory.New(), nil, nil
}

func openDatabase(cfg config.DatabaseConfig) (*sql.DB, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = "postgres"
	}

	db, err := sql.Open(driver, cfg.DSN)
	if err != nil {
		return nil, err
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Second)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}
