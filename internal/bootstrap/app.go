// Package bootstrap assembles the agent: storage, queues, cache, cloud
// clients, sync engine, and the local HTTP API.
package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"fineprint-agent/internal/cache"
	"fineprint-agent/internal/connectivity"
	"fineprint-agent/internal/documents"
	"fineprint-agent/internal/engine"
	"fineprint-agent/internal/operations"
	"fineprint-agent/internal/remote"
	"fineprint-agent/internal/shared/config"
	"fineprint-agent/internal/shared/server"
	"fineprint-agent/internal/shared/storage/db"
	"fineprint-agent/internal/shared/storage/kv"
	"fineprint-agent/internal/shared/storage/object"
	localstore "fineprint-agent/internal/shared/storage/object/local"
	s3store "fineprint-agent/internal/shared/storage/object/s3"
	"fineprint-agent/internal/syncqueue"
	"fineprint-agent/internal/workqueue"
)

// App holds the constructed agent.
type App struct {
	Config    config.Config
	Router    *gin.Engine
	DB        *sql.DB
	Store     kv.Store
	Blobs     object.BlobStore
	Work      *workqueue.Queue
	Sync      *syncqueue.Queue
	Cache     *cache.Cache
	Monitor   *connectivity.Monitor
	Remote    *remote.Client
	Engine    *engine.Engine
	Probe     *connectivity.Probe
	Documents *documents.Service
}

// Build prepares the full dependency graph and restores persisted state.
func Build(cfg config.Config) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	ctx := context.Background()

	store, sqlDB, err := buildKV(ctx, cfg)
	if err != nil {
		return nil, err
	}

	blobs, err := buildBlobs(ctx, cfg)
	if err != nil {
		store.Close()
		return nil, err
	}

	app := &App{
		Config:  cfg,
		DB:      sqlDB,
		Store:   store,
		Blobs:   blobs,
		Work:    workqueue.New(store),
		Sync:    syncqueue.New(store),
		Cache:   cache.New(store, cfg.CacheTTL),
		Monitor: connectivity.NewMonitor(),
		Remote:  remote.NewClient(cfg.APIBaseURL, cfg.APIToken, cfg.APITimeout),
	}

	if err := app.Work.Load(ctx); err != nil {
		return nil, fmt.Errorf("restore analysis queue: %w", err)
	}
	if err := app.Sync.Load(ctx); err != nil {
		return nil, fmt.Errorf("restore sync queue: %w", err)
	}
	if err := app.Cache.Load(ctx); err != nil {
		return nil, fmt.Errorf("restore analysis cache: %w", err)
	}

	app.Engine = engine.New(engine.Options{
		Work:      app.Work,
		Sync:      app.Sync,
		Cache:     app.Cache,
		Monitor:   app.Monitor,
		Analyses:  app.Remote,
		Mutations: app.Remote,
		Blobs:     app.Blobs,
		Store:     app.Store,
		AutoSync:  cfg.AutoSync,
	})
	app.Monitor.OnOnline(app.Engine.TriggerAsync)
	app.Probe = connectivity.NewProbe(app.Monitor, app.Remote, cfg.ProbeInterval)

	app.Documents = &documents.Service{
		Blobs:  app.Blobs,
		Queue:  app.Work,
		Cache:  app.Cache,
		Notify: app.Engine.NotifyEnqueued,
	}

	app.Router = server.NewRouter(server.Deps{
		Config:    cfg,
		Engine:    app.Engine,
		Monitor:   app.Monitor,
		Documents: app.Documents,
		Ops:       operations.NewHandler(app.Sync, app.Engine.NotifyEnqueued),
	})

	return app, nil
}

// Close releases the app's storage handles.
func (a *App) Close() error {
	var firstErr error
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			firstErr = err
		}
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func buildKV(ctx context.Context, cfg config.Config) (kv.Store, *sql.DB, error) {
	switch cfg.StoreType {
	case "postgres":
		if strings.TrimSpace(cfg.DatabaseURL) == "" {
			return nil, nil, fmt.Errorf("FP_STORE=postgres requires DATABASE_URL")
		}
		opts := db.OptionsFromEnv(db.DefaultAgentOptions())
		sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, opts)
		if err != nil {
			if !isDevLike(cfg.Env) {
				return nil, nil, err
			}
			log.Printf("bootstrap: database connect failed; using in-memory store: %v", err)
			return kv.NewMemoryStore(cfg.StorageQuotaBytes), nil, nil
		}
		if err := db.RunMigrations(ctx, sqlDB); err != nil {
			sqlDB.Close()
			return nil, nil, fmt.Errorf("run migrations: %w", err)
		}
		return kv.NewPGStore(sqlDB, cfg.StorageQuotaBytes), sqlDB, nil
	case "memory":
		return kv.NewMemoryStore(cfg.StorageQuotaBytes), nil, nil
	default:
		store, err := kv.OpenBadger(kv.BadgerOptions{
			Path:       filepath.Join(cfg.DataDir, "kv"),
			QuotaBytes: cfg.StorageQuotaBytes,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("open badger store: %w", err)
		}
		return store, nil, nil
	}
}

func buildBlobs(ctx context.Context, cfg config.Config) (object.BlobStore, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		return s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix, cfg.SSEKMSKeyID)
	default:
		dir := cfg.LocalStoreDir
		if strings.TrimSpace(dir) == "" {
			dir = filepath.Join(cfg.DataDir, "blobs")
		}
		return localstore.New(dir), nil
	}
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local":
		return true
	default:
		return false
	}
}
