// Package app initializes and holds the services of one pagewatch process,
// acting as a dependency injection container for the CLI commands.
package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/pagewatch/internal/clock/system"
	"github.com/JakeFAU/pagewatch/internal/config"
	"github.com/JakeFAU/pagewatch/internal/fetcher"
	"github.com/JakeFAU/pagewatch/internal/hash/sha256"
	"github.com/JakeFAU/pagewatch/internal/id/uuid"
	"github.com/JakeFAU/pagewatch/internal/metrics"
	"github.com/JakeFAU/pagewatch/internal/monitor"
	"github.com/JakeFAU/pagewatch/internal/notify"
	pubsubpublisher "github.com/JakeFAU/pagewatch/internal/publisher/pubsub"
	"github.com/JakeFAU/pagewatch/internal/runlog"
	"github.com/JakeFAU/pagewatch/internal/snapshot"
	"github.com/JakeFAU/pagewatch/internal/storage"
	"github.com/JakeFAU/pagewatch/internal/storage/gcs"
	"github.com/JakeFAU/pagewatch/internal/storage/local"
	"github.com/JakeFAU/pagewatch/internal/storage/postgres"
)

// App holds the services shared by every command. It is built once per
// process and closed by a cobra hook after the command finishes.
type App struct {
	cfg     config.Config
	logger  *zap.Logger
	runLog  *runlog.Logger
	runner  *monitor.Runner
	closers []func()
}

// Options override how optional integrations are opened. Zero values use the
// real GCS, Postgres and Pub/Sub clients.
type Options struct {
	OpenGCS      func(ctx context.Context, cfg gcs.Config, logger *zap.Logger) (storage.BlobStore, func(), error)
	OpenRunStore func(ctx context.Context, cfg postgres.RunStoreConfig) (runlog.Mirror, func(), error)
}

// New creates the local store and every configured integration. The local
// data directory is mandatory; GCS, Postgres and Pub/Sub are mirrors, so a
// failure to open one is logged and that mirror is skipped.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger, opts Options) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.OpenGCS == nil {
		opts.OpenGCS = openGCS
	}
	if opts.OpenRunStore == nil {
		opts.OpenRunStore = openRunStore
	}
	logger.Info("Initializing application services", zap.String("data_dir", cfg.Storage.DataDir))

	store, err := local.New(local.Config{BaseDir: cfg.Storage.DataDir})
	if err != nil {
		return nil, fmt.Errorf("init local storage: %w", err)
	}
	a := &App{cfg: cfg, logger: logger}

	var blobMirrors []storage.BlobStore
	if cfg.Storage.GCSBucket != "" {
		blob, closeFn, err := opts.OpenGCS(ctx, gcs.Config{Bucket: cfg.Storage.GCSBucket, Prefix: cfg.Storage.GCSPrefix}, logger)
		if err != nil {
			logger.Warn("GCS snapshot mirror disabled", zap.String("bucket", cfg.Storage.GCSBucket), zap.Error(err))
		} else {
			logger.Info("Using GCS snapshot mirror", zap.String("bucket", cfg.Storage.GCSBucket))
			blobMirrors = append(blobMirrors, blob)
			a.closers = append(a.closers, closeFn)
		}
	}

	var logMirrors []runlog.Mirror
	if cfg.DB.DSN != "" {
		mirror, closeFn, err := opts.OpenRunStore(ctx, postgres.RunStoreConfig{
			DSN:      cfg.DB.DSN,
			Table:    cfg.DB.Table,
			MaxConns: cfg.DB.MaxConns,
		})
		if err != nil {
			logger.Warn("Postgres run-log mirror disabled", zap.Error(err))
		} else {
			logger.Info("Using Postgres run-log mirror", zap.String("table", cfg.DB.Table))
			logMirrors = append(logMirrors, mirror)
			a.closers = append(a.closers, closeFn)
		}
	}

	clock := system.New()
	a.runLog = runlog.New(store, runlog.DefaultPath, clock, logger.Named("runlog"), logMirrors...)

	deps := monitor.Dependencies{
		Fetcher: fetcher.New(fetcher.Config{
			UserAgent: cfg.Target.UserAgent,
			Timeout:   cfg.RequestTimeout(),
		}, logger.Named("fetcher")),
		Mailer:    notify.NewMailer(cfg.SMTP, logger.Named("mailer")),
		Snapshots: snapshot.New(store, logger.Named("snapshot"), blobMirrors...),
		RunLog:    a.runLog,
		Clock:     clock,
		IDs:       uuid.New(),
		Hasher:    sha256.New(),
		Metrics:   metrics.New(),
	}

	if cfg.PubSub.TopicName != "" {
		pub, err := pubsubpublisher.Open(ctx, cfg.PubSub.ProjectID, cfg.PubSub.TopicName, logger)
		if err != nil {
			logger.Warn("Pub/Sub change events disabled", zap.String("topic", cfg.PubSub.TopicName), zap.Error(err))
		} else {
			logger.Info("Publishing change events", zap.String("topic", cfg.PubSub.TopicName))
			deps.Publisher = pub
			a.closers = append(a.closers, func() {
				if cerr := pub.Close(); cerr != nil {
					logger.Warn("Failed to close Pub/Sub publisher", zap.Error(cerr))
				}
			})
		}
	}

	runner, err := monitor.New(cfg, deps, logger.Named("monitor"))
	if err != nil {
		a.Close()
		return nil, err
	}
	a.runner = runner
	return a, nil
}

func openGCS(ctx context.Context, cfg gcs.Config, logger *zap.Logger) (storage.BlobStore, func(), error) {
	return gcs.Open(ctx, cfg, logger)
}

func openRunStore(ctx context.Context, cfg postgres.RunStoreConfig) (runlog.Mirror, func(), error) {
	store, err := postgres.NewRunStore(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return store, store.Close, nil
}

// Config returns the configuration the App was built from.
func (a *App) Config() config.Config {
	return a.cfg
}

// Logger returns the shared zap logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Runner returns the monitor wired to every configured integration.
func (a *App) Runner() *monitor.Runner {
	return a.runner
}

// RunLog returns the run-log reader/writer.
func (a *App) RunLog() *runlog.Logger {
	return a.runLog
}

// Close releases every integration, most recently opened first.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
