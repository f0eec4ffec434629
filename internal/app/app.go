// Package app initializes and holds long-lived application services, acting as a dependency injection container.
package app

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/pubsub"
	gcstorage "cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/JakeFAU/rupat-crawler/internal/clock/system"
	"github.com/JakeFAU/rupat-crawler/internal/config"
	"github.com/JakeFAU/rupat-crawler/internal/crawler"
	collyfetcher "github.com/JakeFAU/rupat-crawler/internal/fetcher/colly"
	"github.com/JakeFAU/rupat-crawler/internal/hash/sha256"
	"github.com/JakeFAU/rupat-crawler/internal/id/uuid"
	"github.com/JakeFAU/rupat-crawler/internal/logging"
	"github.com/JakeFAU/rupat-crawler/internal/output"
	pubsubpublisher "github.com/JakeFAU/rupat-crawler/internal/publisher/pubsub"
	"github.com/JakeFAU/rupat-crawler/internal/storage/gcs"
	"github.com/JakeFAU/rupat-crawler/internal/storage/local"
	"github.com/JakeFAU/rupat-crawler/internal/telemetry"
)

// App holds the shared, long-lived services for one command invocation.
// It is built once after configuration is loaded and closed when the command
// returns.
type App struct {
	cfg       config.Config
	logger    *zap.Logger
	clock     *system.Clock
	ids       crawler.IDGenerator
	fetcher   crawler.Fetcher
	writer    *output.Writer
	archive   crawler.BlobStore
	hasher    crawler.Hasher
	publisher crawler.Publisher
	closers   []func(context.Context) error
}

// GetConfig returns the loaded configuration.
func (a *App) GetConfig() config.Config {
	return a.cfg
}

// GetLogger returns the shared zap logger.
func (a *App) GetLogger() *zap.Logger {
	return a.logger
}

// GetClock returns the clock used to stamp artifacts.
func (a *App) GetClock() crawler.Clock {
	return a.clock
}

// GetIDGenerator returns the run ID generator.
func (a *App) GetIDGenerator() crawler.IDGenerator {
	return a.ids
}

// GetFetcher returns the page fetcher.
func (a *App) GetFetcher() crawler.Fetcher {
	return a.fetcher
}

// GetWriter returns the artifact writer.
func (a *App) GetWriter() *output.Writer {
	return a.writer
}

// GetArchive returns the raw page store and its hasher. Both are nil when
// archiving is disabled.
func (a *App) GetArchive() (crawler.BlobStore, crawler.Hasher) {
	return a.archive, a.hasher
}

// GetPublisher returns the completion notice publisher, or nil when Pub/Sub
// is not configured.
func (a *App) GetPublisher() crawler.Publisher {
	return a.publisher
}

// New creates and initializes an App from cfg. It fails fast if any
// configured service cannot be initialized; services already started are
// closed before returning the error.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	a := &App{cfg: cfg, logger: logger, ids: uuid.New()}
	if err := a.init(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) init(ctx context.Context) error {
	cfg := a.cfg
	l := a.logger

	shutdown, err := telemetry.Init(ctx, cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	a.closers = append(a.closers, shutdown)

	clock, err := system.NewNamed(cfg.Output.Timezone)
	if err != nil {
		return fmt.Errorf("init clock: %w", err)
	}
	a.clock = clock

	a.fetcher = collyfetcher.New(collyfetcher.Config{
		UserAgent: cfg.Crawler.UserAgent,
		Timeout:   cfg.Crawler.RequestTimeout,
	})

	primary, err := local.New(local.Config{BaseDir: cfg.Output.Dir, NoClobber: cfg.Output.NoClobber})
	if err != nil {
		return fmt.Errorf("init output store: %w", err)
	}
	var mirror crawler.BlobStore
	if cfg.Output.GCSBucket != "" {
		client, err := gcstorage.NewClient(ctx)
		if err != nil {
			return fmt.Errorf("init gcs client: %w", err)
		}
		a.closers = append(a.closers, func(context.Context) error { return client.Close() })
		store, err := gcs.New(client, gcs.Config{
			Bucket:    cfg.Output.GCSBucket,
			Prefix:    cfg.Output.GCSPrefix,
			NoClobber: cfg.Output.NoClobber,
		})
		if err != nil {
			return fmt.Errorf("init gcs store: %w", err)
		}
		l.Info("mirroring artifacts to GCS", zap.String("bucket", cfg.Output.GCSBucket))
		mirror = store
	}
	a.writer = output.NewWriter(cfg.WriterConfig(), a.clock, l.Named("output"), primary, mirror)

	if cfg.Archive.Enabled {
		// Archived pages are content addressed, so rewriting one is harmless.
		archive, err := local.New(local.Config{BaseDir: cfg.Archive.Dir})
		if err != nil {
			return fmt.Errorf("init archive store: %w", err)
		}
		a.archive = archive
		a.hasher = sha256.New(cfg.Archive.DigestLength)
		l.Info("archiving raw pages", zap.String("dir", cfg.Archive.Dir))
	}

	if cfg.PubSub.Enabled() {
		client, err := pubsub.NewClient(ctx, cfg.PubSub.ProjectID)
		if err != nil {
			return fmt.Errorf("init pubsub client: %w", err)
		}
		topic := client.Topic(cfg.PubSub.Topic)
		a.closers = append(a.closers, func(context.Context) error {
			topic.Stop()
			return client.Close()
		})
		a.publisher = pubsubpublisher.New(topic)
		l.Info("publishing run notices", zap.String("topic", cfg.PubSub.Topic))
	}
	return nil
}

// Close releases every service in reverse order of creation and flushes the
// logger.
func (a *App) Close() {
	ctx := context.Background()
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	if err := errors.Join(errs...); err != nil {
		a.logger.Warn("error closing application services", zap.Error(err))
	}
	// Sync fails on some terminals; nothing useful can be done about it.
	_ = a.logger.Sync()
}
