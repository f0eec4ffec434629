package crawler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/JakeFAU/rupat-crawler/internal/metrics"
	"github.com/JakeFAU/rupat-crawler/internal/patent"
	"github.com/JakeFAU/rupat-crawler/internal/progress"
)

const archiveContentType = "text/html; charset=utf-8"

var tracer = otel.Tracer("github.com/JakeFAU/rupat-crawler/internal/crawler")

// Engine fetches every document in the configured range, strictly one at a
// time and in ascending order, and builds the resulting table.
type Engine struct {
	cfg       Config
	fetcher   Fetcher
	extractor Extractor
	archive   BlobStore
	hasher    Hasher
	retry     RetryPolicy
	tracker   *progress.Tracker
	pauser    pauseController
	logger    *zap.Logger
}

// NewEngine wires an Engine. archive, hasher and tracker may be nil; raw pages
// are only archived when both archive and hasher are set.
func NewEngine(
	cfg Config,
	fetcher Fetcher,
	extractor Extractor,
	archive BlobStore,
	hasher Hasher,
	retry RetryPolicy,
	tracker *progress.Tracker,
	logger *zap.Logger,
) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if retry == nil {
		retry = NewExponentialRetryPolicy(cfg.MaxRetries)
	}
	metrics.Init()
	return &Engine{
		cfg:       cfg,
		fetcher:   fetcher,
		extractor: extractor,
		archive:   archive,
		hasher:    hasher,
		retry:     retry,
		tracker:   tracker,
		pauser:    &timerPauseController{},
		logger:    logger.With(zap.String("run_id", cfg.RunID)),
	}
}

// Run crawls the range. It returns a table with exactly one row per document
// number, or an error and no table if the run was aborted or cancelled.
func (e *Engine) Run(ctx context.Context) (*patent.Table, error) {
	if err := e.cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid crawler config: %w", err)
	}
	if e.fetcher == nil || e.extractor == nil {
		return nil, errors.New("crawler engine requires a fetcher and an extractor")
	}

	rng := e.cfg.Range
	e.tracker.Begin(e.cfg.RunID, int(rng.Start), int(rng.End))
	e.logger.Info("crawl started",
		zap.Stringer("range", rng),
		zap.Int("documents", rng.Len()),
		zap.Duration("delay", e.cfg.Delay),
	)

	table := patent.NewTable(rng.Len())
	for id := range rng.IDs() {
		fields, err := e.process(ctx, id)
		if err == nil {
			err = table.Append(id, fields)
		}
		if err != nil {
			e.tracker.Finish(err)
			metrics.ObserveRun(OutcomeFailed)
			e.logger.Error("crawl stopped", zap.Int("document", int(id)), zap.Error(err))
			return nil, err
		}
	}

	e.tracker.Finish(nil)
	metrics.ObserveRun(OutcomeOK)
	e.logger.Info("crawl finished", zap.Int("rows", table.Len()))
	return table, nil
}

// Tracker exposes the progress tracker used by the engine.
func (e *Engine) Tracker() *progress.Tracker {
	return e.tracker
}

func (e *Engine) process(ctx context.Context, id patent.DocumentID) (fields patent.Fields, err error) {
	e.tracker.Visit(int(id))
	url := e.cfg.URLFor(id)
	logger := e.logger.With(zap.Int("document", int(id)))

	ctx, span := tracer.Start(ctx, "crawler.document", trace.WithAttributes(
		attribute.Int("rupat.document", int(id)),
		attribute.String("url.full", url),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	resp, err := e.fetch(ctx, id, url, logger)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return patent.Fields{}, fmt.Errorf("crawl cancelled at document %d: %w", id, ctxErr)
		}
		if e.cfg.OnFetchError == FailurePolicySkip {
			logger.Warn("document skipped", zap.String("url", url), zap.Error(err))
			metrics.ObserveDocument(OutcomeSkipped)
			e.tracker.Complete(true)
			span.SetAttributes(attribute.String("rupat.outcome", OutcomeSkipped))
			return patent.Missing(), nil
		}
		metrics.ObserveDocument(OutcomeFailed)
		return patent.Fields{}, fmt.Errorf("document %d: %w", id, err)
	}

	if err := e.archivePage(ctx, id, resp.Body, logger); err != nil {
		metrics.ObserveDocument(OutcomeFailed)
		return patent.Fields{}, fmt.Errorf("document %d: %w", id, err)
	}

	fields = e.extractor.Extract(string(resp.Body))
	misses := fields.Misses()
	span.SetAttributes(
		attribute.String("rupat.outcome", OutcomeOK),
		attribute.StringSlice("rupat.missing_fields", misses),
	)
	metrics.ObserveExtraction(misses, len(fields.AuthorCountries))
	metrics.ObserveDocument(OutcomeOK)
	e.tracker.Complete(false)
	logger.Debug("document extracted",
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(resp.Body)),
		zap.Strings("missing_fields", misses),
	)
	return fields, nil
}

// fetch issues the request, pausing before every attempt and backing off
// further before each retry.
func (e *Engine) fetch(ctx context.Context, id patent.DocumentID, url string, logger *zap.Logger) (FetchResponse, error) {
	for attempt := 0; ; attempt++ {
		wait := e.cfg.Delay
		if attempt > 0 {
			wait += e.retry.Backoff(attempt - 1)
			metrics.ObserveRetry(url)
		}
		e.pause(ctx, wait)
		if err := ctx.Err(); err != nil {
			return FetchResponse{}, err
		}

		start := time.Now()
		resp, err := e.fetcher.Fetch(ctx, FetchRequest{DocumentID: id, URL: url})
		metrics.ObserveFetch(url, time.Since(start))
		if err == nil {
			return resp, nil
		}
		if !e.retry.ShouldRetry(err, attempt) {
			return FetchResponse{}, err
		}
		logger.Warn("fetch failed, retrying", zap.Int("attempt", attempt+1), zap.Error(err))
	}
}

func (e *Engine) pause(ctx context.Context, delay time.Duration) {
	if delay <= 0 {
		return
	}
	start := time.Now()
	e.pauser.Pause(ctx, delay)
	metrics.ObservePause(time.Since(start))
}

func (e *Engine) archivePage(ctx context.Context, id patent.DocumentID, body []byte, logger *zap.Logger) error {
	if e.archive == nil || e.hasher == nil {
		return nil
	}
	digest, err := e.hasher.Hash(body)
	if err != nil {
		return fmt.Errorf("hash page: %w", err)
	}
	objectPath := path.Join(e.cfg.ArchivePrefix, fmt.Sprintf("%d", id), digest+".html")
	uri, err := e.archive.PutObject(ctx, objectPath, archiveContentType, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("archive page: %w", err)
	}
	logger.Debug("page archived", zap.String("uri", uri))
	return nil
}
