package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/rupat-crawler/internal/api"
	"github.com/JakeFAU/rupat-crawler/internal/crawler"
	"github.com/JakeFAU/rupat-crawler/internal/extract"
	"github.com/JakeFAU/rupat-crawler/internal/output"
	"github.com/JakeFAU/rupat-crawler/internal/patent"
	"github.com/JakeFAU/rupat-crawler/internal/progress"
)

// newCrawlCmd creates the 'crawl' subcommand, which scrapes a document range
// and writes the table and tally artifacts.
func newCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Scrape a range of RUPAT documents",
		Long: `Fetches every document number in [start, end) in ascending order,
pausing before each request, and writes the resulting table and country tally.
The tally is also printed to stdout.`,
		Args: cobra.NoArgs,
		RunE: runCrawlCommand,
	}
	cmd.Flags().Int("start", 0, "first document number (inclusive)")
	cmd.Flags().Int("end", 0, "last document number (exclusive)")
	cmd.Flags().Duration("delay", crawler.DefaultDelay, "pause before every request")
	cmd.Flags().String("out", ".", "directory for the table and tally files")
	return cmd
}

func runCrawlCommand(cmd *cobra.Command, _ []string) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	cfg := appInstance.GetConfig()
	if err := cfg.ValidateRange(); err != nil {
		return err
	}
	logger := appInstance.GetLogger()

	runID, err := appInstance.GetIDGenerator().NewID()
	if err != nil {
		return fmt.Errorf("generate run id: %w", err)
	}
	tracker := progress.NewTracker(appInstance.GetClock().Now)

	ctx, cancel := context.WithCancel(cmd.Context())
	var wg sync.WaitGroup
	defer func() {
		cancel()
		wg.Wait()
	}()
	if cfg.Status.Addr != "" {
		srv := api.NewServer(tracker, logger.Named("api"))
		wg.Go(func() {
			if err := srv.Serve(ctx, cfg.Status.Addr); err != nil {
				logger.Warn("status server stopped", zap.Error(err))
			}
		})
	}

	archive, hasher := appInstance.GetArchive()
	engine := crawler.NewEngine(
		cfg.EngineConfig(runID),
		appInstance.GetFetcher(),
		extract.New(),
		archive,
		hasher,
		crawler.NewExponentialRetryPolicy(cfg.Crawler.MaxRetries),
		tracker,
		logger.Named("crawler"),
	)

	table, err := engine.Run(ctx)
	if err != nil {
		return fmt.Errorf("run crawler: %w", err)
	}

	tally := table.Tally()
	artifacts, writeErr := appInstance.GetWriter().Write(ctx, table, tally)
	if writeErr != nil && !errors.Is(writeErr, output.ErrMirror) {
		return fmt.Errorf("write artifacts: %w", writeErr)
	}
	if err := printTally(cmd.OutOrStdout(), tally); err != nil {
		return err
	}

	if publisher := appInstance.GetPublisher(); publisher != nil {
		notice := output.NewNotice(runID, cfg.Range, table, tracker.Snapshot().Skipped, tally, artifacts,
			appInstance.GetClock().Now())
		msgID, err := publisher.Publish(ctx, cfg.PubSub.Topic, notice)
		if err != nil {
			return fmt.Errorf("publish run notice: %w", err)
		}
		logger.Info("run notice published", zap.String("run_id", runID), zap.String("message_id", msgID))
	}

	if writeErr != nil {
		return fmt.Errorf("write artifacts: %w", writeErr)
	}
	logger.Info("Crawl command finished.", zap.String("run_id", runID))
	return nil
}

func printTally(w io.Writer, tally *patent.Tally) error {
	data, err := tally.MarshalJSON()
	if err != nil {
		return fmt.Errorf("encode tally: %w", err)
	}
	if _, err := fmt.Fprintf(w, "%s\n", data); err != nil {
		return fmt.Errorf("print tally: %w", err)
	}
	return nil
}
