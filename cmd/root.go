// Package cmd defines and implements the CLI commands for the rupat-crawler executable.
package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/rupat-crawler/internal/app"
	"github.com/JakeFAU/rupat-crawler/internal/config"
	"github.com/JakeFAU/rupat-crawler/internal/crawler"
	"github.com/JakeFAU/rupat-crawler/internal/logging"
	"github.com/JakeFAU/rupat-crawler/internal/output"
)

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// App defines the services commands use. Tests inject a fake through newApp.
type App interface {
	Close()
	GetConfig() config.Config
	GetLogger() *zap.Logger
	GetClock() crawler.Clock
	GetIDGenerator() crawler.IDGenerator
	GetFetcher() crawler.Fetcher
	GetWriter() *output.Writer
	GetArchive() (crawler.BlobStore, crawler.Hasher)
	GetPublisher() crawler.Publisher
}

// newApp is the application factory. It's a variable so tests can replace it.
var newApp = func(ctx context.Context, cfg config.Config) (App, error) {
	return app.New(ctx, cfg)
}

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	var cfgFile string

	cmd := &cobra.Command{
		Use:   "rupat-crawler",
		Short: "Scrapes bibliographic data from the FIPS RUPAT patent registry.",
		Long: `rupat-crawler walks a range of RUPAT document numbers one page at a
time, extracts the application date, industry codes, applicants, authors and
author countries of each patent, and writes a CSV table plus a per-country
author tally.`,
		SilenceUsage: true,

		// Runs after flags are parsed and before the subcommand's RunE, so
		// flag values take part in config loading.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile, cmd.Flags())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			appInstance, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}

			ctx := context.WithValue(cmd.Context(), appKey, appInstance)
			cmd.SetContext(ctx)
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML, JSON or TOML)")
	cmd.PersistentFlags().Bool("dev", false, "development logging")

	cmd.AddCommand(newCrawlCmd())
	cmd.AddCommand(newTallyCmd())

	return cmd
}

// Execute runs the CLI and exits non-zero on failure.
func Execute(ctx context.Context) {
	if err := run(ctx, newRootCmd()); err != nil {
		logger, lerr := logging.New(logging.Config{})
		if lerr != nil {
			logger = zap.NewExample()
		}
		logger.Fatal("Command execution failed", zap.Error(err))
	}
}

// run executes root and closes the App it built, also when the command
// failed (cobra skips post-run hooks after an error).
func run(ctx context.Context, root *cobra.Command) error {
	executed, err := root.ExecuteContextC(ctx)
	if executed != nil && executed.Context() != nil {
		if appInstance, ok := executed.Context().Value(appKey).(App); ok && appInstance != nil {
			appInstance.Close()
		}
	}
	return err
}

func resolveApp(ctx context.Context) (App, error) {
	appInstance, ok := ctx.Value(appKey).(App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}
