// Package config loads and validates crawler configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/JakeFAU/rupat-crawler/internal/crawler"
	"github.com/JakeFAU/rupat-crawler/internal/logging"
	"github.com/JakeFAU/rupat-crawler/internal/output"
	"github.com/JakeFAU/rupat-crawler/internal/patent"
	"github.com/JakeFAU/rupat-crawler/internal/telemetry"
)

// EnvPrefix prefixes every environment override, e.g. RUPAT_CRAWLER_DELAY=5s.
const EnvPrefix = "RUPAT"

// Config captures all knobs loaded via Viper.
type Config struct {
	Range     patent.Range     `mapstructure:"range"`
	Crawler   CrawlerConfig    `mapstructure:"crawler"`
	Output    OutputConfig     `mapstructure:"output"`
	Archive   ArchiveConfig    `mapstructure:"archive"`
	PubSub    PubSubConfig     `mapstructure:"pubsub"`
	Status    StatusConfig     `mapstructure:"status"`
	Logging   logging.Config   `mapstructure:"logging"`
	Telemetry telemetry.Config `mapstructure:"telemetry"`
}

// CrawlerConfig governs how documents are requested.
type CrawlerConfig struct {
	URLTemplate    string        `mapstructure:"url_template"`
	Delay          time.Duration `mapstructure:"delay"`
	UserAgent      string        `mapstructure:"user_agent"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	MaxRetries     int           `mapstructure:"max_retries"`
	OnFetchError   string        `mapstructure:"on_fetch_error"`
}

// OutputConfig sets where the table and tally artifacts go.
type OutputConfig struct {
	Dir             string `mapstructure:"dir"`
	TablePrefix     string `mapstructure:"table_prefix"`
	TallyPrefix     string `mapstructure:"tally_prefix"`
	TimestampLayout string `mapstructure:"timestamp_layout"`
	Timezone        string `mapstructure:"timezone"`
	NoClobber       bool   `mapstructure:"no_clobber"`
	GCSBucket       string `mapstructure:"gcs_bucket"`
	GCSPrefix       string `mapstructure:"gcs_prefix"`
}

// ArchiveConfig controls the optional raw page archive.
type ArchiveConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	Dir          string `mapstructure:"dir"`
	Prefix       string `mapstructure:"prefix"`
	DigestLength int    `mapstructure:"digest_length"`
}

// PubSubConfig holds the completion notice destination.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// Enabled reports whether a notice should be published.
func (c PubSubConfig) Enabled() bool {
	return c.ProjectID != "" && c.Topic != ""
}

// StatusConfig controls the optional status server.
type StatusConfig struct {
	Addr string `mapstructure:"addr"`
}

// flagKeys maps CLI flag names to config keys.
var flagKeys = map[string]string{
	"start": "range.start",
	"end":   "range.end",
	"delay": "crawler.delay",
	"out":   "output.dir",
	"dev":   "logging.development",
}

// Load builds a Config from defaults, an optional file, the environment and
// any flags in flags that map to a config key. Flags win over everything.
func Load(path string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	if flags != nil {
		for name, key := range flagKeys {
			flag := flags.Lookup(name)
			if flag == nil {
				continue
			}
			if err := v.BindPFlag(key, flag); err != nil {
				return Config{}, fmt.Errorf("bind flag %q: %w", name, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("range.start", 0)
	v.SetDefault("range.end", 0)
	v.SetDefault("crawler.url_template", crawler.DefaultURLTemplate)
	v.SetDefault("crawler.delay", crawler.DefaultDelay)
	v.SetDefault("crawler.user_agent", "rupat-crawler/0.1")
	v.SetDefault("crawler.request_timeout", 30*time.Second)
	v.SetDefault("crawler.max_retries", 0)
	v.SetDefault("crawler.on_fetch_error", string(crawler.FailurePolicyAbort))
	v.SetDefault("output.dir", ".")
	v.SetDefault("output.table_prefix", output.DefaultTablePrefix)
	v.SetDefault("output.tally_prefix", output.DefaultTallyPrefix)
	v.SetDefault("output.timestamp_layout", output.DefaultTimestampLayout)
	v.SetDefault("output.timezone", "Local")
	v.SetDefault("output.no_clobber", true)
	v.SetDefault("output.gcs_bucket", "")
	v.SetDefault("output.gcs_prefix", "")
	v.SetDefault("archive.enabled", false)
	v.SetDefault("archive.dir", "archive")
	v.SetDefault("archive.prefix", "pages")
	v.SetDefault("archive.digest_length", 0)
	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.topic", "")
	v.SetDefault("status.addr", "")
	v.SetDefault("logging.development", false)
	v.SetDefault("logging.level", "")
	v.SetDefault("telemetry.service_name", "rupat-crawler")
	v.SetDefault("telemetry.version", "dev")
	v.SetDefault("telemetry.trace_project_id", "")
	v.SetDefault("telemetry.sample_ratio", 1.0)
}

// Validate enforces required values and reasonable limits. The range is
// checked separately by ValidateRange since only the crawl command needs one.
func (c Config) Validate() error {
	if err := crawler.ValidateURLTemplate(c.Crawler.URLTemplate); err != nil {
		return err
	}
	if c.Crawler.Delay < 0 {
		return errors.New("crawler.delay must be >= 0")
	}
	if c.Crawler.RequestTimeout <= 0 {
		return errors.New("crawler.request_timeout must be > 0")
	}
	if c.Crawler.MaxRetries < 0 {
		return errors.New("crawler.max_retries must be >= 0")
	}
	switch crawler.FailurePolicy(c.Crawler.OnFetchError) {
	case crawler.FailurePolicyAbort, crawler.FailurePolicySkip:
	default:
		return fmt.Errorf("crawler.on_fetch_error must be %q or %q, got %q",
			crawler.FailurePolicyAbort, crawler.FailurePolicySkip, c.Crawler.OnFetchError)
	}
	if c.Output.Dir == "" {
		return errors.New("output.dir is required")
	}
	if c.Output.TablePrefix == "" || c.Output.TallyPrefix == "" {
		return errors.New("output.table_prefix and output.tally_prefix are required")
	}
	if c.Output.TimestampLayout == "" {
		return errors.New("output.timestamp_layout is required")
	}
	if _, err := time.LoadLocation(c.Output.Timezone); err != nil {
		return fmt.Errorf("output.timezone: %w", err)
	}
	if c.Archive.Enabled && c.Archive.Dir == "" {
		return errors.New("archive.dir must be set when the archive is enabled")
	}
	if c.Archive.DigestLength < 0 {
		return errors.New("archive.digest_length must be >= 0")
	}
	if (c.PubSub.ProjectID == "") != (c.PubSub.Topic == "") {
		return errors.New("pubsub.project_id and pubsub.topic must be set together")
	}
	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		return errors.New("telemetry.sample_ratio must be within [0, 1]")
	}
	return nil
}

// ValidateRange checks the document range.
func (c Config) ValidateRange() error {
	return c.Range.Validate()
}

// EngineConfig converts the loaded settings into an engine config.
func (c Config) EngineConfig(runID string) crawler.Config {
	return crawler.Config{
		RunID:         runID,
		Range:         c.Range,
		URLTemplate:   c.Crawler.URLTemplate,
		Delay:         c.Crawler.Delay,
		MaxRetries:    c.Crawler.MaxRetries,
		OnFetchError:  crawler.FailurePolicy(c.Crawler.OnFetchError),
		ArchivePrefix: c.Archive.Prefix,
	}
}

// WriterConfig converts the loaded settings into a writer config.
func (c Config) WriterConfig() output.Config {
	return output.Config{
		TablePrefix:     c.Output.TablePrefix,
		TallyPrefix:     c.Output.TallyPrefix,
		TimestampLayout: c.Output.TimestampLayout,
	}
}
