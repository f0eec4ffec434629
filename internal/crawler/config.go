package crawler

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/JakeFAU/rupat-crawler/internal/patent"
)

// DefaultURLTemplate addresses the FIPS RUPAT document viewer.
const DefaultURLTemplate = "https://www1.fips.ru/registers-doc-view/fips_servlet?DB=RUPAT&rn=1&DocNumber=%d&TypeFile=html"

// DefaultDelay is the courtesy pause taken before every request.
const DefaultDelay = 3 * time.Second

// Config holds engine settings. It is decoupled from Viper so the engine can
// be driven from tests or other entry points.
type Config struct {
	RunID        string
	Range        patent.Range
	URLTemplate  string
	Delay        time.Duration
	MaxRetries   int
	OnFetchError FailurePolicy
	// ArchivePrefix is the object prefix for raw pages. Only used when the
	// engine has an archive store.
	ArchivePrefix string
}

// URLFor renders the document URL for id.
func (c Config) URLFor(id patent.DocumentID) string {
	return fmt.Sprintf(c.URLTemplate, int(id))
}

// Validate checks the configuration before a run starts.
func (c Config) Validate() error {
	if err := c.Range.Validate(); err != nil {
		return err
	}
	if err := ValidateURLTemplate(c.URLTemplate); err != nil {
		return err
	}
	if c.Delay < 0 {
		return errors.New("crawler.delay must be >= 0")
	}
	if c.MaxRetries < 0 {
		return errors.New("crawler.max_retries must be >= 0")
	}
	switch c.OnFetchError {
	case FailurePolicyAbort, FailurePolicySkip:
	default:
		return fmt.Errorf("crawler.on_fetch_error must be %q or %q, got %q",
			FailurePolicyAbort, FailurePolicySkip, c.OnFetchError)
	}
	return nil
}

// ValidateURLTemplate requires exactly one %d verb and an http(s) URL.
func ValidateURLTemplate(tmpl string) error {
	if strings.TrimSpace(tmpl) == "" {
		return errors.New("crawler.url_template is required")
	}
	verbs := strings.ReplaceAll(tmpl, "%%", "")
	if strings.Count(verbs, "%") != 1 || !strings.Contains(verbs, "%d") {
		return fmt.Errorf("crawler.url_template must contain exactly one %%d verb: %q", tmpl)
	}
	u, err := url.Parse(fmt.Sprintf(tmpl, 0))
	if err != nil {
		return fmt.Errorf("crawler.url_template: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("crawler.url_template must use http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("crawler.url_template has no host: %q", tmpl)
	}
	return nil
}
