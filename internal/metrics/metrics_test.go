package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestSanitizeSite(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{"registry url", "https://www1.fips.ru/registers-doc-view/fips_servlet?DB=RUPAT&DocNumber=1", "www1.fips.ru"},
		{"mixed case", "https://Example.com/path", "example.com"},
		{"no scheme", "example.com/path", "example.com"},
		{"host with port", "127.0.0.1:8080", "127.0.0.1"},
		{"invalid url", "http://%", "unknown"},
		{"empty string", "", "unknown"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := SanitizeSite(tc.input); got != tc.expected {
				t.Errorf("SanitizeSite(%q) = %q; want %q", tc.input, got, tc.expected)
			}
		})
	}
}

func TestInitIsIdempotent(t *testing.T) {
	Init()
	Init()

	if documentsTotal == nil || fetchDurationSeconds == nil || extractionMissesTotal == nil ||
		authorCountriesTotal == nil || pauseSecondsTotal == nil || runsTotal == nil {
		t.Fatal("Init() did not initialize metrics collectors")
	}
}

func TestObserveExtraction(t *testing.T) {
	Init()

	before := testutil.ToFloat64(extractionMissesTotal.WithLabelValues("applicants"))
	beforeCountries := testutil.ToFloat64(authorCountriesTotal)

	ObserveExtraction([]string{"applicants"}, 3)
	ObserveExtraction(nil, 0)

	if got := testutil.ToFloat64(extractionMissesTotal.WithLabelValues("applicants")) - before; got != 1 {
		t.Errorf("expected one applicants miss, got %f", got)
	}
	if got := testutil.ToFloat64(authorCountriesTotal) - beforeCountries; got != 3 {
		t.Errorf("expected three countries, got %f", got)
	}
}

func TestObservePauseIgnoresZero(t *testing.T) {
	Init()

	before := testutil.ToFloat64(pauseSecondsTotal)
	ObservePause(0)
	ObservePause(1500 * time.Millisecond)
	if got := testutil.ToFloat64(pauseSecondsTotal) - before; got != 1.5 {
		t.Errorf("expected 1.5s of pauses, got %f", got)
	}
}

func FuzzSanitizeSite(f *testing.F) {
	testcases := []string{"http://example.com", "https://www1.fips.ru", "ftp://example.com"}
	for _, tc := range testcases {
		f.Add(tc)
	}
	f.Fuzz(func(t *testing.T, orig string) {
		if SanitizeSite(orig) == "" {
			t.Errorf("SanitizeSite(%q) returned an empty string", orig)
		}
	})
}
