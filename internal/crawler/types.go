package crawler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/JakeFAU/rupat-crawler/internal/patent"
)

// FetchRequest describes a single document page retrieval.
type FetchRequest struct {
	DocumentID patent.DocumentID
	URL        string
	Headers    http.Header
}

// FetchResponse captures fetch results.
type FetchResponse struct {
	URL        string
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
}

// StatusError reports a response whose HTTP status was not 2xx.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.Code, e.URL)
}

// FailurePolicy decides what happens to a document whose fetch failed for good.
type FailurePolicy string

const (
	// FailurePolicyAbort stops the run on the first unrecoverable fetch error.
	FailurePolicyAbort FailurePolicy = "abort"
	// FailurePolicySkip records the document with absence values and moves on.
	FailurePolicySkip FailurePolicy = "skip"
)

// Document outcomes used in logs and metrics.
const (
	OutcomeOK      = "ok"
	OutcomeSkipped = "skipped"
	OutcomeFailed  = "failed"
)
