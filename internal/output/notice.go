package output

import (
	"time"

	"github.com/JakeFAU/rupat-crawler/internal/patent"
)

// Notice announces a finished run and where its artifacts went.
type Notice struct {
	RunID      string        `json:"run_id"`
	Start      int           `json:"start"`
	End        int           `json:"end"`
	Rows       int           `json:"rows"`
	Skipped    int           `json:"skipped"`
	Tally      *patent.Tally `json:"tally"`
	Artifacts  Artifacts     `json:"artifacts"`
	FinishedAt time.Time     `json:"finished_at"`
}

// NewNotice summarises a written run.
func NewNotice(
	runID string,
	rng patent.Range,
	table *patent.Table,
	skipped int,
	tally *patent.Tally,
	artifacts Artifacts,
	finishedAt time.Time,
) Notice {
	if tally == nil {
		tally = table.Tally()
	}
	return Notice{
		RunID:      runID,
		Start:      int(rng.Start),
		End:        int(rng.End),
		Rows:       table.Len(),
		Skipped:    skipped,
		Tally:      tally,
		Artifacts:  artifacts,
		FinishedAt: finishedAt.UTC(),
	}
}
