package progress

import (
	"sync"
	"time"
)

// State is the lifecycle position of a run.
type State string

// Supported run states.
const (
	StatePending State = "pending"
	StateRunning State = "running"
	StateDone    State = "done"
	StateFailed  State = "failed"
)

// Snapshot is a point-in-time copy of run progress.
type Snapshot struct {
	RunID     string    `json:"run_id"`
	State     State     `json:"state"`
	Start     int       `json:"start"`
	End       int       `json:"end"`
	Total     int       `json:"total"`
	Processed int       `json:"processed"`
	Skipped   int       `json:"skipped"`
	Current   int       `json:"current"`
	Error     string    `json:"error,omitempty"`
	StartedAt time.Time `json:"started_at,omitzero"`
	UpdatedAt time.Time `json:"updated_at,omitzero"`
}

// Tracker records run progress. A nil *Tracker discards all updates.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
	now  func() time.Time
}

// NewTracker returns a tracker in the pending state.
func NewTracker(now func() time.Time) *Tracker {
	if now == nil {
		now = time.Now
	}
	return &Tracker{snap: Snapshot{State: StatePending}, now: now}
}

// Begin marks the run as started over [start, end).
func (t *Tracker) Begin(runID string, start, end int) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	ts := t.now()
	t.snap = Snapshot{
		RunID:     runID,
		State:     StateRunning,
		Start:     start,
		End:       end,
		Total:     max(end-start, 0),
		Current:   start,
		StartedAt: ts,
		UpdatedAt: ts,
	}
}

// Visit records the document currently being fetched.
func (t *Tracker) Visit(id int) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.snap.Current = id
	t.snap.UpdatedAt = t.now()
}

// Complete counts a finished document.
func (t *Tracker) Complete(skipped bool) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.snap.Processed++
	if skipped {
		t.snap.Skipped++
	}
	t.snap.UpdatedAt = t.now()
}

// Finish moves the run to its terminal state.
func (t *Tracker) Finish(err error) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.snap.State = StateDone
	if err != nil {
		t.snap.State = StateFailed
		t.snap.Error = err.Error()
	}
	t.snap.UpdatedAt = t.now()
}

// Snapshot returns a copy of the current progress.
func (t *Tracker) Snapshot() Snapshot {
	if t == nil {
		return Snapshot{State: StatePending}
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.snap
}
