package server

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/copyleftdev/tundr-planner/internal/optimization/localsearch"
)

// Status is the lifecycle state of a solver run.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Finished reports whether the run can no longer change.
func (s Status) Finished() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

var (
	// ErrRunNotFound is returned for unknown run IDs.
	ErrRunNotFound = errors.New("run not found")
	// ErrRunFinished is returned when cancelling a run that already ended.
	ErrRunFinished = errors.New("run already finished")
)

// Run is the progress of one solve as reported by the operations API.
type Run struct {
	ID          string     `json:"id"`
	Problem     string     `json:"problem"`
	Status      Status     `json:"status"`
	StartTime   time.Time  `json:"start_time"`
	EndTime     *time.Time `json:"end_time,omitempty"`
	LastUpdated time.Time  `json:"last_updated"`

	StartingScore string `json:"starting_score,omitempty"`
	BestScore     string `json:"best_score,omitempty"`
	// Phase and Step locate the latest best solution.
	Phase        int `json:"phase"`
	Step         int `json:"step"`
	Improvements int `json:"improvements"`

	Phases []localsearch.PhaseResult `json:"phases,omitempty"`
	Error  string                    `json:"error,omitempty"`
}

type runEntry struct {
	run  Run
	stop func()
}

// Runs tracks solver runs. It is fed by best solution events and final
// results and is safe for concurrent use.
type Runs struct {
	mu   sync.RWMutex
	runs map[string]*runEntry
	now  func() time.Time
}

// NewRuns creates an empty registry.
func NewRuns() *Runs {
	return &Runs{runs: make(map[string]*runEntry), now: time.Now}
}

// Register adds a pending run. stop is called when the run is cancelled
// through the API; it may be nil.
func (rs *Runs) Register(id, problem string, stop func()) Run {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	now := rs.now()
	e := &runEntry{
		run:  Run{ID: id, Problem: problem, Status: StatusPending, StartTime: now, LastUpdated: now},
		stop: stop,
	}
	rs.runs[id] = e
	return e.run
}

func (rs *Runs) update(id string, f func(r *Run)) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	e, ok := rs.runs[id]
	if !ok || e.run.Status.Finished() {
		return
	}
	f(&e.run)
	e.run.LastUpdated = rs.now()
}

// Start marks a run as running.
func (rs *Runs) Start(id string) {
	rs.update(id, func(r *Run) { r.Status = StatusRunning })
}

// Observe records a new best solution. It has the signature expected by
// localsearch.OnBestSolutionChanged.
func (rs *Runs) Observe(e localsearch.BestSolutionEvent) {
	rs.update(e.RunID, func(r *Run) {
		r.Status = StatusRunning
		r.BestScore = e.Score.String()
		r.Phase = e.PhaseIndex
		r.Step = e.StepIndex
		r.Improvements++
	})
}

// Finish records the outcome of a solve.
func (rs *Runs) Finish(id string, res *localsearch.Result, err error) {
	rs.update(id, func(r *Run) {
		end := rs.now()
		r.EndTime = &end
		if res != nil {
			r.StartingScore = res.StartingScore.String()
			if res.BestScore.IsSet() {
				r.BestScore = res.BestScore.String()
			}
			r.Phases = res.Phases
		}
		switch {
		case err != nil:
			r.Status = StatusFailed
			r.Error = err.Error()
		case res != nil && res.Cancelled():
			r.Status = StatusCancelled
		default:
			r.Status = StatusCompleted
		}
	})
}

// Cancel asks a run to stop. The run turns cancelled once its solve returns.
func (rs *Runs) Cancel(id string) error {
	rs.mu.RLock()
	e, ok := rs.runs[id]
	var stop func()
	var finished bool
	if ok {
		stop, finished = e.stop, e.run.Status.Finished()
	}
	rs.mu.RUnlock()
	switch {
	case !ok:
		return ErrRunNotFound
	case finished:
		return ErrRunFinished
	}
	if stop != nil {
		stop()
	}
	return nil
}

// CancelAll stops every unfinished run.
func (rs *Runs) CancelAll() {
	rs.mu.RLock()
	var stops []func()
	for _, e := range rs.runs {
		if !e.run.Status.Finished() && e.stop != nil {
			stops = append(stops, e.stop)
		}
	}
	rs.mu.RUnlock()
	for _, stop := range stops {
		stop()
	}
}

// Get returns a copy of a run.
func (rs *Runs) Get(id string) (Run, bool) {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	e, ok := rs.runs[id]
	if !ok {
		return Run{}, false
	}
	return e.run, true
}

// List returns copies of all runs, oldest first.
func (rs *Runs) List() []Run {
	rs.mu.RLock()
	out := make([]Run, 0, len(rs.runs))
	for _, e := range rs.runs {
		out = append(out, e.run)
	}
	rs.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartTime.Equal(out[j].StartTime) {
			return out[i].ID < out[j].ID
		}
		return out[i].StartTime.Before(out[j].StartTime)
	})
	return out
}
