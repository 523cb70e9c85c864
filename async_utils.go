package tripweaver

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/ZanzyTHEbar/tripweaver-genkit/internal/eventbus"
	"github.com/ZanzyTHEbar/tripweaver-genkit/pkg/trip"
)

var errCancelledByUser = errors.New("execution cancelled by user")

// runEntry is the registry record of one run, sync or async.
type runEntry struct {
	snapshot *PlanningState          // last recorded state, cloned on every step
	cancel   context.CancelCauseFunc // nil for runs not started by RunAsync
	done     chan struct{}           // closed once by finishRun
	err      error                   // terminal error, valid after done
	updated  time.Time
}

// RunStatus is the status of an async run.
type RunStatus struct {
	RunID            string        `json:"run_id"`
	Destination      string        `json:"destination"`
	CurrentStep      ProcessState  `json:"current_step"`
	StartTime        time.Time     `json:"start_time"`
	Duration         time.Duration `json:"duration"`
	IsComplete       bool          `json:"is_complete"`
	HasError         bool          `json:"has_error"`
	ErrorMessage     string        `json:"error_message,omitempty"`
	RequiresApproval bool          `json:"requires_approval"`
	ApprovalToken    string        `json:"approval_token,omitempty"`
}

// recordStep stores a snapshot of state in the registry.
func (p *Planner) recordStep(state *PlanningState) {
	snap := state.Clone()
	p.runsMutex.Lock()
	defer p.runsMutex.Unlock()
	entry, ok := p.runs[state.RunID]
	if !ok {
		entry = &runEntry{done: make(chan struct{})}
		p.runs[state.RunID] = entry
	}
	entry.snapshot = snap
	entry.updated = time.Now()
}

// finishRun records the final state of a run and releases its waiters.
// Runs that finished more than RunRetention ago are dropped here.
func (p *Planner) finishRun(state *PlanningState, err error) {
	p.recordStep(state)
	p.runsMutex.Lock()
	defer p.runsMutex.Unlock()
	entry := p.runs[state.RunID]
	entry.err = err
	select {
	case <-entry.done:
	default:
		close(entry.done)
	}
	if n := p.evictLocked(p.config.RunRetention); n > 0 {
		log.Printf("Evicted finished runs (count: %d, retention: %s)", n, p.config.RunRetention)
	}
}

// evictLocked drops terminal runs last updated before olderThan.
// Callers hold runsMutex for writing.
func (p *Planner) evictLocked(olderThan time.Duration) int {
	now := time.Now()
	count := 0
	for id, e := range p.runs {
		if e.snapshot.IsTerminal() && now.Sub(e.updated) > olderThan {
			delete(p.runs, id)
			count++
		}
	}
	return count
}

// RunAsync starts a run in the background and returns its ID. The run is
// detached from ctx; use CancelRun to stop it.
func (p *Planner) RunAsync(ctx context.Context, req trip.Request) (string, error) {
	if err := req.Validate(); err != nil {
		return "", NewValidationError("invalid trip request", err)
	}
	runID := uuid.New().String()
	state := NewPlanningState(runID, req)
	// Keep ctx values (trace IDs) but not its deadline or cancellation.
	asyncCtx, cancel := context.WithCancelCause(context.WithoutCancel(ctx))

	entry := &runEntry{snapshot: state.Clone(), cancel: cancel, done: make(chan struct{}), updated: time.Now()}
	p.runsMutex.Lock()
	p.runs[runID] = entry
	p.runsMutex.Unlock()

	go func() {
		defer cancel(nil)
		err := p.execute(asyncCtx, state, p.recordStep)
		// Tell a CancelRun apart from other cancellations in the error message.
		if err != nil && HasCode(err, ErrCodeCancelled) {
			if cause := context.Cause(asyncCtx); errors.Is(cause, errCancelledByUser) {
				err = NewCancelledError(string(state.CurrentStep), cause)
			}
		}
		p.finishRun(state, err)
	}()
	return runID, nil
}

func (p *Planner) entry(runID string) (*runEntry, error) {
	p.runsMutex.RLock()
	defer p.runsMutex.RUnlock()
	e, ok := p.runs[runID]
	if !ok {
		return nil, NewRunNotFoundError(runID)
	}
	return e, nil
}

// RunStatus reports the latest known state of a run.
func (p *Planner) RunStatus(runID string) (*RunStatus, error) {
	p.runsMutex.RLock()
	defer p.runsMutex.RUnlock()
	e, ok := p.runs[runID]
	if !ok {
		return nil, NewRunNotFoundError(runID)
	}
	s := e.snapshot
	status := &RunStatus{
		RunID:            runID,
		Destination:      s.Request.Destination,
		CurrentStep:      s.CurrentStep,
		StartTime:        s.StartTime,
		Duration:         s.TotalDuration(),
		IsComplete:       s.CurrentStep == StateCompleted,
		HasError:         s.CurrentStep == StateFailed || s.CurrentStep == StateCancelled,
		ErrorMessage:     s.Error,
		RequiresApproval: s.RequiresApproval,
		ApprovalToken:    s.ApprovalToken,
	}
	return status, nil
}

// RunResult returns the final state of a finished run. A failed or
// cancelled run returns its partial state together with the error.
func (p *Planner) RunResult(runID string) (*PlanningState, error) {
	e, err := p.entry(runID)
	if err != nil {
		return nil, err
	}
	select {
	case <-e.done:
	default:
		// snapshot is swapped by recordStep, read it under the lock
		p.runsMutex.RLock()
		step := e.snapshot.CurrentStep
		p.runsMutex.RUnlock()
		return nil, fmt.Errorf("run is still in progress (current step: %s)", step)
	}
	p.runsMutex.RLock()
	defer p.runsMutex.RUnlock()
	return e.snapshot.Clone(), e.err
}

// Wait blocks until the run finishes or ctx ends.
func (p *Planner) Wait(ctx context.Context, runID string) (*PlanningState, error) {
	e, err := p.entry(runID)
	if err != nil {
		return nil, err
	}
	select {
	case <-e.done:
		return p.RunResult(runID)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// CancelRun cancels a running async run. It returns false when the run has
// already finished.
func (p *Planner) CancelRun(runID string) (bool, error) {
	e, err := p.entry(runID)
	if err != nil {
		return false, err
	}
	select {
	case <-e.done:
		return false, nil
	default:
	}
	// Sync runs belong to their caller's context.
	if e.cancel == nil {
		return false, fmt.Errorf("cannot cancel run '%s': not started by RunAsync", runID)
	}
	e.cancel(errCancelledByUser)

	if eb := p.EventBus(); eb != nil {
		_ = eb.Publish(context.Background(), eventbus.NewRunEvent(eventbus.EventRunCancelled, runID, "", "cancel requested"))
	}
	return true, nil
}

// ListRuns returns the current step of every known run.
func (p *Planner) ListRuns() map[string]ProcessState {
	p.runsMutex.RLock()
	defer p.runsMutex.RUnlock()
	out := make(map[string]ProcessState, len(p.runs))
	for id, e := range p.runs {
		out[id] = e.snapshot.CurrentStep
	}
	return out
}

// CleanupCompletedRuns forgets finished runs older than olderThan and
// returns how many were removed. Finishing runs already evict past
// RunRetention; this is for callers that want a tighter window.
func (p *Planner) CleanupCompletedRuns(olderThan time.Duration) int {
	p.runsMutex.Lock()
	defer p.runsMutex.Unlock()
	return p.evictLocked(olderThan)
}

// PendingApprovals lists runs waiting on a TokenApprover.
func (p *Planner) PendingApprovals() []PendingApproval {
	if t, ok := p.approvals.(*TokenApprover); ok {
		return t.Pending()
	}
	return nil
}

// ResolveApproval answers the approval request identified by token.
func (p *Planner) ResolveApproval(token string, decision Decision) error {
	t, ok := p.approvals.(*TokenApprover)
	if !ok {
		return NewApprovalError("approval handler does not accept external decisions", nil)
	}
	return t.Resolve(token, decision)
}
