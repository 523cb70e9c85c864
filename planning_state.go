package tripweaver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/ZanzyTHEbar/tripweaver-genkit/internal/eventbus"
	"github.com/ZanzyTHEbar/tripweaver-genkit/pkg/trip"
)

// ProcessState is a stage of the planning pipeline.
type ProcessState string

const (
	StateInit              ProcessState = "init"
	StateFetchData         ProcessState = "fetch_data"
	StateAnalyzeRisks      ProcessState = "analyze_risks"
	StateRetrieveKnowledge ProcessState = "retrieve_knowledge"
	StateCheckMajorIssues  ProcessState = "check_major_issues"
	StateApprovalDecision  ProcessState = "approval_decision"
	StateGenerateItinerary ProcessState = "generate_itinerary"
	StateOptimizeItinerary ProcessState = "optimize_itinerary"
	StateFinalize          ProcessState = "finalize"

	// Terminal states
	StateCompleted  ProcessState = "completed"
	StateFailed     ProcessState = "failed"
	StateTerminated ProcessState = "terminated"
	StateCancelled  ProcessState = "cancelled"
	// StateUnknown is reported for runs the registry cannot resolve.
	StateUnknown ProcessState = "unknown"
)

// IsTerminal reports whether no transition leaves s.
func (s ProcessState) IsTerminal() bool {
	switch s {
	case StateCompleted, StateFailed, StateTerminated, StateCancelled:
		return true
	}
	return false
}

// PlanningState is the single record threaded through one run. Stages
// accrete fields; a missing field means the producing stage degraded.
type PlanningState struct {
	RunID   string       `json:"run_id"`
	Request trip.Request `json:"trip_request"`

	Forecast     trip.Forecast           `json:"weather_data"`
	Events       []trip.Event            `json:"events_data"`
	Safety       *trip.SafetyAdvisory    `json:"safety_data,omitempty"`
	ExchangeRate *trip.ExchangeRate      `json:"exchange_rate,omitempty"`
	Knowledge    []trip.KnowledgeSnippet `json:"knowledge_snippets"`
	RiskAnalysis *trip.RiskAnalysis      `json:"risk_analysis,omitempty"`
	Itinerary    *trip.Itinerary         `json:"itinerary,omitempty"`

	RequiresApproval bool                 `json:"requires_approval"`
	ApprovalMessage  string               `json:"approval_message"`
	ApprovalPayload  trip.ApprovalPayload `json:"approval_data"`
	ApprovalRules    []string             `json:"approval_rules,omitempty"`
	ApprovalDecision Decision             `json:"approval_decision,omitempty"`
	ApprovalToken    string               `json:"approval_token,omitempty"`

	CurrentStep    ProcessState     `json:"current_step"`
	StepHistory    []ProcessState   `json:"step_history"`
	Warnings       []string         `json:"warnings"`
	Errors         []string         `json:"errors"`
	Error          string           `json:"error,omitempty"`
	SummaryMessage string           `json:"summary_message,omitempty"`
	StageDurations map[string]int64 `json:"stage_durations_ms"`
	StartTime      time.Time        `json:"start_time"`
	EndTime        time.Time        `json:"end_time,omitempty"`

	stageStart time.Time
}

// NewPlanningState creates the initial state of a run with every
// collected field empty.
func NewPlanningState(runID string, req trip.Request) *PlanningState {
	now := time.Now()
	return &PlanningState{
		RunID:          runID,
		Request:        req,
		Events:         []trip.Event{},
		Knowledge:      []trip.KnowledgeSnippet{},
		CurrentStep:    StateInit,
		StepHistory:    []ProcessState{},
		Warnings:       []string{},
		Errors:         []string{},
		StageDurations: make(map[string]int64),
		StartTime:      now,
		stageStart:     now,
	}
}

func (s *PlanningState) AddWarning(format string, args ...interface{}) {
	s.Warnings = append(s.Warnings, fmt.Sprintf(format, args...))
}

func (s *PlanningState) AddError(format string, args ...interface{}) {
	s.Errors = append(s.Errors, fmt.Sprintf(format, args...))
}

func (s *PlanningState) IsTerminal() bool {
	return s.CurrentStep.IsTerminal()
}

// enter records the time spent in the current stage and moves to next.
func (s *PlanningState) enter(next ProcessState) {
	now := time.Now()
	if !s.stageStart.IsZero() {
		s.StageDurations[string(s.CurrentStep)] += now.Sub(s.stageStart).Milliseconds()
	}
	s.StepHistory = append(s.StepHistory, s.CurrentStep)
	s.CurrentStep = next
	s.stageStart = now
	if next.IsTerminal() {
		s.EndTime = now
	}
}

// Fail moves the run to the failed state.
func (s *PlanningState) Fail(err error) {
	s.Error = err.Error()
	s.enter(StateFailed)
}

// Cancel moves the run to the cancelled state, keeping partial output.
func (s *PlanningState) Cancel(err error) {
	if err != nil {
		s.Error = err.Error()
	}
	s.enter(StateCancelled)
}

// TotalDuration is the wall time of the run so far.
func (s *PlanningState) TotalDuration() time.Duration {
	if !s.EndTime.IsZero() {
		return s.EndTime.Sub(s.StartTime)
	}
	return time.Since(s.StartTime)
}

// Result is what a caller sees: the state itself, or the failure envelope
// for a failed run.
func (s *PlanningState) Result() interface{} {
	if s.CurrentStep == StateFailed {
		return Failure{Error: s.Error, CurrentStep: StateFailed}
	}
	return s
}

// Clone returns a deep copy safe to hand to other goroutines.
func (s *PlanningState) Clone() *PlanningState {
	data, err := json.Marshal(s)
	if err != nil {
		log.Printf("Planning state clone failed (run_id: %s, error: %v)", s.RunID, err)
		cp := *s
		return &cp
	}
	var cp PlanningState
	if err := json.Unmarshal(data, &cp); err != nil {
		cp = *s
	}
	cp.stageStart = s.stageStart
	return &cp
}

// StateTransition runs one stage and returns the next state. A returned
// error is a bookkeeping fault; stage failures are recorded on the state.
type StateTransition func(ctx context.Context, eventBus eventbus.EventBus, state *PlanningState) (ProcessState, error)

// StateMachine drives a PlanningState through registered transitions.
type StateMachine struct {
	transitions map[ProcessState]StateTransition
	eventBus    eventbus.EventBus
	onStep      func(*PlanningState)
}

func NewStateMachine(eventBus eventbus.EventBus) *StateMachine {
	return &StateMachine{
		transitions: make(map[ProcessState]StateTransition),
		eventBus:    eventBus,
	}
}

func (sm *StateMachine) RegisterTransition(state ProcessState, transition StateTransition) {
	sm.transitions[state] = transition
}

// OnStep registers a hook called after every state change.
func (sm *StateMachine) OnStep(fn func(*PlanningState)) {
	sm.onStep = fn
}

func (sm *StateMachine) notify(state *PlanningState) {
	if sm.onStep != nil {
		sm.onStep(state)
	}
}

// Execute runs transitions until the state is terminal. Cancellation is
// checked between stages. The returned error is nil for completed and
// terminated runs.
func (sm *StateMachine) Execute(ctx context.Context, state *PlanningState) error {
	for !state.IsTerminal() {
		if err := ctx.Err(); err != nil {
			stage := string(state.CurrentStep)
			state.Cancel(err)
			sm.notify(state)
			return NewCancelledError(stage, err)
		}

		transition, ok := sm.transitions[state.CurrentStep]
		if !ok {
			err := NewInternalError(string(state.CurrentStep), fmt.Sprintf("no transition defined for state: %s", state.CurrentStep), nil)
			state.Fail(err)
			sm.notify(state)
			return err
		}

		stage := state.CurrentStep
		next, err := sm.safeRun(ctx, transition, state)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				state.Cancel(err)
				sm.notify(state)
				return NewCancelledError(string(stage), err)
			}
			var te *TripError
			if !errors.As(err, &te) {
				err = NewInternalError(string(stage), "stage bookkeeping failed", err)
			}
			state.Fail(err)
			sm.notify(state)
			return err
		}
		state.enter(next)
		sm.notify(state)
	}
	return nil
}

func (sm *StateMachine) safeRun(ctx context.Context, transition StateTransition, state *PlanningState) (next ProcessState, err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Stage panicked (run_id: %s, stage: %s, panic: %v)", state.RunID, state.CurrentStep, r)
			err = NewInternalError(string(state.CurrentStep), "stage panicked", fmt.Errorf("%v", r))
		}
	}()
	return transition(ctx, sm.eventBus, state)
}
