// Package tripweaver is the trip-planning runtime: a staged pipeline that
// collects signals, scores risk, retrieves knowledge, pauses at an approval
// checkpoint when risk is high and synthesises a day-by-day itinerary.
package tripweaver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ZanzyTHEbar/tripweaver-genkit/internal/collectors"
	"github.com/ZanzyTHEbar/tripweaver-genkit/internal/eventbus"
	"github.com/ZanzyTHEbar/tripweaver-genkit/internal/gate"
	"github.com/ZanzyTHEbar/tripweaver-genkit/internal/risk"
	"github.com/ZanzyTHEbar/tripweaver-genkit/pkg/trip"
)

// Planner is the main entry point into the runtime.
type Planner struct {
	collectors  Collectors
	risk        RiskAnalyzer
	retriever   Retriever
	synthesizer Synthesizer
	approvals   ApprovalHandler
	checkpoints CheckpointStore
	results     ResultStore
	eventBus    eventbus.EventBus
	ownsBus     bool
	gate        *gate.Evaluator

	config  Config
	metrics *PipelineMetrics

	// Every run by ID, sync and async. Guarded by runsMutex.
	runs      map[string]*runEntry
	runsMutex sync.RWMutex
}

// Config holds the runtime options.
type Config struct {
	EnableEventBus      bool
	EventBusBufferSize  int
	EventBusWorkerCount int

	// Number of knowledge snippets requested per run
	KnowledgeTopK int
	// Currency budgets are expressed in when the request names none
	BaseCurrency string

	// Add weather_risk == "high" to the built-in approval rules
	ApprovalOnWeatherRisk bool
	// Replace the built-in approval rules when non-empty
	ApprovalRules []gate.Rule
	// Maximum wait for a decision; 0 waits until the run context ends
	ApprovalTimeout time.Duration

	PersistResults bool

	// How long finished runs stay queryable. Sync and async runs share the
	// registry; a finishing run evicts the ones past this window.
	RunRetention time.Duration
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		EnableEventBus:      true,
		EventBusBufferSize:  100,
		EventBusWorkerCount: 5,
		KnowledgeTopK:       5,
		BaseCurrency:        trip.DefaultCurrency,
		PersistResults:      true,
		RunRetention:        time.Hour,
	}
}

// Option configures a Planner.
type Option func(*Planner)

func WithConfig(config Config) Option {
	return func(p *Planner) {
		p.config = config
	}
}

func WithCollectors(c Collectors) Option {
	return func(p *Planner) {
		p.collectors = c
	}
}

func WithRetriever(r Retriever) Option {
	return func(p *Planner) {
		p.retriever = r
	}
}

func WithRiskAnalyzer(r RiskAnalyzer) Option {
	return func(p *Planner) {
		p.risk = r
	}
}

func WithSynthesizer(s Synthesizer) Option {
	return func(p *Planner) {
		p.synthesizer = s
	}
}

// WithApprovalHandler replaces the default AutoApprover.
func WithApprovalHandler(h ApprovalHandler) Option {
	return func(p *Planner) {
		p.approvals = h
	}
}

// WithCheckpointStore enables ResumeFromCheckpoint.
func WithCheckpointStore(s CheckpointStore) Option {
	return func(p *Planner) {
		p.checkpoints = s
	}
}

func WithResultStore(s ResultStore) Option {
	return func(p *Planner) {
		p.results = s
	}
}

// New creates a Planner. Collectors default to synthetic data, the risk
// engine to the built-in tables, approvals to AutoApprover; without a
// synthesizer every itinerary is the fallback template.
func New(options ...Option) (*Planner, error) {
	p := &Planner{
		config:  DefaultConfig(),
		metrics: &PipelineMetrics{},
		runs:    make(map[string]*runEntry),
	}
	for _, option := range options {
		option(p)
	}

	if p.config.BaseCurrency == "" {
		p.config.BaseCurrency = trip.DefaultCurrency
	}
	if p.config.KnowledgeTopK <= 0 {
		p.config.KnowledgeTopK = 5
	}
	if p.config.RunRetention <= 0 {
		p.config.RunRetention = time.Hour
	}
	if p.collectors == nil {
		p.collectors = collectors.New(collectors.Settings{})
	}
	if p.risk == nil {
		p.risk = risk.NewEngine()
	}
	if p.approvals == nil {
		p.approvals = AutoApprover{}
	}

	rules := p.config.ApprovalRules
	if len(rules) == 0 {
		rules = gate.DefaultRules(p.config.ApprovalOnWeatherRisk)
	}
	evaluator, err := gate.New(rules)
	if err != nil {
		return nil, NewConfigurationError("invalid approval rules", err)
	}
	p.gate = evaluator

	if p.config.EnableEventBus && p.eventBus == nil {
		p.eventBus = eventbus.NewChannelEventBus(
			eventbus.WithBufferSize(p.config.EventBusBufferSize),
			eventbus.WithWorkerCount(p.config.EventBusWorkerCount),
		)
		p.ownsBus = true
		log.Printf("Initialized default channel-based event bus")
	}
	return p, nil
}

// Close releases the event bus if the Planner created it.
func (p *Planner) Close() error {
	// A bus passed in by the caller is theirs to close.
	if p.ownsBus && p.eventBus != nil {
		return p.eventBus.Close()
	}
	return nil
}

// Config returns the effective configuration.
func (p *Planner) Config() Config { return p.config }

// EventBus returns the bus events are published on, or nil.
func (p *Planner) EventBus() eventbus.EventBus {
	if !p.config.EnableEventBus {
		return nil
	}
	return p.eventBus
}

// Metrics returns a snapshot of the pipeline counters.
func (p *Planner) Metrics() PipelineMetrics {
	return p.metrics.Copy()
}

func (p *Planner) createStateMachine() *StateMachine {
	return CreatePlanningStateMachine(Components{
		Collectors:  p.collectors,
		Risk:        p.risk,
		Retriever:   p.retriever,
		Synthesizer: p.synthesizer,
		Approvals:   p.approvals,
		Gate:        p.gate,
		Results:     p.results,
		Config:      p.config,
		Metrics:     p.metrics,
	}, p.EventBus())
}

// Run plans one trip end to end. The returned state is always non-nil for a
// valid request; err is set when the run failed or was cancelled, in which
// case the state holds the partial output.
func (p *Planner) Run(ctx context.Context, req trip.Request) (*PlanningState, error) {
	if err := req.Validate(); err != nil {
		return nil, NewValidationError("invalid trip request", err)
	}
	state := NewPlanningState(uuid.New().String(), req)
	// Recorded like an async run so RunStatus and RunResult work for it too.
	err := p.execute(ctx, state, p.recordStep)
	p.finishRun(state, err)
	return state, err
}

// execute drives state to a terminal stage. Panics outside the stage
// guards are mapped to a failed run.
func (p *Planner) execute(ctx context.Context, state *PlanningState, onStep func(*PlanningState)) (err error) {
	p.metrics.runStarted()
	defer func() {
		if r := recover(); r != nil {
			err = NewInternalError(string(state.CurrentStep), "planner panicked", fmt.Errorf("%v", r))
			state.Fail(err)
			if onStep != nil {
				onStep(state)
			}
		}
		p.metrics.runFinished(state.CurrentStep, state.TotalDuration())
		p.publishOutcome(state)
	}()

	sm := p.createStateMachine()
	sm.OnStep(onStep)
	return sm.Execute(ctx, state)
}

func (p *Planner) publishOutcome(state *PlanningState) {
	eb := p.EventBus()
	if eb == nil {
		return
	}
	var t eventbus.EventType
	switch state.CurrentStep {
	case StateCompleted:
		t = eventbus.EventRunCompleted
	case StateTerminated:
		t = eventbus.EventRunTerminated
	case StateCancelled:
		t = eventbus.EventRunCancelled
	default:
		t = eventbus.EventRunFailed
	}
	evt := eventbus.NewRunEvent(t, state.RunID, string(state.CurrentStep), state.SummaryMessage).
		WithMetadata("duration_ms", state.TotalDuration().Milliseconds())
	if state.Error != "" {
		evt.WithMetadata("error", state.Error)
	}
	if err := eb.Publish(context.Background(), evt); err != nil && !errors.Is(err, eventbus.ErrClosed) {
		log.Printf("Event publish failed (event_type: %s, run_id: %s, error: %v)", t, state.RunID, err)
	}
}

// ResumeFromCheckpoint continues a run persisted at the approval checkpoint
// with the given decision. The checkpoint is removed once the run resumes.
func (p *Planner) ResumeFromCheckpoint(ctx context.Context, runID string, decision Decision) (*PlanningState, error) {
	if p.checkpoints == nil {
		return nil, NewConfigurationError("no checkpoint store configured", nil)
	}
	rec, err := p.checkpoints.Load(ctx, runID)
	if err != nil {
		return nil, NewCheckpointError(fmt.Sprintf("failed to load checkpoint for run '%s'", runID), err)
	}
	var state PlanningState
	if err := json.Unmarshal(rec.State, &state); err != nil {
		return nil, NewCheckpointError("corrupt checkpoint", err)
	}
	if state.CurrentStep != StateApprovalDecision {
		return nil, NewCheckpointError(fmt.Sprintf("run '%s' is at %s, not at the approval checkpoint", runID, state.CurrentStep), nil)
	}
	// Unexported timing fields do not survive JSON.
	if state.StageDurations == nil {
		state.StageDurations = make(map[string]int64)
	}
	state.stageStart = time.Now()
	state.ApprovalDecision = decision
	if err := p.checkpoints.Delete(ctx, runID); err != nil {
		log.Printf("Checkpoint cleanup failed (run_id: %s, error: %v)", runID, err)
	}
	log.Printf("Resuming run from checkpoint (run_id: %s, decision: %s)", runID, decision)

	err = p.execute(ctx, &state, p.recordStep)
	p.finishRun(&state, err)
	return &state, err
}

// PendingCheckpoints lists runs persisted at the approval checkpoint.
func (p *Planner) PendingCheckpoints(ctx context.Context) ([]string, error) {
	if p.checkpoints == nil {
		return nil, nil
	}
	recs, err := p.checkpoints.List(ctx)
	if err != nil {
		return nil, NewCheckpointError("failed to list checkpoints", err)
	}
	ids := make([]string, len(recs))
	for i, r := range recs {
		ids[i] = r.RunID
	}
	return ids, nil
}
