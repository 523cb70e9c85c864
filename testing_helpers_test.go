package tripweaver

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ZanzyTHEbar/tripweaver-genkit/internal/collectors"
	"github.com/ZanzyTHEbar/tripweaver-genkit/internal/itinerary"
	"github.com/ZanzyTHEbar/tripweaver-genkit/internal/knowledge"
	"github.com/ZanzyTHEbar/tripweaver-genkit/internal/llm"
	"github.com/ZanzyTHEbar/tripweaver-genkit/internal/risk"
	"github.com/ZanzyTHEbar/tripweaver-genkit/pkg/trip"
)

func tokyoRequest(budget float64) trip.Request {
	return trip.Request{
		Destination: "tokyo",
		StartDate:   trip.MustParseDate("2025-03-01"),
		EndDate:     trip.MustParseDate("2025-03-05"),
		Budget:      budget,
		Interests:   []string{"food", "culture"},
	}
}

func newTestPlanner(t *testing.T, options ...Option) *Planner {
	t.Helper()
	p, err := New(options...)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(func() { _ = p.Close() })
	return p
}

// Dummy collaborators

type dummyCompleter struct {
	text string
	err  error
}

func (d *dummyCompleter) Complete(ctx context.Context, prompt, systemPrompt string, temperature float64) (string, error) {
	return d.text, d.err
}

func (d *dummyCompleter) Chat(ctx context.Context, messages []llm.Message, temperature float64) (string, error) {
	return d.text, d.err
}

const fiveDayPlan = `Day 1 (March 01, 2025):
- Morning (9:00-12:00): Tsukiji outer market - Cost: $30
- Evening (19:00-22:00): Izakaya dinner - Cost: $40
Day 2 (March 02, 2025):
- Morning (9:00-12:00): Senso-ji temple - Cost: $0
Day 3 (March 03, 2025):
- Afternoon (13:00-18:00): Tea ceremony - Cost: $50
Day 4 (March 04, 2025):
- Morning (9:00-12:00): TeamLab Planets - Cost: $25
Day 5 (March 05, 2025):
- Evening (19:00-22:00): Farewell sushi - Cost: $80
`

type staticCollectors struct {
	signals collectors.Signals
}

func (s staticCollectors) FetchAll(ctx context.Context, req trip.Request, baseCurrency string) collectors.Signals {
	return s.signals
}

type dummyRiskAnalyzer struct {
	analysis trip.RiskAnalysis
	err      error
}

func (d dummyRiskAnalyzer) Analyze(ctx context.Context, in risk.Input) (trip.RiskAnalysis, error) {
	return d.analysis, d.err
}

// weatherOnlyRisk is an analysis where only the weather dimension is high.
func weatherOnlyRisk() trip.RiskAnalysis {
	return trip.RiskAnalysis{
		BudgetRisk:   trip.BudgetRisk{OverrunRisk: trip.RiskLow, EstimatedCost: 400, Budget: 700},
		WeatherRisk:  trip.WeatherRisk{RiskLevel: trip.RiskHigh, RainyDays: 4, TotalDays: 5, RainPercentage: 80},
		CrowdingRisk: trip.CrowdingRisk{RiskLevel: trip.RiskLow},
		QualityScore: trip.QualityScore{OverallScore: 72},
	}
}

type dummyRetriever struct {
	snippets []trip.KnowledgeSnippet
	err      error
	got      knowledge.Query
}

func (d *dummyRetriever) Retrieve(ctx context.Context, q knowledge.Query) ([]trip.KnowledgeSnippet, error) {
	d.got = q
	return d.snippets, d.err
}

type panickingSynthesizer struct{}

func (panickingSynthesizer) Generate(ctx context.Context, c itinerary.Context) (trip.Itinerary, error) {
	panic("synthesizer exploded")
}

type recordingApprover struct {
	mu       sync.Mutex
	requests []ApprovalRequest
	answer   Decision
	err      error
}

func (r *recordingApprover) RequestApproval(ctx context.Context, req ApprovalRequest) (Decision, error) {
	r.mu.Lock()
	r.requests = append(r.requests, req)
	r.mu.Unlock()
	return r.answer, r.err
}

func (r *recordingApprover) calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.requests)
}

// blockingApprover waits until its context ends.
type blockingApprover struct{}

func (blockingApprover) RequestApproval(ctx context.Context, req ApprovalRequest) (Decision, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

type recordingResults struct {
	mu    sync.Mutex
	saved []string
	err   error
}

func (r *recordingResults) SavePlan(ctx context.Context, state *PlanningState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.saved = append(r.saved, state.RunID)
	return nil
}

var errBoom = errors.New("boom")

// waitForPending polls until a run is waiting on approval.
func waitForPending(t *testing.T, p *Planner) PendingApproval {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if pending := p.PendingApprovals(); len(pending) > 0 {
			return pending[0]
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("no run reached the approval checkpoint")
	return PendingApproval{}
}

func waitCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}
