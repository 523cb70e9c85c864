package tripweaver

import (
	"context"

	"github.com/ZanzyTHEbar/tripweaver-genkit/internal/checkpoint"
	"github.com/ZanzyTHEbar/tripweaver-genkit/internal/collectors"
	"github.com/ZanzyTHEbar/tripweaver-genkit/internal/itinerary"
	"github.com/ZanzyTHEbar/tripweaver-genkit/internal/knowledge"
	"github.com/ZanzyTHEbar/tripweaver-genkit/internal/risk"
	"github.com/ZanzyTHEbar/tripweaver-genkit/pkg/trip"
)

// Collectors gathers the external signals of a request. Implementations
// must degrade individual failures into warnings rather than errors.
type Collectors interface {
	FetchAll(ctx context.Context, req trip.Request, baseCurrency string) collectors.Signals
}

// RiskAnalyzer scores budget, weather and crowding risk.
type RiskAnalyzer interface {
	Analyze(ctx context.Context, in risk.Input) (trip.RiskAnalysis, error)
}

// Retriever looks up ranked knowledge snippets.
type Retriever interface {
	Retrieve(ctx context.Context, q knowledge.Query) ([]trip.KnowledgeSnippet, error)
}

// Synthesizer generates the itinerary. It returns a usable itinerary even
// when it also returns an error explaining a fallback.
type Synthesizer interface {
	Generate(ctx context.Context, c itinerary.Context) (trip.Itinerary, error)
}

// CheckpointStore persists runs suspended at the approval checkpoint.
type CheckpointStore interface {
	Save(ctx context.Context, rec checkpoint.Record) error
	Load(ctx context.Context, runID string) (checkpoint.Record, error)
	Delete(ctx context.Context, runID string) error
	List(ctx context.Context) ([]checkpoint.Record, error)
}

// ResultStore persists finished runs.
type ResultStore interface {
	SavePlan(ctx context.Context, state *PlanningState) error
}
