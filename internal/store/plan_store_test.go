package store

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/pgvector/pgvector-go"

	tripweaver "github.com/ZanzyTHEbar/tripweaver-genkit"
	"github.com/ZanzyTHEbar/tripweaver-genkit/pkg/trip"
)

func completedState() *tripweaver.PlanningState {
	s := tripweaver.NewPlanningState("run-42", trip.Request{
		Destination: " Kyoto ",
		StartDate:   trip.MustParseDate("2025-04-01"),
		EndDate:     trip.MustParseDate("2025-04-03"),
		Budget:      900,
		Interests:   []string{"temples", "food"},
		UserID:      "u-1",
	})
	s.CurrentStep = tripweaver.StateCompleted
	s.RiskAnalysis = &trip.RiskAnalysis{QualityScore: trip.QualityScore{OverallScore: 81.5}}
	s.Itinerary = &trip.Itinerary{Summary: trip.CostSummary{TotalEstimatedCost: 640}}
	s.SummaryMessage = "Trip plan completed for Kyoto!"
	return s
}

func TestNewRecord(t *testing.T) {
	v := pgvector.NewVector([]float32{0.1, 0.2})
	rec, err := NewRecord(completedState(), &v)
	if err != nil {
		t.Fatalf("NewRecord failed: %v", err)
	}
	if rec.RunID != "run-42" || rec.Destination != "kyoto" || rec.Currency != "USD" || rec.UserID != "u-1" {
		t.Errorf("unexpected record %+v", rec)
	}
	if rec.StartDate != "2025-04-01" || rec.EndDate != "2025-04-03" || rec.Status != "completed" {
		t.Errorf("unexpected dates or status %+v", rec)
	}
	if len(rec.Interests) != 2 || rec.Interests[0] != "temples" {
		t.Errorf("unexpected interests %v", rec.Interests)
	}
	if rec.QualityScore == nil || *rec.QualityScore != 81.5 || rec.TotalCost != 640 {
		t.Errorf("unexpected scores %+v", rec)
	}
	if rec.Embedding == nil || len(rec.Embedding.Slice()) != 2 {
		t.Error("expected the vector to be kept")
	}

	var decoded tripweaver.PlanningState
	if err := json.Unmarshal([]byte(rec.Result), &decoded); err != nil || decoded.RunID != "run-42" {
		t.Errorf("result column does not hold the state: %v", err)
	}
}

func TestNewRecord_PartialState(t *testing.T) {
	s := tripweaver.NewPlanningState("run-1", trip.Request{Destination: "Lima", Currency: "pen"})
	rec, err := NewRecord(s, nil)
	if err != nil {
		t.Fatalf("NewRecord failed: %v", err)
	}
	if rec.QualityScore != nil || rec.TotalCost != 0 || rec.Embedding != nil || rec.Currency != "PEN" {
		t.Errorf("unexpected record for a partial state %+v", rec)
	}
}

func TestProfileText(t *testing.T) {
	if got := ProfileText(" Kyoto ", []string{"temples", "food"}); got != "Trip to Kyoto for temples, food" {
		t.Errorf("unexpected profile %q", got)
	}
	if got := ProfileText("Lima", nil); got != "Trip to Lima" {
		t.Errorf("unexpected profile %q", got)
	}
}

func TestBeforeCreateAssignsID(t *testing.T) {
	rec := PlanRecord{}
	if err := rec.BeforeCreate(nil); err != nil || rec.ID.String() == "00000000-0000-0000-0000-000000000000" {
		t.Errorf("expected an ID, got %v %v", rec.ID, err)
	}
}

func TestSimilarPlans_NeedsEmbedder(t *testing.T) {
	if _, err := NewPlanStore(nil, nil).SimilarPlans(context.Background(), "kyoto", nil, 3); err == nil {
		t.Error("expected an error without an embedder")
	}
}
