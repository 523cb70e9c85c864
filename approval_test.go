package tripweaver

import (
	"context"
	"testing"
	"time"

	"github.com/ZanzyTHEbar/tripweaver-genkit/internal/checkpoint"
	"github.com/ZanzyTHEbar/tripweaver-genkit/internal/gate"
	"github.com/ZanzyTHEbar/tripweaver-genkit/pkg/trip"
)

func TestCheckApproval_NilAnalysis(t *testing.T) {
	check, err := CheckApproval(nil, 700, nil)
	if err != nil {
		t.Fatalf("CheckApproval failed: %v", err)
	}
	if check.RequiresApproval || check.Message != "" || !check.Payload.Empty() {
		t.Errorf("expected no approval, got %+v", check)
	}
}

func TestCheckApproval_Messages(t *testing.T) {
	a := &trip.RiskAnalysis{
		BudgetRisk: trip.BudgetRisk{OverrunRisk: trip.RiskHigh, EstimatedCost: 1170, OverrunPercentage: 67},
		WeatherRisk: trip.WeatherRisk{
			RiskLevel: trip.RiskHigh, RainyDays: 3, TotalDays: 5,
		},
		CrowdingRisk: trip.CrowdingRisk{
			RiskLevel: trip.RiskHigh,
			MajorEvents: []trip.Event{
				{Name: "Cherry Blossom Festival"}, {Name: "Marathon"}, {Name: "Expo"},
			},
		},
		QualityScore: trip.QualityScore{OverallScore: 31.5},
	}
	check, err := CheckApproval(a, 700, nil)
	if err != nil {
		t.Fatalf("CheckApproval failed: %v", err)
	}

	want := "Budget Alert: Estimated costs are 67% over your budget. Estimated: $1170.00, Budget: $700.00. " +
		"Weather Alert: 3 out of 5 days expected to have rain (>60% chance). " +
		"Crowding Alert: Major events or holidays will cause high crowding. Events: Cherry Blossom Festival, Marathon. " +
		"Quality Alert: Trip quality score is low (31.5/100). " +
		ApprovalFooter
	if check.Message != want {
		t.Errorf("unexpected message:\n got: %q\nwant: %q", check.Message, want)
	}
	if !check.RequiresApproval {
		t.Error("expected approval to be required")
	}
	p := check.Payload
	if p.BudgetOverrun == nil || p.WeatherRisk == nil || p.Crowding == nil || p.LowQuality == nil {
		t.Errorf("expected every payload section, got %+v", p)
	}
	if len(check.Rules) != 3 {
		t.Errorf("expected budget, crowding and quality rules, got %v", check.Rules)
	}
}

func TestCheckApproval_MediumRiskNeedsNoApproval(t *testing.T) {
	a := &trip.RiskAnalysis{
		BudgetRisk:   trip.BudgetRisk{OverrunRisk: trip.RiskMedium},
		WeatherRisk:  trip.WeatherRisk{RiskLevel: trip.RiskMedium},
		CrowdingRisk: trip.CrowdingRisk{RiskLevel: trip.RiskMedium},
		QualityScore: trip.QualityScore{OverallScore: 50},
	}
	check, err := CheckApproval(a, 700, nil)
	if err != nil {
		t.Fatalf("CheckApproval failed: %v", err)
	}
	if check.RequiresApproval || check.Message != "" {
		t.Errorf("expected nothing to report, got %+v", check)
	}
}

func TestCheckApproval_CustomEvaluator(t *testing.T) {
	ev, err := gate.New([]gate.Rule{{Name: "over", Expression: `overrun_percentage > 10 && level(budget_risk) >= level("medium")`}})
	if err != nil {
		t.Fatalf("gate.New failed: %v", err)
	}
	a := &trip.RiskAnalysis{
		BudgetRisk:   trip.BudgetRisk{OverrunRisk: trip.RiskMedium, OverrunPercentage: 15},
		QualityScore: trip.QualityScore{OverallScore: 80},
	}
	check, err := CheckApproval(a, 700, ev)
	if err != nil {
		t.Fatalf("CheckApproval failed: %v", err)
	}
	if !check.RequiresApproval || check.Rules[0] != "over" {
		t.Errorf("expected the custom rule to fire, got %+v", check)
	}
	if check.Message != ApprovalFooter {
		t.Errorf("a medium overrun has no alert text, only the footer; got %q", check.Message)
	}
}

func TestDecide(t *testing.T) {
	required := ApprovalCheck{RequiresApproval: true}
	tests := []struct {
		name   string
		check  ApprovalCheck
		answer Decision
		want   Decision
	}{
		{"no issues", ApprovalCheck{}, "", DecisionProceed},
		{"no issues ignores answer", ApprovalCheck{}, DecisionTerminate, DecisionProceed},
		{"approved", required, DecisionProceed, DecisionProceed},
		{"rejected", required, DecisionTerminate, DecisionTerminate},
		{"no answer", required, "", DecisionTerminate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Decide(tt.check, tt.answer); got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestParseDecision(t *testing.T) {
	for in, want := range map[string]Decision{
		"proceed": DecisionProceed, " Approve ": DecisionProceed, "yes": DecisionProceed,
		"terminate": DecisionTerminate, "REJECT": DecisionTerminate, "no": DecisionTerminate,
	} {
		got, err := ParseDecision(in)
		if err != nil || got != want {
			t.Errorf("ParseDecision(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := ParseDecision("maybe"); err == nil {
		t.Error("expected an error for an unknown decision")
	}
}

func TestTokenApprover_ResolveUnknownToken(t *testing.T) {
	a := NewTokenApprover(nil)
	if err := a.Resolve("missing", DecisionProceed); !HasCode(err, ErrCodeApproval) {
		t.Errorf("expected approval error, got %v", err)
	}
}

func TestTokenApprover_CheckpointLifecycle(t *testing.T) {
	store, err := checkpoint.NewFileStore(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	a := NewTokenApprover(store)
	state := NewPlanningState("run-1", tokyoRequest(100))
	state.CurrentStep = StateApprovalDecision

	done := make(chan Decision, 1)
	go func() {
		d, err := a.RequestApproval(context.Background(), ApprovalRequest{Token: "tok", State: state})
		if err != nil {
			t.Errorf("RequestApproval failed: %v", err)
		}
		done <- d
	}()

	deadline := time.Now().Add(5 * time.Second)
	for len(a.Pending()) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("request never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}
	rec, err := store.Load(context.Background(), "run-1")
	if err != nil || rec.Token != "tok" || rec.Step != string(StateApprovalDecision) {
		t.Fatalf("expected a checkpoint, got %+v %v", rec, err)
	}

	if err := a.Resolve("tok", DecisionTerminate); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if d := <-done; d != DecisionTerminate {
		t.Errorf("expected terminate, got %s", d)
	}
	if recs, _ := store.List(context.Background()); len(recs) != 0 {
		t.Errorf("expected the checkpoint to be removed, got %d", len(recs))
	}
}
