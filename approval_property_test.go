package tripweaver

import (
	"strings"
	"testing"

	"pgregory.net/rapid"

	"github.com/ZanzyTHEbar/tripweaver-genkit/pkg/trip"
)

var levels = []trip.RiskLevel{trip.RiskVeryLow, trip.RiskLow, trip.RiskMedium, trip.RiskHigh, trip.RiskUnknown}

func TestProperty_CheckApprovalMatchesDefaultRules(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		a := &trip.RiskAnalysis{
			BudgetRisk: trip.BudgetRisk{
				OverrunRisk:       rapid.SampledFrom(levels).Draw(t, "budget"),
				OverrunPercentage: rapid.IntRange(0, 500).Draw(t, "overrun"),
				EstimatedCost:     rapid.Float64Range(0, 10000).Draw(t, "estimated"),
			},
			WeatherRisk:  trip.WeatherRisk{RiskLevel: rapid.SampledFrom(levels).Draw(t, "weather")},
			CrowdingRisk: trip.CrowdingRisk{RiskLevel: rapid.SampledFrom(levels).Draw(t, "crowding")},
			QualityScore: trip.QualityScore{OverallScore: rapid.Float64Range(0, 100).Draw(t, "quality")},
		}
		check, err := CheckApproval(a, 700, nil)
		if err != nil {
			t.Fatalf("CheckApproval failed: %v", err)
		}

		want := a.BudgetRisk.OverrunRisk == trip.RiskHigh ||
			a.CrowdingRisk.RiskLevel == trip.RiskHigh ||
			a.QualityScore.OverallScore < 50
		if check.RequiresApproval != want {
			t.Fatalf("requires_approval=%v, want %v for %+v", check.RequiresApproval, want, a)
		}
		if strings.HasSuffix(check.Message, ApprovalFooter) != want {
			t.Fatalf("footer presence does not match requires_approval: %q", check.Message)
		}

		answer := rapid.SampledFrom([]Decision{"", DecisionProceed, DecisionTerminate}).Draw(t, "answer")
		d := Decide(check, answer)
		if (d == DecisionProceed) != (!want || answer == DecisionProceed) {
			t.Fatalf("Decide(%v, %q) = %s", want, answer, d)
		}
	})
}
