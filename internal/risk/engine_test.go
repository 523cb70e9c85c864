package risk

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/ZanzyTHEbar/tripweaver-genkit/pkg/trip"
)

func tokyoRequest(budget float64) trip.Request {
	return trip.Request{
		Destination: "Tokyo",
		StartDate:   trip.MustParseDate("2025-03-01"),
		EndDate:     trip.MustParseDate("2025-03-05"),
		Budget:      budget,
		Interests:   []string{"food", "culture"},
	}
}

func TestClassifyBudgetRatio_Boundaries(t *testing.T) {
	tests := []struct {
		ratio float64
		want  trip.RiskLevel
	}{
		{0.5, trip.RiskVeryLow},
		{0.95, trip.RiskVeryLow},
		{0.9501, trip.RiskLow},
		{1.05, trip.RiskLow},
		{1.0501, trip.RiskMedium},
		{1.20, trip.RiskMedium},
		{1.2001, trip.RiskHigh},
		{11.7, trip.RiskHigh},
	}
	for _, tt := range tests {
		if got := ClassifyBudgetRatio(tt.ratio); got != tt.want {
			t.Errorf("ratio %v: expected %q, got %q", tt.ratio, tt.want, got)
		}
	}
}

func TestEngine_Budget_Tokyo(t *testing.T) {
	e := NewEngine()
	b := e.Budget(700, "Tokyo", 5, []string{"food", "culture"}, 1.0)
	if b.EstimatedCost != 1170 {
		t.Fatalf("expected estimate 1170, got %v", b.EstimatedCost)
	}
	if b.OverrunRisk != trip.RiskHigh {
		t.Errorf("expected high risk, got %s", b.OverrunRisk)
	}
	if b.BudgetRatio != 1.67 || b.OverrunPercentage != 67 {
		t.Errorf("unexpected ratio/overrun: %v / %d", b.BudgetRatio, b.OverrunPercentage)
	}
	if b.DailyEstimatedCost != 234 {
		t.Errorf("expected daily cost 234, got %v", b.DailyEstimatedCost)
	}
	if len(b.Recommendations) != 3 || !strings.Contains(b.Recommendations[2], "street food") {
		t.Errorf("expected food recommendation, got %v", b.Recommendations)
	}
}

func TestEngine_Budget_Adequate(t *testing.T) {
	e := NewEngine()
	b := e.Budget(5000, "Somewhere", 3, nil, 1.0)
	if b.EstimatedCost != 300 {
		t.Fatalf("expected default table estimate 300, got %v", b.EstimatedCost)
	}
	if b.OverrunRisk != trip.RiskVeryLow || b.OverrunPercentage != 0 {
		t.Errorf("expected very low risk without overrun, got %s/%d", b.OverrunRisk, b.OverrunPercentage)
	}
	if len(b.Recommendations) != 2 {
		t.Errorf("expected adequate + upgrade recommendations, got %v", b.Recommendations)
	}
}

func TestEngine_Budget_ExchangeRateAndZeroBudget(t *testing.T) {
	e := NewEngine()
	b := e.Budget(1000, "bangkok", 2, []string{"budget"}, 2.0)
	// 60 * 2 * 1.0 (floor) * 0.9 * 2.0
	if b.EstimatedCost != 216 {
		t.Errorf("expected 216, got %v", b.EstimatedCost)
	}

	zero := e.Budget(0, "Paris", 2, nil, 1.0)
	if zero.OverrunRisk != trip.RiskHigh || zero.BudgetRatio != UndefinedRatio {
		t.Errorf("expected high risk with undefined ratio, got %s/%v", zero.OverrunRisk, zero.BudgetRatio)
	}
	if BudgetScore(zero) != 30 {
		t.Errorf("expected budget score 30, got %v", BudgetScore(zero))
	}
}

func TestEngine_Weather(t *testing.T) {
	e := NewEngine()
	forecast := []trip.WeatherDay{
		{Date: "2025-03-01", TemperatureHigh: 33, TemperatureLow: 20, PrecipitationChance: 80},
		{Date: "2025-03-02", TemperatureHigh: 25, TemperatureLow: 3, PrecipitationChance: 70},
		{Date: "2025-03-03", TemperatureHigh: 24, TemperatureLow: 15, PrecipitationChance: 10},
		{Date: "2025-03-04", TemperatureHigh: 36, TemperatureLow: 22, PrecipitationChance: 65},
	}
	w := e.Weather(forecast)
	if w.RiskLevel != trip.RiskHigh {
		t.Fatalf("expected high weather risk, got %s", w.RiskLevel)
	}
	if w.RainyDays != 3 || w.TotalDays != 4 || w.RainPercentage != 75 {
		t.Errorf("unexpected rain counts: %+v", w)
	}
	if w.HotDays != 2 || w.ColdDays != 1 || w.ExtremeWeatherDays != 1 {
		t.Errorf("unexpected temperature counts: %+v", w)
	}
	if w.BestDay != "2025-03-03" {
		t.Errorf("expected best day 2025-03-03, got %q", w.BestDay)
	}
	last := w.Recommendations[len(w.Recommendations)-1]
	if !strings.HasPrefix(last, "Best weather on 2025-03-03") {
		t.Errorf("expected best-day recommendation last, got %q", last)
	}
}

func TestEngine_Weather_Empty(t *testing.T) {
	w := NewEngine().Weather(nil)
	if w.RiskLevel != trip.RiskUnknown {
		t.Errorf("expected unknown risk, got %s", w.RiskLevel)
	}
	if WeatherScore(w) != 70 {
		t.Errorf("expected unknown weather to score 70, got %v", WeatherScore(w))
	}
}

func TestEngine_Crowding(t *testing.T) {
	e := NewEngine()
	dates := []string{"2025-03-01", "2025-03-02", "2025-03-03"}

	high := e.Crowding([]trip.Event{
		{Name: "A", Date: "2025-03-01", Popularity: "high"},
		{Name: "B", Date: "2025-03-02", Popularity: "high"},
		{Name: "Outside", Date: "2025-04-01", Popularity: "high"},
	}, "Tokyo", dates)
	if high.RiskLevel != trip.RiskHigh || len(high.MajorEvents) != 2 {
		t.Errorf("expected high crowding with 2 events, got %s/%d", high.RiskLevel, len(high.MajorEvents))
	}

	medium := e.Crowding([]trip.Event{
		{Name: "A", Date: "2025-03-01", Popularity: "low"},
		{Name: "B", Date: "2025-03-03", Popularity: "medium"},
	}, "Tokyo", dates)
	if medium.RiskLevel != trip.RiskMedium {
		t.Errorf("expected medium crowding from two event days, got %s", medium.RiskLevel)
	}

	low := e.Crowding(nil, "Tokyo", dates)
	if low.RiskLevel != trip.RiskLow || len(low.Recommendations) != 0 {
		t.Errorf("expected low crowding without recommendations, got %+v", low)
	}
}

func TestEngine_Crowding_Holiday(t *testing.T) {
	e := NewEngine()
	c := e.Crowding(nil, "Rome", []string{"2024-12-31", "2025-01-01"})
	if c.RiskLevel != trip.RiskHigh || len(c.Holidays) != 1 || c.Holidays[0].Name != "New Year's Day" {
		t.Fatalf("expected New Year's Day to raise crowding, got %+v", c)
	}
	if !strings.Contains(strings.Join(c.Recommendations, " "), "closed on holidays") {
		t.Errorf("expected holiday closure recommendation")
	}
}

func TestQuality(t *testing.T) {
	q := Quality(
		trip.BudgetRisk{OverrunRisk: trip.RiskLow},
		trip.WeatherRisk{RiskLevel: trip.RiskLow},
		trip.CrowdingRisk{RiskLevel: trip.RiskLow},
	)
	if q.ComfortLevel != trip.ComfortExcellent {
		t.Errorf("expected excellent, got %s (%v)", q.ComfortLevel, q.OverallScore)
	}
	if q.ComponentScores.Budget != 85 || q.ComponentScores.Crowding != 90 {
		t.Errorf("unexpected component scores: %+v", q.ComponentScores)
	}

	poor := Quality(
		trip.BudgetRisk{OverrunRisk: trip.RiskHigh, BudgetRatio: 11.7},
		trip.WeatherRisk{RiskLevel: trip.RiskHigh, RainPercentage: 100},
		trip.CrowdingRisk{RiskLevel: trip.RiskHigh},
	)
	// 30*0.35 + 30*0.35 + 45*0.30
	if poor.OverallScore != 34.5 || poor.ComfortLevel != trip.ComfortPoor {
		t.Errorf("expected 34.5/poor, got %v/%s", poor.OverallScore, poor.ComfortLevel)
	}
}

func TestBudgetScore_ClampedForInconsistentInput(t *testing.T) {
	// A hand-built high-risk assessment with a ratio below 1.
	got := BudgetScore(trip.BudgetRisk{OverrunRisk: trip.RiskHigh, BudgetRatio: 0.2})
	if got != 100 {
		t.Errorf("expected budget score capped at 100, got %v", got)
	}
	q := Quality(
		trip.BudgetRisk{OverrunRisk: trip.RiskHigh, BudgetRatio: 0.2},
		trip.WeatherRisk{RiskLevel: trip.RiskLow},
		trip.CrowdingRisk{RiskLevel: trip.RiskLow},
	)
	if q.OverallScore > 100 || q.ComponentScores.Budget != 100 {
		t.Errorf("expected clamped quality, got %+v", q)
	}
}

func TestEngine_Analyze(t *testing.T) {
	fixed := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	e := NewEngine(WithClock(func() time.Time { return fixed }))
	ra, err := e.Analyze(context.Background(), Input{Request: tokyoRequest(700)})
	if err != nil {
		t.Fatalf("analyze failed: %v", err)
	}
	if ra.TripDurationDays != 5 || ra.DateRange.Start != "2025-03-01" || ra.DateRange.End != "2025-03-05" {
		t.Errorf("unexpected duration/range: %d %+v", ra.TripDurationDays, ra.DateRange)
	}
	if !ra.AnalysisTimestamp.Equal(fixed) {
		t.Errorf("expected injected clock timestamp")
	}
	if ra.BudgetRisk.OverrunRisk != trip.RiskHigh {
		t.Errorf("expected high budget risk, got %s", ra.BudgetRisk.OverrunRisk)
	}

	ra, err = e.Analyze(context.Background(), Input{Request: tokyoRequest(100)})
	if err != nil {
		t.Fatalf("analyze failed: %v", err)
	}
	if ra.BudgetRisk.OverrunPercentage != 1070 {
		t.Errorf("expected 1070%% overrun, got %d", ra.BudgetRisk.OverrunPercentage)
	}
}

func TestEngine_Analyze_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewEngine().Analyze(ctx, Input{Request: tokyoRequest(700)}); err == nil {
		t.Errorf("expected context error")
	}
}

type flatCosts struct{}

func (flatCosts) Destination(string) (float64, float64) { return 10, 1 }
func (flatCosts) InterestMultiplier([]string) float64   { return 1 }

func TestEngine_PluggableCostModel(t *testing.T) {
	e := NewEngine(WithCostModel(flatCosts{}))
	if b := e.Budget(100, "Tokyo", 5, []string{"luxury"}, 1); b.EstimatedCost != 50 {
		t.Errorf("expected custom cost model to apply, got %v", b.EstimatedCost)
	}
}
