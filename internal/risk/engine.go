// Package risk scores budget, weather and crowding risk for a trip and
// combines them into a weighted quality score.
package risk

import (
	"context"
	"fmt"
	"log"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/ZanzyTHEbar/tripweaver-genkit/pkg/trip"
)

// Quality weights.
const (
	WeightBudget   = 0.35
	WeightWeather  = 0.35
	WeightCrowding = 0.30
)

// UndefinedRatio marks a budget ratio that cannot be computed (non-positive budget).
const UndefinedRatio = -1.0

// Input is everything the engine reads from the planning state.
type Input struct {
	Request      trip.Request
	Forecast     []trip.WeatherDay
	Events       []trip.Event
	ExchangeRate float64
}

// Engine computes the four risk assessments. It holds no mutable state.
type Engine struct {
	costs    CostModel
	holidays HolidayCalendar
	now      func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithCostModel replaces the built-in cost tables.
func WithCostModel(m CostModel) Option {
	return func(e *Engine) {
		e.costs = m
	}
}

// WithHolidayCalendar replaces the built-in holiday calendar.
func WithHolidayCalendar(c HolidayCalendar) Option {
	return func(e *Engine) {
		e.holidays = c
	}
}

// WithClock sets the clock used for the analysis timestamp.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// NewEngine creates a risk engine with the default tables.
func NewEngine(options ...Option) *Engine {
	e := &Engine{
		costs:    DefaultCostModel(),
		holidays: DefaultHolidays(),
		now:      time.Now,
	}
	for _, option := range options {
		option(e)
	}
	return e
}

// Analyze runs all four assessments.
func (e *Engine) Analyze(ctx context.Context, in Input) (trip.RiskAnalysis, error) {
	if err := ctx.Err(); err != nil {
		return trip.RiskAnalysis{}, err
	}
	req := in.Request
	days := req.DurationDays()
	if days < 1 {
		return trip.RiskAnalysis{}, fmt.Errorf("invalid date range %s..%s", req.StartDate, req.EndDate)
	}
	rate := in.ExchangeRate
	if rate <= 0 {
		rate = 1.0
	}
	dates := req.Dates()

	budget := e.Budget(req.Budget, req.Destination, days, req.Interests, rate)
	weather := e.Weather(in.Forecast)
	crowding := e.Crowding(in.Events, req.Destination, dates)
	quality := Quality(budget, weather, crowding)

	log.Printf("Risk analysis complete (destination: %s, budget_risk: %s, weather_risk: %s, crowding_risk: %s, quality: %.1f)",
		req.Destination, budget.OverrunRisk, weather.RiskLevel, crowding.RiskLevel, quality.OverallScore)

	return trip.RiskAnalysis{
		BudgetRisk:        budget,
		WeatherRisk:       weather,
		CrowdingRisk:      crowding,
		QualityScore:      quality,
		TripDurationDays:  days,
		DateRange:         trip.DateRange{Start: dates[0], End: dates[len(dates)-1]},
		AnalysisTimestamp: e.now().UTC(),
	}, nil
}

// ClassifyBudgetRatio maps estimate/budget to an overrun level.
func ClassifyBudgetRatio(ratio float64) trip.RiskLevel {
	switch {
	case ratio > 1.20:
		return trip.RiskHigh
	case ratio > 1.05:
		return trip.RiskMedium
	case ratio > 0.95:
		return trip.RiskLow
	default:
		return trip.RiskVeryLow
	}
}

// Budget estimates the trip cost and classifies the overrun risk.
func (e *Engine) Budget(budget float64, destination string, days int, interests []string, rate float64) trip.BudgetRisk {
	dailyBase, destMultiplier := e.costs.Destination(destination)
	interestMultiplier := e.costs.InterestMultiplier(interests)
	estimated := dailyBase * float64(days) * interestMultiplier * destMultiplier * rate

	ratio := math.Inf(1)
	if budget > 0 {
		ratio = estimated / budget
	}
	level := ClassifyBudgetRatio(ratio)

	overrun := 0
	if level == trip.RiskHigh || level == trip.RiskMedium {
		overrun = overrunPercentage(ratio)
	}

	storedRatio := UndefinedRatio
	if !math.IsInf(ratio, 0) {
		storedRatio = round(ratio, 2)
	}
	daily := 0.0
	if days > 0 {
		daily = round(estimated/float64(days), 2)
	}

	return trip.BudgetRisk{
		EstimatedCost:      round(estimated, 2),
		Budget:             budget,
		BudgetRatio:        storedRatio,
		OverrunRisk:        level,
		OverrunPercentage:  overrun,
		DailyEstimatedCost: daily,
		Recommendations:    budgetRecommendations(level, ratio, overrun, interests),
	}
}

func overrunPercentage(ratio float64) int {
	if math.IsInf(ratio, 0) {
		return math.MaxInt32
	}
	return int(math.Round((ratio - 1) * 100))
}

func budgetRecommendations(level trip.RiskLevel, ratio float64, overrun int, interests []string) []string {
	var recs []string
	if level == trip.RiskHigh || level == trip.RiskMedium {
		recs = append(recs,
			fmt.Sprintf("Your estimated costs are %d%% over budget.", overrun),
			"Consider reducing expensive activities or extending your budget.",
		)
		lowered := lo.Map(interests, func(s string, _ int) string { return strings.ToLower(strings.TrimSpace(s)) })
		if lo.Contains(lowered, "food") {
			recs = append(recs, "Mix high-end restaurants with local street food to save money.")
		}
		if lo.Contains(lowered, "shopping") {
			recs = append(recs, "Allocate a specific shopping budget to avoid overspending.")
		}
		return recs
	}
	recs = append(recs, "Your budget appears adequate for this trip.")
	if ratio < 0.8 {
		recs = append(recs, "You have room in your budget for additional experiences or upgrades.")
	}
	return recs
}

// Weather counts rainy, extreme, hot and cold days over the forecast.
func (e *Engine) Weather(forecast []trip.WeatherDay) trip.WeatherRisk {
	if len(forecast) == 0 {
		return trip.WeatherRisk{
			RiskLevel:       trip.RiskUnknown,
			Recommendations: []string{"Weather data unavailable"},
		}
	}

	var rainy, extreme, hot, cold int
	for _, day := range forecast {
		if day.PrecipitationChance > 60 {
			rainy++
		}
		if day.TemperatureHigh > 35 || day.TemperatureLow < 0 {
			extreme++
		}
		if day.TemperatureHigh > 32 {
			hot++
		}
		if day.TemperatureLow < 5 {
			cold++
		}
	}

	total := len(forecast)
	rainPct := float64(rainy) / float64(total) * 100
	level := trip.RiskLow
	switch {
	case rainPct > 70:
		level = trip.RiskHigh
	case rainPct > 40:
		level = trip.RiskMedium
	}

	best, hasBest := lo.Find(forecast, func(day trip.WeatherDay) bool {
		return day.PrecipitationChance < 30 && day.TemperatureHigh > 18 && day.TemperatureHigh < 30
	})

	risk := trip.WeatherRisk{
		RiskLevel:          level,
		RainyDays:          rainy,
		TotalDays:          total,
		RainPercentage:     round(rainPct, 1),
		ExtremeWeatherDays: extreme,
		HotDays:            hot,
		ColdDays:           cold,
	}
	if hasBest {
		risk.BestDay = best.Date
	}
	risk.Recommendations = weatherRecommendations(risk)
	return risk
}

func weatherRecommendations(w trip.WeatherRisk) []string {
	var recs []string
	switch w.RiskLevel {
	case trip.RiskHigh:
		recs = append(recs,
			fmt.Sprintf("High rain probability (%d rainy days expected). Consider indoor activities.", w.RainyDays),
			"Bring waterproof gear and plan alternative indoor attractions.",
		)
	case trip.RiskMedium:
		recs = append(recs, fmt.Sprintf("Moderate rain expected (%d days). Pack an umbrella and have backup plans.", w.RainyDays))
	}
	if w.HotDays > 0 {
		recs = append(recs, fmt.Sprintf("%d hot days expected. Stay hydrated and plan indoor activities during peak heat.", w.HotDays))
	}
	if w.ColdDays > 0 {
		recs = append(recs, fmt.Sprintf("%d cold days expected. Pack warm clothing and layers.", w.ColdDays))
	}
	if w.BestDay != "" {
		recs = append(recs, fmt.Sprintf("Best weather on %s - ideal for outdoor activities.", w.BestDay))
	}
	return recs
}

// Crowding intersects high-popularity events and holidays with the trip dates.
func (e *Engine) Crowding(events []trip.Event, destination string, dates []string) trip.CrowdingRisk {
	inTrip := make(map[string]bool, len(dates))
	years := make([]int, 0, 2)
	for _, d := range dates {
		inTrip[d] = true
		if parsed, err := trip.ParseDate(d); err == nil {
			years = append(years, parsed.Year())
		}
	}

	major := lo.Filter(events, func(ev trip.Event, _ int) bool {
		return strings.EqualFold(ev.Popularity, trip.PopularityHigh) && inTrip[ev.Date]
	})
	crowded := lo.Uniq(lo.FilterMap(events, func(ev trip.Event, _ int) (string, bool) {
		return ev.Date, inTrip[ev.Date]
	}))
	sort.Strings(crowded)

	var holidays []trip.Holiday
	for _, h := range e.holidays.Holidays(destination, years) {
		if inTrip[h.Date] {
			holidays = append(holidays, trip.Holiday{Name: h.Name, Date: h.Date})
		}
	}

	level := trip.RiskLow
	switch {
	case len(major) >= 2 || len(holidays) >= 1:
		level = trip.RiskHigh
	case len(major) == 1 || len(crowded) >= 2:
		level = trip.RiskMedium
	}

	return trip.CrowdingRisk{
		RiskLevel:       level,
		MajorEvents:     major,
		CrowdedDays:     crowded,
		Holidays:        holidays,
		Recommendations: crowdingRecommendations(level, major, holidays),
	}
}

func crowdingRecommendations(level trip.RiskLevel, major []trip.Event, holidays []trip.Holiday) []string {
	var recs []string
	switch level {
	case trip.RiskHigh:
		recs = append(recs,
			"High crowding expected due to major events or holidays.",
			"Book attractions and restaurants in advance. Consider visiting popular sites early morning or late evening.",
		)
		if len(holidays) > 0 {
			recs = append(recs, "Some attractions may be closed on holidays. Verify opening hours in advance.")
		}
	case trip.RiskMedium:
		recs = append(recs, "Moderate crowding expected. Book popular attractions in advance.")
	}
	if len(major) > 0 {
		recs = append(recs, fmt.Sprintf("Major events happening: %s. This could affect availability and prices.",
			strings.Join(EventNames(major, 2), ", ")))
	}
	return recs
}

// EventNames returns the names of at most limit events.
func EventNames(events []trip.Event, limit int) []string {
	if len(events) > limit {
		events = events[:limit]
	}
	return lo.Map(events, func(ev trip.Event, _ int) string { return ev.Name })
}

// Quality combines the three assessments into the weighted 0-100 score.
func Quality(budget trip.BudgetRisk, weather trip.WeatherRisk, crowding trip.CrowdingRisk) trip.QualityScore {
	b := BudgetScore(budget)
	w := WeatherScore(weather)
	c := CrowdingScore(crowding)
	overall := round(clampScore(b*WeightBudget+w*WeightWeather+c*WeightCrowding), 1)

	return trip.QualityScore{
		OverallScore: overall,
		ComfortLevel: ComfortLabel(overall),
		ComponentScores: trip.ComponentScores{
			Budget:   round(b, 1),
			Weather:  round(w, 1),
			Crowding: round(c, 1),
		},
		Recommendation: qualityRecommendation(overall),
	}
}

// BudgetScore maps the budget assessment to 0-100.
func BudgetScore(b trip.BudgetRisk) float64 {
	switch b.OverrunRisk {
	case trip.RiskVeryLow:
		return 95
	case trip.RiskLow:
		return 85
	case trip.RiskMedium:
		return 60
	}
	if b.BudgetRatio == UndefinedRatio {
		return 30
	}
	return clampScore(math.Max(30, 100-(b.BudgetRatio-1)*100))
}

// WeatherScore maps the weather assessment to 0-100. An unknown forecast
// scores like a high-risk one with no rain.
func WeatherScore(w trip.WeatherRisk) float64 {
	switch w.RiskLevel {
	case trip.RiskLow:
		return 90
	case trip.RiskMedium:
		return clampScore(70 - w.RainPercentage*0.5)
	}
	return clampScore(math.Max(30, 70-w.RainPercentage))
}

// clampScore keeps a score inside [0, 100].
func clampScore(v float64) float64 {
	return math.Min(100, math.Max(0, v))
}

// CrowdingScore maps the crowding assessment to 0-100.
func CrowdingScore(c trip.CrowdingRisk) float64 {
	switch c.RiskLevel {
	case trip.RiskLow:
		return 90
	case trip.RiskMedium:
		return 65
	}
	return 45
}

// ComfortLabel maps a quality score to its band.
func ComfortLabel(score float64) string {
	switch {
	case score >= 80:
		return trip.ComfortExcellent
	case score >= 65:
		return trip.ComfortGood
	case score >= 50:
		return trip.ComfortFair
	default:
		return trip.ComfortPoor
	}
}

func qualityRecommendation(score float64) string {
	switch {
	case score >= 80:
		return "This trip looks excellent! Conditions are favorable for a great experience."
	case score >= 65:
		return "This trip looks good with minor considerations. Review the risk factors."
	case score >= 50:
		return "This trip is feasible but has some concerns. Consider adjustments to improve experience."
	default:
		return "This trip has significant challenges. Consider rescheduling or major adjustments."
	}
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
