package tripweaver

import (
	"fmt"

	"github.com/samber/lo"

	"github.com/ZanzyTHEbar/tripweaver-genkit/pkg/trip"
)

// Optimisation thresholds and advice.
const (
	RainyDayThreshold = 60.0
	HotDayThreshold   = 32.0

	RainRecommendation   = "High chance of rain - consider indoor activities or bring rain gear"
	HeatRecommendation   = "Hot day expected - stay hydrated and plan indoor activities during peak heat"
	BudgetRecommendation = "Consider reducing expensive activities, dining at mid-range restaurants, or using public transportation"
)

func appendOnce(list []string, item string) []string {
	if lo.Contains(list, item) {
		return list
	}
	return append(list, item)
}

// ApplyWeatherOptimizations attaches the forecast of day i to day plan i and
// adds rain and heat advice. Applying it twice changes nothing.
func ApplyWeatherOptimizations(it *trip.Itinerary, forecast []trip.WeatherDay) {
	if it == nil || len(forecast) == 0 {
		return
	}
	for i := range it.DailyItineraries {
		if i >= len(forecast) {
			break
		}
		day := &it.DailyItineraries[i]
		f := forecast[i]
		day.Weather = &trip.DayWeather{
			Condition:  f.Condition,
			High:       f.TemperatureHigh,
			Low:        f.TemperatureLow,
			RainChance: f.PrecipitationChance,
		}
		if f.PrecipitationChance > RainyDayThreshold {
			day.Recommendations = appendOnce(day.Recommendations, RainRecommendation)
		}
		if f.TemperatureHigh > HotDayThreshold {
			day.Recommendations = appendOnce(day.Recommendations, HeatRecommendation)
		}
	}
}

// ApplyBudgetOptimizations warns when the itinerary total exceeds the budget
// and the overrun risk is medium or high.
func ApplyBudgetOptimizations(it *trip.Itinerary, level trip.RiskLevel, budget float64) {
	if it == nil || budget <= 0 || (level != trip.RiskHigh && level != trip.RiskMedium) {
		return
	}
	total := it.Summary.TotalEstimatedCost
	if total <= budget {
		return
	}
	overrun := (total - budget) / budget * 100
	it.Warnings = appendOnce(it.Warnings,
		fmt.Sprintf("Estimated cost ($%.2f) exceeds budget ($%.2f) by %.1f%%", total, budget, overrun))
	it.Recommendations = appendOnce(it.Recommendations, BudgetRecommendation)
}
