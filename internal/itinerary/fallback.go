package itinerary

import (
	"github.com/ZanzyTHEbar/tripweaver-genkit/pkg/trip"
)

// FallbackNote marks a template itinerary.
const FallbackNote = "This is a basic itinerary. For personalized recommendations, please ensure the language model service is running."

// Daily budget split of the template itinerary.
const (
	MorningShare   = 0.3
	AfternoonShare = 0.4
	EveningShare   = 0.3
)

// Fallback builds the deterministic template itinerary: one day per calendar
// day, three activities splitting budget/days 30/40/30.
func Fallback(req trip.Request) trip.Itinerary {
	days := max(req.DurationDays(), 1)
	daily := req.Budget / float64(days)
	dest := DisplayName(req.Destination)
	focus := "sightseeing"
	if len(req.Interests) > 0 {
		focus = req.Interests[0]
	}

	plans := make([]trip.DayPlan, days)
	for i := range plans {
		plans[i] = trip.DayPlan{
			DayNumber: i + 1,
			Date:      req.StartDate.AddDays(i).String(),
			Activities: []trip.Activity{
				{TimeSlot: "Morning (9:00-12:00)", Description: "Explore " + dest + " - " + focus, Cost: daily * MorningShare},
				{TimeSlot: "Afternoon (13:00-18:00)", Description: "Visit local attractions in " + dest, Cost: daily * AfternoonShare},
				{TimeSlot: "Evening (19:00-22:00)", Description: "Dinner and local experience", Cost: daily * EveningShare},
			},
			EstimatedCost: daily,
		}
	}

	return trip.Itinerary{
		Destination:      req.Destination,
		StartDate:        req.StartDate.String(),
		EndDate:          req.StartDate.AddDays(days - 1).String(),
		TotalDays:        days,
		Budget:           req.Budget,
		DailyItineraries: plans,
		Summary: trip.CostSummary{
			TotalEstimatedCost: req.Budget,
			AverageDailyCost:   daily,
		},
		Fallback: true,
		Note:     FallbackNote,
	}
}
