package collectors

import (
	"context"
	"fmt"
	"hash/fnv"
	"math/rand/v2"
	"sort"
	"strings"
	"time"

	"github.com/ZanzyTHEbar/tripweaver-genkit/pkg/trip"
)

// SourceSynthetic marks generated data.
const SourceSynthetic = "mock_data"

var (
	syntheticConditions = []string{"Clear", "Partly Cloudy", "Cloudy", "Rainy", "Sunny"}
	syntheticEventTypes = []string{"Concert", "Festival", "Exhibition", "Workshop", "Conference", "Sports"}
	syntheticEventCosts = []float64{0, 10, 25, 50, 100}
	syntheticPopularity = []string{trip.PopularityLow, trip.PopularityMedium, trip.PopularityHigh}
	syntheticSafetyRisk = []string{"low", "moderate", "medium"}
)

// syntheticRates is the offline exchange table; unknown pairs are 1.0.
var syntheticRates = map[string]float64{
	"USD_EUR": 0.92,
	"USD_GBP": 0.79,
	"USD_JPY": 149.5,
	"EUR_USD": 1.09,
	"GBP_USD": 1.27,
}

// Synthetic generates plausible signals without network access. Output is
// a pure function of the arguments.
type Synthetic struct {
	now func() time.Time
}

func NewSynthetic() *Synthetic {
	return &Synthetic{now: time.Now}
}

func seeded(parts ...string) *rand.Rand {
	h := fnv.New64a()
	for _, p := range parts {
		h.Write([]byte(strings.ToLower(strings.TrimSpace(p))))
		h.Write([]byte{0})
	}
	sum := h.Sum64()
	return rand.New(rand.NewPCG(sum, sum>>1|1))
}

// between returns an int in [lo, hi].
func between(r *rand.Rand, lo, hi int) int {
	return lo + r.IntN(hi-lo+1)
}

func days(start, end trip.Date) int {
	return start.DaysUntil(end) + 1
}

func (s *Synthetic) FetchWeather(ctx context.Context, location string, start, end trip.Date) (trip.Forecast, error) {
	if err := ctx.Err(); err != nil {
		return trip.Forecast{}, err
	}
	r := seeded("weather", location, start.String(), end.String())
	n := days(start, end)
	forecast := trip.Forecast{Location: location, Source: SourceSynthetic}
	for i := 0; i < n; i++ {
		forecast.Days = append(forecast.Days, trip.WeatherDay{
			Date:                start.AddDays(i).String(),
			Condition:           syntheticConditions[r.IntN(len(syntheticConditions))],
			TemperatureHigh:     float64(between(r, 20, 32)),
			TemperatureLow:      float64(between(r, 15, 22)),
			PrecipitationChance: float64(between(r, 0, 80)),
			Humidity:            float64(between(r, 40, 80)),
			WindSpeed:           float64(between(r, 5, 25)),
		})
	}
	return forecast, nil
}

func (s *Synthetic) FetchEvents(ctx context.Context, location string, start, end trip.Date) ([]trip.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r := seeded("events", location, start.String(), end.String())
	span := max(days(start, end), 1)
	count := between(r, 3, 8)
	events := make([]trip.Event, 0, count)
	for i := 0; i < count; i++ {
		kind := syntheticEventTypes[r.IntN(len(syntheticEventTypes))]
		category := syntheticEventTypes[r.IntN(len(syntheticEventTypes))]
		described := syntheticEventTypes[r.IntN(len(syntheticEventTypes))]
		events = append(events, trip.Event{
			ID:            fmt.Sprintf("event_%d", i+1),
			Name:          fmt.Sprintf("%s in %s", kind, location),
			Date:          start.AddDays(r.IntN(span)).String(),
			Time:          fmt.Sprintf("%d:00", between(r, 10, 20)),
			Category:      strings.ToLower(category),
			EstimatedCost: syntheticEventCosts[r.IntN(len(syntheticEventCosts))],
			Popularity:    syntheticPopularity[r.IntN(len(syntheticPopularity))],
			Description:   fmt.Sprintf("A wonderful %s event happening in %s", strings.ToLower(described), location),
		})
	}
	sort.SliceStable(events, func(i, j int) bool { return events[i].Date < events[j].Date })
	return events, nil
}

func (s *Synthetic) FetchExchangeRate(ctx context.Context, from, to string) (trip.ExchangeRate, error) {
	if err := ctx.Err(); err != nil {
		return trip.ExchangeRate{}, err
	}
	from, to = strings.ToUpper(from), strings.ToUpper(to)
	rate, ok := syntheticRates[from+"_"+to]
	if !ok {
		rate = 1.0
	}
	return trip.ExchangeRate{
		From:        from,
		To:          to,
		Rate:        rate,
		LastUpdated: s.now().UTC().Format(time.RFC3339),
		Source:      SourceSynthetic,
	}, nil
}

func (s *Synthetic) FetchSafety(ctx context.Context, location string) (trip.SafetyAdvisory, error) {
	if err := ctx.Err(); err != nil {
		return trip.SafetyAdvisory{}, err
	}
	r := seeded("safety", location)
	return trip.SafetyAdvisory{
		Location:    location,
		OverallRisk: syntheticSafetyRisk[r.IntN(len(syntheticSafetyRisk))],
		SafetyScore: between(r, 60, 95),
		Advisories: []string{
			"Check local COVID-19 regulations",
			"Be aware of pickpockets in tourist areas",
			"Emergency number: varies by country",
		},
		HealthWarnings: []string{"Routine vaccinations recommended"},
		LastUpdated:    s.now().UTC().Format(time.RFC3339),
		Source:         SourceSynthetic,
	}, nil
}
