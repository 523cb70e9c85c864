package trip

// Activity is one scheduled slot of a day.
type Activity struct {
	TimeSlot    string  `json:"time_slot"`
	Description string  `json:"description"`
	Cost        float64 `json:"cost"`
}

// DayWeather is the forecast attached to a day by the optimisation pass.
type DayWeather struct {
	Condition  string  `json:"condition"`
	High       float64 `json:"high"`
	Low        float64 `json:"low"`
	RainChance float64 `json:"rain_chance"`
}

// DayPlan is the plan for one calendar day.
type DayPlan struct {
	DayNumber       int         `json:"day_number"`
	Date            string      `json:"date"`
	Activities      []Activity  `json:"activities"`
	EstimatedCost   float64     `json:"estimated_cost"`
	Weather         *DayWeather `json:"weather,omitempty"`
	Recommendations []string    `json:"recommendations,omitempty"`
}

// CostSummary totals the itinerary.
type CostSummary struct {
	TotalEstimatedCost float64 `json:"total_estimated_cost"`
	AverageDailyCost   float64 `json:"average_daily_cost"`
}

// Itinerary is the structured day-by-day plan.
type Itinerary struct {
	Destination      string      `json:"destination"`
	StartDate        string      `json:"start_date"`
	EndDate          string      `json:"end_date"`
	TotalDays        int         `json:"total_days"`
	Budget           float64     `json:"budget"`
	DailyItineraries []DayPlan   `json:"daily_itineraries"`
	Summary          CostSummary `json:"summary"`
	Fallback         bool        `json:"fallback,omitempty"`
	Note             string      `json:"note,omitempty"`
	Warnings         []string    `json:"warnings,omitempty"`
	Recommendations  []string    `json:"recommendations,omitempty"`
}

// Summarize recomputes the cost summary from the day plans.
func (it *Itinerary) Summarize() {
	total := 0.0
	for _, day := range it.DailyItineraries {
		total += day.EstimatedCost
	}
	it.Summary.TotalEstimatedCost = total
	if len(it.DailyItineraries) > 0 {
		it.Summary.AverageDailyCost = total / float64(len(it.DailyItineraries))
	} else {
		it.Summary.AverageDailyCost = 0
	}
}

// BudgetOverrun is the approval payload for a budget alert.
type BudgetOverrun struct {
	Estimated         float64 `json:"estimated"`
	Budget            float64 `json:"budget"`
	OverrunPercentage int     `json:"overrun_percentage"`
}

// WeatherAlert is the approval payload for a weather alert.
type WeatherAlert struct {
	RainyDays int `json:"rainy_days"`
	TotalDays int `json:"total_days"`
}

// CrowdingAlert is the approval payload for a crowding alert.
type CrowdingAlert struct {
	Events []Event `json:"events"`
}

// ApprovalPayload carries the structured reasons behind an approval request.
type ApprovalPayload struct {
	BudgetOverrun *BudgetOverrun `json:"budget_overrun,omitempty"`
	WeatherRisk   *WeatherAlert  `json:"weather_risk,omitempty"`
	Crowding      *CrowdingAlert `json:"crowding,omitempty"`
	LowQuality    *QualityScore  `json:"low_quality,omitempty"`
}

// Empty reports whether no alert was raised.
func (p ApprovalPayload) Empty() bool {
	return p.BudgetOverrun == nil && p.WeatherRisk == nil && p.Crowding == nil && p.LowQuality == nil
}
