package trip

// Popularity values carried on events.
const (
	PopularityLow    = "low"
	PopularityMedium = "medium"
	PopularityHigh   = "high"
)

// WeatherDay is one day of a forecast.
type WeatherDay struct {
	Date                string  `json:"date"`
	Condition           string  `json:"condition"`
	TemperatureHigh     float64 `json:"temperature_high"`
	TemperatureLow      float64 `json:"temperature_low"`
	PrecipitationChance float64 `json:"precipitation_chance"`
	Humidity            float64 `json:"humidity"`
	WindSpeed           float64 `json:"wind_speed"`
}

// Forecast is an ordered per-day weather forecast.
type Forecast struct {
	Location string       `json:"location,omitempty"`
	Days     []WeatherDay `json:"forecast"`
	Source   string       `json:"source,omitempty"`
}

// Event is a local event during the trip.
type Event struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Date          string  `json:"date"`
	Time          string  `json:"time,omitempty"`
	Category      string  `json:"category"`
	EstimatedCost float64 `json:"estimated_cost"`
	Popularity    string  `json:"popularity"`
	Description   string  `json:"description,omitempty"`
}

// SafetyAdvisory summarises travel safety for a destination.
type SafetyAdvisory struct {
	Location       string   `json:"location"`
	OverallRisk    string   `json:"overall_risk"`
	SafetyScore    int      `json:"safety_score"`
	Advisories     []string `json:"advisories"`
	HealthWarnings []string `json:"health_warnings"`
	LastUpdated    string   `json:"last_updated"`
	Source         string   `json:"source"`
}

// ExchangeRate converts amounts from one currency to another.
type ExchangeRate struct {
	From        string  `json:"from_currency"`
	To          string  `json:"to_currency"`
	Rate        float64 `json:"rate"`
	LastUpdated string  `json:"last_updated"`
	Source      string  `json:"source"`
}

// RateOrDefault returns the rate, or 1.0 when the rate is absent.
func (r *ExchangeRate) RateOrDefault() float64 {
	if r == nil || r.Rate <= 0 {
		return 1.0
	}
	return r.Rate
}

// KnowledgeSnippet is one ranked retrieval result.
type KnowledgeSnippet struct {
	ID             string                 `json:"id"`
	Text           string                 `json:"text"`
	SourceName     string                 `json:"source_name,omitempty"`
	Destination    string                 `json:"destination,omitempty"`
	Locations      []string               `json:"locations,omitempty"`
	Categories     []string               `json:"categories,omitempty"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
	Similarity     float64                `json:"similarity_score"`
	Distance       float64                `json:"distance"`
	SentimentScore float64                `json:"sentiment_score"`
	Sentiment      string                 `json:"sentiment"`
	Helpful        bool                   `json:"is_helpful"`
}
