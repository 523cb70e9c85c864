// Package itinerary turns the collected planning context into a day-by-day
// plan through a text-completion service, with a deterministic fallback.
package itinerary

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/ZanzyTHEbar/tripweaver-genkit/internal/knowledge"
	"github.com/ZanzyTHEbar/tripweaver-genkit/pkg/trip"
)

// SystemPrompt is sent with every itinerary request.
const SystemPrompt = "You are an expert travel planner. Generate detailed, practical, " +
	"and personalized travel itineraries based on user preferences, " +
	"weather conditions, and local insights. Focus on creating balanced " +
	"daily schedules that maximize enjoyment while respecting budget and constraints."

// Prompt section limits.
const (
	MaxWeatherDays   = 5
	MaxEvents        = 5
	MaxSnippets      = 3
	MaxSnippetLength = 300
)

const promptDateLayout = "January 02, 2006"

// Context is everything synthesis reads from the planning state. Any field
// may be empty when an upstream stage degraded.
type Context struct {
	Request   trip.Request
	Forecast  []trip.WeatherDay
	Events    []trip.Event
	Knowledge []trip.KnowledgeSnippet
	Risk      *trip.RiskAnalysis
}

// DisplayName title-cases a destination for prompts and summaries.
func DisplayName(destination string) string {
	return cases.Title(language.English).String(strings.TrimSpace(destination))
}

// BuildPrompt renders the itinerary prompt.
func BuildPrompt(c Context) string {
	req := c.Request
	var b strings.Builder
	fmt.Fprintf(&b, "Create a detailed %d-day travel itinerary for %s.\n\n", req.DurationDays(), DisplayName(req.Destination))

	b.WriteString("**Trip Details:**\n")
	fmt.Fprintf(&b, "- Dates: %s to %s\n", req.StartDate.Format(promptDateLayout), req.EndDate.Format(promptDateLayout))
	fmt.Fprintf(&b, "- Budget: $%s\n", formatAmount(req.Budget))
	fmt.Fprintf(&b, "- Interests: %s\n\n", strings.Join(req.Interests, ", "))

	section(&b, "User Constraints", FormatConstraints(req))
	section(&b, "Weather Forecast", FormatWeather(c.Forecast))
	section(&b, "Local Events", FormatEvents(c.Events))
	section(&b, "Travel Insights", FormatKnowledge(c.Knowledge))
	section(&b, "Risk Considerations", FormatRisks(c.Risk))

	b.WriteString(`Generate a day-by-day itinerary with:
1. Morning, afternoon, and evening activities
2. Estimated costs for each activity
3. Transportation suggestions
4. Dining recommendations
5. Tips and alternatives for each day

Format the response as:
Day X (Date):
- Morning (9:00-12:00): [Activity] - [Location] - Cost: $X
  Tips: [practical tips]
- Afternoon (13:00-18:00): [Activity] - [Location] - Cost: $X
  Tips: [practical tips]
- Evening (19:00-22:00): [Activity] - [Location] - Cost: $X
  Tips: [practical tips]
Daily Total: $X
`)
	return b.String()
}

func section(b *strings.Builder, title, body string) {
	fmt.Fprintf(b, "**%s:**\n%s\n\n", title, body)
}

// FormatConstraints lists the recognised constraints.
func FormatConstraints(req trip.Request) string {
	var lines []string
	if req.Constraint("no_early_mornings") != "" {
		lines = append(lines, "- Start activities after 9:00 AM")
	}
	if v := req.Constraint("dietary"); v != "" {
		lines = append(lines, "- Dietary: "+v)
	}
	if v := req.Constraint("pace"); v != "" {
		lines = append(lines, "- Preferred pace: "+v)
	}
	if len(lines) == 0 {
		return "No specific constraints"
	}
	return strings.Join(lines, "\n")
}

// FormatWeather renders the first days of the forecast.
func FormatWeather(forecast []trip.WeatherDay) string {
	if len(forecast) == 0 {
		return "Weather data unavailable"
	}
	lines := make([]string, 0, MaxWeatherDays)
	for _, d := range forecast[:min(len(forecast), MaxWeatherDays)] {
		lines = append(lines, fmt.Sprintf("- %s: %s, H: %s°C, L: %s°C, Rain: %s%%",
			d.Date, d.Condition, formatAmount(d.TemperatureHigh), formatAmount(d.TemperatureLow), formatAmount(d.PrecipitationChance)))
	}
	return strings.Join(lines, "\n")
}

// FormatEvents renders the first events.
func FormatEvents(events []trip.Event) string {
	if len(events) == 0 {
		return "No major events during this period"
	}
	lines := make([]string, 0, MaxEvents)
	for _, e := range events[:min(len(events), MaxEvents)] {
		lines = append(lines, fmt.Sprintf("- %s: %s (Category: %s, Cost: $%s)", e.Date, e.Name, e.Category, formatAmount(e.EstimatedCost)))
	}
	return strings.Join(lines, "\n")
}

// FormatKnowledge renders the top snippets, truncated.
func FormatKnowledge(snippets []trip.KnowledgeSnippet) string {
	if len(snippets) == 0 {
		return "No specific insights available"
	}
	lines := make([]string, 0, MaxSnippets)
	for _, s := range snippets[:min(len(snippets), MaxSnippets)] {
		source := s.SourceName
		if source == "" {
			source = "Travel Guide"
		}
		lines = append(lines, fmt.Sprintf("- %s: %s", source, knowledge.Truncate(s.Text, MaxSnippetLength)))
	}
	return strings.Join(lines, "\n")
}

// FormatRisks mentions only the dimensions that need attention.
func FormatRisks(r *trip.RiskAnalysis) string {
	if r == nil {
		return "No significant risks identified"
	}
	var lines []string
	if elevated(r.BudgetRisk.OverrunRisk) {
		lines = append(lines, fmt.Sprintf("- Budget: %s risk of overrun (%d%%)", r.BudgetRisk.OverrunRisk, r.BudgetRisk.OverrunPercentage))
	}
	if elevated(r.WeatherRisk.RiskLevel) && r.WeatherRisk.RainyDays > 0 {
		lines = append(lines, fmt.Sprintf("- Weather: %d rainy days expected", r.WeatherRisk.RainyDays))
	}
	if elevated(r.CrowdingRisk.RiskLevel) {
		lines = append(lines, fmt.Sprintf("- Crowding: %s crowding expected", r.CrowdingRisk.RiskLevel))
	}
	if len(lines) == 0 {
		return "No significant risks identified"
	}
	return strings.Join(lines, "\n")
}

func elevated(level trip.RiskLevel) bool {
	return level == trip.RiskHigh || level == trip.RiskMedium
}

// formatAmount prints whole numbers without decimals and everything else with up to two.
func formatAmount(v float64) string {
	s := fmt.Sprintf("%.2f", v)
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}
