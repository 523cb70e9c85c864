package trip

import "time"

// RiskLevel is a categorical risk assessment.
type RiskLevel string

const (
	RiskVeryLow RiskLevel = "very low"
	RiskLow     RiskLevel = "low"
	RiskMedium  RiskLevel = "medium"
	RiskHigh    RiskLevel = "high"
	RiskUnknown RiskLevel = "unknown"
)

// Comfort labels derived from the quality score.
const (
	ComfortExcellent = "excellent"
	ComfortGood      = "good"
	ComfortFair      = "fair"
	ComfortPoor      = "poor"
)

// BudgetRisk is the budget-overrun assessment.
type BudgetRisk struct {
	EstimatedCost      float64   `json:"estimated_cost"`
	Budget             float64   `json:"budget"`
	BudgetRatio        float64   `json:"budget_ratio"`
	OverrunRisk        RiskLevel `json:"overrun_risk"`
	OverrunPercentage  int       `json:"overrun_percentage"`
	DailyEstimatedCost float64   `json:"daily_estimated_cost"`
	Recommendations    []string  `json:"recommendations"`
}

// WeatherRisk is the weather assessment over the forecast.
type WeatherRisk struct {
	RiskLevel          RiskLevel `json:"risk_level"`
	RainyDays          int       `json:"rainy_days"`
	TotalDays          int       `json:"total_days"`
	RainPercentage     float64   `json:"rain_percentage"`
	ExtremeWeatherDays int       `json:"extreme_weather_days"`
	HotDays            int       `json:"hot_days"`
	ColdDays           int       `json:"cold_days"`
	BestDay            string    `json:"best_day,omitempty"`
	Recommendations    []string  `json:"recommendations"`
}

// Holiday is a known public holiday.
type Holiday struct {
	Name string `json:"name"`
	Date string `json:"date"`
}

// CrowdingRisk is the crowding and closure assessment.
type CrowdingRisk struct {
	RiskLevel       RiskLevel `json:"risk_level"`
	MajorEvents     []Event   `json:"major_events"`
	CrowdedDays     []string  `json:"crowded_days"`
	Holidays        []Holiday `json:"holidays"`
	Recommendations []string  `json:"recommendations"`
}

// ComponentScores are the per-dimension quality sub-scores.
type ComponentScores struct {
	Budget   float64 `json:"budget"`
	Weather  float64 `json:"weather"`
	Crowding float64 `json:"crowding"`
}

// QualityScore is the weighted 0-100 composite.
type QualityScore struct {
	OverallScore    float64         `json:"overall_score"`
	ComfortLevel    string          `json:"comfort_level"`
	ComponentScores ComponentScores `json:"component_scores"`
	Recommendation  string          `json:"recommendation"`
}

// RiskAnalysis bundles the four assessments of one run.
type RiskAnalysis struct {
	BudgetRisk        BudgetRisk   `json:"budget_risk"`
	WeatherRisk       WeatherRisk  `json:"weather_risk"`
	CrowdingRisk      CrowdingRisk `json:"crowding_risk"`
	QualityScore      QualityScore `json:"quality_score"`
	TripDurationDays  int          `json:"trip_duration_days"`
	DateRange         DateRange    `json:"date_range"`
	AnalysisTimestamp time.Time    `json:"analysis_timestamp"`
}
