package risk

import (
	"strings"

	"github.com/samber/lo"
)

// CostModel estimates what a trip costs before any itinerary exists.
type CostModel interface {
	// Destination returns the daily base cost and the destination price multiplier.
	Destination(destination string) (dailyBase, multiplier float64)
	// InterestMultiplier returns the spending multiplier implied by the interests.
	InterestMultiplier(interests []string) float64
}

// DestinationCost is one row of the destination cost table.
type DestinationCost struct {
	DailyBase  float64 `yaml:"daily_base" json:"daily_base"`
	Multiplier float64 `yaml:"multiplier" json:"multiplier"`
}

// TableCostModel is a fixed-table CostModel keyed by lower-cased names.
type TableCostModel struct {
	Destinations map[string]DestinationCost
	Default      DestinationCost
	Activities   map[string]float64
}

// DefaultCostModel returns the built-in cost tables.
func DefaultCostModel() *TableCostModel {
	return &TableCostModel{
		Destinations: map[string]DestinationCost{
			"tokyo":     {DailyBase: 150, Multiplier: 1.3},
			"paris":     {DailyBase: 140, Multiplier: 1.25},
			"london":    {DailyBase: 160, Multiplier: 1.35},
			"bangkok":   {DailyBase: 60, Multiplier: 0.9},
			"new york":  {DailyBase: 180, Multiplier: 1.4},
			"rome":      {DailyBase: 120, Multiplier: 1.15},
			"barcelona": {DailyBase: 110, Multiplier: 1.1},
		},
		Default: DestinationCost{DailyBase: 100, Multiplier: 1.0},
		Activities: map[string]float64{
			"food":        1.2,
			"fine dining": 1.4,
			"luxury":      1.5,
			"shopping":    1.3,
			"adventure":   1.15,
			"culture":     1.0,
			"art":         1.05,
			"nightlife":   1.2,
			"budget":      0.7,
		},
	}
}

// Destination implements CostModel.
func (m *TableCostModel) Destination(destination string) (float64, float64) {
	key := strings.ToLower(strings.TrimSpace(destination))
	if c, ok := m.Destinations[key]; ok {
		return c.DailyBase, c.Multiplier
	}
	return m.Default.DailyBase, m.Default.Multiplier
}

// InterestMultiplier implements CostModel. Unknown tags count as 1.0 and the
// result never drops below 1.0.
func (m *TableCostModel) InterestMultiplier(interests []string) float64 {
	multipliers := lo.Map(interests, func(interest string, _ int) float64 {
		if v, ok := m.Activities[strings.ToLower(strings.TrimSpace(interest))]; ok {
			return v
		}
		return 1.0
	})
	return lo.Max(append(multipliers, 1.0))
}
