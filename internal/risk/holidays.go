package risk

import (
	"fmt"

	"github.com/samber/lo"
)

// HolidayCalendar lists known public holidays for a destination.
type HolidayCalendar interface {
	Holidays(destination string, years []int) []HolidayDate
}

// HolidayDate is a named calendar date.
type HolidayDate struct {
	Name string
	Date string
}

// FixedHolidays is a calendar of month/day holidays that repeat every year.
type FixedHolidays struct {
	// ByDestination overrides Default for lower-cased destination names.
	ByDestination map[string][]MonthDay
	Default       []MonthDay
}

// MonthDay is a holiday that falls on the same date each year.
type MonthDay struct {
	Name  string
	Month int
	Day   int
}

// DefaultHolidays returns New Year's Day and Christmas for every destination.
func DefaultHolidays() *FixedHolidays {
	return &FixedHolidays{
		Default: []MonthDay{
			{Name: "New Year's Day", Month: 1, Day: 1},
			{Name: "Christmas", Month: 12, Day: 25},
		},
	}
}

// Holidays implements HolidayCalendar.
func (f *FixedHolidays) Holidays(destination string, years []int) []HolidayDate {
	days, ok := f.ByDestination[normalize(destination)]
	if !ok {
		days = f.Default
	}
	var out []HolidayDate
	for _, year := range lo.Uniq(years) {
		for _, md := range days {
			out = append(out, HolidayDate{
				Name: md.Name,
				Date: fmt.Sprintf("%04d-%02d-%02d", year, md.Month, md.Day),
			})
		}
	}
	return out
}
