// Package calendar exports itineraries as iCalendar files.
package calendar

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"

	"github.com/ZanzyTHEbar/tripweaver-genkit/internal/itinerary"
	"github.com/ZanzyTHEbar/tripweaver-genkit/pkg/trip"
)

// ProductID identifies the generator in exported calendars.
const ProductID = "-//tripweaver//itinerary//EN"

// ContentType is the media type of Export output.
const ContentType = "text/calendar; charset=utf-8"

type window struct{ start, end int } // minutes after midnight

// Slot windows used when an activity has no explicit time range.
var slotWindows = map[string]window{
	"morning":   {9 * 60, 12 * 60},
	"afternoon": {13 * 60, 18 * 60},
	"evening":   {19 * 60, 22 * 60},
	"night":     {20 * 60, 23 * 60},
	"lunch":     {12 * 60, 13 * 60},
	"dinner":    {19 * 60, 21 * 60},
	"breakfast": {8 * 60, 9 * 60},
}

var rangeRe = regexp.MustCompile(`(\d{1,2}):(\d{2})\s*-\s*(\d{1,2}):(\d{2})`)

// SlotWindow returns the time range of a slot label like "Morning (9:00-12:00)".
func SlotWindow(slot string) (start, end time.Duration, ok bool) {
	if m := rangeRe.FindStringSubmatch(slot); m != nil {
		s := minutes(m[1], m[2])
		e := minutes(m[3], m[4])
		if s >= 0 && e > s && e <= 24*60 {
			return time.Duration(s) * time.Minute, time.Duration(e) * time.Minute, true
		}
	}
	label := strings.ToLower(strings.TrimSpace(slot))
	for name, w := range slotWindows {
		if strings.HasPrefix(label, name) {
			return time.Duration(w.start) * time.Minute, time.Duration(w.end) * time.Minute, true
		}
	}
	return 0, 0, false
}

func minutes(h, m string) int {
	hh, err1 := strconv.Atoi(h)
	mm, err2 := strconv.Atoi(m)
	if err1 != nil || err2 != nil || mm > 59 {
		return -1
	}
	return hh*60 + mm
}

// Build renders an itinerary as a calendar. Timed activities become timed
// events; activities without a known slot and days without activities
// become all-day events. uidPrefix keeps UIDs stable across exports.
func Build(it *trip.Itinerary, uidPrefix string) (*ics.Calendar, error) {
	if it == nil {
		return nil, fmt.Errorf("no itinerary to export")
	}
	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId(ProductID)
	name := "Trip to " + itinerary.DisplayName(it.Destination)
	cal.SetName(name)
	cal.SetXWRCalName(name)

	now := time.Now().UTC()
	for _, day := range it.DailyItineraries {
		date, err := trip.ParseDate(day.Date)
		if err != nil {
			return nil, fmt.Errorf("day %d: %w", day.DayNumber, err)
		}
		if len(day.Activities) == 0 {
			e := cal.AddEvent(fmt.Sprintf("%s-day%d", uidPrefix, day.DayNumber))
			e.SetDtStampTime(now)
			e.SetAllDayStartAt(date.Time)
			e.SetAllDayEndAt(date.AddDays(1).Time)
			e.SetSummary(fmt.Sprintf("Day %d in %s", day.DayNumber, itinerary.DisplayName(it.Destination)))
			e.SetDescription(dayNotes(day))
			continue
		}
		for i, a := range day.Activities {
			e := cal.AddEvent(fmt.Sprintf("%s-day%d-%d", uidPrefix, day.DayNumber, i+1))
			e.SetDtStampTime(now)
			if start, end, ok := SlotWindow(a.TimeSlot); ok {
				e.SetStartAt(date.Add(start))
				e.SetEndAt(date.Add(end))
			} else {
				e.SetAllDayStartAt(date.Time)
				e.SetAllDayEndAt(date.AddDays(1).Time)
			}
			e.SetSummary(summary(a))
			e.SetLocation(itinerary.DisplayName(it.Destination))
			desc := a.Description
			if a.Cost > 0 {
				desc += fmt.Sprintf("\nEstimated cost: $%.2f", a.Cost)
			}
			if notes := dayNotes(day); notes != "" {
				desc += "\n" + notes
			}
			e.SetDescription(desc)
		}
	}
	return cal, nil
}

// Export serialises an itinerary as .ics text.
func Export(it *trip.Itinerary, uidPrefix string) (string, error) {
	cal, err := Build(it, uidPrefix)
	if err != nil {
		return "", err
	}
	return cal.Serialize(), nil
}

// summary is the activity name: the description up to its first " - ".
func summary(a trip.Activity) string {
	name, _, _ := strings.Cut(a.Description, " - ")
	name = strings.TrimSpace(name)
	if name == "" {
		return a.TimeSlot
	}
	return name
}

func dayNotes(day trip.DayPlan) string {
	var lines []string
	if w := day.Weather; w != nil {
		lines = append(lines, fmt.Sprintf("Weather: %s, %.0f/%.0f°C, %.0f%% rain", w.Condition, w.High, w.Low, w.RainChance))
	}
	lines = append(lines, day.Recommendations...)
	return strings.Join(lines, "\n")
}
