package itinerary

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/ZanzyTHEbar/tripweaver-genkit/pkg/trip"
)

var (
	// "Day 2:", "Day 2 (March 02):" or "Day 2 - Arrival:".
	dayHeader = regexp.MustCompile(`(?i)^day\s+(\d+)\s*(?:\([^)]*\)|[-–]\s*[^:.!?]{1,40})?\s*:`)
	costRe    = regexp.MustCompile(`\$\s?(\d[\d,]*(?:\.\d+)?)`)
)

// Labels that look like activities but are annotations.
var skipLabels = map[string]bool{
	"tips":        true,
	"tip":         true,
	"daily total": true,
	"total":       true,
	"note":        true,
}

// Parse scans completion text for "Day <n>:" headers and "slot: description"
// activity lines. Day numbers outside 1..days are ignored; repeated headers
// for the same day append to it. The result is ordered by day number.
func Parse(text string, start trip.Date, days int) []trip.DayPlan {
	byDay := map[int]*trip.DayPlan{}
	var current *trip.DayPlan

	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		plain := strings.TrimSpace(strings.Trim(line, "#*_ "))
		if m := dayHeader.FindStringSubmatch(plain); m != nil {
			current = nil
			n, err := strconv.Atoi(m[1])
			if err != nil || n < 1 || n > days {
				continue
			}
			if byDay[n] == nil {
				byDay[n] = &trip.DayPlan{DayNumber: n, Date: start.AddDays(n - 1).String()}
			}
			current = byDay[n]
			continue
		}
		if current == nil {
			continue
		}
		if a, ok := ParseActivity(line); ok {
			current.Activities = append(current.Activities, a)
			current.EstimatedCost += a.Cost
		}
	}

	plans := make([]trip.DayPlan, 0, len(byDay))
	for _, p := range byDay {
		plans = append(plans, *p)
	}
	sort.Slice(plans, func(i, j int) bool { return plans[i].DayNumber < plans[j].DayNumber })
	return plans
}

// ParseActivity splits "- Morning (9:00-12:00): Tsukiji market - Cost: $30"
// into slot, description and cost. Colons inside parentheses do not split.
func ParseActivity(line string) (trip.Activity, bool) {
	line = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), "-*•+ "))
	line = strings.ReplaceAll(line, "**", "")
	idx := labelColon(line)
	if idx <= 0 {
		return trip.Activity{}, false
	}
	slot := strings.TrimSpace(line[:idx])
	desc := strings.TrimSpace(line[idx+1:])
	if slot == "" || desc == "" || skipLabels[strings.ToLower(slot)] {
		return trip.Activity{}, false
	}
	return trip.Activity{TimeSlot: slot, Description: desc, Cost: ExtractCost(desc)}, true
}

func labelColon(s string) int {
	depth := 0
	for i, r := range s {
		switch r {
		case '(', '[':
			depth++
		case ')', ']':
			if depth > 0 {
				depth--
			}
		case ':':
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// ExtractCost returns the first "$<number>" amount, or 0.
func ExtractCost(s string) float64 {
	m := costRe.FindStringSubmatch(s)
	if m == nil {
		return 0
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
	if err != nil {
		return 0
	}
	return v
}
