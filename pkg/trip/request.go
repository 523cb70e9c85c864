// Package trip holds the public data model shared by the planner runtime and its engines.
package trip

import (
	"errors"
	"fmt"
	"strings"
)

// DefaultCurrency is assumed when a request does not name one.
const DefaultCurrency = "USD"

// Request is the immutable input of one planning run.
type Request struct {
	Destination string                 `json:"destination"`
	StartDate   Date                   `json:"start_date"`
	EndDate     Date                   `json:"end_date"`
	Budget      float64                `json:"budget"`
	Currency    string                 `json:"currency,omitempty"`
	Interests   []string               `json:"interests,omitempty"`
	Constraints map[string]interface{} `json:"constraints,omitempty"`
	UserID      string                 `json:"user_id,omitempty"`
}

// Validate checks the request invariants.
func (r Request) Validate() error {
	var errs []error
	if strings.TrimSpace(r.Destination) == "" {
		errs = append(errs, errors.New("destination is required"))
	}
	if r.StartDate.IsZero() || r.EndDate.IsZero() {
		errs = append(errs, errors.New("start_date and end_date are required"))
	} else if r.EndDate.Before(r.StartDate.Time) {
		errs = append(errs, fmt.Errorf("end_date %s is before start_date %s", r.EndDate, r.StartDate))
	}
	if r.Budget <= 0 {
		errs = append(errs, fmt.Errorf("budget must be positive, got %v", r.Budget))
	}
	return errors.Join(errs...)
}

// DurationDays is the inclusive number of calendar days in the trip.
func (r Request) DurationDays() int {
	return r.StartDate.DaysUntil(r.EndDate) + 1
}

// Dates lists every trip date as YYYY-MM-DD.
func (r Request) Dates() []string {
	n := r.DurationDays()
	if n < 1 {
		return nil
	}
	dates := make([]string, n)
	for i := range dates {
		dates[i] = r.StartDate.AddDays(i).String()
	}
	return dates
}

// CurrencyOrDefault returns the request currency, or DefaultCurrency.
func (r Request) CurrencyOrDefault() string {
	if r.Currency == "" {
		return DefaultCurrency
	}
	return strings.ToUpper(r.Currency)
}

// Constraint returns a constraint value as a string, or "" when absent.
func (r Request) Constraint(key string) string {
	v, ok := r.Constraints[key]
	if !ok || v == nil {
		return ""
	}
	switch val := v.(type) {
	case string:
		return val
	case bool:
		if val {
			return "true"
		}
		return ""
	default:
		return fmt.Sprintf("%v", val)
	}
}
