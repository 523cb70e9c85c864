package trip

import (
	"encoding/json"
	"testing"
)

func TestRequest_Validate(t *testing.T) {
	valid := Request{
		Destination: "Tokyo",
		StartDate:   MustParseDate("2025-03-01"),
		EndDate:     MustParseDate("2025-03-05"),
		Budget:      700,
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("expected valid request, got %v", err)
	}

	tests := []struct {
		name string
		mut  func(r *Request)
	}{
		{"missing destination", func(r *Request) { r.Destination = " " }},
		{"end before start", func(r *Request) { r.EndDate = MustParseDate("2025-02-28") }},
		{"zero budget", func(r *Request) { r.Budget = 0 }},
		{"missing dates", func(r *Request) { r.StartDate = Date{} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := valid
			tt.mut(&r)
			if err := r.Validate(); err == nil {
				t.Errorf("expected validation error")
			}
		})
	}
}

func TestRequest_DatesAndDuration(t *testing.T) {
	r := Request{StartDate: MustParseDate("2024-12-30"), EndDate: MustParseDate("2025-01-02")}
	if got := r.DurationDays(); got != 4 {
		t.Fatalf("expected 4 days, got %d", got)
	}
	dates := r.Dates()
	want := []string{"2024-12-30", "2024-12-31", "2025-01-01", "2025-01-02"}
	for i, d := range want {
		if dates[i] != d {
			t.Errorf("date %d: expected %s, got %s", i, d, dates[i])
		}
	}

	single := Request{StartDate: MustParseDate("2025-05-05"), EndDate: MustParseDate("2025-05-05")}
	if single.DurationDays() != 1 {
		t.Errorf("expected single-day trip to last 1 day")
	}
}

func TestDate_JSON(t *testing.T) {
	var r Request
	payload := `{"destination":"Paris","start_date":"2025-06-01","end_date":"2025-06-03T00:00:00Z","budget":500}`
	if err := json.Unmarshal([]byte(payload), &r); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if r.EndDate.String() != "2025-06-03" {
		t.Errorf("expected end date 2025-06-03, got %s", r.EndDate)
	}
	out, err := json.Marshal(r.StartDate)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if string(out) != `"2025-06-01"` {
		t.Errorf("unexpected date encoding %s", out)
	}
}

func TestRequest_CurrencyAndConstraints(t *testing.T) {
	r := Request{Constraints: map[string]interface{}{"no_early_mornings": true, "pace": "relaxed", "flag": false}}
	if r.CurrencyOrDefault() != "USD" {
		t.Errorf("expected default currency USD")
	}
	r.Currency = "eur"
	if r.CurrencyOrDefault() != "EUR" {
		t.Errorf("expected upper-cased currency")
	}
	if r.Constraint("no_early_mornings") != "true" || r.Constraint("pace") != "relaxed" {
		t.Errorf("unexpected constraint values")
	}
	if r.Constraint("flag") != "" || r.Constraint("missing") != "" {
		t.Errorf("expected empty constraint values for false and missing keys")
	}
}

func TestExchangeRate_RateOrDefault(t *testing.T) {
	var missing *ExchangeRate
	if missing.RateOrDefault() != 1.0 {
		t.Errorf("expected 1.0 for nil rate")
	}
	if (&ExchangeRate{Rate: 0.92}).RateOrDefault() != 0.92 {
		t.Errorf("expected rate to pass through")
	}
}
