package collectors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ZanzyTHEbar/tripweaver-genkit/internal/cache"
	"github.com/ZanzyTHEbar/tripweaver-genkit/pkg/trip"
)

func tokyoRequest(currency string) trip.Request {
	return trip.Request{
		Destination: "Tokyo",
		StartDate:   trip.MustParseDate("2025-03-01"),
		EndDate:     trip.MustParseDate("2025-03-05"),
		Budget:      700,
		Currency:    currency,
	}
}

func TestSynthetic_Deterministic(t *testing.T) {
	s := NewSynthetic()
	ctx := context.Background()
	start, end := trip.MustParseDate("2025-03-01"), trip.MustParseDate("2025-03-05")

	a, _ := s.FetchWeather(ctx, "Tokyo", start, end)
	b, _ := s.FetchWeather(ctx, "Tokyo", start, end)
	if len(a.Days) != 5 {
		t.Fatalf("expected 5 forecast days, got %d", len(a.Days))
	}
	for i := range a.Days {
		if a.Days[i] != b.Days[i] {
			t.Errorf("day %d differs between calls", i)
		}
		d := a.Days[i]
		if d.TemperatureHigh < 20 || d.TemperatureHigh > 32 || d.TemperatureLow < 15 || d.TemperatureLow > 22 {
			t.Errorf("temperatures out of range: %+v", d)
		}
		if d.PrecipitationChance < 0 || d.PrecipitationChance > 80 {
			t.Errorf("precipitation out of range: %v", d.PrecipitationChance)
		}
	}
	if a.Days[0].Date != "2025-03-01" || a.Days[4].Date != "2025-03-05" {
		t.Errorf("unexpected dates %s..%s", a.Days[0].Date, a.Days[4].Date)
	}

	events, _ := s.FetchEvents(ctx, "Tokyo", start, end)
	if len(events) < 3 || len(events) > 8 {
		t.Fatalf("expected 3-8 events, got %d", len(events))
	}
	for i, e := range events {
		if e.Date < "2025-03-01" || e.Date > "2025-03-05" {
			t.Errorf("event outside trip: %s", e.Date)
		}
		if i > 0 && events[i-1].Date > e.Date {
			t.Errorf("events not sorted by date")
		}
		if !strings.HasSuffix(e.Name, " in Tokyo") {
			t.Errorf("unexpected event name %q", e.Name)
		}
	}
}

func TestSynthetic_ExchangeAndSafety(t *testing.T) {
	s := NewSynthetic()
	ctx := context.Background()
	rate, _ := s.FetchExchangeRate(ctx, "usd", "jpy")
	if rate.Rate != 149.5 || rate.From != "USD" || rate.Source != SourceSynthetic {
		t.Errorf("unexpected rate %+v", rate)
	}
	unknown, _ := s.FetchExchangeRate(ctx, "CHF", "SEK")
	if unknown.Rate != 1.0 {
		t.Errorf("expected 1.0 for unknown pair, got %v", unknown.Rate)
	}
	safety, _ := s.FetchSafety(ctx, "Tokyo")
	if safety.SafetyScore < 60 || safety.SafetyScore > 95 || len(safety.Advisories) != 3 {
		t.Errorf("unexpected safety %+v", safety)
	}
}

type dummyExchange struct{ calls int32 }

func (d *dummyExchange) FetchExchangeRate(ctx context.Context, from, to string) (trip.ExchangeRate, error) {
	atomic.AddInt32(&d.calls, 1)
	return trip.ExchangeRate{From: from, To: to, Rate: 2}, nil
}

type failingWeather struct{}

func (failingWeather) FetchWeather(context.Context, string, trip.Date, trip.Date) (trip.Forecast, error) {
	return trip.Forecast{}, errors.New("boom")
}

type panickingEvents struct{}

func (panickingEvents) FetchEvents(context.Context, string, trip.Date, trip.Date) ([]trip.Event, error) {
	panic("events exploded")
}

func TestFetchAll_ExchangeOnlyForForeignCurrency(t *testing.T) {
	ex := &dummyExchange{}
	set := Set{Weather: NewSynthetic(), Events: NewSynthetic(), Safety: NewSynthetic(), Exchange: ex}

	usd := set.FetchAll(context.Background(), tokyoRequest(""), "USD")
	if usd.Exchange != nil || atomic.LoadInt32(&ex.calls) != 0 {
		t.Fatalf("expected no exchange fetch for base currency")
	}
	if len(usd.Forecast.Days) != 5 || usd.Safety == nil || len(usd.Events) == 0 {
		t.Errorf("expected all other signals, got %+v", usd)
	}

	eur := set.FetchAll(context.Background(), tokyoRequest("eur"), "USD")
	if eur.Exchange == nil || eur.Exchange.From != "USD" || eur.Exchange.To != "EUR" {
		t.Errorf("expected USD->EUR rate, got %+v", eur.Exchange)
	}
}

func TestFetchAll_DegradesFailuresAndPanics(t *testing.T) {
	set := Set{Weather: failingWeather{}, Events: panickingEvents{}, Safety: NewSynthetic()}
	out := set.FetchAll(context.Background(), tokyoRequest(""), "USD")

	if len(out.Forecast.Days) != 0 || out.Events != nil {
		t.Errorf("expected empty weather and events")
	}
	if out.Safety == nil {
		t.Errorf("expected safety to survive sibling failures")
	}
	if len(out.Warnings) != 2 {
		t.Fatalf("expected 2 warnings, got %v", out.Warnings)
	}
	joined := strings.Join(out.Warnings, ";")
	if !strings.Contains(joined, "weather data unavailable") || !strings.Contains(joined, "panicked") {
		t.Errorf("unexpected warnings %v", out.Warnings)
	}
}

const owmForecastBody = `{
  "city": {"name": "Tokyo"},
  "list": [
    {"dt_txt": "2025-03-01 09:00:00", "main": {"temp": 12, "humidity": 60}, "weather": [{"main": "Rain"}], "wind": {"speed": 3}, "rain": {"3h": 1.2}},
    {"dt_txt": "2025-03-01 12:00:00", "main": {"temp": 16, "humidity": 50}, "weather": [{"main": "Clouds"}], "wind": {"speed": 5}},
    {"dt_txt": "2025-03-01 15:00:00", "main": {"temp": 14, "humidity": 70}, "weather": [{"main": "Rain"}], "wind": {"speed": 4}, "rain": {"3h": 0.4}},
    {"dt_txt": "2025-03-01 18:00:00", "main": {"temp": 10, "humidity": 60}, "weather": [{"main": "Clear"}], "wind": {"speed": 4}},
    {"dt_txt": "2025-03-02 09:00:00", "main": {"temp": 20, "humidity": 40}, "weather": [{"main": "Clear"}], "wind": {"speed": 2}}
  ]
}`

func TestOpenWeather_AggregatesPerDay(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("appid") != "key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch r.URL.Path {
		case "/geo/1.0/direct":
			fmt.Fprint(w, `[{"name":"Tokyo","lat":35.68,"lon":139.69}]`)
		case "/data/2.5/forecast":
			if r.URL.Query().Get("units") != "metric" {
				t.Errorf("expected metric units")
			}
			fmt.Fprint(w, owmForecastBody)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	ow := NewOpenWeather("key", srv.Client())
	ow.BaseURL = srv.URL
	forecast, err := ow.FetchWeather(context.Background(), "Tokyo", trip.MustParseDate("2025-03-01"), trip.MustParseDate("2025-03-02"))
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if forecast.Source != SourceOpenWeather || forecast.Location != "Tokyo" || len(forecast.Days) != 2 {
		t.Fatalf("unexpected forecast %+v", forecast)
	}
	day := forecast.Days[0]
	if day.Condition != "Rain" || day.TemperatureHigh != 16 || day.TemperatureLow != 10 {
		t.Errorf("unexpected aggregate %+v", day)
	}
	if day.PrecipitationChance != 50 || day.Humidity != 60 || day.WindSpeed != 4 {
		t.Errorf("unexpected aggregate %+v", day)
	}

	ow.APIKey = "wrong"
	if _, err := ow.FetchWeather(context.Background(), "Tokyo", trip.MustParseDate("2025-03-01"), trip.MustParseDate("2025-03-02")); err == nil {
		t.Errorf("expected error on bad status")
	}
}

func TestExchangeRateAPI(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v6/key/pair/USD/EUR" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, `{"result":"success","conversion_rate":0.9123,"time_last_update_utc":"Sat, 01 Mar 2025 00:00:01 +0000"}`)
	}))
	defer srv.Close()

	api := NewExchangeRateAPI("key", srv.Client())
	api.BaseURL = srv.URL
	rate, err := api.FetchExchangeRate(context.Background(), "usd", "eur")
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if rate.Rate != 0.9123 || rate.Source != SourceExchangeRateAPI {
		t.Errorf("unexpected rate %+v", rate)
	}
	if _, err := NewExchangeRateAPI("", nil).FetchExchangeRate(context.Background(), "USD", "EUR"); !errors.Is(err, ErrNoLiveSource) {
		t.Errorf("expected ErrNoLiveSource, got %v", err)
	}
}

func TestFallback_UsesSecondaryOnError(t *testing.T) {
	f := &Fallback{Primary: failingWeather{}, Secondary: NewSynthetic()}
	forecast, err := f.FetchWeather(context.Background(), "Paris", trip.MustParseDate("2025-06-01"), trip.MustParseDate("2025-06-02"))
	if err != nil || forecast.Source != SourceSynthetic {
		t.Errorf("expected synthetic fallback, got %+v, %v", forecast, err)
	}
	if _, err := (&Fallback{}).FetchSafety(context.Background(), "Paris"); !errors.Is(err, ErrNoLiveSource) {
		t.Errorf("expected ErrNoLiveSource without collectors, got %v", err)
	}
}

func TestCached_ServesRepeatCalls(t *testing.T) {
	ex := &dummyExchange{}
	set := Cached(Set{Exchange: ex, Weather: NewSynthetic()}, cache.NewTTLCache(time.Minute, time.Minute))
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := set.Exchange.FetchExchangeRate(ctx, "USD", "EUR"); err != nil {
			t.Fatalf("fetch failed: %v", err)
		}
	}
	if got := atomic.LoadInt32(&ex.calls); got != 1 {
		t.Errorf("expected 1 upstream call, got %d", got)
	}
	if set.Events != nil || set.Safety != nil {
		t.Errorf("expected absent collectors to stay absent")
	}
}

func TestNew_WithoutKeysIsSynthetic(t *testing.T) {
	set := New(Settings{})
	forecast, err := set.Weather.FetchWeather(context.Background(), "Rome", trip.MustParseDate("2025-05-01"), trip.MustParseDate("2025-05-03"))
	if err != nil || forecast.Source != SourceSynthetic || len(forecast.Days) != 3 {
		t.Errorf("expected synthetic forecast, got %+v, %v", forecast, err)
	}
}
