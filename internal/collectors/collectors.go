// Package collectors gathers the external signals of a trip: weather,
// local events, exchange rate and safety advisories.
package collectors

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/sourcegraph/conc"

	"github.com/ZanzyTHEbar/tripweaver-genkit/internal/cache"
	"github.com/ZanzyTHEbar/tripweaver-genkit/pkg/trip"
)

// ErrNoLiveSource is returned by a live collector that has no credentials.
var ErrNoLiveSource = errors.New("no live source configured")

// DefaultHTTPTimeout bounds every live request.
const DefaultHTTPTimeout = 10 * time.Second

type WeatherCollector interface {
	FetchWeather(ctx context.Context, location string, start, end trip.Date) (trip.Forecast, error)
}

type EventsCollector interface {
	FetchEvents(ctx context.Context, location string, start, end trip.Date) ([]trip.Event, error)
}

type ExchangeCollector interface {
	FetchExchangeRate(ctx context.Context, from, to string) (trip.ExchangeRate, error)
}

type SafetyCollector interface {
	FetchSafety(ctx context.Context, location string) (trip.SafetyAdvisory, error)
}

// Set bundles one collector per signal.
type Set struct {
	Weather  WeatherCollector
	Events   EventsCollector
	Exchange ExchangeCollector
	Safety   SafetyCollector
}

// Signals is the joined result of FetchAll. Failed fetches leave their
// field empty and add a warning.
type Signals struct {
	Forecast trip.Forecast
	Events   []trip.Event
	Safety   *trip.SafetyAdvisory
	Exchange *trip.ExchangeRate
	Warnings []string
}

// Settings configure New.
type Settings struct {
	OpenWeatherKey  string
	ExchangeRateKey string
	HTTPTimeout     time.Duration
	Cache           cache.Cache
}

// New builds the default set: live weather and exchange sources when keys
// are present, each falling back to synthetic data, optionally cached.
func New(s Settings) Set {
	timeout := s.HTTPTimeout
	if timeout <= 0 {
		timeout = DefaultHTTPTimeout
	}
	client := &http.Client{Timeout: timeout}
	synthetic := NewSynthetic()

	set := Set{Weather: synthetic, Events: synthetic, Exchange: synthetic, Safety: synthetic}
	if s.OpenWeatherKey != "" {
		set.Weather = &Fallback{
			Primary:   NewOpenWeather(s.OpenWeatherKey, client),
			Secondary: synthetic,
		}
	}
	if s.ExchangeRateKey != "" {
		set.Exchange = &Fallback{
			Primary:   NewExchangeRateAPI(s.ExchangeRateKey, client),
			Secondary: synthetic,
		}
	}
	if s.Cache != nil {
		return Cached(set, s.Cache)
	}
	return set
}

// FetchAll issues the four fetches concurrently and waits for all of them.
// The exchange rate is only fetched when the request currency differs from
// baseCurrency. Errors and panics degrade the affected field only.
func (s Set) FetchAll(ctx context.Context, req trip.Request, baseCurrency string) Signals {
	var (
		out      Signals
		warnings [4]string
	)
	currency := req.CurrencyOrDefault()

	wg := conc.NewWaitGroup()
	if s.Weather != nil {
		wg.Go(func() {
			forecast, err := s.Weather.FetchWeather(ctx, req.Destination, req.StartDate, req.EndDate)
			if err != nil {
				warnings[0] = fmt.Sprintf("weather data unavailable: %v", err)
				return
			}
			out.Forecast = forecast
		})
	}
	if s.Events != nil {
		wg.Go(func() {
			events, err := s.Events.FetchEvents(ctx, req.Destination, req.StartDate, req.EndDate)
			if err != nil {
				warnings[1] = fmt.Sprintf("events data unavailable: %v", err)
				return
			}
			out.Events = events
		})
	}
	if s.Safety != nil {
		wg.Go(func() {
			advisory, err := s.Safety.FetchSafety(ctx, req.Destination)
			if err != nil {
				warnings[2] = fmt.Sprintf("safety data unavailable: %v", err)
				return
			}
			out.Safety = &advisory
		})
	}
	if s.Exchange != nil && currency != baseCurrency {
		wg.Go(func() {
			rate, err := s.Exchange.FetchExchangeRate(ctx, baseCurrency, currency)
			if err != nil {
				warnings[3] = fmt.Sprintf("exchange rate unavailable: %v", err)
				return
			}
			out.Exchange = &rate
		})
	}
	if recovered := wg.WaitAndRecover(); recovered != nil {
		log.Printf("Collector panicked (destination: %s, panic: %v)", req.Destination, recovered.Value)
		out.Warnings = append(out.Warnings, fmt.Sprintf("collector panicked: %v", recovered.Value))
	}
	for _, w := range warnings {
		if w != "" {
			log.Printf("Collector degraded (destination: %s, warning: %s)", req.Destination, w)
			out.Warnings = append(out.Warnings, w)
		}
	}
	return out
}
