package collectors

import (
	"context"
	"log"

	"github.com/ZanzyTHEbar/tripweaver-genkit/pkg/trip"
)

// Fallback serves each fetch from Primary and, on any error, from Secondary.
// Primary and Secondary only need to implement the signals actually fetched.
type Fallback struct {
	Primary   interface{}
	Secondary interface{}
}

func (f *Fallback) FetchWeather(ctx context.Context, location string, start, end trip.Date) (trip.Forecast, error) {
	if p, ok := f.Primary.(WeatherCollector); ok {
		forecast, err := p.FetchWeather(ctx, location, start, end)
		if err == nil {
			return forecast, nil
		}
		log.Printf("Live weather failed, using fallback (location: %s, error: %v)", location, err)
	}
	if s, ok := f.Secondary.(WeatherCollector); ok {
		return s.FetchWeather(ctx, location, start, end)
	}
	return trip.Forecast{}, ErrNoLiveSource
}

func (f *Fallback) FetchEvents(ctx context.Context, location string, start, end trip.Date) ([]trip.Event, error) {
	if p, ok := f.Primary.(EventsCollector); ok {
		events, err := p.FetchEvents(ctx, location, start, end)
		if err == nil {
			return events, nil
		}
		log.Printf("Live events failed, using fallback (location: %s, error: %v)", location, err)
	}
	if s, ok := f.Secondary.(EventsCollector); ok {
		return s.FetchEvents(ctx, location, start, end)
	}
	return nil, ErrNoLiveSource
}

func (f *Fallback) FetchExchangeRate(ctx context.Context, from, to string) (trip.ExchangeRate, error) {
	if p, ok := f.Primary.(ExchangeCollector); ok {
		rate, err := p.FetchExchangeRate(ctx, from, to)
		if err == nil {
			return rate, nil
		}
		log.Printf("Live exchange rate failed, using fallback (pair: %s/%s, error: %v)", from, to, err)
	}
	if s, ok := f.Secondary.(ExchangeCollector); ok {
		return s.FetchExchangeRate(ctx, from, to)
	}
	return trip.ExchangeRate{}, ErrNoLiveSource
}

func (f *Fallback) FetchSafety(ctx context.Context, location string) (trip.SafetyAdvisory, error) {
	if p, ok := f.Primary.(SafetyCollector); ok {
		advisory, err := p.FetchSafety(ctx, location)
		if err == nil {
			return advisory, nil
		}
		log.Printf("Live safety failed, using fallback (location: %s, error: %v)", location, err)
	}
	if s, ok := f.Secondary.(SafetyCollector); ok {
		return s.FetchSafety(ctx, location)
	}
	return trip.SafetyAdvisory{}, ErrNoLiveSource
}
