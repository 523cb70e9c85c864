package collectors

import (
	"context"
	"strings"

	"github.com/ZanzyTHEbar/tripweaver-genkit/internal/cache"
	"github.com/ZanzyTHEbar/tripweaver-genkit/pkg/trip"
)

// Cached wraps every collector of the set so identical calls are served
// from c while the entry lives.
func Cached(set Set, c cache.Cache) Set {
	cc := &cachedCollector{set: set, cache: c}
	out := Set{}
	if set.Weather != nil {
		out.Weather = cc
	}
	if set.Events != nil {
		out.Events = cc
	}
	if set.Exchange != nil {
		out.Exchange = cc
	}
	if set.Safety != nil {
		out.Safety = cc
	}
	return out
}

type cachedCollector struct {
	set   Set
	cache cache.Cache
}

func key(kind string, parts ...string) string {
	return kind + ":" + strings.ToLower(strings.Join(parts, "|"))
}

func lookup[T any](ctx context.Context, c cache.Cache, k string) (T, bool) {
	var zero T
	v, err := c.Get(ctx, k)
	if err != nil {
		return zero, false
	}
	typed, ok := v.(T)
	return typed, ok
}

func (c *cachedCollector) FetchWeather(ctx context.Context, location string, start, end trip.Date) (trip.Forecast, error) {
	k := key("weather", location, start.String(), end.String())
	if hit, ok := lookup[trip.Forecast](ctx, c.cache, k); ok {
		return hit, nil
	}
	forecast, err := c.set.Weather.FetchWeather(ctx, location, start, end)
	if err != nil {
		return forecast, err
	}
	_ = c.cache.Set(ctx, k, forecast)
	return forecast, nil
}

func (c *cachedCollector) FetchEvents(ctx context.Context, location string, start, end trip.Date) ([]trip.Event, error) {
	k := key("events", location, start.String(), end.String())
	if hit, ok := lookup[[]trip.Event](ctx, c.cache, k); ok {
		return append([]trip.Event(nil), hit...), nil
	}
	events, err := c.set.Events.FetchEvents(ctx, location, start, end)
	if err != nil {
		return events, err
	}
	_ = c.cache.Set(ctx, k, append([]trip.Event(nil), events...))
	return events, nil
}

func (c *cachedCollector) FetchExchangeRate(ctx context.Context, from, to string) (trip.ExchangeRate, error) {
	k := key("exchange", from, to)
	if hit, ok := lookup[trip.ExchangeRate](ctx, c.cache, k); ok {
		return hit, nil
	}
	rate, err := c.set.Exchange.FetchExchangeRate(ctx, from, to)
	if err != nil {
		return rate, err
	}
	_ = c.cache.Set(ctx, k, rate)
	return rate, nil
}

func (c *cachedCollector) FetchSafety(ctx context.Context, location string) (trip.SafetyAdvisory, error) {
	k := key("safety", location)
	if hit, ok := lookup[trip.SafetyAdvisory](ctx, c.cache, k); ok {
		return hit, nil
	}
	advisory, err := c.set.Safety.FetchSafety(ctx, location)
	if err != nil {
		return advisory, err
	}
	_ = c.cache.Set(ctx, k, advisory)
	return advisory, nil
}
