package collectors

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/ZanzyTHEbar/tripweaver-genkit/pkg/trip"
)

const (
	DefaultOpenWeatherURL = "http://api.openweathermap.org"
	SourceOpenWeather     = "openweathermap"
	maxForecastDays       = 7
)

// OpenWeather fetches a 5-day/3-hour forecast and aggregates it per day.
type OpenWeather struct {
	HTTP    *http.Client
	APIKey  string
	BaseURL string
}

func NewOpenWeather(apiKey string, client *http.Client) *OpenWeather {
	if client == nil {
		client = &http.Client{Timeout: DefaultHTTPTimeout}
	}
	return &OpenWeather{HTTP: client, APIKey: apiKey, BaseURL: DefaultOpenWeatherURL}
}

type owmGeo struct {
	Name string  `json:"name"`
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
}

type owmForecast struct {
	List []struct {
		DtTxt string `json:"dt_txt"`
		Main  struct {
			Temp     float64 `json:"temp"`
			Humidity float64 `json:"humidity"`
		} `json:"main"`
		Weather []struct {
			Main string `json:"main"`
		} `json:"weather"`
		Wind struct {
			Speed float64 `json:"speed"`
		} `json:"wind"`
		Rain map[string]float64 `json:"rain"`
	} `json:"list"`
	City struct {
		Name string `json:"name"`
	} `json:"city"`
}

func (o *OpenWeather) FetchWeather(ctx context.Context, location string, start, end trip.Date) (trip.Forecast, error) {
	if o.APIKey == "" {
		return trip.Forecast{}, ErrNoLiveSource
	}
	q := url.Values{}
	q.Set("q", location)
	q.Set("limit", "1")
	q.Set("appid", o.APIKey)
	var geo []owmGeo
	if err := o.get(ctx, "/geo/1.0/direct", q, &geo); err != nil {
		return trip.Forecast{}, err
	}
	if len(geo) == 0 {
		return trip.Forecast{}, fmt.Errorf("location %q not found", location)
	}

	q = url.Values{}
	q.Set("lat", fmt.Sprintf("%f", geo[0].Lat))
	q.Set("lon", fmt.Sprintf("%f", geo[0].Lon))
	q.Set("appid", o.APIKey)
	q.Set("units", "metric")
	var raw owmForecast
	if err := o.get(ctx, "/data/2.5/forecast", q, &raw); err != nil {
		return trip.Forecast{}, err
	}
	return aggregateForecast(raw), nil
}

func (o *OpenWeather) get(ctx context.Context, path string, q url.Values, out interface{}) error {
	u := strings.TrimRight(o.BaseURL, "/") + path + "?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	resp, err := o.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("openweather http error: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("openweather bad status: %s", resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("openweather decode: %w", err)
	}
	return nil
}

type dayBucket struct {
	conditions map[string]int
	temps      []float64
	humidity   []float64
	wind       []float64
	rainSlots  int
	slots      int
}

// aggregateForecast folds 3-hour slots into calendar days.
func aggregateForecast(raw owmForecast) trip.Forecast {
	buckets := map[string]*dayBucket{}
	var order []string
	for _, item := range raw.List {
		if len(item.DtTxt) < 10 {
			continue
		}
		date := item.DtTxt[:10]
		b, ok := buckets[date]
		if !ok {
			b = &dayBucket{conditions: map[string]int{}}
			buckets[date] = b
			order = append(order, date)
		}
		if len(item.Weather) > 0 {
			b.conditions[item.Weather[0].Main]++
		}
		b.temps = append(b.temps, item.Main.Temp)
		b.humidity = append(b.humidity, item.Main.Humidity)
		b.wind = append(b.wind, item.Wind.Speed)
		b.slots++
		if item.Rain["3h"] > 0 {
			b.rainSlots++
		}
	}
	sort.Strings(order)

	forecast := trip.Forecast{Location: raw.City.Name, Source: SourceOpenWeather}
	for _, date := range order {
		if len(forecast.Days) == maxForecastDays {
			break
		}
		b := buckets[date]
		forecast.Days = append(forecast.Days, trip.WeatherDay{
			Date:                date,
			Condition:           mostFrequent(b.conditions),
			TemperatureHigh:     maxOf(b.temps),
			TemperatureLow:      minOf(b.temps),
			PrecipitationChance: float64(b.rainSlots * 100 / b.slots),
			Humidity:            float64(int(mean(b.humidity))),
			WindSpeed:           mean(b.wind),
		})
	}
	return forecast
}

func mostFrequent(counts map[string]int) string {
	best, bestN := "", 0
	for k, n := range counts {
		if n > bestN || (n == bestN && k < best) {
			best, bestN = k, n
		}
	}
	return best
}

func maxOf(vs []float64) float64 {
	m := vs[0]
	for _, v := range vs[1:] {
		m = max(m, v)
	}
	return m
}

func minOf(vs []float64) float64 {
	m := vs[0]
	for _, v := range vs[1:] {
		m = min(m, v)
	}
	return m
}

func mean(vs []float64) float64 {
	if len(vs) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range vs {
		sum += v
	}
	return sum / float64(len(vs))
}
