package collectors

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/ZanzyTHEbar/tripweaver-genkit/pkg/trip"
)

const (
	DefaultExchangeRateURL = "https://v6.exchangerate-api.com"
	SourceExchangeRateAPI  = "exchangerate-api"
)

// ExchangeRateAPI queries the exchangerate-api pair endpoint.
type ExchangeRateAPI struct {
	HTTP    *http.Client
	APIKey  string
	BaseURL string
}

func NewExchangeRateAPI(apiKey string, client *http.Client) *ExchangeRateAPI {
	if client == nil {
		client = &http.Client{Timeout: DefaultHTTPTimeout}
	}
	return &ExchangeRateAPI{HTTP: client, APIKey: apiKey, BaseURL: DefaultExchangeRateURL}
}

func (e *ExchangeRateAPI) FetchExchangeRate(ctx context.Context, from, to string) (trip.ExchangeRate, error) {
	if e.APIKey == "" {
		return trip.ExchangeRate{}, ErrNoLiveSource
	}
	from, to = strings.ToUpper(from), strings.ToUpper(to)
	u := fmt.Sprintf("%s/v6/%s/pair/%s/%s", strings.TrimRight(e.BaseURL, "/"), e.APIKey, from, to)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return trip.ExchangeRate{}, err
	}
	resp, err := e.HTTP.Do(req)
	if err != nil {
		return trip.ExchangeRate{}, fmt.Errorf("exchange rate http error: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return trip.ExchangeRate{}, fmt.Errorf("exchange rate bad status: %s", resp.Status)
	}
	var payload struct {
		Result            string  `json:"result"`
		ConversionRate    float64 `json:"conversion_rate"`
		TimeLastUpdateUTC string  `json:"time_last_update_utc"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return trip.ExchangeRate{}, fmt.Errorf("exchange rate decode: %w", err)
	}
	if payload.ConversionRate <= 0 {
		return trip.ExchangeRate{}, fmt.Errorf("exchange rate response without rate (result: %s)", payload.Result)
	}
	return trip.ExchangeRate{
		From:        from,
		To:          to,
		Rate:        payload.ConversionRate,
		LastUpdated: payload.TimeLastUpdateUTC,
		Source:      SourceExchangeRateAPI,
	}, nil
}
