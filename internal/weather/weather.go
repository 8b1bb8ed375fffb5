// Package weather resolves current conditions for the dashboard through an
// ordered chain of providers. Each provider is tried in sequence and the
// first success short-circuits; attempts are sequential, so no coordination
// is needed.
package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	appLog "wallboard/internal/log"
)

// Report is a provider-agnostic view of current conditions. A degraded
// provider may fill only part of it (e.g. locality without temperature).
type Report struct {
	Provider     string   `json:"provider"`
	TemperatureC *float64 `json:"temperature_c,omitempty"`
	WindSpeedKmh *float64 `json:"wind_speed_kmh,omitempty"`
	WeatherCode  *int     `json:"weather_code,omitempty"`
	Locality     string   `json:"locality,omitempty"`
}

// Provider fetches conditions for a coordinate pair.
type Provider interface {
	Name() string
	Fetch(ctx context.Context, lat, lon float64) (Report, error)
}

// Chain tries providers in order until one succeeds.
type Chain struct {
	providers []Provider
}

// NewChain builds a chain from ordered provider names. Unknown names are
// skipped with a log line. Supported: "open-meteo", "bigdatacloud".
func NewChain(client *http.Client, names []string) *Chain {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	providers := make([]Provider, 0, len(names))
	for _, name := range names {
		switch name {
		case "open-meteo":
			providers = append(providers, &openMeteo{client: client})
		case "bigdatacloud":
			providers = append(providers, &bigDataCloud{client: client})
		default:
			appLog.Error("weather: unknown provider name", errors.New("unsupported provider"), "name", name)
		}
	}
	return &Chain{providers: providers}
}

// Fetch runs the chain. It returns the first successful report, or an error
// aggregating every provider's failure when all of them fail.
func (c *Chain) Fetch(ctx context.Context, lat, lon float64) (Report, error) {
	if len(c.providers) == 0 {
		return Report{}, errors.New("weather: no providers configured")
	}

	var errs []error
	for _, p := range c.providers {
		rep, err := p.Fetch(ctx, lat, lon)
		if err != nil {
			appLog.Error("weather provider failed, trying next", err, "provider", p.Name())
			errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
			continue
		}
		rep.Provider = p.Name()
		return rep, nil
	}
	return Report{}, fmt.Errorf("weather: all providers failed: %w", errors.Join(errs...))
}

// openMeteo reads current conditions from the Open-Meteo forecast API.
type openMeteo struct {
	client *http.Client
}

func (p *openMeteo) Name() string { return "open-meteo" }

func (p *openMeteo) Fetch(ctx context.Context, lat, lon float64) (Report, error) {
	q := url.Values{}
	q.Set("latitude", strconv.FormatFloat(lat, 'f', 4, 64))
	q.Set("longitude", strconv.FormatFloat(lon, 'f', 4, 64))
	q.Set("current_weather", "true")

	body, err := getJSON(ctx, p.client, "https://api.open-meteo.com/v1/forecast?"+q.Encode())
	if err != nil {
		return Report{}, err
	}

	var resp struct {
		CurrentWeather struct {
			Temperature float64 `json:"temperature"`
			WindSpeed   float64 `json:"windspeed"`
			WeatherCode int     `json:"weathercode"`
		} `json:"current_weather"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return Report{}, fmt.Errorf("decode response: %w", err)
	}

	cw := resp.CurrentWeather
	return Report{
		TemperatureC: &cw.Temperature,
		WindSpeedKmh: &cw.WindSpeed,
		WeatherCode:  &cw.WeatherCode,
	}, nil
}

// bigDataCloud is the degraded fallback: a reverse-geocode lookup that at
// least names the locality when the weather API is down.
type bigDataCloud struct {
	client *http.Client
}

func (p *bigDataCloud) Name() string { return "bigdatacloud" }

func (p *bigDataCloud) Fetch(ctx context.Context, lat, lon float64) (Report, error) {
	q := url.Values{}
	q.Set("latitude", strconv.FormatFloat(lat, 'f', 4, 64))
	q.Set("longitude", strconv.FormatFloat(lon, 'f', 4, 64))

	body, err := getJSON(ctx, p.client, "https://api.bigdatacloud.net/data/reverse-geocode-client?"+q.Encode())
	if err != nil {
		return Report{}, err
	}

	var resp struct {
		Locality string `json:"locality"`
		City     string `json:"city"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return Report{}, fmt.Errorf("decode response: %w", err)
	}

	locality := resp.Locality
	if locality == "" {
		locality = resp.City
	}
	if locality == "" {
		return Report{}, errors.New("empty locality in response")
	}
	return Report{Locality: locality}, nil
}

func getJSON(ctx context.Context, client *http.Client, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.New(resp.Status)
	}
	return io.ReadAll(resp.Body)
}
