/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package weather fetches forecasts from the National Weather Service API
// and turns them into spoken weather reports.
package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const (
	defaultBaseURL = "https://api.weather.gov"
	userAgent      = "bragi weather fetcher (github.com/friendsincode/bragi)"
	fetchTimeout   = 30 * time.Second
)

// Forecast is one period of the gridpoint forecast.
type Forecast struct {
	Start       time.Time
	End         time.Time
	Description string
}

// Client fetches gridpoint forecasts.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// NewClient creates a forecast client against api.weather.gov.
func NewClient() *Client {
	return NewClientWithBase(defaultBaseURL)
}

// NewClientWithBase creates a client against an alternate API root.
func NewClientWithBase(baseURL string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: fetchTimeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

type forecastDocument struct {
	Properties struct {
		Periods []struct {
			StartTime        time.Time `json:"startTime"`
			EndTime          time.Time `json:"endTime"`
			DetailedForecast string    `json:"detailedForecast"`
		} `json:"periods"`
	} `json:"properties"`
}

// FetchForecasts retrieves the forecast periods for a gridpoint region such
// as "RAH/57,62".
func (c *Client) FetchForecasts(ctx context.Context, region string) ([]Forecast, error) {
	url := fmt.Sprintf("%s/gridpoints/%s/forecast", c.baseURL, region)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/geo+json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching forecast: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("forecast API returned status %d", resp.StatusCode)
	}

	var document forecastDocument
	if err := json.NewDecoder(resp.Body).Decode(&document); err != nil {
		return nil, fmt.Errorf("decoding forecast: %w", err)
	}

	forecasts := make([]Forecast, 0, len(document.Properties.Periods))
	for i, period := range document.Properties.Periods {
		if period.DetailedForecast == "" || period.StartTime.IsZero() || period.EndTime.IsZero() {
			return nil, fmt.Errorf("forecast period %d is incomplete", i)
		}
		forecasts = append(forecasts, Forecast{
			Start:       period.StartTime.Local(),
			End:         period.EndTime.Local(),
			Description: period.DetailedForecast,
		})
	}
	return forecasts, nil
}

// Summary joins the forecasts overlapping [start, end) into one spoken
// report. A period counts when it begins inside the window or began earlier
// but has not ended before the window opens.
func Summary(forecasts []Forecast, start, end time.Time) string {
	var b strings.Builder
	for _, f := range forecasts {
		inWindow := !f.Start.Before(start) && f.Start.Before(end)
		stillActive := f.Start.Before(start) && !f.End.Before(start)
		if !inWindow && !stillActive {
			continue
		}
		fmt.Fprintf(&b, "At %02d, %s ", f.Start.Hour(), f.Description)
	}
	return b.String()
}
