/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package weather

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/bragi/internal/announce"
	"github.com/friendsincode/bragi/internal/events"
	"github.com/friendsincode/bragi/internal/schedule"
	"github.com/friendsincode/bragi/internal/telemetry"
)

// retryInterval is the cooldown after a failed fetch or render.
const retryInterval = time.Hour

// Worker periodically fetches the forecast, renders a spoken report, and
// registers the resulting file for rotation.
type Worker struct {
	client    *Client
	pipeline  *announce.Pipeline
	registrar announce.Registrar
	bus       *events.Bus
	region    string
	window    time.Duration
	interval  time.Duration
	logger    zerolog.Logger
}

// NewWorker creates the weather report worker. window is how far ahead the
// report looks; interval is the cooldown after a successful report.
func NewWorker(client *Client, pipeline *announce.Pipeline, registrar announce.Registrar, bus *events.Bus, region string, window, interval time.Duration, logger zerolog.Logger) *Worker {
	return &Worker{
		client:    client,
		pipeline:  pipeline,
		registrar: registrar,
		bus:       bus,
		region:    region,
		window:    window,
		interval:  interval,
		logger:    logger.With().Str("component", "weather").Logger(),
	}
}

// Run drives the fetch/render loop until ctx ends. A report surviving from
// a previous run is registered immediately and refreshed after one
// interval; failures retry on a shorter cadence and leave the registered
// file alone.
func (w *Worker) Run(ctx context.Context) {
	existing := w.pipeline.OutputPath(schedule.CategoryWeather)
	if _, err := os.Stat(existing); err == nil {
		w.logger.Info().Str("path", existing).Msg("registering weather report from previous run")
		w.registrar.RegisterGenerated(schedule.CategoryWeather, existing)
		if !sleepCtx(ctx, w.interval) {
			return
		}
	}

	for {
		wait := w.refreshOnce(ctx)
		if !sleepCtx(ctx, wait) {
			return
		}
	}
}

// refreshOnce performs one fetch/render cycle and returns how long to wait
// before the next one.
func (w *Worker) refreshOnce(ctx context.Context) time.Duration {
	forecasts, err := w.client.FetchForecasts(ctx, w.region)
	if err != nil {
		telemetry.WeatherFetchesTotal.WithLabelValues("error").Inc()
		w.logger.Error().Err(err).Str("region", w.region).Msg("forecast fetch failed")
		return retryInterval
	}
	telemetry.WeatherFetchesTotal.WithLabelValues("ok").Inc()
	w.bus.Publish(events.EventWeatherFetch, events.Payload{"region": w.region, "periods": len(forecasts)})

	now := time.Now()
	report := Summary(forecasts, now, now.Add(w.window))
	if report == "" {
		w.logger.Warn().Msg("no forecast periods overlap the report window")
		return retryInterval
	}

	path, err := w.pipeline.Render(ctx, schedule.CategoryWeather, report, "Weather Report")
	if err != nil {
		w.logger.Error().Err(err).Msg("weather report render failed")
		return retryInterval
	}
	w.registrar.RegisterGenerated(schedule.CategoryWeather, path)
	w.logger.Info().Int("periods", len(forecasts)).Msg("weather report refreshed")
	return w.interval
}

// sleepCtx waits for d, returning false if ctx ended first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
