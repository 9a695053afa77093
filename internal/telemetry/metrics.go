/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package telemetry defines the daemon's Prometheus metrics.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// CommandsTotal counts control protocol commands by command name and
	// response status.
	CommandsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bragi_commands_total",
		Help: "Control protocol commands processed",
	}, []string{"command", "status"})

	// TracksServedTotal counts tracks handed to the mixer, by kind
	// (playlist or special).
	TracksServedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bragi_tracks_served_total",
		Help: "Tracks served via next-track",
	}, []string{"kind"})

	// SpecialEmissionsTotal counts special emissions per category.
	SpecialEmissionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bragi_special_emissions_total",
		Help: "Special announcements substituted into playback",
	}, []string{"category"})

	// ReloadsTotal counts playlist reloads by outcome.
	ReloadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bragi_playlist_reloads_total",
		Help: "Playlist reload attempts",
	}, []string{"outcome"})

	// TagReadsTotal counts metadata reads by result (ok, error, redis_hit).
	TagReadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bragi_tag_reads_total",
		Help: "Track metadata read attempts",
	}, []string{"result"})

	// TagCacheSize tracks the number of in-memory tag cache entries.
	TagCacheSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bragi_tag_cache_entries",
		Help: "Entries in the in-memory tag cache",
	})

	// ConnectionsActive tracks open control connections.
	ConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bragi_control_connections_active",
		Help: "Open control socket connections",
	})

	// WatchdogProbesTotal counts stream health probes by result.
	WatchdogProbesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bragi_watchdog_probes_total",
		Help: "Watchdog health probes",
	}, []string{"result"})

	// WatchdogRestartsTotal counts restarts of the monitored service.
	WatchdogRestartsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bragi_watchdog_restarts_total",
		Help: "Restarts issued for the streaming service",
	})

	// WeatherFetchesTotal counts forecast fetches by result.
	WeatherFetchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bragi_weather_fetches_total",
		Help: "Forecast fetch attempts",
	}, []string{"result"})

	// AnnouncementsRenderedTotal counts generated announcement files.
	AnnouncementsRenderedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bragi_announcements_rendered_total",
		Help: "Announcement files rendered by the TTS pipeline",
	}, []string{"category", "result"})
)

// Handler exposes the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
