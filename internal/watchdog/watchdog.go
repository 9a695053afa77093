/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package watchdog probes the downstream streaming endpoint and restarts
// the encoder service when the stream stays unreachable.
package watchdog

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/exec"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/bragi/internal/events"
	"github.com/friendsincode/bragi/internal/telemetry"
)

const restartTimeout = 30 * time.Second

// Watchdog periodically fetches the stream URL and restarts the configured
// systemd unit after enough consecutive failures.
type Watchdog struct {
	url           string
	service       string
	systemctl     string
	interval      time.Duration
	failThreshold int
	httpClient    *http.Client
	bus           *events.Bus
	logger        zerolog.Logger

	consecutiveFails int
}

// New creates a watchdog for the stream at url guarding the named systemd
// service.
func New(url, service, systemctl string, interval, probeTimeout time.Duration, failThreshold int, bus *events.Bus, logger zerolog.Logger) *Watchdog {
	return &Watchdog{
		url:           url,
		service:       service,
		systemctl:     systemctl,
		interval:      interval,
		failThreshold: failThreshold,
		httpClient: &http.Client{
			Timeout: probeTimeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 3 {
					return errors.New("too many redirects")
				}
				return nil
			},
		},
		bus:    bus,
		logger: logger.With().Str("component", "watchdog").Logger(),
	}
}

// Run probes on every interval tick until ctx ends. The first probe waits
// one full interval so the stream has time to come up after daemon start.
func (w *Watchdog) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.probeOnce(ctx)
		}
	}
}

func (w *Watchdog) probeOnce(ctx context.Context) {
	err := w.probe(ctx)
	if err == nil {
		if w.consecutiveFails > 0 {
			w.logger.Info().Int("failed_probes", w.consecutiveFails).Msg("stream recovered")
		}
		w.consecutiveFails = 0
		telemetry.WatchdogProbesTotal.WithLabelValues("up").Inc()
		w.bus.Publish(events.EventWatchdogProbe, events.Payload{"url": w.url, "up": true})
		return
	}

	w.consecutiveFails++
	telemetry.WatchdogProbesTotal.WithLabelValues("down").Inc()
	w.bus.Publish(events.EventWatchdogProbe, events.Payload{"url": w.url, "up": false})
	w.logger.Warn().Err(err).
		Str("url", w.url).
		Int("consecutive_fails", w.consecutiveFails).
		Msg("stream probe failed")

	if w.consecutiveFails < w.failThreshold {
		return
	}

	w.consecutiveFails = 0
	w.restart(ctx)
}

// probe fetches the stream URL and treats any non-2xx answer as down. The
// body is not read; a successful response header is proof enough that the
// mount is live.
func (w *Watchdog) probe(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", "bragi-watchdog")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("stream endpoint returned status %d", resp.StatusCode)
	}
	return nil
}

func (w *Watchdog) restart(ctx context.Context) {
	w.logger.Error().Str("service", w.service).Msg("restarting streaming service")
	telemetry.WatchdogRestartsTotal.Inc()
	w.bus.Publish(events.EventWatchdogRestart, events.Payload{"service": w.service})

	cmdCtx, cancel := context.WithTimeout(ctx, restartTimeout)
	defer cancel()

	cmd := exec.CommandContext(cmdCtx, w.systemctl, "restart", w.service)
	if output, err := cmd.CombinedOutput(); err != nil {
		w.logger.Error().Err(err).
			Str("service", w.service).
			Str("output", string(output)).
			Msg("service restart failed")
	}
}
