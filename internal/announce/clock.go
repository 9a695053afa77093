/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package announce

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/bragi/internal/schedule"
)

// Clock periodically renders a spoken time announcement and hands the
// resulting file to the registrar. The file is re-rendered on every tick so
// the announcement stays close to the actual clock.
type Clock struct {
	pipeline  *Pipeline
	registrar Registrar
	refresh   time.Duration
	logger    zerolog.Logger
}

// NewClock creates the time announcement worker.
func NewClock(pipeline *Pipeline, registrar Registrar, refresh time.Duration, logger zerolog.Logger) *Clock {
	return &Clock{
		pipeline:  pipeline,
		registrar: registrar,
		refresh:   refresh,
		logger:    logger.With().Str("component", "clock").Logger(),
	}
}

// Run renders immediately and then on every refresh tick until ctx ends.
// Render failures skip the tick; an older registered file stays valid.
func (c *Clock) Run(ctx context.Context) {
	ticker := time.NewTicker(c.refresh)
	defer ticker.Stop()

	for {
		c.renderOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (c *Clock) renderOnce(ctx context.Context) {
	text := clockText(time.Now())
	path, err := c.pipeline.Render(ctx, schedule.CategoryClock, text, "Clock")
	if err != nil {
		c.logger.Error().Err(err).Msg("time announcement render failed")
		return
	}
	c.registrar.RegisterGenerated(schedule.CategoryClock, path)
}

func clockText(now time.Time) string {
	return fmt.Sprintf(
		"The current time is %02d %02d hours. Repeat, the current time is %02d %02d hours",
		now.Hour(), now.Minute(), now.Hour(), now.Minute(),
	)
}
