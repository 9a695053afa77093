/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package daemon wires the full process together: playlist store, special
// scheduler, tag cache, control socket, background tasks, and the
// observability sidecar.
package daemon

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/friendsincode/bragi/internal/announce"
	"github.com/friendsincode/bragi/internal/cache"
	"github.com/friendsincode/bragi/internal/config"
	"github.com/friendsincode/bragi/internal/control"
	"github.com/friendsincode/bragi/internal/eventbus"
	"github.com/friendsincode/bragi/internal/events"
	"github.com/friendsincode/bragi/internal/history"
	"github.com/friendsincode/bragi/internal/httpapi"
	"github.com/friendsincode/bragi/internal/logbuffer"
	"github.com/friendsincode/bragi/internal/playlist"
	"github.com/friendsincode/bragi/internal/rotation"
	"github.com/friendsincode/bragi/internal/schedule"
	"github.com/friendsincode/bragi/internal/tags"
	"github.com/friendsincode/bragi/internal/watchdog"
	"github.com/friendsincode/bragi/internal/weather"
)

// Daemon bundles the rotation core and every supporting service.
type Daemon struct {
	cfg    *config.Config
	logger zerolog.Logger

	bus        *events.Bus
	svc        *rotation.Service
	control    *control.Server
	httpServer *http.Server
	sideCache  *cache.Cache
	mirror     *eventbus.Mirror
	historyDB  *gorm.DB

	bgCancel context.CancelFunc
	bgWG     sync.WaitGroup
}

// New builds the daemon from configuration. Only the initial playlist scan
// and the control socket bind can fail; every optional integration (Redis,
// NATS, history) degrades to disabled with a warning.
func New(cfg *config.Config, logBuffer *logbuffer.Buffer, logger zerolog.Logger) (*Daemon, error) {
	d := &Daemon{
		cfg:    cfg,
		logger: logger,
		bus:    events.NewBus(),
	}

	if cfg.RedisAddr != "" {
		cacheCfg := cache.DefaultConfig()
		cacheCfg.RedisAddr = cfg.RedisAddr
		cacheCfg.RedisPassword = cfg.RedisPassword
		cacheCfg.RedisDB = cfg.RedisDB
		sideCache, err := cache.New(cacheCfg, logger)
		if err != nil {
			logger.Warn().Err(err).Msg("metadata side-cache unavailable")
		} else {
			d.sideCache = sideCache
		}
	}

	var categories []schedule.Category
	if cfg.TaskEnabled(config.TaskClock) {
		categories = append(categories, schedule.CategoryClock)
	}
	if cfg.TaskEnabled(config.TaskWeather) {
		categories = append(categories, schedule.CategoryWeather)
	}

	d.svc = rotation.New(rotation.Options{
		Store:     playlist.NewStore(),
		Scheduler: schedule.New(categories, cfg.SpecialInterval, time.Now()),
		TagCache:  tags.NewCache(),
		Reader:    tags.FileReader{},
		SideCache: d.sideCache,
		Scan: func() (map[string][]string, error) {
			return playlist.ScanDir(cfg.PlaylistDir, logger)
		},
		Bus:    d.bus,
		Logger: logger,
	})
	if err := d.svc.Bootstrap(); err != nil {
		return nil, err
	}

	d.control = control.NewServer(cfg.ControlSocket, d.svc, logger)
	if err := d.control.Listen(); err != nil {
		return nil, err
	}

	if cfg.NATSURL != "" {
		mirror, err := eventbus.NewMirror(cfg.NATSURL, d.bus, logger)
		if err != nil {
			logger.Warn().Err(err).Str("url", cfg.NATSURL).Msg("event mirror unavailable")
		} else {
			d.mirror = mirror
		}
	}

	if cfg.HistoryDSN != "" {
		db, err := history.Open(cfg.HistoryDSN)
		if err != nil {
			logger.Warn().Err(err).Str("dsn", cfg.HistoryDSN).Msg("play history unavailable")
		} else {
			d.historyDB = db
		}
	}

	api := httpapi.New(d.svc, logBuffer, d.historyDB, logger)
	d.httpServer = &http.Server{
		Addr:              cfg.HTTPBind,
		Handler:           api.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	return d, nil
}

// Run starts every service and blocks until ctx is cancelled. The control
// socket failing is fatal; the admin HTTP listener failing is logged and
// the daemon keeps serving commands.
func (d *Daemon) Run(ctx context.Context) error {
	bgCtx, cancel := context.WithCancel(ctx)
	d.bgCancel = cancel

	if d.mirror != nil {
		d.mirror.Start()
	}

	if d.historyDB != nil {
		recorder := history.NewService(d.historyDB, d.bus, d.logger)
		d.background(func() { recorder.Start(bgCtx) })
	}

	pipeline := announce.NewPipeline(d.cfg.SpecialWorkDir, d.cfg.EspeakBin, d.cfg.SoxBin, d.cfg.LameBin, d.logger)

	if d.cfg.TaskEnabled(config.TaskClock) {
		clock := announce.NewClock(pipeline, d.svc, d.cfg.ClockRefresh, d.logger)
		d.background(func() { clock.Run(bgCtx) })
	}

	if d.cfg.TaskEnabled(config.TaskWeather) {
		worker := weather.NewWorker(weather.NewClient(), pipeline, d.svc, d.bus,
			d.cfg.WeatherRegion, d.cfg.WeatherWindow, d.cfg.WeatherInterval, d.logger)
		d.background(func() { worker.Run(bgCtx) })
	}

	if d.cfg.TaskEnabled(config.TaskWatchdog) {
		dog := watchdog.New(d.cfg.WatchdogURL, d.cfg.WatchdogService, d.cfg.SystemctlBin,
			d.cfg.WatchdogInterval, d.cfg.WatchdogProbeTimeout, d.cfg.WatchdogFailThreshold, d.bus, d.logger)
		d.background(func() { dog.Run(bgCtx) })
	}

	if d.cfg.WatchPlaylists {
		watcher := rotation.NewWatcher(d.cfg.PlaylistDir, d.svc, d.logger)
		d.background(func() {
			if err := watcher.Run(bgCtx); err != nil {
				d.logger.Warn().Err(err).Msg("playlist watcher stopped")
			}
		})
	}

	d.background(func() {
		d.logger.Info().Str("addr", d.cfg.HTTPBind).Msg("admin HTTP listening")
		if err := d.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			d.logger.Error().Err(err).Msg("admin HTTP server failed")
		}
	})

	return d.control.Serve(ctx)
}

// Close shuts down background services and releases external connections.
func (d *Daemon) Close() {
	if d.bgCancel != nil {
		d.bgCancel()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := d.httpServer.Shutdown(shutdownCtx); err != nil {
		d.logger.Warn().Err(err).Msg("admin HTTP shutdown")
	}

	d.bgWG.Wait()

	if d.mirror != nil {
		d.mirror.Close()
	}
	if d.historyDB != nil {
		if err := history.Close(d.historyDB); err != nil {
			d.logger.Warn().Err(err).Msg("closing history database")
		}
	}
	if d.sideCache != nil {
		if err := d.sideCache.Close(); err != nil {
			d.logger.Warn().Err(err).Msg("closing metadata side-cache")
		}
	}
}

func (d *Daemon) background(fn func()) {
	d.bgWG.Add(1)
	go func() {
		defer d.bgWG.Done()
		fn()
	}()
}
