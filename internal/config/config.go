/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Task names accepted in BRAGI_TASKS.
const (
	TaskClock    = "clock"
	TaskWeather  = "weather"
	TaskWatchdog = "watchdog"
)

// Config covers process level configuration read from environment variables,
// optionally backed by a YAML file (BRAGI_CONFIG_FILE). Environment values win.
type Config struct {
	Environment   string
	PlaylistDir   string
	ControlSocket string
	Tasks         []string

	// Special announcement generation
	SpecialWorkDir  string
	SpecialInterval time.Duration
	ClockRefresh    time.Duration

	// Weather task
	WeatherRegion   string
	WeatherWindow   time.Duration // how many hours of forecast go into one report
	WeatherInterval time.Duration // cooldown after a successful fetch

	// Watchdog task
	WatchdogURL           string
	WatchdogService       string
	WatchdogInterval      time.Duration
	WatchdogProbeTimeout  time.Duration
	WatchdogFailThreshold int

	// Admin HTTP surface (status, metrics, logs)
	HTTPBind string

	// Optional Redis side-cache for track metadata
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Optional NATS mirror of the event bus
	NATSURL string

	// Optional SQLite play history (empty disables)
	HistoryDSN string

	// Watch the playlist directory and reload automatically
	WatchPlaylists bool

	// External tool binaries for the announcement pipeline
	EspeakBin    string
	SoxBin       string
	LameBin      string
	SystemctlBin string
}

// fileConfig mirrors Config for the optional YAML file. Pointer fields
// distinguish "absent" from zero values.
type fileConfig struct {
	Environment   *string  `yaml:"environment"`
	PlaylistDir   *string  `yaml:"playlist_dir"`
	ControlSocket *string  `yaml:"control_socket"`
	Tasks         []string `yaml:"tasks"`

	Special struct {
		WorkDir            *string `yaml:"work_dir"`
		IntervalMinutes    *int    `yaml:"interval_minutes"`
		ClockRefreshSecond *int    `yaml:"clock_refresh_seconds"`
	} `yaml:"special"`

	Weather struct {
		Region        *string `yaml:"region"`
		WindowHours   *int    `yaml:"window_hours"`
		IntervalHours *int    `yaml:"interval_hours"`
	} `yaml:"weather"`

	Watchdog struct {
		URL             *string `yaml:"url"`
		Service         *string `yaml:"service"`
		IntervalMinutes *int    `yaml:"interval_minutes"`
		TimeoutSeconds  *int    `yaml:"timeout_seconds"`
		FailThreshold   *int    `yaml:"fail_threshold"`
	} `yaml:"watchdog"`

	HTTPBind       *string `yaml:"http_bind"`
	RedisAddr      *string `yaml:"redis_addr"`
	RedisPassword  *string `yaml:"redis_password"`
	RedisDB        *int    `yaml:"redis_db"`
	NATSURL        *string `yaml:"nats_url"`
	HistoryDSN     *string `yaml:"history_dsn"`
	WatchPlaylists *bool   `yaml:"watch_playlists"`
}

// Load reads environment variables (and the optional YAML file), applies
// defaults, and validates the result.
func Load() (*Config, error) {
	var file fileConfig
	if path := os.Getenv("BRAGI_CONFIG_FILE"); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &file); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	cfg := &Config{
		Environment:   getEnv("BRAGI_ENV", strOr(file.Environment, "development")),
		PlaylistDir:   getEnv("BRAGI_PLAYLIST_DIR", strOr(file.PlaylistDir, "")),
		ControlSocket: getEnv("BRAGI_CONTROL_SOCKET", strOr(file.ControlSocket, "")),
		Tasks:         splitTasks(getEnv("BRAGI_TASKS", strings.Join(file.Tasks, ","))),

		SpecialWorkDir:  getEnv("BRAGI_SPECIAL_WORKDIR", strOr(file.Special.WorkDir, os.TempDir())),
		SpecialInterval: time.Duration(getEnvInt("BRAGI_SPECIAL_INTERVAL_MINUTES", intOr(file.Special.IntervalMinutes, 30))) * time.Minute,
		ClockRefresh:    time.Duration(getEnvInt("BRAGI_CLOCK_REFRESH_SECONDS", intOr(file.Special.ClockRefreshSecond, 60))) * time.Second,

		WeatherRegion:   getEnv("BRAGI_WEATHER_REGION", strOr(file.Weather.Region, "RAH/57,62")),
		WeatherWindow:   time.Duration(getEnvInt("BRAGI_WEATHER_WINDOW_HOURS", intOr(file.Weather.WindowHours, 12))) * time.Hour,
		WeatherInterval: time.Duration(getEnvInt("BRAGI_WEATHER_INTERVAL_HOURS", intOr(file.Weather.IntervalHours, 8))) * time.Hour,

		WatchdogURL:           getEnv("BRAGI_WATCHDOG_URL", strOr(file.Watchdog.URL, "")),
		WatchdogService:       getEnv("BRAGI_WATCHDOG_SERVICE", strOr(file.Watchdog.Service, "")),
		WatchdogInterval:      time.Duration(getEnvInt("BRAGI_WATCHDOG_INTERVAL_MINUTES", intOr(file.Watchdog.IntervalMinutes, 5))) * time.Minute,
		WatchdogProbeTimeout:  time.Duration(getEnvInt("BRAGI_WATCHDOG_TIMEOUT_SECONDS", intOr(file.Watchdog.TimeoutSeconds, 10))) * time.Second,
		WatchdogFailThreshold: getEnvInt("BRAGI_WATCHDOG_FAIL_THRESHOLD", intOr(file.Watchdog.FailThreshold, 2)),

		HTTPBind: getEnv("BRAGI_HTTP_BIND", strOr(file.HTTPBind, "127.0.0.1:9090")),

		RedisAddr:     getEnv("BRAGI_REDIS_ADDR", strOr(file.RedisAddr, "")),
		RedisPassword: getEnv("BRAGI_REDIS_PASSWORD", strOr(file.RedisPassword, "")),
		RedisDB:       getEnvInt("BRAGI_REDIS_DB", intOr(file.RedisDB, 0)),

		NATSURL:    getEnv("BRAGI_NATS_URL", strOr(file.NATSURL, "")),
		HistoryDSN: getEnv("BRAGI_HISTORY_DSN", strOr(file.HistoryDSN, "")),

		WatchPlaylists: getEnvBool("BRAGI_WATCH_PLAYLISTS", boolOr(file.WatchPlaylists, false)),

		EspeakBin:    getEnv("BRAGI_ESPEAK_BIN", "espeak"),
		SoxBin:       getEnv("BRAGI_SOX_BIN", "sox"),
		LameBin:      getEnv("BRAGI_LAME_BIN", "lame"),
		SystemctlBin: getEnv("BRAGI_SYSTEMCTL_BIN", "systemctl"),
	}

	if cfg.PlaylistDir == "" {
		return nil, fmt.Errorf("BRAGI_PLAYLIST_DIR must be provided")
	}
	if !filepath.IsAbs(cfg.PlaylistDir) {
		return nil, fmt.Errorf("BRAGI_PLAYLIST_DIR must be an absolute path")
	}
	if cfg.ControlSocket == "" {
		return nil, fmt.Errorf("BRAGI_CONTROL_SOCKET must be provided")
	}
	if !filepath.IsAbs(cfg.ControlSocket) {
		return nil, fmt.Errorf("BRAGI_CONTROL_SOCKET must be an absolute path")
	}

	for _, task := range cfg.Tasks {
		switch task {
		case TaskClock, TaskWeather, TaskWatchdog:
		default:
			return nil, fmt.Errorf("unknown task %q in BRAGI_TASKS", task)
		}
	}

	if cfg.SpecialInterval <= 0 {
		return nil, fmt.Errorf("BRAGI_SPECIAL_INTERVAL_MINUTES must be positive")
	}

	if cfg.TaskEnabled(TaskWatchdog) {
		if cfg.WatchdogService == "" {
			return nil, fmt.Errorf("BRAGI_WATCHDOG_SERVICE must be provided when the watchdog task is enabled")
		}
		parsed, err := url.Parse(cfg.WatchdogURL)
		if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
			return nil, fmt.Errorf("BRAGI_WATCHDOG_URL must be a valid HTTP(S) URL when the watchdog task is enabled")
		}
	}

	return cfg, nil
}

// TaskEnabled reports whether the named background task is configured to run.
func (c *Config) TaskEnabled(name string) bool {
	for _, task := range c.Tasks {
		if task == name {
			return true
		}
	}
	return false
}

func splitTasks(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	tasks := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			tasks = append(tasks, trimmed)
		}
	}
	return tasks
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getEnvInt(key string, def int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if val := os.Getenv(key); val != "" {
		val = strings.ToLower(strings.TrimSpace(val))
		if val == "true" || val == "1" || val == "yes" {
			return true
		}
		if val == "false" || val == "0" || val == "no" {
			return false
		}
	}
	return def
}

func strOr(val *string, def string) string {
	if val != nil {
		return *val
	}
	return def
}

func intOr(val *int, def int) int {
	if val != nil {
		return *val
	}
	return def
}

func boolOr(val *bool, def bool) bool {
	if val != nil {
		return *val
	}
	return def
}
