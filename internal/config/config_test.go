package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadReadsCriticalEnvKeys(t *testing.T) {
	t.Setenv("BRAGI_PLAYLIST_DIR", "/var/lib/bragi/playlists")
	t.Setenv("BRAGI_CONTROL_SOCKET", "/run/bragi/control.sock")
	t.Setenv("BRAGI_TASKS", "clock,weather")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.PlaylistDir != "/var/lib/bragi/playlists" {
		t.Fatalf("unexpected playlist dir: %q", cfg.PlaylistDir)
	}
	if !cfg.TaskEnabled(TaskClock) || !cfg.TaskEnabled(TaskWeather) {
		t.Fatalf("expected clock and weather tasks enabled, got %v", cfg.Tasks)
	}
	if cfg.TaskEnabled(TaskWatchdog) {
		t.Fatal("watchdog should not be enabled")
	}
	if cfg.SpecialInterval != 30*time.Minute {
		t.Fatalf("unexpected default special interval: %v", cfg.SpecialInterval)
	}
}

func TestLoadRejectsRelativePaths(t *testing.T) {
	t.Setenv("BRAGI_PLAYLIST_DIR", "playlists")
	t.Setenv("BRAGI_CONTROL_SOCKET", "/run/bragi/control.sock")

	if _, err := Load(); err == nil {
		t.Fatal("expected relative playlist dir to be rejected")
	}
}

func TestLoadRejectsUnknownTask(t *testing.T) {
	t.Setenv("BRAGI_PLAYLIST_DIR", "/var/lib/bragi/playlists")
	t.Setenv("BRAGI_CONTROL_SOCKET", "/run/bragi/control.sock")
	t.Setenv("BRAGI_TASKS", "clock,jukebox")

	if _, err := Load(); err == nil {
		t.Fatal("expected unknown task to be rejected")
	}
}

func TestLoadWatchdogRequiresURLAndService(t *testing.T) {
	t.Setenv("BRAGI_PLAYLIST_DIR", "/var/lib/bragi/playlists")
	t.Setenv("BRAGI_CONTROL_SOCKET", "/run/bragi/control.sock")
	t.Setenv("BRAGI_TASKS", "watchdog")

	if _, err := Load(); err == nil {
		t.Fatal("expected watchdog config load to fail with no service")
	}

	t.Setenv("BRAGI_WATCHDOG_SERVICE", "ezstream")
	t.Setenv("BRAGI_WATCHDOG_URL", "not a url")
	if _, err := Load(); err == nil {
		t.Fatal("expected watchdog config load to fail with bad URL")
	}

	t.Setenv("BRAGI_WATCHDOG_URL", "http://localhost:8000/stream.mp3")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.WatchdogInterval != 5*time.Minute {
		t.Fatalf("unexpected watchdog interval: %v", cfg.WatchdogInterval)
	}
}

func TestLoadPrefersEnvOverConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bragi.yaml")
	body := `
playlist_dir: /srv/radio/playlists
control_socket: /run/bragi/control.sock
tasks: [clock]
special:
  interval_minutes: 10
weather:
  region: MLB/33,70
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	t.Setenv("BRAGI_CONFIG_FILE", path)
	t.Setenv("BRAGI_WEATHER_REGION", "OKX/33,35")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.PlaylistDir != "/srv/radio/playlists" {
		t.Fatalf("expected playlist dir from file, got %q", cfg.PlaylistDir)
	}
	if cfg.SpecialInterval != 10*time.Minute {
		t.Fatalf("expected special interval from file, got %v", cfg.SpecialInterval)
	}
	if cfg.WeatherRegion != "OKX/33,35" {
		t.Fatalf("expected env to override file region, got %q", cfg.WeatherRegion)
	}
	if !cfg.TaskEnabled(TaskClock) {
		t.Fatalf("expected clock task from file, got %v", cfg.Tasks)
	}
}
