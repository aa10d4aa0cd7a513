package config

import (
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", "/tmp/xdg-cache")

	cfg := Load(filepath.Join(t.TempDir(), "missing.toml"))

	if cfg.App.PollInterval != DefaultPollInterval {
		t.Errorf("PollInterval = %v", cfg.App.PollInterval)
	}
	if cfg.App.SocketPath != DefaultSocketPath {
		t.Errorf("SocketPath = %q", cfg.App.SocketPath)
	}
	if cfg.App.CacheDir != "/tmp/xdg-cache/lyrik" {
		t.Errorf("CacheDir = %q", cfg.App.CacheDir)
	}
	if cfg.Sources.Timeout != DefaultSourceTimeout {
		t.Errorf("Sources.Timeout = %v", cfg.Sources.Timeout)
	}
	if cfg.Player.Backend != "mpris" || cfg.Player.MPDAddr != "127.0.0.1:6600" {
		t.Errorf("unexpected player config %+v", cfg.Player)
	}
	if cfg.AI.Enabled || cfg.Translate.Enabled || cfg.Redis.Enabled || cfg.StatusBar.Enabled {
		t.Error("optional integrations should be disabled by default")
	}
	if cfg.Redis.Channel != "lyrik" || cfg.StatusBar.Signal != 21 || cfg.Translate.Target != "zh" {
		t.Errorf("unexpected defaults %+v %+v %+v", cfg.Redis, cfg.StatusBar, cfg.Translate)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[app]
poll_interval = "500ms"
log_level = "debug"
cache_dir = "/var/cache/lyrik"

[player]
backend = "mpd"
mpd_addr = "music:6600"

[sources]
priority = ["lrclib", "netease"]
disabled = ["netease"]
timeout = "not-a-duration"

[ai]
enabled = true
module_name = "openai"

[translate]
enabled = true
secret_id = "id"
secret_key = "key"
project_id = 1024

[redis]
enabled = true
db = 2
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg := Load(path)

	if cfg.Path != path {
		t.Errorf("Path = %q", cfg.Path)
	}
	if cfg.App.PollInterval != 500*time.Millisecond || cfg.App.LogLevel != "debug" {
		t.Errorf("unexpected app config %+v", cfg.App)
	}
	if cfg.App.CacheDir != "/var/cache/lyrik" {
		t.Errorf("CacheDir = %q", cfg.App.CacheDir)
	}
	if cfg.Player.Backend != "mpd" || cfg.Player.MPDAddr != "music:6600" {
		t.Errorf("unexpected player config %+v", cfg.Player)
	}
	if !slices.Equal(cfg.Sources.Priority, []string{"lrclib", "netease"}) || !slices.Equal(cfg.Sources.Disabled, []string{"netease"}) {
		t.Errorf("unexpected sources config %+v", cfg.Sources)
	}
	if cfg.Sources.Timeout != DefaultSourceTimeout {
		t.Errorf("invalid timeout should fall back to default, got %v", cfg.Sources.Timeout)
	}
	if cfg.AI.Enabled {
		t.Error("AI without api key should be disabled")
	}
	if cfg.AI.ModuleName != "openai" {
		t.Errorf("ModuleName = %q", cfg.AI.ModuleName)
	}
	if !cfg.Translate.Enabled || cfg.Translate.ProjectID != 1024 || cfg.Translate.Region != "ap-guangzhou" {
		t.Errorf("unexpected translate config %+v", cfg.Translate)
	}
	if !cfg.Redis.Enabled || cfg.Redis.DB != 2 || cfg.Redis.Addr != "localhost:6379" {
		t.Errorf("unexpected redis config %+v", cfg.Redis)
	}
}

func TestLoadInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[app\npoll_interval = "), 0644); err != nil {
		t.Fatal(err)
	}

	cfg := Load(path)
	if cfg.App.PollInterval != DefaultPollInterval || cfg.Player.Backend != "mpris" {
		t.Errorf("expected defaults for unparsable file, got %+v", cfg)
	}
}

func TestDefaultPath(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/etc/xdg-test")
	if got := DefaultPath(); got != "/etc/xdg-test/lyrik/config.toml" {
		t.Errorf("DefaultPath = %q", got)
	}
}
