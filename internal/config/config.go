package config

import (
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/creasty/defaults"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	DefaultSocketPath    = "/tmp/lyrik.sock"
	DefaultPollInterval  = 200 * time.Millisecond
	DefaultSourceTimeout = 10 * time.Second
)

func logger() *zerolog.Logger {
	l := log.With().Str("component", "config").Logger()
	return &l
}

func getDefaultCacheDir() string {
	// 优先使用 XDG_CACHE_HOME 环境变量
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, "lyrik")
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		// 如果获取不到用户主目录，回退到当前目录
		return "lyrik_cache"
	}

	return filepath.Join(homeDir, ".cache", "lyrik")
}

// TomlConfig TOML配置文件结构
type TomlConfig struct {
	App struct {
		PollInterval string `toml:"poll_interval" default:"200ms"`
		LogLevel     string `toml:"log_level" default:"info"`
		SocketPath   string `toml:"socket_path" default:"/tmp/lyrik.sock"`
		CacheDir     string `toml:"cache_dir"`
	} `toml:"app"`

	Player struct {
		Backend     string `toml:"backend" default:"mpris"`
		Name        string `toml:"name"`
		MPDAddr     string `toml:"mpd_addr" default:"127.0.0.1:6600"`
		MPDPassword string `toml:"mpd_password"`
	} `toml:"player"`

	Sources struct {
		Disabled []string `toml:"disabled"`
		Priority []string `toml:"priority"`
		Timeout  string   `toml:"timeout" default:"10s"`
	} `toml:"sources"`

	AI struct {
		Enabled    bool   `toml:"enabled"`
		ModuleName string `toml:"module_name" default:"gemini"`
		Model      string `toml:"model"`
		APIKey     string `toml:"api_key"`
		BaseURL    string `toml:"base_url"` // for OpenAI
	} `toml:"ai"`

	Translate struct {
		Enabled   bool   `toml:"enabled"`
		SecretID  string `toml:"secret_id"`
		SecretKey string `toml:"secret_key"`
		Region    string `toml:"region" default:"ap-guangzhou"`
		Target    string `toml:"target" default:"zh"`
		ProjectID int64  `toml:"project_id"`
	} `toml:"translate"`

	Redis struct {
		Enabled  bool   `toml:"enabled"`
		Addr     string `toml:"addr" default:"localhost:6379"`
		Password string `toml:"password"`
		DB       int    `toml:"db"`
		Channel  string `toml:"channel" default:"lyrik"`
	} `toml:"redis"`

	StatusBar struct {
		Enabled    bool   `toml:"enabled"`
		Process    string `toml:"process" default:"i3blocks"`
		Signal     int    `toml:"signal" default:"21"`
		OutputFile string `toml:"output_file" default:"/tmp/lyrik_line"`
	} `toml:"statusbar"`
}

// AppConfig 应用配置
type AppConfig struct {
	PollInterval time.Duration
	LogLevel     string
	SocketPath   string
	CacheDir     string
}

// PlayerConfig 播放器配置
type PlayerConfig struct {
	Backend     string
	Name        string
	MPDAddr     string
	MPDPassword string
}

// SourcesConfig 歌词提供商配置
type SourcesConfig struct {
	Disabled []string
	Priority []string
	Timeout  time.Duration
}

// AIConfig AI配置
type AIConfig struct {
	Enabled    bool
	ModuleName string
	Model      string
	APIKey     string
	BaseURL    string
}

// TranslateConfig 腾讯云机器翻译配置
type TranslateConfig struct {
	Enabled   bool
	SecretID  string
	SecretKey string
	Region    string
	Target    string
	ProjectID int64 // 腾讯云项目 ID，0 为默认项目
}

// RedisConfig Redis配置
type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
	Channel  string
}

// StatusBarConfig 状态栏配置
type StatusBarConfig struct {
	Enabled    bool
	Process    string
	Signal     int
	OutputFile string
}

// Config 主配置结构
type Config struct {
	Path      string
	App       AppConfig
	Player    PlayerConfig
	Sources   SourcesConfig
	AI        AIConfig
	Translate TranslateConfig
	Redis     RedisConfig
	StatusBar StatusBarConfig
}

// DefaultPath 获取配置文件路径
func DefaultPath() string {
	// 优先使用 XDG_CONFIG_HOME 环境变量
	if configHome := os.Getenv("XDG_CONFIG_HOME"); configHome != "" {
		return filepath.Join(configHome, "lyrik", "config.toml")
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		logger().Warn().Err(err).Msg("Cannot get user home directory")
		return "config.toml" // 回退到当前目录
	}

	return filepath.Join(homeDir, ".config", "lyrik", "config.toml")
}

// loadTomlConfig 加载TOML配置文件，文件不存在时只使用默认值
func loadTomlConfig(path string) (*TomlConfig, error) {
	var tc TomlConfig
	if err := defaults.Set(&tc); err != nil {
		return nil, err
	}

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		logger().Info().Str("path", path).Msg("Config file not found, using defaults")
		return &tc, nil
	}

	if _, err := toml.DecodeFile(path, &tc); err != nil {
		return nil, err
	}

	logger().Info().Str("path", path).Msg("Loaded config")
	return &tc, nil
}

// Load 读取配置。path 为空时使用 DefaultPath。
// 配置文件无法解析时记录错误并使用默认配置。
func Load(path string) *Config {
	if path == "" {
		path = DefaultPath()
	}

	tc, err := loadTomlConfig(path)
	if err != nil {
		logger().Error().Err(err).Str("path", path).Msg("Failed to load config file, using default configuration")
		tc = &TomlConfig{}
		if err := defaults.Set(tc); err != nil {
			logger().Error().Err(err).Msg("Failed to apply default configuration")
		}
	}

	config := &Config{
		Path: path,
		App: AppConfig{
			PollInterval: parseDuration("app.poll_interval", tc.App.PollInterval, DefaultPollInterval),
			LogLevel:     tc.App.LogLevel,
			SocketPath:   tc.App.SocketPath,
			CacheDir:     tc.App.CacheDir,
		},
		Player: PlayerConfig{
			Backend:     tc.Player.Backend,
			Name:        tc.Player.Name,
			MPDAddr:     tc.Player.MPDAddr,
			MPDPassword: tc.Player.MPDPassword,
		},
		Sources: SourcesConfig{
			Disabled: tc.Sources.Disabled,
			Priority: tc.Sources.Priority,
			Timeout:  parseDuration("sources.timeout", tc.Sources.Timeout, DefaultSourceTimeout),
		},
		AI: AIConfig{
			Enabled:    tc.AI.Enabled,
			ModuleName: tc.AI.ModuleName,
			Model:      tc.AI.Model,
			APIKey:     tc.AI.APIKey,
			BaseURL:    tc.AI.BaseURL,
		},
		Translate: TranslateConfig{
			Enabled:   tc.Translate.Enabled,
			SecretID:  tc.Translate.SecretID,
			SecretKey: tc.Translate.SecretKey,
			Region:    tc.Translate.Region,
			Target:    tc.Translate.Target,
			ProjectID: tc.Translate.ProjectID,
		},
		Redis: RedisConfig{
			Enabled:  tc.Redis.Enabled,
			Addr:     tc.Redis.Addr,
			Password: tc.Redis.Password,
			DB:       tc.Redis.DB,
			Channel:  tc.Redis.Channel,
		},
		StatusBar: StatusBarConfig{
			Enabled:    tc.StatusBar.Enabled,
			Process:    tc.StatusBar.Process,
			Signal:     tc.StatusBar.Signal,
			OutputFile: tc.StatusBar.OutputFile,
		},
	}

	if config.App.CacheDir == "" {
		config.App.CacheDir = getDefaultCacheDir()
	}
	if config.App.SocketPath == "" {
		config.App.SocketPath = DefaultSocketPath
	}

	// 检查必要的配置
	if config.AI.Enabled && config.AI.APIKey == "" {
		logger().Warn().Str("path", path).Msg("AI normalization is enabled but ai.api_key is empty, disabling it")
		config.AI.Enabled = false
	}
	if config.Translate.Enabled && (config.Translate.SecretID == "" || config.Translate.SecretKey == "") {
		logger().Warn().Str("path", path).Msg("Translation is enabled but credentials are missing, disabling it")
		config.Translate.Enabled = false
	}

	return config
}

func parseDuration(key, value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		logger().Warn().Str("key", key).Str("value", value).Dur("default", fallback).Msg("Invalid duration, using default")
		return fallback
	}
	return d
}
