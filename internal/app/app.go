package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"lyrik/internal/config"
	"lyrik/internal/ipc"
	"lyrik/internal/lyrics"
	"lyrik/internal/player"
	"lyrik/internal/resolver"
	"lyrik/internal/statusbar"
	"lyrik/internal/tracker"
	"lyrik/pkg/ai"
	"lyrik/pkg/ai/gemini"
	"lyrik/pkg/ai/openai"
	"lyrik/pkg/musiccache"
	"lyrik/pkg/redis"
	"lyrik/pkg/source"
	"lyrik/pkg/source/builtin"
	"lyrik/pkg/tencent"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	normalizeCacheFile = "normalize.cache"
	publishTimeout     = time.Second
)

// SetupLogging 设置 zerolog 的全局配置
func SetupLogging(level string) {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	if err != nil {
		log.Warn().Str("level", level).Msg("Unknown log level, using info")
	}
}

// Engine 解析器及其需要关闭的资源
type Engine struct {
	Registry *source.Registry
	Resolver *resolver.Resolver
	closers  []io.Closer
}

func (e *Engine) Close() {
	e.Resolver.Stop()
	for _, c := range e.closers {
		if err := c.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close resource")
		}
	}
}

// NewEngine 根据配置注册歌词提供商并创建解析器。
// AI 整理和机器翻译是可选的，创建失败时只记录日志。
func NewEngine(ctx context.Context, cfg *config.Config) (*Engine, error) {
	reg, err := builtin.NewRegistry()
	if err != nil {
		return nil, fmt.Errorf("failed to register lyric sources: %w", err)
	}

	e := &Engine{Registry: reg}
	rcfg := resolver.Config{
		Priority: cfg.Sources.Priority,
		Disabled: cfg.Sources.Disabled,
		Timeout:  cfg.Sources.Timeout,
	}

	if cfg.AI.Enabled {
		aiClient, err := newAI(ctx, cfg.AI)
		if err != nil {
			log.Error().Err(err).Str("module", cfg.AI.ModuleName).Msg("Failed to create AI client, title normalization disabled")
		} else {
			if c, ok := aiClient.(io.Closer); ok {
				e.closers = append(e.closers, c)
			}
			cache, err := musiccache.New(filepath.Join(cfg.App.CacheDir, normalizeCacheFile))
			if err != nil {
				log.Warn().Err(err).Msg("Failed to load normalization cache, continuing without it")
				cache = nil
			}
			rcfg.Normalizer = lyrics.NewNormalizer(aiClient, cache)
		}
	}

	if cfg.Translate.Enabled {
		tmt, err := tencent.NewClient(cfg.Translate.SecretID, cfg.Translate.SecretKey, cfg.Translate.Region, cfg.Translate.ProjectID)
		if err != nil {
			log.Error().Err(err).Msg("Failed to create translation client, machine translation disabled")
		} else {
			rcfg.Translator = lyrics.NewTranslator(tmt, cfg.Translate.Target)
		}
	}

	e.Resolver = resolver.New(reg, rcfg)
	return e, nil
}

func newAI(ctx context.Context, cfg config.AIConfig) (ai.AiInterface, error) {
	switch cfg.ModuleName {
	case "gemini", "":
		g, err := gemini.NewGemini(ctx, cfg.APIKey, cfg.Model)
		if err != nil {
			return nil, err
		}
		return g, nil
	case "openai":
		return openai.NewOpenAi(cfg.APIKey, cfg.Model, cfg.BaseURL), nil
	default:
		return nil, fmt.Errorf("unknown AI module: %s", cfg.ModuleName)
	}
}

// App 歌词守护进程：轮询播放器，解析歌词，把状态推送给各个输出
type App struct {
	cfg       *config.Config
	engine    *Engine
	player    player.Player
	tracker   *tracker.Tracker
	ipcServer *ipc.Server
	redis     *redis.Client
	statusBar *statusbar.Controller

	mu        sync.Mutex
	lastIndex int
}

func New(ctx context.Context, cfg *config.Config) (*App, error) {
	p, err := player.New(player.Options{
		Backend:     cfg.Player.Backend,
		Name:        cfg.Player.Name,
		MPDAddr:     cfg.Player.MPDAddr,
		MPDPassword: cfg.Player.MPDPassword,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create player: %w", err)
	}

	engine, err := NewEngine(ctx, cfg)
	if err != nil {
		return nil, err
	}

	a := &App{
		cfg:       cfg,
		engine:    engine,
		player:    p,
		tracker:   tracker.New(p, engine.Resolver, cfg.App.PollInterval),
		ipcServer: ipc.NewServer(cfg.App.SocketPath),
		lastIndex: -2,
	}

	if cfg.Redis.Enabled {
		rc, err := redis.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.Channel)
		if err != nil {
			log.Error().Err(err).Str("addr", cfg.Redis.Addr).Msg("Failed to connect to redis, publishing disabled")
		} else {
			a.redis = rc
		}
	}

	if cfg.StatusBar.Enabled {
		a.statusBar = statusbar.NewController(statusbar.Options{
			Process:    cfg.StatusBar.Process,
			Signal:     cfg.StatusBar.Signal,
			OutputFile: cfg.StatusBar.OutputFile,
		})
	}

	a.tracker.AddListener(a.onEvent)
	return a, nil
}

// Run 运行直到 ctx 被取消
func (a *App) Run(ctx context.Context) error {
	if err := os.MkdirAll(a.cfg.App.CacheDir, 0755); err != nil {
		return fmt.Errorf("failed to create cache directory %s: %w", a.cfg.App.CacheDir, err)
	}
	log.Info().Str("cache_dir", a.cfg.App.CacheDir).Msg("Cache directory")

	if err := a.ipcServer.Start(); err != nil {
		return fmt.Errorf("failed to start IPC server: %w", err)
	}
	defer a.ipcServer.Close()

	if a.statusBar != nil {
		if err := a.statusBar.Start(); err != nil {
			log.Warn().Err(err).Msg("Failed to start status bar controller")
		}
		defer a.statusBar.Stop()
	}

	defer a.close()

	a.tracker.Run(ctx)
	if err := ctx.Err(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (a *App) close() {
	a.engine.Close()
	if c, ok := a.player.(io.Closer); ok {
		c.Close()
	}
	if a.redis != nil {
		a.redis.Close()
	}
}

func (a *App) onEvent(event tracker.Event) {
	state := a.tracker.Snapshot()
	update := ipc.NewUpdate(event, state)

	payload, err := update.Marshal()
	if err != nil {
		log.Error().Err(err).Msg("Failed to encode update")
		return
	}
	a.ipcServer.Broadcast(payload)

	if !a.lineChanged(event, state) {
		return
	}
	if a.statusBar != nil {
		a.statusBar.Update(event, state)
	}
	if a.redis != nil {
		a.publish(update)
	}
}

// lineChanged 换歌或当前行变化时返回 true，其余的位置更新只推送给 IPC 客户端
func (a *App) lineChanged(event tracker.Event, state tracker.State) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if event == tracker.SongChanged || state.LineIndex != a.lastIndex {
		a.lastIndex = state.LineIndex
		return true
	}
	return false
}

func (a *App) publish(update ipc.Update) {
	update.EventID = uuid.NewString()
	payload, err := update.Marshal()
	if err != nil {
		log.Error().Err(err).Msg("Failed to encode update")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if _, err := a.redis.Publish(ctx, payload); err != nil {
		log.Warn().Err(err).Str("channel", a.redis.Channel()).Msg("Failed to publish update")
	}
}
