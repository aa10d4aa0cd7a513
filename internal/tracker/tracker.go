package tracker

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"lyrik/internal/lyrics"
	"lyrik/internal/player"
	"lyrik/internal/resolver"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DefaultInterval 默认轮询间隔
const DefaultInterval = 200 * time.Millisecond

func logger() *zerolog.Logger {
	l := log.With().Str("component", "tracker").Logger()
	return &l
}

// Event 状态变化通知
type Event int

const (
	// SongChanged 曲目或歌词发生变化
	SongChanged Event = iota
	// PositionChanged 播放位置发生变化
	PositionChanged
)

func (e Event) String() string {
	if e == SongChanged {
		return "song-changed"
	}
	return "position-changed"
}

// Resolver 是 Tracker 用到的解析器方法
type Resolver interface {
	Resolve(ctx context.Context, track lyrics.Track, allowFuzzy bool, done func(resolver.Outcome)) uint64
}

// State 播放状态快照
type State struct {
	Track            *lyrics.Track
	PositionUS       int64
	Status           player.Status
	Document         *lyrics.Document
	LineIndex        int
	TranslationIndex map[string]int
	// Source 提供当前歌词的提供商，没有歌词时为空
	Source string
}

// Title 当前曲目标题
func (s State) Title() string {
	if s.Track == nil {
		return ""
	}
	return s.Track.Title
}

// Original 原文歌词
func (s State) Original() []lyrics.Line {
	if s.Document == nil {
		return nil
	}
	return s.Document.Original
}

// Translations 各语言的翻译歌词
func (s State) Translations() map[string][]lyrics.Line {
	if s.Document == nil {
		return nil
	}
	return s.Document.Translations
}

// CurrentLine 当前行歌词
func (s State) CurrentLine() (lyrics.Line, bool) {
	lines := s.Original()
	if s.LineIndex < 0 || s.LineIndex >= len(lines) {
		return lyrics.Line{}, false
	}
	return lines[s.LineIndex], true
}

// Tracker 轮询播放器，在换歌时解析歌词并维护当前行
type Tracker struct {
	player   player.Player
	resolver Resolver
	interval time.Duration

	mu         sync.Mutex
	state      State
	generation uint64 // 0 表示没有等待中的解析
	runCtx     context.Context

	listenersMu sync.Mutex
	listeners   []func(Event)
}

func New(p player.Player, r Resolver, interval time.Duration) *Tracker {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Tracker{
		player:   p,
		resolver: r,
		interval: interval,
		state: State{
			LineIndex:        -1,
			TranslationIndex: map[string]int{},
		},
	}
}

// AddListener 注册状态变化回调。回调在状态锁之外调用。
func (t *Tracker) AddListener(f func(Event)) {
	t.listenersMu.Lock()
	defer t.listenersMu.Unlock()
	t.listeners = append(t.listeners, f)
}

func (t *Tracker) notify(events ...Event) {
	t.listenersMu.Lock()
	listeners := slices.Clone(t.listeners)
	t.listenersMu.Unlock()

	for _, e := range events {
		for _, f := range listeners {
			f(e)
		}
	}
}

// Snapshot 返回当前状态的副本
func (t *Tracker) Snapshot() State {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := t.state
	s.TranslationIndex = maps.Clone(t.state.TranslationIndex)
	if t.state.Track != nil {
		track := *t.state.Track
		s.Track = &track
	}
	return s
}

// Run 按固定间隔轮询，直到 ctx 被取消
func (t *Tracker) Run(ctx context.Context) {
	t.mu.Lock()
	t.runCtx = ctx
	t.mu.Unlock()

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	logger().Info().Dur("interval", t.interval).Msg("Starting player poll loop")
	for {
		t.Tick(ctx)
		select {
		case <-ctx.Done():
			logger().Info().Msg("Player poll loop stopped")
			return
		case <-ticker.C:
		}
	}
}

// Tick 执行一次轮询。读取播放器失败时记录日志并保持状态不变。
func (t *Tracker) Tick(ctx context.Context) {
	md, err := t.player.Metadata(ctx)
	if err != nil {
		logger().Debug().Err(err).Msg("Failed to read player metadata")
		return
	}
	position, err := t.player.Position(ctx)
	if err != nil {
		logger().Debug().Err(err).Msg("Failed to read player position")
		return
	}
	status, err := t.player.Status(ctx)
	if err != nil {
		logger().Debug().Err(err).Msg("Failed to read playback status")
		return
	}

	track := lyrics.Track{Title: md.Title, Album: md.Album, Artists: md.Artists}

	var events []Event

	t.mu.Lock()
	statusChanged := status != t.state.Status
	t.state.Status = status

	if t.trackChangedLocked(track) {
		t.state.Document = nil
		t.state.Source = ""
		t.state.LineIndex = -1
		t.state.TranslationIndex = map[string]int{}

		if track.IsZero() {
			logger().Info().Msg("Player has no track")
			t.state.Track = nil
			t.generation = 0
		} else {
			logger().Info().Str("song", track.String()).Str("album", track.Album).Msg("New song detected")
			t.state.Track = &track
			// 在持锁时记录代数，回调拿到锁时一定能看到它
			t.generation = t.resolver.Resolve(t.resolveCtxLocked(ctx), track, true, t.complete)
		}
		events = append(events, SongChanged)
	}

	if position != t.state.PositionUS {
		t.state.PositionUS = position
		t.recomputeLocked()
		events = append(events, PositionChanged)
	} else if statusChanged {
		events = append(events, PositionChanged)
	}
	t.mu.Unlock()

	t.notify(events...)
}

func (t *Tracker) trackChangedLocked(track lyrics.Track) bool {
	if t.state.Track == nil {
		return !track.IsZero()
	}
	return !t.state.Track.SameAs(track)
}

func (t *Tracker) resolveCtxLocked(tickCtx context.Context) context.Context {
	// Run 的 ctx 覆盖整个生命周期；单独调用 Tick 时使用 Tick 的 ctx
	if t.runCtx != nil {
		return t.runCtx
	}
	return tickCtx
}

// complete 处理解析结果，过期的结果直接丢弃
func (t *Tracker) complete(out resolver.Outcome) {
	t.mu.Lock()
	if out.Generation != t.generation {
		t.mu.Unlock()
		logger().Debug().Uint64("generation", out.Generation).Str("track", out.Track.String()).
			Msg("Discarding stale resolution")
		return
	}

	if out.Kind != resolver.Found {
		t.mu.Unlock()
		logger().Warn().Str("track", out.Track.String()).Stringer("outcome", out.Kind).Msg("No lyrics available")
		return
	}

	doc := lyrics.NewDocument(out.Result.Lyrics, out.Result.Translations)
	t.state.Document = doc
	t.state.Source = out.SourceName
	t.recomputeLocked()
	t.mu.Unlock()

	logger().Info().Str("track", out.Track.String()).Str("source", out.SourceName).
		Int("lines", len(doc.Original)).Strs("translations", doc.Languages()).Msg("Lyrics loaded")
	t.notify(SongChanged)
}

func (t *Tracker) recomputeLocked() {
	t.state.LineIndex = t.state.Document.LineIndex(t.state.PositionUS)
	t.state.TranslationIndex = t.state.Document.TranslationIndexes(t.state.PositionUS)
}
