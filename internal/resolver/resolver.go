package resolver

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"lyrik/internal/lyrics"
	"lyrik/pkg/source"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// DefaultTimeout 单个提供商的默认等待时间
const DefaultTimeout = 10 * time.Second

// logger 每次调用时从全局 logger 派生，SetupLogging 之后的输出设置才会生效
func logger() *zerolog.Logger {
	l := log.With().Str("component", "resolver").Logger()
	return &l
}

// Kind 解析结果类别
type Kind int

const (
	// Found 选出了一个结果
	Found Kind = iota
	// NoMatch 至少有一个提供商确认没有匹配的歌曲
	NoMatch
	// Unreachable 所有提供商都因网络问题失败
	Unreachable
)

func (k Kind) String() string {
	switch k {
	case Found:
		return "found"
	case NoMatch:
		return "no-match"
	case Unreachable:
		return "unreachable"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Outcome 一次解析的结果
type Outcome struct {
	Kind       Kind
	Result     *source.Result // Kind == Found 时非空
	SourceName string
	Track      lyrics.Track
	// Generation 异步解析的代数，同步调用 Lookup 时为 0
	Generation uint64
}

// Normalizer 在查询前整理曲目信息
type Normalizer interface {
	Normalize(ctx context.Context, track lyrics.Track) (lyrics.Track, error)
}

// Translator 为没有翻译的歌词补充机器翻译
type Translator interface {
	Target() string
	Translate(ctx context.Context, lrc string) (string, error)
}

// Config 解析器配置
type Config struct {
	// Priority 提供商优先级，靠前的优先；未列出的排在最后
	Priority []string
	// Disabled 不参与查询的提供商
	Disabled []string
	// Timeout 单个提供商的等待上限，超时视为网络失败
	Timeout time.Duration

	Normalizer Normalizer
	Translator Translator
}

// Resolver 并发查询所有启用的提供商，按可信度和优先级选出一个结果
type Resolver struct {
	sources    []source.Source
	rank       map[string]int
	timeout    time.Duration
	normalizer Normalizer
	translator Translator

	generation atomic.Uint64
	mu         sync.Mutex
	cancel     context.CancelFunc
}

func New(reg *source.Registry, cfg Config) *Resolver {
	r := &Resolver{
		sources:    reg.Enabled(cfg.Disabled),
		rank:       make(map[string]int, len(cfg.Priority)),
		timeout:    cfg.Timeout,
		normalizer: cfg.Normalizer,
		translator: cfg.Translator,
	}
	if r.timeout <= 0 {
		r.timeout = DefaultTimeout
	}
	for i, name := range cfg.Priority {
		if _, ok := r.rank[name]; !ok {
			r.rank[name] = i
		}
	}

	names := make([]string, len(r.sources))
	for i, s := range r.sources {
		names[i] = s.Name()
	}
	logger().Info().Strs("sources", names).Strs("priority", cfg.Priority).Dur("timeout", r.timeout).Msg("Resolver initialized")
	return r
}

// Rank 提供商的优先级，数值越小越优先
func (r *Resolver) Rank(name string) int {
	if i, ok := r.rank[name]; ok {
		return i
	}
	return len(r.rank)
}

// Sources 参与查询的提供商名称（注册顺序）
func (r *Resolver) Sources() []string {
	names := make([]string, len(r.sources))
	for i, s := range r.sources {
		names[i] = s.Name()
	}
	return names
}

// Generation 最近一次 Resolve 的代数
func (r *Resolver) Generation() uint64 {
	return r.generation.Load()
}

// IsCurrent reports whether gen belongs to the most recent Resolve call.
func (r *Resolver) IsCurrent(gen uint64) bool {
	return gen == r.generation.Load()
}

// Resolve 在后台解析 track，完成后调用 done。新的调用会取消仍在进行的旧调用；
// 旧调用的结果仍会交给 done，调用方需用 Generation 判断是否过期。
func (r *Resolver) Resolve(ctx context.Context, track lyrics.Track, allowFuzzy bool, done func(Outcome)) uint64 {
	r.mu.Lock()
	if r.cancel != nil {
		r.cancel()
	}
	gen := r.generation.Add(1)
	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.mu.Unlock()

	go func() {
		defer cancel()
		out := r.Lookup(ctx, track, allowFuzzy)
		out.Generation = gen
		if !r.IsCurrent(gen) {
			logger().Debug().Uint64("generation", gen).Str("track", track.String()).Msg("Resolution superseded")
		}
		done(out)
	}()

	return gen
}

// Stop 取消正在进行的解析
func (r *Resolver) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
}

type attempt struct {
	source source.Source
	result *source.Result
	err    error
}

// Lookup 同步查询所有提供商并选出结果
func (r *Resolver) Lookup(ctx context.Context, track lyrics.Track, allowFuzzy bool) Outcome {
	query := track
	if r.normalizer != nil {
		normalized, err := r.normalizer.Normalize(ctx, track)
		if err != nil {
			logger().Warn().Err(err).Str("track", track.String()).Msg("Failed to normalize track, using it as is")
		} else {
			query = normalized
		}
	}

	q := source.Query{Title: query.Title, Album: query.Album, Artists: query.Artists}

	attempts := make([]attempt, len(r.sources))
	var g errgroup.Group
	for i, s := range r.sources {
		g.Go(func() error {
			attempts[i] = r.fetch(ctx, s, q, allowFuzzy)
			return nil
		})
	}
	_ = g.Wait()

	out := r.choose(attempts, allowFuzzy)
	out.Track = track

	if out.Kind == Found {
		out.Result = r.translate(ctx, out.Result)
		logger().Info().Str("track", track.String()).Str("source", out.SourceName).
			Stringer("confidence", out.Result.Confidence).Msg("Lyrics resolved")
	} else {
		logger().Info().Str("track", track.String()).Stringer("outcome", out.Kind).Msg("No lyrics resolved")
	}
	return out
}

// fetch 单个提供商的隔离边界：超时和 panic 都被转换成网络失败
func (r *Resolver) fetch(ctx context.Context, s source.Source, q source.Query, allowFuzzy bool) attempt {
	name := s.Name()
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	ch := make(chan attempt, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				ch <- attempt{source: s, err: source.Connectivity(name, fmt.Errorf("panic: %v", p))}
			}
		}()
		res, err := s.Fetch(ctx, q, allowFuzzy)
		ch <- attempt{source: s, result: res, err: err}
	}()

	var a attempt
	select {
	case a = <-ch:
	case <-ctx.Done():
		a = attempt{source: s, err: source.Connectivity(name, fmt.Errorf("no response within %s: %w", r.timeout, ctx.Err()))}
	}

	switch {
	case a.err != nil:
		if !source.IsNotFound(a.err) && !errors.Is(a.err, source.ErrConnectivity) {
			a.err = source.Connectivity(name, a.err)
		}
		logger().Warn().Str("source", name).Err(a.err).Msg("Source failed")
	case a.result == nil:
		a.err = source.NotFound(name, "source returned no result")
		logger().Warn().Str("source", name).Err(a.err).Msg("Source failed")
	default:
		if a.result.SourceName == "" {
			a.result.SourceName = name
		}
		logger().Debug().Str("source", name).Stringer("confidence", a.result.Confidence).Msg("Source returned lyrics")
	}
	return a
}

func (r *Resolver) choose(attempts []attempt, allowFuzzy bool) Outcome {
	var exact, fuzzy []attempt
	allConnectivity := true
	for _, a := range attempts {
		if a.err != nil {
			if !errors.Is(a.err, source.ErrConnectivity) {
				allConnectivity = false
			}
			continue
		}
		allConnectivity = false
		switch a.result.Confidence {
		case source.Exact:
			exact = append(exact, a)
		case source.Fuzzy:
			fuzzy = append(fuzzy, a)
		}
	}

	if best, ok := r.highestPriority(exact); ok {
		return Outcome{Kind: Found, Result: best.result, SourceName: best.source.Name()}
	}
	if allowFuzzy {
		if best, ok := r.highestPriority(fuzzy); ok {
			return Outcome{Kind: Found, Result: best.result, SourceName: best.source.Name()}
		}
	}
	if len(attempts) > 0 && allConnectivity {
		return Outcome{Kind: Unreachable}
	}
	return Outcome{Kind: NoMatch}
}

// highestPriority 同一可信度内按优先级选择，相同时取先注册的
func (r *Resolver) highestPriority(bucket []attempt) (attempt, bool) {
	if len(bucket) == 0 {
		return attempt{}, false
	}
	best := bucket[0]
	for _, a := range bucket[1:] {
		if r.Rank(a.source.Name()) < r.Rank(best.source.Name()) {
			best = a
		}
	}
	return best, true
}

func (r *Resolver) translate(ctx context.Context, res *source.Result) *source.Result {
	if r.translator == nil || len(res.Translations) > 0 {
		return res
	}

	translated, err := r.translator.Translate(ctx, res.Lyrics)
	if err != nil {
		logger().Warn().Err(err).Str("target", r.translator.Target()).Msg("Failed to translate lyrics")
		return res
	}

	out := *res
	out.Translations = map[string]string{r.translator.Target(): translated}
	return &out
}

// Describe 用于日志和命令行输出
func (o Outcome) Describe() string {
	if o.Kind != Found {
		return o.Kind.String()
	}
	return strings.Join([]string{o.Kind.String(), o.SourceName, o.Result.Confidence.String()}, " ")
}
