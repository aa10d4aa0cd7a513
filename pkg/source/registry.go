package source

import (
	"fmt"
	"slices"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func logger() *zerolog.Logger {
	l := log.With().Str("component", "source-registry").Logger()
	return &l
}

// Registry 按注册顺序保存歌词提供商。注册顺序用于同优先级时的决胜。
type Registry struct {
	sources []Source
}

func NewRegistry(sources ...Source) (*Registry, error) {
	r := &Registry{}
	for _, s := range sources {
		if err := r.Register(s); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register 注册提供商，名称必须唯一
func (r *Registry) Register(s Source) error {
	name := s.Name()
	if name == "" {
		return fmt.Errorf("source has empty name")
	}
	if r.Lookup(name) != nil {
		return fmt.Errorf("source %q already registered", name)
	}
	r.sources = append(r.sources, s)
	logger().Debug().Str("source", name).Int("order", len(r.sources)-1).Msg("Registered source")
	return nil
}

// Lookup 根据名称获取提供商，不存在时返回 nil
func (r *Registry) Lookup(name string) Source {
	for _, s := range r.sources {
		if s.Name() == name {
			return s
		}
	}
	return nil
}

// Names 获取所有提供商名称（注册顺序）
func (r *Registry) Names() []string {
	names := make([]string, len(r.sources))
	for i, s := range r.sources {
		names[i] = s.Name()
	}
	return names
}

func (r *Registry) Len() int {
	return len(r.sources)
}

// Enabled 返回未被禁用的提供商，保持注册顺序
func (r *Registry) Enabled(disabled []string) []Source {
	var out []Source
	for _, s := range r.sources {
		if slices.Contains(disabled, s.Name()) {
			logger().Info().Str("source", s.Name()).Msg("Source disabled by configuration")
			continue
		}
		out = append(out, s)
	}
	return out
}

// Score 模糊匹配打分：专辑相同 +1，歌手集合相同 +1
func Score(q Query, album string, artists []string) int {
	score := 0
	if album != "" && strings.EqualFold(album, q.Album) {
		score++
	}
	if SameArtists(artists, q.Artists) {
		score++
	}
	return score
}

// SameArtists 忽略顺序和大小写比较歌手集合
func SameArtists(a, b []string) bool {
	set := func(in []string) map[string]struct{} {
		m := make(map[string]struct{}, len(in))
		for _, s := range in {
			m[strings.ToLower(strings.TrimSpace(s))] = struct{}{}
		}
		return m
	}
	sa, sb := set(a), set(b)
	if len(sa) != len(sb) || len(sa) == 0 {
		return false
	}
	for k := range sa {
		if _, ok := sb[k]; !ok {
			return false
		}
	}
	return true
}

// Best 返回得分最高的候选，分数相同时取靠前的
func Best[T any](candidates []T, score func(T) int) (best T, bestScore int, ok bool) {
	for i, c := range candidates {
		s := score(c)
		if i == 0 || s > bestScore {
			best, bestScore, ok = c, s, true
		}
	}
	return best, bestScore, ok
}
