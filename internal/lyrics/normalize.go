package lyrics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"lyrik/pkg/ai"
	"lyrik/pkg/musiccache"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func normLogger() *zerolog.Logger {
	l := log.With().Str("component", "normalizer").Logger()
	return &l
}

// SongInfo AI 从媒体标题中提取出的歌曲信息
type SongInfo struct {
	Title  string `json:"title"`
	Artist string `json:"artist"`
	IsSong bool   `json:"is_song"`
}

func formatQuerySong(title string) string {
	return fmt.Sprintf(`请精确地按照以下JSON格式提取歌曲信息: {"is_song": true, "title": "歌曲标题", "artist": "演唱者"}。  输入是一个媒体标题，如果标题中包含歌曲信息，请返回符合格式的JSON；否则，返回{"is_song": false}。 请注意，"title" 和 "artist" 必须准确，否则将被视为错误，切记不要任何markdown格式。 媒体标题是：%s`, title)
}

// Normalizer 用 AI 把播放器上报的媒体标题（例如视频标题）整理成歌名和歌手
type Normalizer struct {
	aiClient   ai.AiInterface
	cache      *musiccache.Cache
	maxRetries int
	retryDelay time.Duration
}

// NewNormalizer cache may be nil.
func NewNormalizer(aiClient ai.AiInterface, cache *musiccache.Cache) *Normalizer {
	return &Normalizer{
		aiClient:   aiClient,
		cache:      cache,
		maxRetries: 3,
		retryDelay: time.Second,
	}
}

// Normalize 返回整理后的曲目。不是歌曲时原样返回。
func (n *Normalizer) Normalize(ctx context.Context, track Track) (Track, error) {
	key := track.String()

	if n.cache != nil {
		if cached, err := n.cache.Get(key); err == nil {
			var info SongInfo
			if err := json.Unmarshal([]byte(cached), &info); err == nil {
				normLogger().Debug().Str("key", key).Msg("Cache HIT")
				return applySongInfo(track, info), nil
			}
		}
	}

	var raw string
	var err error
	for i := range n.maxRetries {
		raw, err = n.aiClient.HandleText(ctx, formatQuerySong(key))
		if err == nil {
			break
		}
		normLogger().Warn().Err(err).Int("attempt", i+1).Int("max_retries", n.maxRetries).
			Str("ai", n.aiClient.Name()).Msg("Failed to query AI")
		if i == n.maxRetries-1 {
			break
		}
		select {
		case <-ctx.Done():
			return track, ctx.Err()
		case <-time.After(n.retryDelay):
		}
	}
	if err != nil {
		return track, fmt.Errorf("failed to query %s after %d attempts: %w", n.aiClient.Name(), n.maxRetries, err)
	}

	info, err := parseSongInfo(raw)
	if err != nil {
		return track, err
	}

	if n.cache != nil {
		if b, err := json.Marshal(info); err == nil {
			if err := n.cache.Add(key, string(b)); err != nil {
				normLogger().Warn().Err(err).Msg("Failed to write normalization cache")
			}
		}
	}

	out := applySongInfo(track, info)
	normLogger().Info().Str("from", key).Str("to", out.String()).Msg("Normalized track")
	return out, nil
}

func parseSongInfo(raw string) (SongInfo, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")

	var info SongInfo
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &info); err != nil {
		return SongInfo{}, fmt.Errorf("failed to parse AI response: %w", err)
	}
	if info.IsSong && info.Title == "" {
		return SongInfo{}, errors.New("AI response has no title")
	}
	return info, nil
}

func applySongInfo(track Track, info SongInfo) Track {
	if !info.IsSong {
		return track
	}
	out := Track{Title: info.Title, Album: track.Album, Artists: track.Artists}
	if len(out.Artists) == 0 && info.Artist != "" {
		out.Artists = []string{info.Artist}
	}
	return out
}
