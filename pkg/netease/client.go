package netease

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"lyrik/pkg/source"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ProviderName 网易云音乐提供商标识
const ProviderName = "netease"

const (
	defaultBaseURL = "https://music.163.com"
	pageSize       = 30
	maxPages       = 3
	// TranslationLang tlyric 对应的语言标签
	TranslationLang = "zh_CN"
)

func logger() *zerolog.Logger {
	l := log.With().Str("component", "netease").Logger()
	return &l
}

// NeteaseSearchResponse 网易云搜索API响应
type NeteaseSearchResponse struct {
	Code   int `json:"code"`
	Result struct {
		SongCount int    `json:"songCount"`
		Songs     []Song `json:"songs"`
	} `json:"result"`
}

// Song 搜索结果中的一首歌
type Song struct {
	ID      int    `json:"id"`
	Name    string `json:"name"`
	Artists []struct {
		Name string `json:"name"`
	} `json:"artists"`
	Album struct {
		Name string `json:"name"`
	} `json:"album"`
}

func (s Song) artistNames() []string {
	names := make([]string, len(s.Artists))
	for i, a := range s.Artists {
		names[i] = a.Name
	}
	return names
}

// NeteaseLyricResponse 网易云歌词API响应
type NeteaseLyricResponse struct {
	Lrc struct {
		Lyric string `json:"lyric"`
	} `json:"lrc"`
	Tlyric struct {
		Lyric string `json:"lyric"`
	} `json:"tlyric"`
}

// Client 网易云音乐客户端
type Client struct {
	httpClient     *http.Client
	baseURL        string
	cookie         string
	maxRetries     int
	requestTimeout time.Duration
}

var _ source.Source = (*Client)(nil)

// NewClient 创建新的网易云音乐客户端
func NewClient() *Client {
	return &Client{
		httpClient:     &http.Client{Timeout: 5 * time.Second},
		baseURL:        defaultBaseURL,
		cookie:         os.Getenv("NETEASE_COOKIE"),
		maxRetries:     3,
		requestTimeout: 5 * time.Second,
	}
}

// Name 获取提供商名称
func (c *Client) Name() string {
	return ProviderName
}

// Fetch 搜索歌曲并获取歌词。歌名必须一致；专辑和歌手集合都一致时为精确匹配，
// 否则在允许模糊匹配时按得分选出最佳候选。
func (c *Client) Fetch(ctx context.Context, q source.Query, allowFuzzy bool) (*source.Result, error) {
	keywords := strings.TrimSpace(strings.Join(append([]string{q.Title, q.Album}, q.Artists...), " "))

	var candidates []Song
	for page := 0; page < maxPages; page++ {
		resp, err := c.search(ctx, keywords, page)
		if err != nil {
			return nil, source.Connectivity(ProviderName, err)
		}

		for _, song := range resp.Result.Songs {
			if !strings.EqualFold(strings.TrimSpace(song.Name), strings.TrimSpace(q.Title)) {
				continue
			}
			if strings.EqualFold(song.Album.Name, q.Album) && source.SameArtists(song.artistNames(), q.Artists) {
				logger().Info().Str("song", song.Name).Int("id", song.ID).Msg("Found exact match")
				return c.result(ctx, song, source.Exact, q)
			}
			if allowFuzzy {
				candidates = append(candidates, song)
			}
		}

		if (page+1)*pageSize >= resp.Result.SongCount {
			break
		}
	}

	best, score, ok := source.Best(candidates, func(s Song) int {
		return source.Score(q, s.Album.Name, s.artistNames())
	})
	if !ok {
		return nil, source.NotFound(ProviderName, "no matching song for %q by %q on %q", q.Title, strings.Join(q.Artists, ", "), q.Album)
	}
	logger().Info().Str("song", best.Name).Int("id", best.ID).Int("score", score).Msg("Using fuzzy match")
	return c.result(ctx, best, source.Fuzzy, q)
}

func (c *Client) result(ctx context.Context, song Song, confidence source.Confidence, q source.Query) (*source.Result, error) {
	lyricResp, err := c.lyric(ctx, song.ID)
	if err != nil {
		return nil, source.Connectivity(ProviderName, err)
	}
	if !source.HasTimeTags(lyricResp.Lrc.Lyric) {
		return nil, source.NotFound(ProviderName, "song %d has no synced lyrics", song.ID)
	}

	res := &source.Result{
		SourceName: ProviderName,
		Confidence: confidence,
		Lyrics:     lyricResp.Lrc.Lyric,
	}
	if source.HasTimeTags(lyricResp.Tlyric.Lyric) {
		res.Translations = map[string]string{TranslationLang: lyricResp.Tlyric.Lyric}
	}
	return res, nil
}

// search 搜索歌曲
func (c *Client) search(ctx context.Context, keywords string, page int) (*NeteaseSearchResponse, error) {
	params := url.Values{}
	params.Set("s", keywords)
	params.Set("type", "1")
	params.Set("limit", fmt.Sprint(pageSize))
	params.Set("offset", fmt.Sprint(page*pageSize))
	searchURL := fmt.Sprintf("%s/api/search/get/web?%s", c.baseURL, params.Encode())
	logger().Debug().Str("url", searchURL).Msg("Searching for song")

	var searchResp NeteaseSearchResponse
	if err := c.getJSON(ctx, searchURL, &searchResp); err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	return &searchResp, nil
}

// lyric 获取歌词
func (c *Client) lyric(ctx context.Context, songID int) (*NeteaseLyricResponse, error) {
	lyricURL := fmt.Sprintf("%s/api/song/lyric?os=pc&id=%d&lv=-1&kv=-1&tv=-1", c.baseURL, songID)
	logger().Debug().Str("url", lyricURL).Msg("Fetching lyrics")

	var lyricResp NeteaseLyricResponse
	if err := c.getJSON(ctx, lyricURL, &lyricResp); err != nil {
		return nil, fmt.Errorf("lyric: %w", err)
	}
	return &lyricResp, nil
}

func (c *Client) getJSON(ctx context.Context, rawURL string, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if c.cookie != "" {
		req.Header.Set("Cookie", c.cookie)
	}

	resp, err := c.doRequestWithRetry(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("API request failed with status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// doRequestWithRetry 对网络错误和 5xx 响应进行重试，最多尝试 maxRetries 次
func (c *Client) doRequestWithRetry(req *http.Request) (*http.Response, error) {
	attempts := max(c.maxRetries, 1)

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-req.Context().Done():
				return nil, req.Context().Err()
			case <-time.After(time.Duration(attempt*200) * time.Millisecond):
			}
			logger().Debug().Int("attempt", attempt+1).Int("max_retries", attempts).Msg("Retrying request")
		}

		resp, err := c.httpClient.Do(req.Clone(req.Context()))
		if err != nil {
			lastErr = err
			if req.Context().Err() != nil {
				break
			}
			continue
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			resp.Body.Close()
			lastErr = fmt.Errorf("server returned status %d", resp.StatusCode)
			continue
		}
		return resp, nil
	}

	return nil, fmt.Errorf("request failed after retries: %w", lastErr)
}
