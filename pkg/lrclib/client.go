package lrclib

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"lyrik/pkg/source"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// ProviderName LRCLib提供商标识
const ProviderName = "lrclib"

func logger() *zerolog.Logger {
	l := log.With().Str("component", "lrclib").Logger()
	return &l
}

// Client LRCLib客户端
type Client struct {
	httpClient     *http.Client
	baseURL        string
	requestTimeout time.Duration
	maxRetries     int
	limiter        *rate.Limiter
}

var _ source.Source = (*Client)(nil)

// LRCLibResponse LRCLib API响应结构
type LRCLibResponse struct {
	ID           int     `json:"id"`
	Name         string  `json:"name"`
	TrackName    string  `json:"trackName"`
	ArtistName   string  `json:"artistName"`
	AlbumName    string  `json:"albumName"`
	Duration     float64 `json:"duration"`
	Instrumental bool    `json:"instrumental"`
	PlainLyrics  string  `json:"plainLyrics"`
	SyncedLyrics string  `json:"syncedLyrics"`
}

// LRCLibSearchResponse LRCLib API搜索响应（列表）
type LRCLibSearchResponse []LRCLibResponse

// NewClient 创建新的LRCLib客户端
func NewClient() *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
		baseURL:        "https://lrclib.net/api",
		requestTimeout: 5 * time.Second,
		maxRetries:     2,
		// lrclib 是公益服务，限制请求频率
		limiter: rate.NewLimiter(rate.Every(500*time.Millisecond), 2),
	}
}

// Name 返回提供商名称
func (c *Client) Name() string {
	return ProviderName
}

// Fetch 通过歌曲信息搜索同步歌词
func (c *Client) Fetch(ctx context.Context, q source.Query, allowFuzzy bool) (*source.Result, error) {
	responses, err := c.search(ctx, q)
	if err != nil {
		return nil, source.Connectivity(ProviderName, err)
	}

	logger().Info().Int("results", len(responses)).Str("title", q.Title).Msg("Search finished")

	var candidates []*LRCLibResponse
	for i := range responses {
		r := &responses[i]
		// 只接受逐行同步的歌词
		if r.Instrumental || !source.HasTimeTags(r.SyncedLyrics) {
			continue
		}
		if !strings.EqualFold(strings.TrimSpace(r.TrackName), strings.TrimSpace(q.Title)) {
			continue
		}
		if strings.EqualFold(r.AlbumName, q.Album) && source.SameArtists(splitArtists(r.ArtistName), q.Artists) {
			logger().Info().Str("track", r.TrackName).Str("artist", r.ArtistName).Int("id", r.ID).Msg("Found exact match")
			return result(r, source.Exact), nil
		}
		if allowFuzzy {
			candidates = append(candidates, r)
		}
	}

	best, score, ok := source.Best(candidates, func(r *LRCLibResponse) int {
		return source.Score(q, r.AlbumName, splitArtists(r.ArtistName))
	})
	if !ok {
		return nil, source.NotFound(ProviderName, "no synced lyrics for %q by %q", q.Title, strings.Join(q.Artists, ", "))
	}
	logger().Info().Str("track", best.TrackName).Str("artist", best.ArtistName).Int("score", score).Msg("Using fuzzy match")
	return result(best, source.Fuzzy), nil
}

func result(r *LRCLibResponse, confidence source.Confidence) *source.Result {
	return &source.Result{
		SourceName: ProviderName,
		Confidence: confidence,
		Lyrics:     r.SyncedLyrics,
	}
}

func (c *Client) search(ctx context.Context, q source.Query) (LRCLibSearchResponse, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	params := url.Values{}
	params.Set("track_name", q.Title)
	if len(q.Artists) > 0 {
		params.Set("artist_name", q.Artists[0])
	}
	searchURL := fmt.Sprintf("%s/search?%s", c.baseURL, params.Encode())

	var resp *http.Response
	var err error

	// 重试机制
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			logger().Debug().Int("attempt", attempt).Int("max_retries", c.maxRetries).Msg("Retrying request")
			select {
			case <-timeoutCtx.Done():
				return nil, timeoutCtx.Err()
			case <-time.After(time.Duration(attempt*500) * time.Millisecond):
			}
		}

		if c.limiter != nil {
			if err := c.limiter.Wait(timeoutCtx); err != nil {
				return nil, fmt.Errorf("rate limiter: %w", err)
			}
		}

		req, reqErr := http.NewRequestWithContext(timeoutCtx, http.MethodGet, searchURL, nil)
		if reqErr != nil {
			return nil, fmt.Errorf("failed to create request: %w", reqErr)
		}
		req.Header.Set("User-Agent", "lyrik/1.0")

		resp, err = c.httpClient.Do(req)
		if err == nil && resp.StatusCode == http.StatusOK {
			break
		}

		if err != nil {
			logger().Warn().Err(err).Int("attempt", attempt+1).Msg("Request failed")
		} else {
			logger().Warn().Int("status", resp.StatusCode).Int("attempt", attempt+1).Msg("Request returned non-OK status")
			resp.Body.Close()
		}

		if attempt == c.maxRetries {
			if err != nil {
				return nil, fmt.Errorf("request failed after %d attempts: %w", attempt+1, err)
			}
			return nil, fmt.Errorf("request failed after %d attempts with status %d", attempt+1, resp.StatusCode)
		}
	}
	defer resp.Body.Close()

	var out LRCLibSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return out, nil
}

// splitArtists lrclib 把多个歌手合并成一个字符串
func splitArtists(name string) []string {
	parts := strings.FieldsFunc(name, func(r rune) bool {
		return r == ',' || r == '&' || r == '/' || r == '、'
	})
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
