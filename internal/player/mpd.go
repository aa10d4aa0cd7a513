package player

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"sync"

	"github.com/fhs/gompd/mpd"
)

// MPD 读取 mpd 的当前歌曲和进度。连接断开后在下一次调用时重连。
type MPD struct {
	addr     string
	password string

	mu     sync.Mutex
	client *mpd.Client
}

func NewMPD(addr, password string) *MPD {
	if addr == "" {
		addr = "127.0.0.1:6600"
	}
	return &MPD{addr: addr, password: password}
}

func (m *MPD) connect() (*mpd.Client, error) {
	if m.client != nil {
		if err := m.client.Ping(); err == nil {
			return m.client, nil
		}
		m.client.Close()
		m.client = nil
	}

	client, err := mpd.DialAuthenticated("tcp", m.addr, m.password)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mpd at %s: %w", m.addr, err)
	}
	m.client = client
	return client, nil
}

func (m *MPD) do(ctx context.Context, f func(c *mpd.Client) (mpd.Attrs, error)) (mpd.Attrs, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	c, err := m.connect()
	if err != nil {
		return nil, err
	}
	attrs, err := f(c)
	if err != nil {
		c.Close()
		m.client = nil
		return nil, err
	}
	return attrs, nil
}

func (m *MPD) Metadata(ctx context.Context) (Metadata, error) {
	attrs, err := m.do(ctx, (*mpd.Client).CurrentSong)
	if err != nil {
		return Metadata{}, err
	}
	md := Metadata{Title: attrs["Title"], Album: attrs["Album"]}
	if artist := attrs["Artist"]; artist != "" {
		md.Artists = []string{artist}
	}
	return md, nil
}

func (m *MPD) Position(ctx context.Context) (int64, error) {
	attrs, err := m.do(ctx, (*mpd.Client).Status)
	if err != nil {
		return 0, err
	}
	elapsed := attrs["elapsed"]
	if elapsed == "" {
		return 0, nil
	}
	seconds, err := strconv.ParseFloat(elapsed, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid mpd elapsed %q: %w", elapsed, err)
	}
	return int64(math.Round(seconds * 1_000_000)), nil
}

func (m *MPD) Status(ctx context.Context) (Status, error) {
	attrs, err := m.do(ctx, (*mpd.Client).Status)
	if err != nil {
		return StatusUnknown, err
	}
	return ParseStatus(attrs["state"]), nil
}

func (m *MPD) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.client == nil {
		return nil
	}
	err := m.client.Close()
	m.client = nil
	return err
}
