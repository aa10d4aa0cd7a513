package player

import (
	"context"
	"fmt"
	"strings"
)

// Player 外部播放器，每次调用都可能因传输错误失败
type Player interface {
	Metadata(ctx context.Context) (Metadata, error)
	// Position 当前播放位置（微秒）
	Position(ctx context.Context) (int64, error)
	Status(ctx context.Context) (Status, error)
}

// Metadata 播放器上报的曲目信息
type Metadata struct {
	Title   string
	Album   string
	Artists []string
}

// Status 播放状态
type Status int

const (
	StatusUnknown Status = iota
	StatusPlaying
	StatusPaused
	StatusStopped
)

func (s Status) String() string {
	switch s {
	case StatusPlaying:
		return "Playing"
	case StatusPaused:
		return "Paused"
	case StatusStopped:
		return "Stopped"
	default:
		return "Unknown"
	}
}

// ParseStatus 解析 MPRIS / playerctl / mpd 的状态字符串
func ParseStatus(s string) Status {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "playing", "play":
		return StatusPlaying
	case "paused", "pause":
		return StatusPaused
	case "stopped", "stop":
		return StatusStopped
	default:
		return StatusUnknown
	}
}

const (
	BackendMPRIS     = "mpris"
	BackendMPD       = "mpd"
	BackendPlayerctl = "playerctl"
)

// Options 创建播放器所需的配置
type Options struct {
	Backend     string
	Name        string // mpris 服务名后缀或 playerctl 的 --player
	MPDAddr     string
	MPDPassword string
}

// New 根据后端名称创建播放器
func New(opts Options) (Player, error) {
	switch opts.Backend {
	case BackendMPRIS, "":
		return NewMPRIS(opts.Name)
	case BackendMPD:
		return NewMPD(opts.MPDAddr, opts.MPDPassword), nil
	case BackendPlayerctl:
		return NewPlayerctl(opts.Name), nil
	default:
		return nil, fmt.Errorf("unknown player backend: %s", opts.Backend)
	}
}
