package builtin

import (
	"fmt"

	"lyrik/pkg/lrclib"
	"lyrik/pkg/netease"
	"lyrik/pkg/source"

	"github.com/rs/zerolog/log"
)

const (
	// NetEase 网易云音乐
	NetEase = netease.ProviderName
	// LRCLib LRCLib歌词库
	LRCLib = lrclib.ProviderName
)

// Names 内置提供商的默认注册顺序
func Names() []string {
	return []string{NetEase, LRCLib}
}

// Create 根据名称创建提供商客户端
func Create(name string) (source.Source, error) {
	switch name {
	case NetEase, "网易云", "163":
		log.Info().Str("source", NetEase).Msg("Creating NetEase music client")
		return netease.NewClient(), nil
	case LRCLib:
		log.Info().Str("source", LRCLib).Msg("Creating LRCLib client")
		return lrclib.NewClient(), nil
	default:
		return nil, fmt.Errorf("unknown lyric source: %s", name)
	}
}

// NewRegistry 按默认顺序注册所有内置提供商
func NewRegistry() (*source.Registry, error) {
	reg := &source.Registry{}
	for _, name := range Names() {
		s, err := Create(name)
		if err != nil {
			return nil, err
		}
		if err := reg.Register(s); err != nil {
			return nil, err
		}
	}
	if reg.Len() == 0 {
		return nil, fmt.Errorf("no lyric sources available")
	}
	return reg, nil
}
