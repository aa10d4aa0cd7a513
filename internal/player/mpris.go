package player

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/godbus/dbus/v5"
)

const (
	mprisPrefix      = "org.mpris.MediaPlayer2."
	mprisPath        = "/org/mpris/MediaPlayer2"
	mprisPlayerIface = "org.mpris.MediaPlayer2.Player"
	propertiesGet    = "org.freedesktop.DBus.Properties.Get"
)

var ErrNoPlayer = errors.New("no mpris player on the session bus")

// MPRIS 通过 D-Bus 会话总线读取 MPRIS 播放器。
// 没有指定播放器时使用总线上的第一个，找到后一直使用它，直到调用失败。
type MPRIS struct {
	conn *dbus.Conn
	name string // 为空时使用总线上的第一个播放器

	mu      sync.Mutex
	current string

	listNames func(ctx context.Context) ([]string, error)
	get       func(ctx context.Context, service, property string) (dbus.Variant, error)
}

func NewMPRIS(name string) (*MPRIS, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to session bus: %w", err)
	}
	m := &MPRIS{conn: conn, name: name}
	m.listNames = m.busNames
	m.get = m.busProperty
	return m, nil
}

func (m *MPRIS) Close() error {
	return m.conn.Close()
}

func (m *MPRIS) busNames(ctx context.Context) ([]string, error) {
	var names []string
	err := m.conn.BusObject().CallWithContext(ctx, "org.freedesktop.DBus.ListNames", 0).Store(&names)
	return names, err
}

func (m *MPRIS) busProperty(ctx context.Context, service, property string) (dbus.Variant, error) {
	var v dbus.Variant
	err := m.conn.Object(service, mprisPath).
		CallWithContext(ctx, propertiesGet, 0, mprisPlayerIface, property).
		Store(&v)
	return v, err
}

func (m *MPRIS) service(ctx context.Context) (string, error) {
	if m.name != "" {
		return mprisPrefix + m.name, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current != "" {
		return m.current, nil
	}

	names, err := m.listNames(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to list bus names: %w", err)
	}
	for _, n := range names {
		if strings.HasPrefix(n, mprisPrefix) {
			m.current = n
			return n, nil
		}
	}
	return "", ErrNoPlayer
}

// forget 调用失败后下次重新查找播放器
func (m *MPRIS) forget(service string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == service {
		m.current = ""
	}
}

func (m *MPRIS) property(ctx context.Context, name string) (dbus.Variant, error) {
	service, err := m.service(ctx)
	if err != nil {
		return dbus.Variant{}, err
	}

	v, err := m.get(ctx, service, name)
	if err != nil {
		m.forget(service)
		return dbus.Variant{}, fmt.Errorf("failed to get %s from %s: %w", name, service, err)
	}
	return v, nil
}

func (m *MPRIS) Metadata(ctx context.Context) (Metadata, error) {
	v, err := m.property(ctx, "Metadata")
	if err != nil {
		return Metadata{}, err
	}
	metadata, ok := v.Value().(map[string]dbus.Variant)
	if !ok {
		return Metadata{}, fmt.Errorf("unexpected metadata type %T", v.Value())
	}
	return metadataFromMap(metadata), nil
}

func (m *MPRIS) Position(ctx context.Context) (int64, error) {
	v, err := m.property(ctx, "Position")
	if err != nil {
		return 0, err
	}
	switch pos := v.Value().(type) {
	case int64:
		return pos, nil
	case uint64:
		return int64(pos), nil
	default:
		return 0, fmt.Errorf("unexpected position type %T", v.Value())
	}
}

func (m *MPRIS) Status(ctx context.Context) (Status, error) {
	v, err := m.property(ctx, "PlaybackStatus")
	if err != nil {
		return StatusUnknown, err
	}
	s, _ := v.Value().(string)
	return ParseStatus(s), nil
}

func metadataFromMap(metadata map[string]dbus.Variant) Metadata {
	return Metadata{
		Title:   extractString(metadata, "xesam:title"),
		Album:   extractString(metadata, "xesam:album"),
		Artists: extractStrings(metadata, "xesam:artist"),
	}
}

func extractString(metadata map[string]dbus.Variant, key string) string {
	variant, exists := metadata[key]
	if !exists {
		return ""
	}
	text, _ := variant.Value().(string)
	return text
}

func extractStrings(metadata map[string]dbus.Variant, key string) []string {
	variant, exists := metadata[key]
	if !exists {
		return nil
	}
	switch typed := variant.Value().(type) {
	case []string:
		return typed
	case string:
		if typed == "" {
			return nil
		}
		return []string{typed}
	default:
		return nil
	}
}
