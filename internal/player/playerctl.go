package player

import (
	"context"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
)

const fieldSep = "\x1f"

// Playerctl 通过 playerctl 命令读取播放器状态
type Playerctl struct {
	name string
	run  func(ctx context.Context, args ...string) ([]byte, error)
}

func NewPlayerctl(name string) *Playerctl {
	return &Playerctl{name: name, run: runPlayerctl}
}

func runPlayerctl(ctx context.Context, args ...string) ([]byte, error) {
	out, err := exec.CommandContext(ctx, "playerctl", args...).Output()
	if err != nil {
		return nil, fmt.Errorf("playerctl %s: %w", strings.Join(args, " "), err)
	}
	return out, nil
}

func (p *Playerctl) args(args ...string) []string {
	if p.name == "" {
		return args
	}
	return append([]string{"--player", p.name}, args...)
}

func (p *Playerctl) Metadata(ctx context.Context) (Metadata, error) {
	format := strings.Join([]string{"{{xesam:title}}", "{{xesam:album}}", "{{xesam:artist}}"}, fieldSep)
	out, err := p.run(ctx, p.args("metadata", "--format", format)...)
	if err != nil {
		return Metadata{}, err
	}

	fields := strings.SplitN(strings.TrimRight(string(out), "\n"), fieldSep, 3)
	for len(fields) < 3 {
		fields = append(fields, "")
	}

	md := Metadata{Title: strings.TrimSpace(fields[0]), Album: strings.TrimSpace(fields[1])}
	// playerctl 用 ", " 拼接多个歌手
	for _, a := range strings.Split(fields[2], ", ") {
		if a = strings.TrimSpace(a); a != "" {
			md.Artists = append(md.Artists, a)
		}
	}
	return md, nil
}

func (p *Playerctl) Position(ctx context.Context) (int64, error) {
	out, err := p.run(ctx, p.args("position")...)
	if err != nil {
		return 0, err
	}
	seconds, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid playerctl position %q: %w", out, err)
	}
	return int64(math.Round(seconds * 1_000_000)), nil
}

func (p *Playerctl) Status(ctx context.Context) (Status, error) {
	out, err := p.run(ctx, p.args("status")...)
	if err != nil {
		return StatusUnknown, err
	}
	return ParseStatus(string(out)), nil
}
