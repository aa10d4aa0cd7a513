package lyrics

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Line 一行带时间戳的歌词
type Line struct {
	TimestampUS int64  `json:"timestamp_us"` // 微秒
	Text        string `json:"text"`         // 歌词文本
}

var (
	timeTagRe   = regexp.MustCompile(`^\[(\d+):(\d{2})(?:[.:](\d{1,3}))?\]`)
	offsetTagRe = regexp.MustCompile(`^\[offset:\s*([+-]?\d+)\s*\]`)
)

// ParseLRC 解析 LRC 歌词文本，返回按时间升序排列的歌词行。
// 无法解析时间戳的行会被跳过。
func ParseLRC(lrc string) []Line {
	var result []Line
	var offsetUS int64

	for _, raw := range strings.Split(lrc, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}

		if match := offsetTagRe.FindStringSubmatch(line); match != nil {
			ms, err := strconv.ParseInt(match[1], 10, 64)
			if err == nil {
				offsetUS = ms * 1000
			}
			continue
		}

		// 一行可以有多个时间标签，例如 [00:01.00][00:30.00]副歌
		var stamps []int64
		rest := line
		for {
			match := timeTagRe.FindStringSubmatch(rest)
			if match == nil {
				break
			}
			stamps = append(stamps, tagToMicros(match[1], match[2], match[3]))
			rest = rest[len(match[0]):]
		}
		if len(stamps) == 0 {
			continue
		}

		text := strings.TrimSpace(rest)
		for _, ts := range stamps {
			result = append(result, Line{TimestampUS: ts, Text: text})
		}
	}

	if offsetUS != 0 {
		// offset 为正表示歌词提前显示
		for i := range result {
			ts := result[i].TimestampUS - offsetUS
			if ts < 0 {
				ts = 0
			}
			result[i].TimestampUS = ts
		}
	}

	sort.SliceStable(result, func(i, j int) bool { return result[i].TimestampUS < result[j].TimestampUS })
	return result
}

func tagToMicros(minStr, secStr, fracStr string) int64 {
	min, _ := strconv.ParseInt(minStr, 10, 64)
	sec, _ := strconv.ParseInt(secStr, 10, 64)
	ms := int64(0)
	if fracStr != "" {
		ms, _ = strconv.ParseInt(fracStr, 10, 64)
		// 根据毫秒字符串的长度来正确处理毫秒值
		switch len(fracStr) {
		case 1:
			ms *= 100 // .1 表示 100ms
		case 2:
			ms *= 10 // .49 表示 490ms
		}
	}
	return (min*60+sec)*1_000_000 + ms*1000
}

// FormatLRC 把歌词行渲染回 LRC 文本
func FormatLRC(lines []Line) string {
	var b strings.Builder
	for _, l := range lines {
		ms := l.TimestampUS / 1000
		fmt.Fprintf(&b, "[%02d:%02d.%03d]%s\n", ms/60000, (ms/1000)%60, ms%1000, l.Text)
	}
	return b.String()
}

// Index 返回 lines 中时间戳不大于 positionUS 的最后一行的下标，没有则返回 -1。
// lines 必须已按时间升序排列。
func Index(lines []Line, positionUS int64) int {
	if len(lines) == 0 {
		return -1
	}

	// 在第一行歌词之前
	if positionUS < lines[0].TimestampUS {
		return -1
	}

	left, right := 0, len(lines)-1
	result := -1

	for left <= right {
		mid := (left + right) / 2
		if lines[mid].TimestampUS <= positionUS {
			result = mid
			left = mid + 1
		} else {
			right = mid - 1
		}
	}

	return result
}
