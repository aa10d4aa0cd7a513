package source

import (
	"context"
	"errors"
	"fmt"
	"regexp"
)

// Source 歌词提供商通用接口
type Source interface {
	// Name 稳定的提供商标识，用于优先级配置和结果标记
	Name() string

	// Fetch 查询歌词。失败时返回的错误满足 errors.Is(err, ErrNotFound)
	// 或 errors.Is(err, ErrConnectivity) 之一。
	Fetch(ctx context.Context, q Query, allowFuzzy bool) (*Result, error)
}

// Query 查询条件
type Query struct {
	Title   string
	Album   string
	Artists []string
}

// Confidence 匹配可信度
type Confidence int

const (
	// Exact 各字段精确匹配
	Exact Confidence = iota
	// Fuzzy 放宽条件后的最佳匹配
	Fuzzy
)

func (c Confidence) String() string {
	switch c {
	case Exact:
		return "exact"
	case Fuzzy:
		return "fuzzy"
	default:
		return fmt.Sprintf("Confidence(%d)", int(c))
	}
}

// Result 单个提供商返回的歌词
type Result struct {
	SourceName   string
	Confidence   Confidence
	Lyrics       string            // LRC 原文
	Translations map[string]string // 语言标签 => LRC 翻译
}

var (
	// ErrNotFound 提供商搜索过但没有足够匹配的歌曲
	ErrNotFound = errors.New("lyrics not found")
	// ErrConnectivity 提供商无法访问或无法解析后端响应
	ErrConnectivity = errors.New("source unreachable")
)

// Error 带有提供商名称和失败类别的错误
type Error struct {
	Source string
	Kind   error // ErrNotFound 或 ErrConnectivity
	Err    error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Source, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Source, e.Kind, e.Err)
}

func (e *Error) Is(target error) bool {
	return target == e.Kind
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NotFound 构造 ErrNotFound 类别的错误
func NotFound(source string, format string, args ...any) error {
	return &Error{Source: source, Kind: ErrNotFound, Err: fmt.Errorf(format, args...)}
}

// Connectivity 包装一个网络或解析错误
func Connectivity(source string, err error) error {
	return &Error{Source: source, Kind: ErrConnectivity, Err: err}
}

// IsNotFound reports whether err is a NotFound-class failure.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

var timeTagRe = regexp.MustCompile(`\[\d+:\d{2}(?:[.:]\d{1,3})?\]`)

// HasTimeTags reports whether text contains at least one LRC time tag.
func HasTimeTags(text string) bool {
	return timeTagRe.MatchString(text)
}
