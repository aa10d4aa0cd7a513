package lyrics

import (
	"context"
	"errors"
	"fmt"
)

// TextTranslator 机器翻译后端
type TextTranslator interface {
	TranslateText(ctx context.Context, texts []string, target string) ([]string, error)
}

// Translator 把 LRC 歌词逐行翻译成目标语言，保留原有时间戳
type Translator struct {
	backend TextTranslator
	target  string
}

func NewTranslator(backend TextTranslator, target string) *Translator {
	return &Translator{backend: backend, target: target}
}

// Target 目标语言标签
func (t *Translator) Target() string {
	return t.target
}

// Translate 返回翻译后的 LRC 文本
func (t *Translator) Translate(ctx context.Context, lrc string) (string, error) {
	lines := ParseLRC(lrc)
	if len(lines) == 0 {
		return "", errors.New("nothing to translate")
	}

	texts := make([]string, len(lines))
	for i, l := range lines {
		texts[i] = l.Text
	}

	translated, err := t.backend.TranslateText(ctx, texts, t.target)
	if err != nil {
		return "", fmt.Errorf("failed to translate lyrics: %w", err)
	}
	if len(translated) != len(lines) {
		return "", fmt.Errorf("translator returned %d lines, want %d", len(translated), len(lines))
	}

	out := make([]Line, len(lines))
	for i, l := range lines {
		out[i] = Line{TimestampUS: l.TimestampUS, Text: translated[i]}
	}
	return FormatLRC(out), nil
}
