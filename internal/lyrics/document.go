package lyrics

import "slices"

// Document 一首歌解析后的歌词。构造后不再修改，换歌时整体替换。
type Document struct {
	Original     []Line
	Translations map[string][]Line
}

// NewDocument 分别解析原文和每种语言的翻译，翻译的行数和时间戳不要求与原文对齐
func NewDocument(raw string, translations map[string]string) *Document {
	doc := &Document{
		Original:     ParseLRC(raw),
		Translations: make(map[string][]Line, len(translations)),
	}
	for lang, text := range translations {
		doc.Translations[lang] = ParseLRC(text)
	}
	return doc
}

// Empty reports whether the document has no timed original lines.
func (d *Document) Empty() bool {
	return d == nil || len(d.Original) == 0
}

// LineIndex 当前位置对应的原文行
func (d *Document) LineIndex(positionUS int64) int {
	if d == nil {
		return -1
	}
	return Index(d.Original, positionUS)
}

// TranslationIndexes 当前位置在每种翻译中对应的行
func (d *Document) TranslationIndexes(positionUS int64) map[string]int {
	indexes := make(map[string]int)
	if d == nil {
		return indexes
	}
	for lang, lines := range d.Translations {
		indexes[lang] = Index(lines, positionUS)
	}
	return indexes
}

// Languages returns the translation language tags in sorted order.
func (d *Document) Languages() []string {
	if d == nil {
		return nil
	}
	langs := make([]string, 0, len(d.Translations))
	for lang := range d.Translations {
		langs = append(langs, lang)
	}
	slices.Sort(langs)
	return langs
}
