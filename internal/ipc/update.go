package ipc

import (
	"encoding/json"

	"lyrik/internal/lyrics"
	"lyrik/internal/tracker"
)

// Update 推送给客户端的状态快照，每条消息一行 JSON
type Update struct {
	EventID            string                   `json:"event_id,omitempty"`
	Event              string                   `json:"event"`
	Title              string                   `json:"title"`
	Album              string                   `json:"album,omitempty"`
	Artists            []string                 `json:"artists,omitempty"`
	Status             string                   `json:"status"`
	PositionUS         int64                    `json:"position_us"`
	Source             string                   `json:"source,omitempty"`
	Index              int                      `json:"index"`
	Line               string                   `json:"line"`
	TranslationIndexes map[string]int           `json:"translation_indexes"`
	Original           []lyrics.Line            `json:"original"`
	Translations       map[string][]lyrics.Line `json:"translations,omitempty"`
}

// NewUpdate 从 tracker 快照构造推送消息
func NewUpdate(event tracker.Event, s tracker.State) Update {
	u := Update{
		Event:              event.String(),
		Title:              s.Title(),
		Status:             s.Status.String(),
		PositionUS:         s.PositionUS,
		Source:             s.Source,
		Index:              s.LineIndex,
		TranslationIndexes: s.TranslationIndex,
		Original:           s.Original(),
		Translations:       s.Translations(),
	}
	if s.Track != nil {
		u.Album = s.Track.Album
		u.Artists = s.Track.Artists
	}
	if line, ok := s.CurrentLine(); ok {
		u.Line = line.Text
	}
	if u.Original == nil {
		u.Original = []lyrics.Line{}
	}
	if u.TranslationIndexes == nil {
		u.TranslationIndexes = map[string]int{}
	}
	return u
}

// Marshal 编码成一行 JSON，不含换行符
func (u Update) Marshal() ([]byte, error) {
	return json.Marshal(u)
}
