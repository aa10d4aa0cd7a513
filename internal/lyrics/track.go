package lyrics

import (
	"slices"
	"strings"
)

// Track 播放器当前曲目
type Track struct {
	Title   string
	Album   string
	Artists []string
}

// SameAs 判断是否是同一首歌。专辑不参与比较。
func (t Track) SameAs(o Track) bool {
	return t.Title == o.Title && slices.Equal(t.Artists, o.Artists)
}

// IsZero reports whether the player reported no track at all.
func (t Track) IsZero() bool {
	return t.Title == "" && len(t.Artists) == 0
}

func (t Track) String() string {
	if len(t.Artists) == 0 {
		return t.Title
	}
	return strings.Join(t.Artists, ", ") + " - " + t.Title
}
