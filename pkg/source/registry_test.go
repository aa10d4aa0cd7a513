package source

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"testing"
)

// mockSource 模拟歌词提供商
type mockSource struct {
	name string
}

func (m mockSource) Name() string { return m.name }

func (m mockSource) Fetch(ctx context.Context, q Query, allowFuzzy bool) (*Result, error) {
	return nil, NotFound(m.name, "no song named %q", q.Title)
}

func TestRegistry(t *testing.T) {
	reg, err := NewRegistry(mockSource{"netease"}, mockSource{"lrclib"}, mockSource{"local"})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	if reg.Len() != 3 {
		t.Errorf("Len = %d, want 3", reg.Len())
	}
	if got := reg.Names(); !slices.Equal(got, []string{"netease", "lrclib", "local"}) {
		t.Errorf("Names = %v", got)
	}
	if reg.Lookup("lrclib") == nil || reg.Lookup("qq") != nil {
		t.Error("unexpected Lookup result")
	}

	var enabled []string
	for _, s := range reg.Enabled([]string{"lrclib"}) {
		enabled = append(enabled, s.Name())
	}
	if !slices.Equal(enabled, []string{"netease", "local"}) {
		t.Errorf("Enabled = %v", enabled)
	}

	if err := reg.Register(mockSource{"netease"}); err == nil {
		t.Error("expected duplicate name to be rejected")
	}
	if err := reg.Register(mockSource{""}); err == nil {
		t.Error("expected empty name to be rejected")
	}
}

func TestError(t *testing.T) {
	notFound := NotFound("netease", "no song named %q", "x")
	if !errors.Is(notFound, ErrNotFound) || errors.Is(notFound, ErrConnectivity) {
		t.Errorf("unexpected classification for %v", notFound)
	}
	if !IsNotFound(fmt.Errorf("wrapped: %w", notFound)) {
		t.Error("classification should survive wrapping")
	}

	cause := context.DeadlineExceeded
	conn := Connectivity("lrclib", cause)
	if !errors.Is(conn, ErrConnectivity) || !errors.Is(conn, cause) {
		t.Errorf("unexpected classification for %v", conn)
	}
	if conn.Error() != "lrclib: source unreachable: context deadline exceeded" {
		t.Errorf("Error() = %q", conn.Error())
	}
}

func TestScore(t *testing.T) {
	q := Query{Title: "Song", Album: "Album", Artists: []string{"A", "B"}}

	tests := []struct {
		name    string
		album   string
		artists []string
		want    int
	}{
		{"Both", "album", []string{"b", "A"}, 2},
		{"AlbumOnly", "Album", []string{"A"}, 1},
		{"ArtistsOnly", "Single", []string{"A", "B"}, 1},
		{"Neither", "", nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Score(q, tt.album, tt.artists); got != tt.want {
				t.Errorf("Score = %d, want %d", got, tt.want)
			}
		})
	}

	if Score(Query{Title: "Song"}, "", nil) != 0 {
		t.Error("empty album must not count as a match")
	}
}

func TestSameArtists(t *testing.T) {
	if !SameArtists([]string{"A", " b"}, []string{"B", "a"}) {
		t.Error("expected case and order insensitive match")
	}
	if SameArtists([]string{"A"}, []string{"A", "B"}) {
		t.Error("subset is not the same artists")
	}
	if SameArtists(nil, nil) {
		t.Error("empty artist lists never match")
	}
}

func TestBest(t *testing.T) {
	best, score, ok := Best([]string{"a", "bb", "cc", "d"}, func(s string) int { return len(s) })
	if !ok || best != "bb" || score != 2 {
		t.Errorf("Best = %q, %d, %v", best, score, ok)
	}
	if _, _, ok := Best(nil, func(s string) int { return 0 }); ok {
		t.Error("expected no candidate")
	}
}

func TestHasTimeTags(t *testing.T) {
	if !HasTimeTags("[ti:x]\n[00:01.23]hello") {
		t.Error("expected time tag")
	}
	if HasTimeTags("plain lyrics\n[ar:someone]") {
		t.Error("expected no time tag")
	}
}
