package builtin

import (
	"slices"
	"testing"
)

func TestCreate(t *testing.T) {
	for _, name := range []string{NetEase, "网易云", "163", LRCLib} {
		s, err := Create(name)
		if err != nil {
			t.Fatalf("Create(%q): %v", name, err)
		}
		if s.Name() != NetEase && s.Name() != LRCLib {
			t.Errorf("Create(%q) returned source %q", name, s.Name())
		}
	}

	if _, err := Create("qqmusic"); err == nil {
		t.Error("expected error for unknown source")
	}
}

func TestNewRegistry(t *testing.T) {
	reg, err := NewRegistry()
	if err != nil {
		t.Fatal(err)
	}
	if got := reg.Names(); !slices.Equal(got, Names()) {
		t.Errorf("Names = %v, want %v", got, Names())
	}
}
