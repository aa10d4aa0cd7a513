package statusbar

import (
	"errors"
	"os"
	"path/filepath"
	"syscall"
	"testing"

	"lyrik/internal/lyrics"
	"lyrik/internal/tracker"
)

func newTestController(t *testing.T) (*Controller, *[]syscall.Signal) {
	t.Helper()
	c := NewController(Options{Signal: 21, OutputFile: filepath.Join(t.TempDir(), "line")})

	var sent []syscall.Signal
	c.findPID = func(process string) (int, error) {
		if process != "i3blocks" {
			return -1, errors.New("unexpected process")
		}
		return 4242, nil
	}
	c.send = func(pid int, sig syscall.Signal) error {
		if pid != 4242 {
			t.Errorf("signal sent to pid %d", pid)
		}
		sent = append(sent, sig)
		return nil
	}
	return c, &sent
}

func TestShowOnlySignalsOnChange(t *testing.T) {
	c, sent := newTestController(t)
	if err := c.refreshPID(); err != nil {
		t.Fatal(err)
	}

	for _, text := range []string{"first", "first", "second", "second", "first"} {
		if err := c.Show(text); err != nil {
			t.Fatalf("Show(%q): %v", text, err)
		}
	}

	if len(*sent) != 3 {
		t.Errorf("expected 3 signals, got %d", len(*sent))
	}
	if (*sent)[0] != syscall.Signal(55) {
		t.Errorf("expected SIGRTMIN+21, got %d", (*sent)[0])
	}

	content, err := os.ReadFile(c.outputFile)
	if err != nil {
		t.Fatal(err)
	}
	if string(content) != "first\n" {
		t.Errorf("unexpected output file content %q", content)
	}
}

func TestShowWithoutProcess(t *testing.T) {
	c, sent := newTestController(t)
	c.findPID = func(string) (int, error) { return -1, errors.New("not running") }
	if err := c.refreshPID(); err == nil {
		t.Fatal("expected refresh error")
	}

	if err := c.Show("line"); err == nil {
		t.Error("expected error without a status bar process")
	}
	if len(*sent) != 0 {
		t.Errorf("expected no signal, got %d", len(*sent))
	}
	// 文件仍然写入，状态栏下次轮询时能读到
	if content, _ := os.ReadFile(c.outputFile); string(content) != "line\n" {
		t.Errorf("unexpected output file content %q", content)
	}
}

func TestDisplayText(t *testing.T) {
	doc := lyrics.NewDocument("[00:01.00]hello", nil)
	track := &lyrics.Track{Title: "Song", Artists: []string{"A"}}

	tests := []struct {
		name  string
		state tracker.State
		want  string
	}{
		{"NoTrack", tracker.State{LineIndex: -1}, ""},
		{"NoLyrics", tracker.State{Track: track, LineIndex: -1}, "♪ A - Song ♪"},
		{"BeforeFirstLine", tracker.State{Track: track, Document: doc, LineIndex: -1}, "♪ A - Song ♪"},
		{"CurrentLine", tracker.State{Track: track, Document: doc, LineIndex: 0}, "hello"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DisplayText(tt.state); got != tt.want {
				t.Errorf("DisplayText = %q, want %q", got, tt.want)
			}
		})
	}
}
