package display

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"SyncFM/model"
)

func TestConsole_TrackAndLyrics(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf)

	c.ShowTrack(&model.Track{ID: "T1", Title: "Song", Artist: "Someone", Album: "LP", DurationMs: 185000, Score: 3})
	c.ShowActiveLyric("first", true)
	c.ShowActiveLyric("first", true)
	c.ShowActiveLyric("", false)

	out := buf.String()
	if !strings.Contains(out, "Song - Someone [LP] (03:05)") {
		t.Errorf("missing track header in %q", out)
	}
	if !strings.Contains(out, "★★★☆☆☆☆") {
		t.Errorf("missing score stars in %q", out)
	}
	if strings.Count(out, "first") != 1 {
		t.Errorf("repeated lyric should print once, got %q", out)
	}

	s := c.Status()
	if s.Track == nil || s.Track.ID != "T1" || s.Duration != 185 {
		t.Errorf("unexpected status %+v", s)
	}
	if s.LyricShown {
		t.Error("expected lyric hidden after ShowActiveLyric(_, false)")
	}
}

func TestConsole_ProgressOncePerSecond(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf)
	c.ShowTrack(&model.Track{ID: "T1", DurationMs: 60000})

	c.ShowProgress(1.1, 60)
	if strings.Contains(buf.String(), "00:01 / 01:00") {
		t.Error("progress should not print while paused")
	}

	c.SetPlaying(true)
	c.ShowProgress(1.1, 60)
	c.ShowProgress(1.5, 60)
	c.ShowProgress(2.0, 60)
	out := buf.String()
	if strings.Count(out, "00:01 / 01:00") != 1 || strings.Count(out, "00:02 / 01:00") != 1 {
		t.Errorf("unexpected progress lines %q", out)
	}
	if c.Status().Position != 2.0 {
		t.Errorf("expected position 2.0, got %v", c.Status().Position)
	}
}

func TestConsole_StatusFields(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf)
	c.ShowTrack(&model.Track{ID: "T1"})
	c.ShowScore(5)
	c.ShowPending(-1)
	c.ShowServerVersion("20514")
	c.ShowLatency(0.8)
	c.ShowSpectrum([]byte{1, 200, 7})
	c.SetLyricAvailability(true)

	s := c.Status()
	if s.Score != 5 || s.Track.Score != 5 {
		t.Errorf("score not updated: %+v", s)
	}
	if s.Pending != -1 || s.Version != "20514" || s.Latency != 0.8 || s.Peak != 200 || !s.HasLyric {
		t.Errorf("unexpected status %+v", s)
	}
	if !s.Connected {
		t.Error("expected connected before any disconnect")
	}

	// the snapshot must not alias internal state
	s.Track.Score = 1
	if c.Status().Track.Score != 5 {
		t.Error("Status returned a shared track")
	}
}

func TestConsole_MessagesAreCapped(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf)
	for i := 0; i < maxMessages+5; i++ {
		c.ShowMessage("hello")
	}
	if got := len(c.Status().Messages); got != maxMessages {
		t.Errorf("expected %d messages kept, got %d", maxMessages, got)
	}
}

func TestConsole_Disconnected(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf)
	c.SetPlaying(true)
	c.ShowDisconnected(errors.New("connection closed"))

	s := c.Status()
	if s.Connected || s.Playing || s.Error != "connection closed" {
		t.Errorf("unexpected status after disconnect %+v", s)
	}
	if !strings.Contains(buf.String(), "disconnected: connection closed") {
		t.Errorf("missing disconnect line in %q", buf.String())
	}
}

func TestStars(t *testing.T) {
	tests := []struct {
		score int
		want  string
	}{
		{0, "☆☆☆☆☆☆☆"},
		{7, "★★★★★★★"},
		{9, "★★★★★★★"},
		{-2, "☆☆☆☆☆☆☆"},
	}
	for _, tt := range tests {
		if got := stars(tt.score); got != tt.want {
			t.Errorf("stars(%d) = %q, want %q", tt.score, got, tt.want)
		}
	}
}
