// Package display renders session state as plain text lines.
package display

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"SyncFM/model"
)

const maxMessages = 20

// Status is a snapshot of what the console currently shows.
type Status struct {
	Track      *model.Track `json:"track,omitempty"`
	Lyric      string       `json:"lyric"`
	LyricShown bool         `json:"lyricShown"`
	HasLyric   bool         `json:"hasLyric"`
	Playing    bool         `json:"playing"`
	Position   float64      `json:"position"`
	Duration   float64      `json:"duration"`
	Score      int          `json:"score"`
	Pending    int          `json:"pending"`
	Version    string       `json:"version,omitempty"`
	Latency    float64      `json:"latency"`
	Connected  bool         `json:"connected"`
	Error      string       `json:"error,omitempty"`
	Messages   []string     `json:"messages,omitempty"`
	Peak       int          `json:"peak"`
}

// Console writes state changes to an io.Writer and keeps the latest
// values for the control API.
type Console struct {
	mu      sync.Mutex
	out     io.Writer
	status  Status
	lastSec int
}

// NewConsole creates a console writing to out.
func NewConsole(out io.Writer) *Console {
	return &Console{
		out:     out,
		status:  Status{Connected: true},
		lastSec: -1,
	}
}

func (c *Console) printf(format string, args ...interface{}) {
	fmt.Fprintf(c.out, format+"\n", args...)
}

func (c *Console) ShowTrack(t *model.Track) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.status.Track = t
	c.status.Score = t.Score
	c.status.Duration = t.DurationSeconds()
	c.status.Position = 0
	c.status.Lyric = ""
	c.status.LyricShown = false
	c.lastSec = -1

	c.printf("♪ %s - %s [%s] (%s)", t.Title, t.Artist, t.Album, model.FormatSeconds(t.DurationSeconds()))
	c.printf("  cover: %s", t.ArtURL())
	c.printf("  score: %s", stars(t.Score))
}

func (c *Console) ShowActiveLyric(text string, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ok == c.status.LyricShown && text == c.status.Lyric {
		return
	}
	c.status.Lyric = text
	c.status.LyricShown = ok
	if ok {
		c.printf("  %s", text)
	}
}

func (c *Console) SetLyricAvailability(available bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.status.HasLyric = available
	if !available {
		c.printf("  (no lyrics)")
	}
}

func (c *Console) SetPlaying(playing bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status.Playing == playing {
		return
	}
	c.status.Playing = playing
	if playing {
		c.printf("▶ playing")
	} else {
		c.printf("⏸ paused, press play to start")
	}
}

// ShowProgress records the position; a line is written once per second.
func (c *Console) ShowProgress(position, duration float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.status.Position = position
	c.status.Duration = duration
	sec := int(position)
	if sec == c.lastSec || !c.status.Playing {
		return
	}
	c.lastSec = sec
	c.printf("  %s / %s", model.FormatSeconds(position), model.FormatSeconds(duration))
}

// ShowSpectrum keeps the loudest bin; frames are too frequent to print.
func (c *Console) ShowSpectrum(frame []byte) {
	peak := 0
	for _, v := range frame {
		if int(v) > peak {
			peak = int(v)
		}
	}
	c.mu.Lock()
	c.status.Peak = peak
	c.mu.Unlock()
}

func (c *Console) ShowScore(score int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.status.Score = score
	c.printf("  score: %s", stars(score))
}

func (c *Console) ShowPending(value int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.status.Pending = value
	c.printf("  pending: %d", value)
}

func (c *Console) ShowServerVersion(version string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.status.Version = version
	c.printf("server version %s", version)
}

func (c *Console) ShowMessage(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.status.Messages = append(c.status.Messages, msg)
	if len(c.status.Messages) > maxMessages {
		c.status.Messages = c.status.Messages[len(c.status.Messages)-maxMessages:]
	}
	c.printf("» %s", msg)
}

func (c *Console) ShowLatency(seconds float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.status.Latency = seconds
	c.printf("  latency %.1fs", seconds)
}

func (c *Console) ShowDisconnected(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.status.Connected = false
	c.status.Playing = false
	if err != nil {
		c.status.Error = err.Error()
		c.printf("✕ disconnected: %v", err)
		return
	}
	c.printf("✕ disconnected")
}

// Status returns a copy of the current state.
func (c *Console) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.status
	if s.Track != nil {
		t := *s.Track
		t.Score = s.Score
		s.Track = &t
	}
	s.Messages = append([]string(nil), s.Messages...)
	return s
}

func stars(score int) string {
	if score < 0 {
		score = 0
	}
	if score > 7 {
		score = 7
	}
	return strings.Repeat("★", score) + strings.Repeat("☆", 7-score)
}
