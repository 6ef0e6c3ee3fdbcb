package playback

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"SyncFM/model"
)

// fakeScheduler runs posted work inline and holds timers until fired by hand.
type fakeScheduler struct {
	timers []*fakeTimer
}

type fakeTimer struct {
	delay   time.Duration
	fn      func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	was := !t.stopped && !t.fired
	t.stopped = true
	return was
}

func (s *fakeScheduler) Post(fn func()) bool {
	fn()
	return true
}

func (s *fakeScheduler) AfterFunc(d time.Duration, fn func()) Timer {
	t := &fakeTimer{delay: d, fn: fn}
	s.timers = append(s.timers, t)
	return t
}

// fireAll runs every timer that has not fired yet, in scheduling order.
func (s *fakeScheduler) fireAll() {
	for i := 0; i < len(s.timers); i++ {
		t := s.timers[i]
		if t.fired || t.stopped {
			continue
		}
		t.fired = true
		t.fn()
	}
}

// fakePlayer records every call as a string.
type fakePlayer struct {
	calls    []string
	playErr  error
	paused   bool
	position float64
	resumed  int
}

func newFakePlayer() *fakePlayer {
	return &fakePlayer{paused: true}
}

func (p *fakePlayer) Load(url string) {
	p.calls = append(p.calls, "load "+url)
}

func (p *fakePlayer) SetPosition(s float64) {
	p.position = s
	p.calls = append(p.calls, fmt.Sprintf("seek %.2f", s))
}

func (p *fakePlayer) Pause() {
	p.paused = true
	p.calls = append(p.calls, "pause")
}

func (p *fakePlayer) Play() error {
	p.calls = append(p.calls, "play")
	if p.playErr != nil {
		return p.playErr
	}
	p.paused = false
	return nil
}

func (p *fakePlayer) Resume()           { p.resumed++ }
func (p *fakePlayer) Paused() bool      { return p.paused }
func (p *fakePlayer) Position() float64 { return p.position }

func (p *fakePlayer) reset() { p.calls = nil }

func (p *fakePlayer) loads() []string {
	var out []string
	for _, c := range p.calls {
		if len(c) > 5 && c[:5] == "load " {
			out = append(out, c[5:])
		}
	}
	return out
}

// fakeDisplay keeps the latest value of everything shown.
type fakeDisplay struct {
	mu           sync.Mutex
	track        *model.Track
	lyric        string
	lyricOK      bool
	available    bool
	playing      bool
	playingCalls int
	score        int
	pending      int
	version      string
	messages     []string
	latency      float64
	disconnected error
	spectrum     []byte
	position     float64
}

func (d *fakeDisplay) ShowTrack(t *model.Track) { d.track = t }
func (d *fakeDisplay) ShowActiveLyric(text string, ok bool) {
	d.mu.Lock()
	d.lyric, d.lyricOK = text, ok
	d.mu.Unlock()
}
func (d *fakeDisplay) SetLyricAvailability(a bool) { d.available = a }
func (d *fakeDisplay) SetPlaying(p bool) {
	d.playing = p
	d.playingCalls++
}
func (d *fakeDisplay) ShowProgress(pos, _ float64) { d.position = pos }
func (d *fakeDisplay) ShowSpectrum(f []byte)       { d.spectrum = f }
func (d *fakeDisplay) ShowScore(s int)             { d.score = s }
func (d *fakeDisplay) ShowPending(v int)           { d.pending = v }
func (d *fakeDisplay) ShowServerVersion(v string)  { d.version = v }
func (d *fakeDisplay) ShowMessage(m string)        { d.messages = append(d.messages, m) }
func (d *fakeDisplay) ShowLatency(s float64)       { d.latency = s }
func (d *fakeDisplay) ShowDisconnected(err error) {
	if err == nil {
		err = errors.New("closed")
	}
	d.disconnected = err
}

// fakeCommander records sent commands.
type fakeCommander struct {
	sent []model.Command
	err  error
}

func (c *fakeCommander) Send(cmd model.Command) error {
	if c.err != nil {
		return c.err
	}
	c.sent = append(c.sent, cmd)
	return nil
}

type fixedVisualizer []byte

func (v fixedVisualizer) Frame() []byte { return v }
