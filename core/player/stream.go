// Package player is a headless stand-in for the browser audio element: it
// fetches the stream, tracks a wall-clock playback position and decodes PCM
// for the spectrum view.
package player

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"SyncFM/logger"

	"github.com/hajimehoshi/go-mp3"
)

const (
	// DefaultPrebuffer 缓冲到这么多字节即认为可以播放
	DefaultPrebuffer = 64 << 10
	readChunk        = 32 << 10
)

var (
	// ErrNotLoaded is returned by Play before any data has arrived.
	ErrNotLoaded = errors.New("no playable data loaded")
	// ErrAutoplayBlocked is returned by Play while output is still locked.
	ErrAutoplayBlocked = errors.New("play() failed because the user didn't interact with the document first")
)

// Signals are the element events. They are invoked from the fetch goroutine,
// so callers normally post them onto their own loop.
type Signals struct {
	DataLoaded  func(src string)
	SourceError func(src string)
}

// Option configures a StreamPlayer.
type Option func(*StreamPlayer)

// WithHTTPClient overrides the client used to fetch streams.
func WithHTTPClient(c *http.Client) Option {
	return func(p *StreamPlayer) { p.client = c }
}

// WithPrebuffer sets how many bytes must arrive before DataLoaded fires.
func WithPrebuffer(n int) Option {
	return func(p *StreamPlayer) {
		if n > 0 {
			p.prebuffer = n
		}
	}
}

// WithAutoplay starts with audio output unlocked.
func WithAutoplay(enabled bool) Option {
	return func(p *StreamPlayer) { p.suspended = !enabled }
}

// WithClock overrides the wall clock.
func WithClock(now func() time.Time) Option {
	return func(p *StreamPlayer) { p.now = now }
}

// StreamPlayer implements playback.Player.
type StreamPlayer struct {
	client    *http.Client
	signals   Signals
	prebuffer int
	now       func() time.Time

	mu        sync.Mutex
	source    string
	gen       uint64
	cancel    context.CancelFunc
	buf       []byte
	loaded    bool
	complete  bool
	suspended bool
	paused    bool
	base      float64
	anchor    time.Time

	decoder    *mp3.Decoder
	decodeFail bool
}

// New creates a paused, suspended player.
func New(signals Signals, opts ...Option) *StreamPlayer {
	p := &StreamPlayer{
		client:    &http.Client{},
		signals:   signals,
		prebuffer: DefaultPrebuffer,
		now:       time.Now,
		suspended: true,
		paused:    true,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Load replaces the source and starts fetching it. Any fetch in flight for
// the previous source is abandoned without raising signals.
func (p *StreamPlayer) Load(url string) {
	p.mu.Lock()
	if p.cancel != nil {
		p.cancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.gen++
	gen := p.gen
	p.source = url
	p.buf = nil
	p.loaded = false
	p.complete = false
	p.decoder = nil
	p.decodeFail = false
	p.paused = true
	p.base = 0
	p.mu.Unlock()

	logger.Debug("loading stream", logger.String("src", url))
	go p.fetch(ctx, gen, url)
}

func (p *StreamPlayer) fetch(ctx context.Context, gen uint64, url string) {
	if err := p.download(ctx, gen, url); err != nil {
		if ctx.Err() != nil {
			return
		}
		logger.Warn("stream fetch failed", logger.String("src", url), logger.ErrorField(err))
		p.mu.Lock()
		current := p.gen == gen
		loaded := p.loaded
		p.mu.Unlock()
		// 已经可以播放的流中途断开只记日志
		if current && !loaded && p.signals.SourceError != nil {
			p.signals.SourceError(url)
		}
	}
}

func (p *StreamPlayer) download(ctx context.Context, gen uint64, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return fmt.Errorf("no content")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	chunk := make([]byte, readChunk)
	for {
		n, rerr := resp.Body.Read(chunk)
		if n > 0 {
			if !p.appendData(gen, url, chunk[:n], false) {
				return nil
			}
		}
		if rerr == io.EOF {
			p.appendData(gen, url, nil, true)
			return nil
		}
		if rerr != nil {
			return rerr
		}
	}
}

// appendData stores data for generation gen and fires DataLoaded once the
// prebuffer fills or the stream ends. It reports false if gen is stale.
func (p *StreamPlayer) appendData(gen uint64, url string, data []byte, eof bool) bool {
	p.mu.Lock()
	if p.gen != gen {
		p.mu.Unlock()
		return false
	}
	p.buf = append(p.buf, data...)
	fire := false
	if !p.loaded && len(p.buf) > 0 && (eof || len(p.buf) >= p.prebuffer) {
		p.loaded = true
		fire = true
	}
	empty := eof && len(p.buf) == 0
	if eof {
		p.complete = true
	}
	p.mu.Unlock()

	if fire && p.signals.DataLoaded != nil {
		p.signals.DataLoaded(url)
	}
	if empty && p.signals.SourceError != nil {
		p.signals.SourceError(url)
	}
	return true
}

// Source returns the current source URL.
func (p *StreamPlayer) Source() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.source
}

func (p *StreamPlayer) SetPosition(seconds float64) {
	if seconds < 0 {
		seconds = 0
	}
	p.mu.Lock()
	p.base = seconds
	p.anchor = p.now()
	p.mu.Unlock()
}

func (p *StreamPlayer) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.paused {
		return
	}
	p.base = p.positionLocked()
	p.paused = true
}

// Play starts the clock from the current position.
func (p *StreamPlayer) Play() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.loaded {
		return ErrNotLoaded
	}
	if p.suspended {
		return ErrAutoplayBlocked
	}
	if p.paused {
		p.paused = false
		p.anchor = p.now()
	}
	return nil
}

// Resume unlocks output, as a user gesture would.
func (p *StreamPlayer) Resume() {
	p.mu.Lock()
	p.suspended = false
	p.mu.Unlock()
}

func (p *StreamPlayer) Paused() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.paused
}

func (p *StreamPlayer) Position() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.positionLocked()
}

func (p *StreamPlayer) positionLocked() float64 {
	if p.paused {
		return p.base
	}
	return p.base + p.now().Sub(p.anchor).Seconds()
}

// Samples returns n mono samples in [-1,1] at the current position. It
// returns nil until the whole stream is buffered, or if it is not mp3.
func (p *StreamPlayer) Samples(n int) []float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.complete || p.decodeFail || n <= 0 {
		return nil
	}
	if p.decoder == nil {
		dec, err := mp3.NewDecoder(bytes.NewReader(p.buf))
		if err != nil {
			logger.Debug("stream is not decodable", logger.String("src", p.source), logger.ErrorField(err))
			p.decodeFail = true
			return nil
		}
		p.decoder = dec
	}

	// 16-bit little endian stereo
	const frameSize = 4
	offset := int64(p.positionLocked()*float64(p.decoder.SampleRate())) * frameSize
	if offset >= p.decoder.Length() {
		return nil
	}
	if _, err := p.decoder.Seek(offset, io.SeekStart); err != nil {
		return nil
	}
	raw := make([]byte, n*frameSize)
	got, err := io.ReadFull(p.decoder, raw)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil
	}

	out := make([]float64, n)
	for i := 0; i+frameSize <= got; i += frameSize {
		l := int16(uint16(raw[i]) | uint16(raw[i+1])<<8)
		r := int16(uint16(raw[i+2]) | uint16(raw[i+3])<<8)
		out[i/frameSize] = (float64(l) + float64(r)) / 2 / 32768
	}
	return out
}

// Close abandons any fetch in flight.
func (p *StreamPlayer) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	p.gen++
}
