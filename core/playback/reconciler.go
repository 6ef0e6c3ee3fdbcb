// Package playback keeps the local player in step with the session server.
package playback

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"SyncFM/core/latency"
	"SyncFM/core/lyric"
	"SyncFM/logger"
	"SyncFM/metrics"
	"SyncFM/model"
)

var (
	// ErrDisconnected 会话已断开，不再发送命令
	ErrDisconnected = errors.New("session disconnected")
	// ErrLoopStopped is returned when work is posted to a stopped loop.
	ErrLoopStopped = errors.New("playback loop stopped")
	// ErrInvalidCommand rejects out-of-range command values.
	ErrInvalidCommand = errors.New("invalid command value")
)

// MaxScore is the highest star rating the server accepts.
const MaxScore = 7

// State is the reconciler's playback state.
type State int

const (
	StateIdle State = iota
	StateAwaitingLoad
	StatePlaying
	StatePausedPendingDelayedPlay
	StateError
)

var stateNames = map[State]string{
	StateIdle:                     "idle",
	StateAwaitingLoad:             "awaiting_load",
	StatePlaying:                  "playing",
	StatePausedPendingDelayedPlay: "paused_pending_delayed_play",
	StateError:                    "error",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// Options tunes a Reconciler.
type Options struct {
	StreamBaseURL string        // audio source base, e.g. https://host:7650
	RetryDelay    time.Duration // debounce before reloading a failed source
	LyricOffset   float64       // seconds subtracted from position for lyric lookup
	Now           func() time.Time
}

// Snapshot is a point-in-time view of the reconciler for status reporting.
type Snapshot struct {
	State          string       `json:"state"`
	TrackID        string       `json:"trackId,omitempty"`
	Source         string       `json:"source,omitempty"`
	Latency        float64      `json:"latency"`
	LatencyCeiling float64      `json:"latencyCeiling"`
	LyricOffset    float64      `json:"lyricOffset"`
	LyricCues      int          `json:"lyricCues"`
	AnnotatorState string       `json:"annotatorState"`
	Pending        *PendingLoad `json:"pending,omitempty"`
	Disconnected   bool         `json:"disconnected"`
}

// Reconciler maps session events and player signals to player actions. All
// of its methods must run on the Scheduler's goroutine.
type Reconciler struct {
	ctx     context.Context
	sched   Scheduler
	player  Player
	display Display
	cmd     Commander
	latency *latency.Estimator
	annot   *lyric.Annotator
	visual  Visualizer
	metrics *metrics.Metrics
	opts    Options

	state        State
	track        *model.Track
	source       string
	store        *lyric.Store
	cursor       *lyric.Cursor
	pending      *PendingLoad
	pendingTimer Timer
	disconnected bool

	cancelBackfill context.CancelFunc
}

// Deps groups the reconciler's collaborators. Annotator, Visualizer and
// Metrics are optional.
type Deps struct {
	Scheduler  Scheduler
	Player     Player
	Display    Display
	Commander  Commander
	Latency    *latency.Estimator
	Annotator  *lyric.Annotator
	Visualizer Visualizer
	Metrics    *metrics.Metrics
}

// NewReconciler creates a reconciler in the Idle state. ctx bounds the
// background lyric annotation work.
func NewReconciler(ctx context.Context, deps Deps, opts Options) *Reconciler {
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 200 * time.Millisecond
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	m := deps.Metrics
	if m == nil {
		m = metrics.New(nil)
	}

	empty := lyric.NewStore(nil)
	r := &Reconciler{
		ctx:     ctx,
		sched:   deps.Scheduler,
		player:  deps.Player,
		display: deps.Display,
		cmd:     deps.Commander,
		latency: deps.Latency,
		annot:   deps.Annotator,
		visual:  deps.Visualizer,
		metrics: m,
		opts:    opts,
		store:   empty,
		cursor:  lyric.NewCursor(empty, opts.LyricOffset),
	}
	r.setState(StateIdle)

	if r.annot != nil {
		r.annot.OnReady(func() {
			r.sched.Post(r.backfillCurrent)
		})
	}
	return r
}

// State returns the current playback state.
func (r *Reconciler) State() State {
	return r.state
}

// CurrentTrackID returns the identity of the track being displayed.
func (r *Reconciler) CurrentTrackID() string {
	if r.track == nil {
		return ""
	}
	return r.track.ID
}

// Store returns the current track's lyric store.
func (r *Reconciler) Store() *lyric.Store {
	return r.store
}

func (r *Reconciler) setState(s State) {
	if r.state != s {
		logger.Debug("playback state change",
			logger.String("from", r.state.String()),
			logger.String("to", s.String()))
	}
	r.metrics.ReconcilerState.WithLabelValues(r.state.String()).Set(0)
	r.state = s
	r.metrics.ReconcilerState.WithLabelValues(s.String()).Set(1)
}

// HandleEvent dispatches one inbound session event.
func (r *Reconciler) HandleEvent(ev model.Event) {
	if r.disconnected {
		return
	}
	switch ev.Type {
	case model.EventUpdate:
		if ev.Track != nil {
			r.handleNewTrack(ev.Track)
		}
	case model.EventAck:
		if ev.Ack != nil {
			r.handleAck(ev.Ack)
		}
	case model.EventMsg:
		r.display.ShowMessage(ev.Message)
	}
}

// handleNewTrack applies an "update" event. The latest track always wins.
func (r *Reconciler) handleNewTrack(t *model.Track) {
	r.metrics.TracksReceived.Inc()
	r.track = t
	r.pending = nil
	r.source = r.sourceURL(t.ID)

	r.display.ShowTrack(t)
	r.resetLyrics(t)

	lat := r.latency.Value()
	effective := t.StartOffset - lat

	logger.Info("new track",
		logger.String("id", t.ID),
		logger.String("title", t.Title),
		logger.Float64("serverTime", t.StartOffset),
		logger.Float64("latency", lat),
		logger.Float64("effective", effective))

	if effective > 0 {
		r.player.Pause()
		r.player.Load(r.source)
		r.player.SetPosition(effective)
		r.metrics.LoadsStarted.WithLabelValues("immediate").Inc()
		r.setState(StateAwaitingLoad)
		return
	}

	// 延迟预算已覆盖服务端进度：从头开始，等待 latency 秒后再加载
	r.player.Pause()
	r.player.SetPosition(0)
	delay := time.Duration(lat * float64(time.Second))
	r.schedule(t.ID, delay, "delayed-start")
	r.setState(StatePausedPendingDelayedPlay)
}

// schedule arms an identity-guarded delayed load of the current source.
func (r *Reconciler) schedule(trackID string, delay time.Duration, reason string) {
	p := PendingLoad{TrackID: trackID, FireAt: r.opts.Now().Add(delay), Reason: reason}
	r.pending = &p
	r.pendingTimer = r.sched.AfterFunc(delay, func() { r.firePending(p) })
}

// firePending runs a PendingLoad if its track is still current.
func (r *Reconciler) firePending(p PendingLoad) {
	if r.disconnected || !p.Valid(r.CurrentTrackID()) {
		r.metrics.StaleLoadsDropped.Inc()
		logger.Debug("request skipped",
			logger.String("scheduledFor", p.TrackID),
			logger.String("current", r.CurrentTrackID()),
			logger.String("reason", p.Reason))
		return
	}
	if r.pending != nil && *r.pending == p {
		r.pending = nil
	}
	r.player.Load(r.source)
	r.metrics.LoadsStarted.WithLabelValues(p.Reason).Inc()
	r.setState(StateAwaitingLoad)
}

// OnDataLoaded handles the player's "data loaded" signal for src.
func (r *Reconciler) OnDataLoaded(src string) {
	if r.disconnected || src != r.source {
		return
	}
	r.playAudio()
}

// playAudio starts playback; a rejection is shown but leaves state alone.
func (r *Reconciler) playAudio() {
	if err := r.player.Play(); err != nil {
		r.metrics.PlayRejected.Inc()
		r.display.SetPlaying(false)
		logger.Warn("failed to play", logger.ErrorField(err))
		return
	}
	r.display.SetPlaying(true)
	r.setState(StatePlaying)
}

// OnSourceError handles a failed load of src: grow the latency estimate and
// retry after a short debounce, unless the track has moved on by then.
func (r *Reconciler) OnSourceError(src string) {
	if r.disconnected || src == "" {
		return
	}
	if src != r.source {
		logger.Debug("ignoring error from superseded source", logger.String("source", src))
		return
	}
	r.metrics.SourceErrors.Inc()
	r.display.ShowLatency(r.latency.Bump())
	r.schedule(r.CurrentTrackID(), r.opts.RetryDelay, "retry")
}

func (r *Reconciler) handleAck(ack *model.Ack) {
	switch ack.Key {
	case model.KeyVersion:
		r.display.ShowServerVersion(ack.String())
	case model.KeyNext, model.KeyPending:
		if v, err := ack.Float(); err == nil {
			r.display.ShowPending(int(v))
		}
	case model.KeyScore:
		if v, err := ack.Float(); err == nil {
			r.display.ShowScore(int(v))
		}
	case model.KeyTime:
		v, err := ack.Float()
		if err != nil {
			logger.Warn("invalid seek command", logger.ErrorField(err))
			return
		}
		r.Seek(v)
	default:
		logger.Debug("unhandled ack", logger.String("key", string(ack.Key)))
	}
}

// Seek applies a server-issued seek command: position minus latency, then
// play straight away.
func (r *Reconciler) Seek(target float64) {
	if r.disconnected {
		return
	}
	r.metrics.SeekCommands.Inc()
	pos := target - r.latency.Value()
	if pos < 0 {
		pos = 0
	}
	r.player.SetPosition(pos)
	r.playAudio()
}

// RequestResume handles a local resume request: unlock audio output and ask
// the server for a fresh seek command.
func (r *Reconciler) RequestResume() error {
	if r.disconnected {
		return ErrDisconnected
	}
	if !r.player.Paused() {
		return nil
	}
	r.player.Resume()
	return r.send(model.Command{Key: model.KeyTime, Value: 0})
}

// SendPending asks the server to replay (+1) or skip (-1) after this track.
func (r *Reconciler) SendPending(value int) error {
	if value != 1 && value != -1 {
		return fmt.Errorf("%w: pending %d", ErrInvalidCommand, value)
	}
	if err := r.send(model.Command{Key: model.KeyPending, Value: float64(value)}); err != nil {
		return err
	}
	r.display.ShowPending(value)
	return nil
}

// SendScore rates the current track from 1 to MaxScore.
func (r *Reconciler) SendScore(score int) error {
	if score < 1 || score > MaxScore {
		return fmt.Errorf("%w: score %d", ErrInvalidCommand, score)
	}
	return r.send(model.Command{Key: model.KeyScore, Value: float64(score)})
}

func (r *Reconciler) send(cmd model.Command) error {
	if r.disconnected {
		return ErrDisconnected
	}
	if err := r.cmd.Send(cmd); err != nil {
		return fmt.Errorf("send %s: %w", cmd.Key, err)
	}
	r.metrics.CommandsSent.WithLabelValues(string(cmd.Key)).Inc()
	return nil
}

// Disconnect ends the session after a transport failure. The engine stops
// issuing commands and ignores further events.
func (r *Reconciler) Disconnect(err error) {
	if r.disconnected {
		return
	}
	r.disconnected = true
	r.pending = nil
	if r.pendingTimer != nil {
		r.pendingTimer.Stop()
		r.pendingTimer = nil
	}
	if r.cancelBackfill != nil {
		r.cancelBackfill()
	}
	r.player.Pause()
	r.setState(StateError)
	r.display.ShowDisconnected(err)
	logger.Warn("session disconnected", logger.ErrorField(err))
}

// SetLyricOffset changes the lyric latency offset for the rest of the session.
func (r *Reconciler) SetLyricOffset(offset float64) {
	r.cursor.SetOffset(offset)
}

// Tick refreshes progress, the active lyric and the spectrum frame. It only
// reads reconciler state.
func (r *Reconciler) Tick() {
	if r.disconnected {
		return
	}
	pos := r.player.Position()
	if r.track != nil {
		r.display.ShowProgress(pos, r.track.DurationSeconds())
	}
	text, ok := r.cursor.Advance(pos)
	r.display.ShowActiveLyric(text, ok)
	if r.visual != nil {
		r.display.ShowSpectrum(r.visual.Frame())
	}
}

// RunTicker posts Tick every interval until ctx is done.
func (r *Reconciler) RunTicker(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if !r.sched.Post(r.Tick) {
				return nil
			}
		}
	}
}

// Snapshot reports the reconciler's state.
func (r *Reconciler) Snapshot() Snapshot {
	s := Snapshot{
		State:          r.state.String(),
		TrackID:        r.CurrentTrackID(),
		Source:         r.source,
		Latency:        r.latency.Value(),
		LatencyCeiling: r.latency.Ceiling(),
		LyricOffset:    r.cursor.Offset(),
		LyricCues:      r.store.Len(),
		Disconnected:   r.disconnected,
	}
	if r.annot != nil {
		s.AnnotatorState = r.annot.State().String()
	} else {
		s.AnnotatorState = "disabled"
	}
	if r.pending != nil {
		p := *r.pending
		s.Pending = &p
	}
	return s
}

// resetLyrics replaces the lyric store for a new track.
func (r *Reconciler) resetLyrics(t *model.Track) {
	if r.cancelBackfill != nil {
		r.cancelBackfill()
		r.cancelBackfill = nil
	}

	store := lyric.Parse(t.Lyric)
	if t.Lyric != "" && store.Len() == 0 {
		r.metrics.LyricParseFailed.Inc()
		logger.Warn("malformed lyric, showing none", logger.String("id", t.ID))
	}
	r.store = store
	r.cursor.Reset(store)
	r.metrics.LyricCues.Set(float64(store.Len()))

	r.display.SetLyricAvailability(store.Len() > 0)
	r.display.ShowActiveLyric("", false)

	if r.annot != nil && r.annot.Ready() {
		r.startBackfill(store)
	}
}

// backfillCurrent runs once, when the annotator becomes ready.
func (r *Reconciler) backfillCurrent() {
	if r.disconnected {
		return
	}
	logger.Info("annotator ready, backfilling current lyrics", logger.Int("cues", r.store.Len()))
	r.startBackfill(r.store)
}

func (r *Reconciler) startBackfill(store *lyric.Store) {
	if store.Len() == 0 {
		return
	}
	if r.cancelBackfill != nil {
		r.cancelBackfill()
	}
	ctx, cancel := context.WithCancel(r.ctx)
	r.cancelBackfill = cancel
	go func() {
		defer cancel()
		if err := r.annot.BackfillAll(ctx, store); err != nil && !errors.Is(err, context.Canceled) {
			logger.Warn("lyric backfill stopped", logger.ErrorField(err))
		}
	}()
}

// sourceURL builds the audio URL for a track; t busts intermediary caches.
func (r *Reconciler) sourceURL(id string) string {
	q := url.Values{}
	q.Set("t", strconv.FormatInt(r.opts.Now().UnixMilli(), 10))
	q.Set("name", id)
	return r.opts.StreamBaseURL + "/get?" + q.Encode()
}
