package playback

import "SyncFM/model"

// Player is the audio element the reconciler drives.
type Player interface {
	Load(url string)
	SetPosition(seconds float64)
	Pause()
	Play() error
	// Resume unlocks audio output after a user gesture.
	Resume()
	Paused() bool
	Position() float64
}

// Display receives everything the reconciler wants shown.
type Display interface {
	ShowTrack(t *model.Track)
	ShowActiveLyric(text string, ok bool)
	SetLyricAvailability(available bool)
	SetPlaying(playing bool)
	ShowProgress(position, duration float64)
	ShowSpectrum(frame []byte)
	ShowScore(score int)
	ShowPending(value int)
	ShowServerVersion(version string)
	ShowMessage(msg string)
	ShowLatency(seconds float64)
	ShowDisconnected(err error)
}

// Commander sends commands to the session server.
type Commander interface {
	Send(cmd model.Command) error
}

// Visualizer produces the frequency-magnitude frame for the current tick.
type Visualizer interface {
	Frame() []byte
}
