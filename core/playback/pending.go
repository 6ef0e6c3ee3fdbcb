package playback

import "time"

// PendingLoad is a delayed source load tied to the track that was current
// when it was scheduled. It is only carried out if that track is still the
// current one when the delay expires; otherwise it is silently dropped.
type PendingLoad struct {
	TrackID string
	FireAt  time.Time
	Reason  string // "delayed-start" or "retry"
}

// Valid reports whether the load still targets the current track.
func (p PendingLoad) Valid(currentID string) bool {
	return p.TrackID != "" && p.TrackID == currentID
}
