package resume

import "time"

// Backend is one mounted playback implementation. Position reports arrive
// through the OnPosition callback, either from PollPosition or pushed by
// the player itself.
type Backend interface {
	// Mount loads the player. A positive startSeconds may be used as a
	// native start offset.
	Mount(startSeconds int) error
	// OnReady runs fn once the backend can accept Seek calls.
	OnReady(fn func())
	OnPosition(fn func(seconds float64))
	Seek(seconds int)
	// PollPosition asks for a position report. It must not block on the player.
	PollPosition()
	PollInterval() time.Duration
	// Duration returns the total length in seconds, or 0 while unknown.
	Duration() float64
	Close()
}
