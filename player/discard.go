package player

import (
	"time"

	"github.com/dudk/remix"
)

// Discard is a device that drops the signal. It consumes buffers at the
// real-time rate, so sessions last as long as on a real device.
type Discard struct {
	remix.UID
	// Unpaced makes device consume buffers as fast as possible.
	Unpaced bool
}

// NewDiscard returns new discard device.
func NewDiscard() *Discard {
	return &Discard{UID: remix.NewUID()}
}

// Sink returns closure that waits for the duration of each buffer.
func (d *Discard) Sink(sourceID string, sampleRate, numChannels int) (func(remix.Buffer) error, error) {
	next := time.Now()
	return func(b remix.Buffer) error {
		if d.Unpaced {
			return nil
		}
		next = next.Add(remix.DurationOf(sampleRate, int64(b.Size())))
		if wait := time.Until(next); wait > 0 {
			time.Sleep(wait)
		} else {
			next = time.Now()
		}
		return nil
	}, nil
}
