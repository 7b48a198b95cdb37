// Package sink owns the output device side of the pipeline: a realtime
// consumer that pulls decoded bytes out of the ring buffer from the
// device callback thread.
package sink

import (
	"fmt"

	"github.com/playdproj/playd/pkg/types"
)

// State is the playback state of a sink.
type State int32

const (
	// Stopped means the device is paused; the callback emits silence.
	Stopped State = iota
	// Playing means the callback is draining the ring buffer.
	Playing
	// AtEnd means the source has run out and the ring buffer has been
	// fully drained.
	AtEnd
)

func (s State) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Playing:
		return "playing"
	case AtEnd:
		return "at_end"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

// Sink accepts decoded sample bytes from the pipeline and feeds them to
// an output device. All methods are called from the player thread; the
// implementation is responsible for its own ordering against whatever
// device thread it services.
type Sink interface {
	// Start moves Stopped to Playing and unpauses the device. Starting
	// a sink that is already Playing is a no-op.
	Start() error

	// Stop moves Playing or AtEnd to Stopped and pauses the device.
	Stop() error

	State() State

	// Position is the number of samples delivered to the device since
	// the last reset. It may race with the device callback by up to
	// one buffer.
	Position() types.Samples

	// SetPosition overwrites the position counter, clears the
	// source-out flag, discards buffered bytes, and moves AtEnd back
	// to Stopped.
	SetPosition(pos types.Samples) error

	// SourceOut tells the sink the producer has no more bytes: the
	// next time the buffer runs dry the sink is AtEnd, not underrun.
	SourceOut()

	// Transfer offers decoded bytes to the sink. The sink accepts up
	// to its free buffer space, truncated to whole samples, and
	// returns how many bytes it took.
	Transfer(src []byte) (int, error)

	Close() error
}
