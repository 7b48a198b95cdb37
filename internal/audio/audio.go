// Package audio defines the polymorphic audio object the player drives:
// either nothing is loaded (NullAudio) or a decode pipeline is running
// (PipeAudio). The null object answers every query defensibly (state
// NoFile, ErrNoAudio elsewhere), so the player can call any method
// without first checking whether something is loaded.
package audio

import (
	"fmt"

	"github.com/playdproj/playd/pkg/types"
)

// State is the observable state of an audio object.
type State int

const (
	// NoFile means no audio is loaded.
	NoFile State = iota
	Stopped
	Playing
	// AtEnd means playback ran out of decoded samples for good.
	AtEnd
)

func (s State) String() string {
	switch s {
	case NoFile:
		return "no_file"
	case Stopped:
		return "stopped"
	case Playing:
		return "playing"
	case AtEnd:
		return "at_end"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Audio is a loaded-or-absent audio file under playback control.
type Audio interface {
	// Update performs one cycle of pipeline work and reports the
	// resulting state.
	Update() (State, error)

	State() State

	// SetPlaying starts (true) or stops (false) playback.
	SetPlaying(playing bool) error

	// Position returns the current playback position in microseconds.
	Position() (uint64, error)

	// SetPosition seeks to an absolute position in microseconds.
	SetPosition(micros uint64) (uint64, error)

	// Length returns the total length of the file in microseconds.
	Length() (uint64, error)

	// File returns the path of the loaded file.
	File() (string, error)

	Close() error
}

// NullAudio is the ejected state: no file, no pipeline.
type NullAudio struct{}

func (NullAudio) Update() (State, error) { return NoFile, nil }

func (NullAudio) State() State { return NoFile }

func (NullAudio) SetPlaying(bool) error { return types.ErrNoAudio }

func (NullAudio) Position() (uint64, error) { return 0, types.ErrNoAudio }

func (NullAudio) SetPosition(uint64) (uint64, error) { return 0, types.ErrNoAudio }

func (NullAudio) Length() (uint64, error) { return 0, types.ErrNoAudio }

func (NullAudio) File() (string, error) { return "", types.ErrNoAudio }

func (NullAudio) Close() error { return nil }
