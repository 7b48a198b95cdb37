package audio

import (
	"fmt"

	"github.com/playdproj/playd/internal/sink"
	"github.com/playdproj/playd/pkg/types"
)

// PipeAudio ties one source to one sink, moving decoded frames into the
// sink's ring buffer one scheduling step at a time.
type PipeAudio struct {
	src types.AudioSource
	snk sink.Sink

	// frame is the most recently decoded chunk; frame[cursor:] is the
	// remainder the sink has not yet accepted.
	frame  []byte
	cursor int
}

// NewPipe builds a pipeline from an opened source and a sink built for
// that source's format.
func NewPipe(src types.AudioSource, snk sink.Sink) *PipeAudio {
	return &PipeAudio{src: src, snk: snk}
}

// Update performs one decode-and-transfer step.
//
// After it returns, either the current frame is fully transferred or
// the ring buffer is full; the untransferred remainder is retained for
// the next call.
func (p *PipeAudio) Update() (State, error) {
	if p.cursor == len(p.frame) {
		state, data, err := p.src.Decode()
		if err != nil {
			return p.State(), fmt.Errorf("decode failed: %w", err)
		}

		p.frame = data
		p.cursor = 0

		if state == types.DecodeEOF && len(data) == 0 {
			p.snk.SourceOut()
		}
	}

	if p.cursor < len(p.frame) {
		n, err := p.snk.Transfer(p.frame[p.cursor:])
		if err != nil {
			return p.State(), err
		}
		p.cursor += n
	}

	return p.State(), nil
}

func (p *PipeAudio) State() State {
	switch p.snk.State() {
	case sink.Playing:
		return Playing
	case sink.AtEnd:
		return AtEnd
	}
	return Stopped
}

func (p *PipeAudio) SetPlaying(playing bool) error {
	if playing {
		return p.snk.Start()
	}
	return p.snk.Stop()
}

func (p *PipeAudio) Position() (uint64, error) {
	return types.MicrosFromSamples(p.snk.Position(), p.src.SampleRate()), nil
}

// SetPosition seeks source and sink to the given microsecond position,
// returning the position actually landed on. Any bytes decoded before
// the seek are discarded so stale audio never reaches the device.
func (p *PipeAudio) SetPosition(micros uint64) (uint64, error) {
	target := types.SamplesFromMicros(micros, p.src.SampleRate())

	actual, err := p.src.Seek(target)
	if err != nil {
		return 0, err
	}

	if err := p.snk.SetPosition(actual); err != nil {
		return 0, err
	}

	p.frame = nil
	p.cursor = 0

	return types.MicrosFromSamples(actual, p.src.SampleRate()), nil
}

func (p *PipeAudio) Length() (uint64, error) {
	return types.MicrosFromSamples(p.src.Length(), p.src.SampleRate()), nil
}

func (p *PipeAudio) File() (string, error) {
	return p.src.Path(), nil
}

func (p *PipeAudio) Close() error {
	err := p.snk.Close()
	if cerr := p.src.Close(); err == nil {
		err = cerr
	}
	return err
}
