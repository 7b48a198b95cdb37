package sink

import (
	"fmt"
	"sync/atomic"

	"github.com/drgolem/go-portaudio/portaudio"

	"github.com/playdproj/playd/pkg/ringbuffer"
	"github.com/playdproj/playd/pkg/types"
)

// ringbufPower sizes the ring buffer: 2^ringbufPower samples.
const ringbufPower = 16

// PortAudioSink drives one PortAudio output stream.
//
// Ordering: state, position and sourceOut are atomics shared with the
// callback thread. SetPosition additionally pauses the stream while it
// mutates, so the callback never observes a half-applied reposition.
type PortAudioSink struct {
	stream *portaudio.PaStream
	ring   *ringbuffer.RingBuffer

	bytesPerSample int
	silence        byte

	state     atomic.Int32
	position  atomic.Uint64 // samples delivered to the device
	sourceOut atomic.Bool
	started   atomic.Bool // stream currently running
}

// NewPortAudio opens the given device for the source's rate, channel
// count and sample format, and registers the pull callback. The stream
// is left paused; Start unpauses it.
func NewPortAudio(src types.AudioSource, deviceIdx, framesPerBuffer int) (*PortAudioSink, error) {
	sampleFormat, err := paFormat(src.OutputFormat())
	if err != nil {
		return nil, err
	}

	s := &PortAudioSink{
		ring:           ringbuffer.New(uint64(src.BytesPerSample()) << ringbufPower),
		bytesPerSample: src.BytesPerSample(),
		silence:        src.OutputFormat().SilenceByte(),
	}

	s.stream = &portaudio.PaStream{
		OutputParameters: &portaudio.PaStreamParameters{
			DeviceIndex:  deviceIdx,
			ChannelCount: src.ChannelCount(),
			SampleFormat: sampleFormat,
		},
		SampleRate: float64(src.SampleRate()),
	}

	if err := s.stream.OpenCallback(framesPerBuffer, s.callback); err != nil {
		return nil, fmt.Errorf("failed to open stream with callback: %w", err)
	}

	return s, nil
}

func paFormat(f types.SampleFormat) (portaudio.PaSampleFormat, error) {
	switch f {
	case types.FormatUInt8:
		return portaudio.SampleFmtUInt8, nil
	case types.FormatInt8:
		return portaudio.SampleFmtInt8, nil
	case types.FormatInt16:
		return portaudio.SampleFmtInt16, nil
	case types.FormatInt32:
		return portaudio.SampleFmtInt32, nil
	case types.FormatFloat32:
		return portaudio.SampleFmtFloat32, nil
	}
	return 0, fmt.Errorf("no PortAudio format for %v", f)
}

// callback is called by PortAudio to fill the output buffer.
//
// This runs in a separate audio thread managed by PortAudio's C
// library, NOT in a Go goroutine. It must not block, allocate, or take
// long locks: the only shared state it touches is the ring buffer's
// consumer side and the sink's atomics.
func (s *PortAudioSink) callback(
	input, output []byte,
	frameCount uint,
	timeInfo *portaudio.StreamCallbackTimeInfo,
	statusFlags portaudio.StreamCallbackFlags,
) portaudio.StreamCallbackResult {

	for i := range output {
		output[i] = s.silence
	}

	if State(s.state.Load()) != Playing {
		return portaudio.Continue
	}

	avail := s.ring.ReadCapacity()
	if avail == 0 {
		if s.sourceOut.Load() {
			s.state.Store(int32(AtEnd))
		}
		// Otherwise this is an underrun; the silence stands.
		return portaudio.Continue
	}

	want := uint64(int(frameCount) * s.bytesPerSample)
	if limit := uint64(len(output)); want > limit {
		want = limit
	}
	if avail < want {
		want = avail
	}
	want -= want % uint64(s.bytesPerSample)
	if want == 0 {
		return portaudio.Continue
	}

	read, err := s.ring.Read(output[:want])
	if err != nil {
		// Bounded by ReadCapacity above; a failure here is a bug.
		return portaudio.Continue
	}

	s.position.Add(uint64(read / s.bytesPerSample))

	return portaudio.Continue
}

func (s *PortAudioSink) Start() error {
	switch State(s.state.Load()) {
	case Playing:
		return nil
	case AtEnd:
		return fmt.Errorf("cannot start: sink is at end of stream")
	}

	if err := s.startStream(); err != nil {
		return err
	}
	s.state.Store(int32(Playing))
	return nil
}

func (s *PortAudioSink) Stop() error {
	if State(s.state.Load()) == Stopped {
		return nil
	}

	if err := s.stopStream(); err != nil {
		return err
	}
	s.state.Store(int32(Stopped))
	return nil
}

func (s *PortAudioSink) State() State {
	return State(s.state.Load())
}

func (s *PortAudioSink) Position() types.Samples {
	return types.Samples(s.position.Load())
}

func (s *PortAudioSink) SetPosition(pos types.Samples) error {
	wasPlaying := State(s.state.Load()) == Playing
	if wasPlaying {
		if err := s.stopStream(); err != nil {
			return err
		}
	}

	s.ring.Flush()
	s.position.Store(uint64(pos))
	s.sourceOut.Store(false)
	if State(s.state.Load()) == AtEnd {
		s.state.Store(int32(Stopped))
	}

	if wasPlaying {
		return s.startStream()
	}
	return nil
}

func (s *PortAudioSink) SourceOut() {
	s.sourceOut.Store(true)
}

func (s *PortAudioSink) Transfer(src []byte) (int, error) {
	n := uint64(len(src))
	if free := s.ring.WriteCapacity(); free < n {
		n = free
	}
	n -= n % uint64(s.bytesPerSample)
	if n == 0 {
		return 0, nil
	}

	return s.ring.Write(src[:n])
}

func (s *PortAudioSink) Close() error {
	if err := s.stopStream(); err != nil {
		return err
	}
	return s.stream.CloseCallback()
}

func (s *PortAudioSink) startStream() error {
	if s.started.Load() {
		return nil
	}
	if err := s.stream.StartStream(); err != nil {
		return fmt.Errorf("failed to start stream: %w", err)
	}
	s.started.Store(true)
	return nil
}

func (s *PortAudioSink) stopStream() error {
	if !s.started.Load() {
		return nil
	}
	if err := s.stream.StopStream(); err != nil {
		return fmt.Errorf("failed to stop stream: %w", err)
	}
	s.started.Store(false)
	return nil
}
