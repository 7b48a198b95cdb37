package types

import (
	"errors"
	"fmt"
)

// SampleFormat identifies the packed PCM encoding a source emits.
// The set is the intersection of formats the decoders produce and the
// formats PortAudio accepts for output.
type SampleFormat uint8

const (
	FormatUInt8 SampleFormat = iota
	FormatInt8
	FormatInt16
	FormatInt32
	FormatFloat32
)

// Bytes returns the width of one mono sample in this format.
func (f SampleFormat) Bytes() int {
	switch f {
	case FormatUInt8, FormatInt8:
		return 1
	case FormatInt16:
		return 2
	case FormatInt32, FormatFloat32:
		return 4
	}
	panic(fmt.Sprintf("unknown sample format %d", f))
}

// SilenceByte returns the byte value that, repeated, renders as silence
// in this format. Unsigned 8-bit audio centres on 0x80; everything else
// centres on zero.
func (f SampleFormat) SilenceByte() byte {
	if f == FormatUInt8 {
		return 0x80
	}
	return 0
}

func (f SampleFormat) String() string {
	switch f {
	case FormatUInt8:
		return "u8"
	case FormatInt8:
		return "i8"
	case FormatInt16:
		return "i16"
	case FormatInt32:
		return "i32"
	case FormatFloat32:
		return "f32"
	}
	return fmt.Sprintf("SampleFormat(%d)", uint8(f))
}

// Samples counts interleaved sample frames: one Sample spans all
// channels, so one Sample occupies channels * format.Bytes() bytes.
type Samples uint64

// MicrosPerSecond is the number of microseconds in one second.
const MicrosPerSecond = 1_000_000

// SamplesFromMicros converts a microsecond position to a sample count at
// the given rate. The conversion truncates; converting back with
// MicrosFromSamples loses at most one sample period.
func SamplesFromMicros(micros uint64, rate int) Samples {
	return Samples(micros * uint64(rate) / MicrosPerSecond)
}

// MicrosFromSamples converts a sample count to microseconds at the given
// rate. The conversion rounds up, so converting the result back with
// SamplesFromMicros yields the same sample count (for rates below
// 1 MHz), which makes a micros→samples→micros round trip idempotent.
func MicrosFromSamples(samples Samples, rate int) uint64 {
	return (uint64(samples)*MicrosPerSecond + uint64(rate) - 1) / uint64(rate)
}

// DecodeState reports where a source is in its decoding cycle.
type DecodeState int

const (
	// DecodeWaiting means the source has no frame in flight and can
	// accept a decode request.
	DecodeWaiting DecodeState = iota
	// Decoding means the source produced sample data this call.
	Decoding
	// DecodeEOF means the source exhausted the file. Decode keeps
	// returning DecodeEOF with no data until a seek resets it.
	DecodeEOF
)

func (s DecodeState) String() string {
	switch s {
	case DecodeWaiting:
		return "waiting"
	case Decoding:
		return "decoding"
	case DecodeEOF:
		return "eof"
	}
	return fmt.Sprintf("DecodeState(%d)", int(s))
}

// AudioSource is an opened audio file decoding to packed interleaved PCM.
//
// Implementations guarantee:
//   - Decode returns whole samples only: the byte count is always a
//     multiple of BytesPerSample;
//   - successive Decode calls make forward progress through the file;
//   - once DecodeEOF has been returned, it is returned on every
//     subsequent Decode until a successful Seek;
//   - Seek clamps to a decodable boundary at or before the target and
//     returns the sample actually landed on; seeking past Length fails
//     with ErrSeek.
type AudioSource interface {
	// Decode produces the next run of packed samples. The returned
	// slice is only valid until the next Decode call.
	Decode() (DecodeState, []byte, error)

	// Seek moves decoding to the given sample position, returning the
	// position actually landed on.
	Seek(target Samples) (Samples, error)

	ChannelCount() int
	SampleRate() int
	OutputFormat() SampleFormat

	// Length is the total length of the file, in samples.
	Length() Samples

	// Path is the path this source was opened from.
	Path() string

	// BytesPerSample is the width of one interleaved sample frame:
	// ChannelCount() * OutputFormat().Bytes().
	BytesPerSample() int

	Close() error
}

// Error taxonomy. File errors are command-local (eject and report);
// seek errors map onto the natural end-of-file transition; no-audio
// errors are client errors against the wrong state. Ring buffer misuse
// surfaces as the insufficient-space/data errors and is fatal.
var (
	// ErrFile indicates a file could not be opened or decoded.
	ErrFile = errors.New("file error")

	// ErrSeek indicates a seek outside the file or a codec seek failure.
	ErrSeek = errors.New("seek error")

	// ErrNoAudio indicates a command that needs a loaded file ran
	// against an empty player.
	ErrNoAudio = errors.New("no audio loaded")

	// ErrInsufficientSpace indicates the ringbuffer doesn't have enough space for the write operation.
	ErrInsufficientSpace = errors.New("insufficient space in ringbuffer")

	// ErrInsufficientData indicates the ringbuffer doesn't have enough data for the read operation.
	ErrInsufficientData = errors.New("insufficient data in ringbuffer")
)
