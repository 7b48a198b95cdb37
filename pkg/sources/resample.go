package sources

import (
	"bytes"
	"fmt"

	soxr "github.com/zaf/resample"

	"github.com/playdproj/playd/pkg/types"
)

// Resampled wraps a source whose native rate the output device cannot
// open, converting it to a rate the device accepts. Channel count and
// sample format pass through unchanged.
type Resampled struct {
	inner   types.AudioSource
	outRate int

	resampler *soxr.Resampler
	out       bytes.Buffer
	chunk     []byte

	// drained is set once the inner source hit EOF and the resampler
	// has been closed to flush its tail.
	drained bool
	eof     bool
}

// Resample wraps src so that it emits samples at outRate.
func Resample(src types.AudioSource, outRate int) (*Resampled, error) {
	r := &Resampled{
		inner:   src,
		outRate: outRate,
	}

	if err := r.newResampler(); err != nil {
		return nil, err
	}

	return r, nil
}

func (r *Resampled) newResampler() error {
	format, err := soxrFormat(r.inner.OutputFormat())
	if err != nil {
		return err
	}

	resampler, err := soxr.New(
		&r.out,
		float64(r.inner.SampleRate()),
		float64(r.outRate),
		r.inner.ChannelCount(),
		format,
		soxr.HighQ,
	)
	if err != nil {
		return fmt.Errorf("failed to create resampler: %w", err)
	}

	r.resampler = resampler
	return nil
}

func soxrFormat(f types.SampleFormat) (int, error) {
	switch f {
	case types.FormatInt16:
		return soxr.I16, nil
	case types.FormatInt32:
		return soxr.I32, nil
	case types.FormatFloat32:
		return soxr.F32, nil
	}
	return 0, fmt.Errorf("cannot resample %v samples", f)
}

func (r *Resampled) Decode() (types.DecodeState, []byte, error) {
	if r.eof {
		return types.DecodeEOF, nil, nil
	}

	if r.out.Len() < r.BytesPerSample() && !r.drained {
		state, data, err := r.inner.Decode()
		if err != nil {
			return types.DecodeWaiting, nil, err
		}

		if len(data) > 0 {
			if _, err := r.resampler.Write(data); err != nil {
				return types.DecodeWaiting, nil, fmt.Errorf("failed to resample: %w", err)
			}
		}

		if state == types.DecodeEOF {
			// Closing flushes the resampler's tail into the buffer.
			if err := r.resampler.Close(); err != nil {
				return types.DecodeWaiting, nil, fmt.Errorf("failed to close resampler: %w", err)
			}
			r.drained = true
		}
	}

	whole := r.out.Len() - r.out.Len()%r.BytesPerSample()
	if whole == 0 {
		if r.drained {
			r.eof = true
			return types.DecodeEOF, nil, nil
		}
		// The resampler is still priming; nothing to hand over yet.
		return types.DecodeWaiting, nil, nil
	}

	if cap(r.chunk) < whole {
		r.chunk = make([]byte, whole)
	}
	r.chunk = r.chunk[:whole]
	copy(r.chunk, r.out.Next(whole))

	state := types.Decoding
	if r.drained && r.out.Len() == 0 {
		r.eof = true
		state = types.DecodeEOF
	}
	return state, r.chunk, nil
}

func (r *Resampled) Seek(target types.Samples) (types.Samples, error) {
	inRate := r.inner.SampleRate()
	innerTarget := types.Samples(uint64(target) * uint64(inRate) / uint64(r.outRate))

	actual, err := r.inner.Seek(innerTarget)
	if err != nil {
		return 0, err
	}

	r.out.Reset()
	r.drained = false
	r.eof = false
	if err := r.newResampler(); err != nil {
		return 0, fmt.Errorf("%w: %s", types.ErrSeek, err)
	}

	return types.Samples(uint64(actual) * uint64(r.outRate) / uint64(inRate)), nil
}

func (r *Resampled) ChannelCount() int { return r.inner.ChannelCount() }

func (r *Resampled) SampleRate() int { return r.outRate }

func (r *Resampled) OutputFormat() types.SampleFormat { return r.inner.OutputFormat() }

func (r *Resampled) Length() types.Samples {
	return types.Samples(uint64(r.inner.Length()) * uint64(r.outRate) / uint64(r.inner.SampleRate()))
}

func (r *Resampled) Path() string { return r.inner.Path() }

func (r *Resampled) BytesPerSample() int { return r.inner.BytesPerSample() }

func (r *Resampled) Close() error {
	if !r.drained {
		r.resampler.Close()
	}
	return r.inner.Close()
}
