// Package flac decodes FLAC files to packed 16-bit PCM.
package flac

import (
	"fmt"

	goflac "github.com/drgolem/go-flac/flac"

	"github.com/playdproj/playd/pkg/types"
)

// The frame decoder is created with 16-bit output; deeper files are
// requantised by the decoder.
const outputBits = 16

// decodeChunk is the number of samples fetched per Decode call.
const decodeChunk = 4096

// Source decodes one FLAC file.
type Source struct {
	path    string
	decoder *goflac.FlacDecoder

	rate           int
	channels       int
	bytesPerSample int
	length         types.Samples

	buf []byte
	pos types.Samples
	eof bool
}

// New opens a FLAC file.
func New(path string) (types.AudioSource, error) {
	// The frame decoder does not surface the stream's total sample
	// count, so the length comes from the container header.
	total, err := readTotalSamples(path)
	if err != nil {
		return nil, err
	}

	decoder, err := openDecoder(path)
	if err != nil {
		return nil, err
	}

	rate, channels, bps := decoder.GetFormat()
	bytesPerSample := channels * (bps / 8)

	return &Source{
		path:           path,
		decoder:        decoder,
		rate:           rate,
		channels:       channels,
		bytesPerSample: bytesPerSample,
		length:         types.Samples(total),
		buf:            make([]byte, decodeChunk*bytesPerSample),
	}, nil
}

func openDecoder(path string) (*goflac.FlacDecoder, error) {
	decoder, err := goflac.NewFlacFrameDecoder(outputBits)
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}

	if err := decoder.Open(path); err != nil {
		decoder.Delete()
		return nil, fmt.Errorf("failed to open file %s: %w", path, err)
	}

	return decoder, nil
}

func (s *Source) Decode() (types.DecodeState, []byte, error) {
	if s.eof {
		return types.DecodeEOF, nil, nil
	}

	n, err := s.decoder.DecodeSamples(decodeChunk, s.buf)
	if err != nil || n == 0 {
		s.eof = true
		return types.DecodeEOF, nil, nil
	}

	s.pos += types.Samples(n)
	return types.Decoding, s.buf[:n*s.bytesPerSample], nil
}

// Seek reopens the decoder and skip-decodes to the target. libFLAC
// frames are the decodable boundary, so the landing position is exact
// at the cost of decoding past the intervening frames.
func (s *Source) Seek(target types.Samples) (types.Samples, error) {
	if target > s.length {
		return 0, fmt.Errorf("%w: %d beyond end of file (%d samples)", types.ErrSeek, target, s.length)
	}

	decoder, err := openDecoder(s.path)
	if err != nil {
		return 0, fmt.Errorf("%w: %s", types.ErrSeek, err)
	}

	var skipped types.Samples
	for skipped < target {
		want := decodeChunk
		if remaining := target - skipped; remaining < types.Samples(want) {
			want = int(remaining)
		}
		n, err := decoder.DecodeSamples(want, s.buf)
		if err != nil || n == 0 {
			break
		}
		skipped += types.Samples(n)
	}

	s.closeDecoder()
	s.decoder = decoder
	s.pos = skipped
	s.eof = false

	return skipped, nil
}

func (s *Source) ChannelCount() int { return s.channels }

func (s *Source) SampleRate() int { return s.rate }

func (s *Source) OutputFormat() types.SampleFormat { return types.FormatInt16 }

func (s *Source) Length() types.Samples { return s.length }

func (s *Source) Path() string { return s.path }

func (s *Source) BytesPerSample() int { return s.bytesPerSample }

func (s *Source) Close() error {
	s.closeDecoder()
	return nil
}

func (s *Source) closeDecoder() {
	if s.decoder != nil {
		s.decoder.Close()
		s.decoder.Delete()
		s.decoder = nil
	}
}
