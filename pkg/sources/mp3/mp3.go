// Package mp3 decodes MPEG layer III files to packed 16-bit stereo PCM.
package mp3

import (
	"fmt"
	"io"
	"os"

	gomp3 "github.com/hajimehoshi/go-mp3"

	"github.com/playdproj/playd/pkg/types"
)

// go-mp3 always emits 16-bit little-endian stereo at the file's rate.
const (
	channels       = 2
	bytesPerSample = 4
)

// decodeChunk is the number of samples fetched per Decode call.
const decodeChunk = 4096

// Source decodes one MP3 file.
type Source struct {
	path    string
	file    *os.File
	decoder *gomp3.Decoder
	length  types.Samples
	buf     []byte
	eof     bool
}

// New opens an MP3 file.
func New(path string) (types.AudioSource, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	decoder, err := gomp3.NewDecoder(file)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to decode mp3 stream: %w", err)
	}

	return &Source{
		path:    path,
		file:    file,
		decoder: decoder,
		length:  types.Samples(decoder.Length() / bytesPerSample),
		buf:     make([]byte, decodeChunk*bytesPerSample),
	}, nil
}

func (s *Source) Decode() (types.DecodeState, []byte, error) {
	if s.eof {
		return types.DecodeEOF, nil, nil
	}

	// The decoded stream is a whole number of samples, so a short read
	// can only happen at the end of the file; filling the buffer keeps
	// every returned run whole-sample aligned.
	n, err := io.ReadFull(s.decoder, s.buf)
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		s.eof = true
		err = nil
	}
	if err != nil {
		return types.DecodeWaiting, nil, fmt.Errorf("mp3 decode: %w", err)
	}

	n -= n % bytesPerSample
	if n == 0 {
		return types.DecodeEOF, nil, nil
	}

	state := types.Decoding
	if s.eof {
		state = types.DecodeEOF
	}
	return state, s.buf[:n], nil
}

func (s *Source) Seek(target types.Samples) (types.Samples, error) {
	if target > s.length {
		return 0, fmt.Errorf("%w: %d beyond end of file (%d samples)", types.ErrSeek, target, s.length)
	}

	off, err := s.decoder.Seek(int64(target)*bytesPerSample, io.SeekStart)
	if err != nil {
		return 0, fmt.Errorf("%w: %s", types.ErrSeek, err)
	}

	s.eof = false
	return types.Samples(off / bytesPerSample), nil
}

func (s *Source) ChannelCount() int { return channels }

func (s *Source) SampleRate() int { return s.decoder.SampleRate() }

func (s *Source) OutputFormat() types.SampleFormat { return types.FormatInt16 }

func (s *Source) Length() types.Samples { return s.length }

func (s *Source) Path() string { return s.path }

func (s *Source) BytesPerSample() int { return bytesPerSample }

func (s *Source) Close() error {
	return s.file.Close()
}
