// Package g711 decodes raw A-law and µ-law telephony files to 16-bit
// PCM. Raw G.711 carries no header: the format is fixed at 8 kHz mono,
// one encoded byte per sample.
package g711

import (
	"fmt"
	"io"
	"os"

	zafg711 "github.com/zaf/g711"

	"github.com/playdproj/playd/pkg/types"
)

const (
	sampleRate = 8000
	// One encoded byte expands to one 16-bit mono sample.
	encodedBytesPerSample = 1
	bytesPerSample        = 2
)

// decodeChunk is the number of samples fetched per Decode call.
const decodeChunk = 4096

type law int

const (
	alaw law = iota
	ulaw
)

// Source decodes one raw G.711 file.
type Source struct {
	path    string
	law     law
	file    *os.File
	decoder io.Reader
	length  types.Samples
	buf     []byte
	eof     bool
}

// NewAlaw opens a raw A-law file.
func NewAlaw(path string) (types.AudioSource, error) {
	return open(path, alaw)
}

// NewUlaw opens a raw µ-law file.
func NewUlaw(path string) (types.AudioSource, error) {
	return open(path, ulaw)
}

func open(path string, l law) (types.AudioSource, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, err
	}

	decoder, err := newDecoder(file, l)
	if err != nil {
		file.Close()
		return nil, err
	}

	return &Source{
		path:    path,
		law:     l,
		file:    file,
		decoder: decoder,
		length:  types.Samples(info.Size() / encodedBytesPerSample),
		buf:     make([]byte, decodeChunk*bytesPerSample),
	}, nil
}

func newDecoder(r io.Reader, l law) (io.Reader, error) {
	switch l {
	case alaw:
		return zafg711.NewAlawDecoder(r)
	case ulaw:
		return zafg711.NewUlawDecoder(r)
	}
	return nil, fmt.Errorf("unknown G.711 law %d", l)
}

func (s *Source) Decode() (types.DecodeState, []byte, error) {
	if s.eof {
		return types.DecodeEOF, nil, nil
	}

	n, err := io.ReadFull(s.decoder, s.buf)
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		s.eof = true
		err = nil
	}
	if err != nil {
		return types.DecodeWaiting, nil, fmt.Errorf("g711 decode: %w", err)
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

// Seek repositions the raw file and rebuilds the decoder over it. The
// encoding is one byte per sample, so the landing position is exact.
func (s *Source) Seek(target types.Samples) (types.Samples, error) {
	if target > s.length {
		return 0, fmt.Errorf("%w: %d beyond end of file (%d samples)", types.ErrSeek, target, s.length)
	}

	if _, err := s.file.Seek(int64(target)*encodedBytesPerSample, io.SeekStart); err != nil {
		return 0, fmt.Errorf("%w: %s", types.ErrSeek, err)
	}

	decoder, err := newDecoder(s.file, s.law)
	if err != nil {
		return 0, fmt.Errorf("%w: %s", types.ErrSeek, err)
	}

	s.decoder = decoder
	s.eof = false

	return target, nil
}

func (s *Source) ChannelCount() int { return 1 }

func (s *Source) SampleRate() int { return sampleRate }

func (s *Source) OutputFormat() types.SampleFormat { return types.FormatInt16 }

func (s *Source) Length() types.Samples { return s.length }

func (s *Source) Path() string { return s.path }

func (s *Source) BytesPerSample() int { return bytesPerSample }

func (s *Source) Close() error {
	return s.file.Close()
}
