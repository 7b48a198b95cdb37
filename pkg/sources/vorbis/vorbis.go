// Package vorbis decodes Ogg Vorbis files to packed 32-bit float PCM.
package vorbis

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/jfreymuth/oggvorbis"

	"github.com/playdproj/playd/pkg/types"
)

// decodeChunk is the number of samples fetched per Decode call.
const decodeChunk = 4096

// Source decodes one Ogg Vorbis file. The decoder yields interleaved
// float32 values; they are packed little-endian into the byte stream.
type Source struct {
	path   string
	file   *os.File
	reader *oggvorbis.Reader

	channels       int
	bytesPerSample int
	length         types.Samples

	floats []float32
	// carry holds interleaved values of an incomplete sample left over
	// from a short read; it is always shorter than one sample.
	carry []float32
	buf   []byte
	eof   bool
}

// New opens an Ogg Vorbis file.
func New(path string) (types.AudioSource, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	reader, err := oggvorbis.NewReader(file)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to decode ogg stream: %w", err)
	}

	channels := reader.Channels()
	bytesPerSample := channels * types.FormatFloat32.Bytes()

	return &Source{
		path:           path,
		file:           file,
		reader:         reader,
		channels:       channels,
		bytesPerSample: bytesPerSample,
		length:         types.Samples(reader.Length()),
		floats:         make([]float32, decodeChunk*channels),
		carry:          make([]float32, 0, channels),
		buf:            make([]byte, decodeChunk*bytesPerSample),
	}, nil
}

func (s *Source) Decode() (types.DecodeState, []byte, error) {
	if s.eof {
		return types.DecodeEOF, nil, nil
	}

	n := copy(s.floats, s.carry)
	s.carry = s.carry[:0]

	for n < len(s.floats) {
		read, err := s.reader.Read(s.floats[n:])
		n += read
		if err == io.EOF {
			s.eof = true
			break
		}
		if err != nil {
			return types.DecodeWaiting, nil, fmt.Errorf("vorbis decode: %w", err)
		}
	}

	// Hold back any incomplete trailing sample for the next call.
	whole := n - n%s.channels
	s.carry = append(s.carry, s.floats[whole:n]...)

	if whole == 0 {
		return types.DecodeEOF, nil, nil
	}

	for i, v := range s.floats[:whole] {
		binary.LittleEndian.PutUint32(s.buf[i*4:], math.Float32bits(v))
	}

	state := types.Decoding
	if s.eof {
		state = types.DecodeEOF
	}
	return state, s.buf[:whole*4], nil
}

func (s *Source) Seek(target types.Samples) (types.Samples, error) {
	if target > s.length {
		return 0, fmt.Errorf("%w: %d beyond end of file (%d samples)", types.ErrSeek, target, s.length)
	}

	if err := s.reader.SetPosition(int64(target)); err != nil {
		return 0, fmt.Errorf("%w: %s", types.ErrSeek, err)
	}

	s.carry = s.carry[:0]
	s.eof = false

	return types.Samples(s.reader.Position()), nil
}

func (s *Source) ChannelCount() int { return s.channels }

func (s *Source) SampleRate() int { return s.reader.SampleRate() }

func (s *Source) OutputFormat() types.SampleFormat { return types.FormatFloat32 }

func (s *Source) Length() types.Samples { return s.length }

func (s *Source) Path() string { return s.path }

func (s *Source) BytesPerSample() int { return s.bytesPerSample }

func (s *Source) Close() error {
	return s.file.Close()
}
