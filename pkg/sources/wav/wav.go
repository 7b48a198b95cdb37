// Package wav decodes PCM WAV files.
package wav

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	gowav "github.com/youpy/go-wav"

	"github.com/playdproj/playd/pkg/types"
)

// decodeChunk is the number of samples fetched per Decode call.
const decodeChunk = 4096

// Source decodes one WAV file. The go-wav reader hands back the raw
// little-endian data chunk, which for packed PCM is already the byte
// layout the pipeline wants.
type Source struct {
	path   string
	file   *os.File
	reader *gowav.Reader

	rate       int
	channels   int
	format     types.SampleFormat
	blockAlign int
	length     types.Samples

	buf []byte
	eof bool
}

// New opens a WAV file.
func New(path string) (types.AudioSource, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	reader := gowav.NewReader(file)
	format, err := reader.Format()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to read WAV format: %w", err)
	}

	if format.AudioFormat != gowav.AudioFormatPCM {
		file.Close()
		return nil, fmt.Errorf("unsupported WAV format: %d (only PCM supported)", format.AudioFormat)
	}

	var sampleFormat types.SampleFormat
	switch format.BitsPerSample {
	case 8:
		// 8-bit WAV is unsigned by convention.
		sampleFormat = types.FormatUInt8
	case 16:
		sampleFormat = types.FormatInt16
	case 32:
		sampleFormat = types.FormatInt32
	default:
		file.Close()
		return nil, fmt.Errorf("unsupported bit depth: %d", format.BitsPerSample)
	}

	blockAlign := int(format.NumChannels) * sampleFormat.Bytes()

	dataSize, err := dataChunkSize(path)
	if err != nil {
		file.Close()
		return nil, err
	}

	return &Source{
		path:       path,
		file:       file,
		reader:     reader,
		rate:       int(format.SampleRate),
		channels:   int(format.NumChannels),
		format:     sampleFormat,
		blockAlign: blockAlign,
		length:     types.Samples(dataSize / uint32(blockAlign)),
		buf:        make([]byte, decodeChunk*blockAlign),
	}, nil
}

func (s *Source) Decode() (types.DecodeState, []byte, error) {
	if s.eof {
		return types.DecodeEOF, nil, nil
	}

	n, err := io.ReadFull(s.reader, s.buf)
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		s.eof = true
		err = nil
	}
	if err != nil {
		return types.DecodeWaiting, nil, fmt.Errorf("wav decode: %w", err)
	}

	n -= n % s.blockAlign
	if n == 0 {
		return types.DecodeEOF, nil, nil
	}

	state := types.Decoding
	if s.eof {
		state = types.DecodeEOF
	}
	return state, s.buf[:n], nil
}

// Seek reopens the data stream and discards up to the target sample.
// PCM data is byte-addressable, so the landing position is exact.
func (s *Source) Seek(target types.Samples) (types.Samples, error) {
	if target > s.length {
		return 0, fmt.Errorf("%w: %d beyond end of file (%d samples)", types.ErrSeek, target, s.length)
	}

	file, err := os.Open(s.path)
	if err != nil {
		return 0, fmt.Errorf("%w: %s", types.ErrSeek, err)
	}

	reader := gowav.NewReader(file)
	if _, err := reader.Format(); err != nil {
		file.Close()
		return 0, fmt.Errorf("%w: %s", types.ErrSeek, err)
	}

	skip := int64(target) * int64(s.blockAlign)
	if _, err := io.CopyN(io.Discard, reader, skip); err != nil && err != io.EOF {
		file.Close()
		return 0, fmt.Errorf("%w: %s", types.ErrSeek, err)
	}

	s.file.Close()
	s.file = file
	s.reader = reader
	s.eof = false

	return target, nil
}

func (s *Source) ChannelCount() int { return s.channels }

func (s *Source) SampleRate() int { return s.rate }

func (s *Source) OutputFormat() types.SampleFormat { return s.format }

func (s *Source) Length() types.Samples { return s.length }

func (s *Source) Path() string { return s.path }

func (s *Source) BytesPerSample() int { return s.blockAlign }

func (s *Source) Close() error {
	return s.file.Close()
}

// dataChunkSize walks the RIFF chunk list for the size of the data
// chunk, which the go-wav reader does not expose.
func dataChunkSize(path string) (uint32, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer file.Close()

	var riff [12]byte
	if _, err := io.ReadFull(file, riff[:]); err != nil {
		return 0, fmt.Errorf("failed to read RIFF header: %w", err)
	}
	if string(riff[0:4]) != "RIFF" || string(riff[8:12]) != "WAVE" {
		return 0, fmt.Errorf("not a RIFF WAVE file")
	}

	var chunk [8]byte
	for {
		if _, err := io.ReadFull(file, chunk[:]); err != nil {
			return 0, fmt.Errorf("no data chunk found: %w", err)
		}
		size := binary.LittleEndian.Uint32(chunk[4:8])
		if string(chunk[0:4]) == "data" {
			return size, nil
		}
		// Chunks are word-aligned.
		if size%2 == 1 {
			size++
		}
		if _, err := file.Seek(int64(size), io.SeekCurrent); err != nil {
			return 0, err
		}
	}
}
