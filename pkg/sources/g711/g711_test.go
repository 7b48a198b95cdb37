package g711

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/playdproj/playd/pkg/types"
)

func writeRawFile(t *testing.T, name string, size int) string {
	t.Helper()

	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i)
	}

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path
}

func TestOpenReportsTelephonyFormat(t *testing.T) {
	path := writeRawFile(t, "test.alaw", 8000)

	src, err := NewAlaw(path)
	require.NoError(t, err)
	defer src.Close()

	assert.Equal(t, 8000, src.SampleRate())
	assert.Equal(t, 1, src.ChannelCount())
	assert.Equal(t, types.FormatInt16, src.OutputFormat())
	assert.Equal(t, 2, src.BytesPerSample())
	assert.Equal(t, types.Samples(8000), src.Length(), "one byte per sample")
}

func TestDecodeExpandsToPCM(t *testing.T) {
	path := writeRawFile(t, "test.ulaw", 100)

	src, err := NewUlaw(path)
	require.NoError(t, err)
	defer src.Close()

	state, data, err := src.Decode()
	require.NoError(t, err)
	assert.Equal(t, types.DecodeEOF, state, "100 samples fit one chunk")
	assert.Len(t, data, 200, "16-bit LPCM out")

	state, data, err = src.Decode()
	require.NoError(t, err)
	assert.Equal(t, types.DecodeEOF, state)
	assert.Empty(t, data)
}

func TestSeek(t *testing.T) {
	path := writeRawFile(t, "test.alaw", 1000)

	src, err := NewAlaw(path)
	require.NoError(t, err)
	defer src.Close()

	actual, err := src.Seek(600)
	require.NoError(t, err)
	assert.Equal(t, types.Samples(600), actual)

	_, data, err := src.Decode()
	require.NoError(t, err)
	assert.Len(t, data, 800, "400 samples remain")

	_, err = src.Seek(1001)
	assert.ErrorIs(t, err, types.ErrSeek)
}
