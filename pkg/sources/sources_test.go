package sources

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/playdproj/playd/pkg/types"
)

func TestNewRejectsUnknownExtension(t *testing.T) {
	tests := []string{
		"/music/file.xyz",
		"/music/file",
		"/music/file.mp4",
	}

	for _, path := range tests {
		t.Run(path, func(t *testing.T) {
			_, err := New(path)
			assert.ErrorIs(t, err, types.ErrFile)
		})
	}
}

func TestNewReportsOpenFailure(t *testing.T) {
	_, err := New("/does/not/exist.wav")
	assert.ErrorIs(t, err, types.ErrFile)
}

func TestSupported(t *testing.T) {
	exts := Supported()
	assert.Contains(t, exts, ".mp3")
	assert.Contains(t, exts, ".wav")
	assert.Contains(t, exts, ".flac")
	assert.Contains(t, exts, ".ogg")
	assert.Contains(t, exts, ".ulaw")
	assert.IsNonDecreasing(t, exts)
}
