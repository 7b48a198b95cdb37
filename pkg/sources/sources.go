// Package sources opens audio files as AudioSource implementations,
// dispatching on file extension. The player core depends only on the
// AudioSource contract; adding a codec means adding an entry to the
// table here.
package sources

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/playdproj/playd/pkg/sources/flac"
	"github.com/playdproj/playd/pkg/sources/g711"
	"github.com/playdproj/playd/pkg/sources/mp3"
	"github.com/playdproj/playd/pkg/sources/vorbis"
	"github.com/playdproj/playd/pkg/sources/wav"
	"github.com/playdproj/playd/pkg/types"
)

// Constructor opens one audio file as an AudioSource.
type Constructor func(path string) (types.AudioSource, error)

var byExtension = map[string]Constructor{
	".mp3":  mp3.New,
	".wav":  wav.New,
	".flac": flac.New,
	".fla":  flac.New,
	".ogg":  vorbis.New,
	".oga":  vorbis.New,
	".alaw": g711.NewAlaw,
	".al":   g711.NewAlaw,
	".ulaw": g711.NewUlaw,
	".ul":   g711.NewUlaw,
}

// New opens the file at path with the codec its extension selects.
func New(path string) (types.AudioSource, error) {
	ext := strings.ToLower(filepath.Ext(path))

	construct, ok := byExtension[ext]
	if !ok {
		return nil, fmt.Errorf("%w: unsupported file format %q (supported: %s)",
			types.ErrFile, ext, strings.Join(Supported(), ", "))
	}

	src, err := construct(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %s", types.ErrFile, path, err)
	}

	return src, nil
}

// Supported lists the file extensions the table knows, sorted.
func Supported() []string {
	exts := make([]string, 0, len(byExtension))
	for ext := range byExtension {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}
