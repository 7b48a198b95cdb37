package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenise(t *testing.T) {
	tests := []struct {
		name string
		line string
		want []string
	}{
		{"empty line", "", nil},
		{"whitespace only", "   \t  ", nil},
		{"single word", "play", []string{"play"}},
		{"plain words", "t1 load /f.mp3", []string{"t1", "load", "/f.mp3"}},
		{"collapsed whitespace", "t1   load\t/f.mp3", []string{"t1", "load", "/f.mp3"}},
		{"single quotes", "t1 load 'my song.mp3'", []string{"t1", "load", "my song.mp3"}},
		{"double quotes", `t1 load "my song.mp3"`, []string{"t1", "load", "my song.mp3"}},
		{"backslash escapes space", `t1 load my\ song.mp3`, []string{"t1", "load", "my song.mp3"}},
		{"backslash in double quotes", `t1 load "a\"b"`, []string{"t1", "load", `a"b`}},
		{"backslash literal in single quotes", `t1 load 'a\b'`, []string{"t1", "load", `a\b`}},
		{"quoted empty string", "t1 load ''", []string{"t1", "load", ""}},
		{"adjacent quoted parts", "t1 load 'a b'c", []string{"t1", "load", "a bc"}},
		{"escaped single quote sequence", `t1 load 'it'\''s.mp3'`, []string{"t1", "load", "it's.mp3"}},
		{"unterminated quote ends at line end", "t1 load 'abc", []string{"t1", "load", "abc"}},
		{"trailing backslash dropped", `t1 load abc\`, []string{"t1", "load", "abc"}},
		{"double quote keeps single quote", `t1 load "it's"`, []string{"t1", "load", "it's"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Tokenise(tt.line))
		})
	}
}
