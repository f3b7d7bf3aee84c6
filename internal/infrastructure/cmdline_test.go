package infrastructure

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCommandLine(t *testing.T) {
	tests := []struct {
		name     string
		binary   string
		args     []string
		expected string
	}{
		{
			name:     "plain",
			binary:   "yt-dlp",
			args:     []string{"-J", "--no-playlist", "https://youtu.be/abc"},
			expected: "yt-dlp -J --no-playlist https://youtu.be/abc",
		},
		{
			name:     "template and selector are quoted",
			binary:   "yt-dlp",
			args:     []string{"-f", "bestvideo[height<=720]+bestaudio", "-o", "/tmp/dl/%(title)s.%(ext)s"},
			expected: "yt-dlp -f 'bestvideo[height<=720]+bestaudio' -o '/tmp/dl/%(title)s.%(ext)s'",
		},
		{
			name:     "embedded single quote",
			binary:   "/opt/my tools/yt-dlp",
			args:     []string{"it's"},
			expected: `'/opt/my tools/yt-dlp' 'it'"'"'s'`,
		},
		{
			name:     "empty argument",
			binary:   "yt-dlp",
			args:     []string{""},
			expected: "yt-dlp ''",
		},
		{
			name:     "cookie path redacted",
			binary:   "yt-dlp",
			args:     []string{"--cookies", "/home/me/cookies.txt", "url"},
			expected: "yt-dlp --cookies <redacted> url",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, CommandLine(tt.binary, tt.args...))
		})
	}
}

func TestTailBuffer_KeepsTail(t *testing.T) {
	tb := newTailBuffer(10)
	for i := 0; i < 5; i++ {
		fmt.Fprintf(tb, "line%d\n", i)
	}
	assert.Equal(t, "ne3\nline4\n", tb.String())
	assert.Len(t, tb.String(), 10)
}

func TestTailBuffer_LastErrorLine(t *testing.T) {
	tb := newTailBuffer(1024)
	fmt.Fprint(tb, "WARNING: something\nERROR: [youtube] abc: Video unavailable\nsome trailing noise\n")
	assert.Equal(t, "ERROR: [youtube] abc: Video unavailable", tb.lastErrorLine())

	plain := newTailBuffer(1024)
	fmt.Fprint(plain, "first\nsecond\n\n")
	assert.Equal(t, "second", plain.lastErrorLine())

	assert.Equal(t, "", newTailBuffer(16).lastErrorLine())
}
