package infrastructure

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yourusername/ytrelay-go/internal/domain"
)

func newTestRelay(script string, gotArgs *[]string) *StreamRelay {
	cfg := domain.DefaultConfig()
	return NewStreamRelay(&cfg.YTDLP, &cfg.Stream, zap.NewNop()).
		WithCommandFactory(scriptFactory(script, gotArgs))
}

func TestStreamFormat(t *testing.T) {
	format, contentType, filename := StreamFormat(domain.StreamAudio, nil, "m4a")
	assert.Equal(t, "bestaudio[ext=m4a]", format)
	assert.Equal(t, "audio/mp4", contentType)
	assert.Equal(t, "audio.m4a", filename)

	q := 720
	format, contentType, filename = StreamFormat(domain.StreamVideo, &q, "m4a")
	assert.Equal(t, "bestvideo[height=720]", format)
	assert.Equal(t, "video/mp4", contentType)
	assert.Equal(t, "video.mp4", filename)

	format, _, _ = StreamFormat(domain.StreamVideo, nil, "m4a")
	assert.Equal(t, "bestvideo", format)
}

func TestStreamFormat_AudioTypeFollowsExtension(t *testing.T) {
	for ext, want := range map[string]string{
		"webm": "audio/webm",
		"mp3":  "audio/mpeg",
		"opus": "audio/ogg",
		"M4A":  "audio/mp4",
	} {
		format, contentType, filename := StreamFormat(domain.StreamAudio, nil, ext)
		assert.Equal(t, "bestaudio[ext="+ext+"]", format)
		assert.Equal(t, want, contentType, ext)
		assert.Equal(t, "audio."+ext, filename)
	}

	assert.Equal(t, "audio/mp4", audioContentType("zzz-unknown"))
}

func TestStream_ChunksThenEOFDespiteExitCode(t *testing.T) {
	script := `printf aaa; sleep 0.1; printf bbb; sleep 0.1; printf ccc; exit 1`
	var got []string
	relay := newTestRelay(script, &got)

	s, err := relay.Open(context.Background(), "https://youtu.be/abc", "bestaudio[ext=m4a]")
	require.NoError(t, err)
	defer s.Close()

	var chunks []string
	for {
		chunk, err := s.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		chunks = append(chunks, string(chunk))
	}

	assert.Equal(t, []string{"aaa", "bbb", "ccc"}, chunks)
	assert.Equal(t, int64(9), s.Written())
	assert.Subset(t, got, []string{"-f", "bestaudio[ext=m4a]", "-o", "-", "--no-part", "--no-playlist", "--quiet"})

	// further reads keep reporting EOF
	_, err = s.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestStream_EmptyOutput(t *testing.T) {
	s, err := newTestRelay(`exit 0`, nil).Open(context.Background(), "u", "bestvideo")
	require.NoError(t, err)

	_, err = s.Next()
	assert.ErrorIs(t, err, io.EOF)
	assert.NoError(t, s.Close())
}

func TestStream_WriteToFlushes(t *testing.T) {
	s, err := newTestRelay(`printf hello; printf world`, nil).Open(context.Background(), "u", "bestvideo")
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	n, err := s.WriteTo(rec)
	require.NoError(t, err)

	assert.Equal(t, int64(10), n)
	assert.Equal(t, "helloworld", rec.Body.String())
	assert.True(t, rec.Flushed)
}

type failingWriter struct{ writes int }

func (w *failingWriter) Write(p []byte) (int, error) {
	w.writes++
	return 0, errors.New("client went away")
}

func TestStream_WriteFailureKillsProcess(t *testing.T) {
	s, err := newTestRelay(`while true; do printf x; sleep 0.01; done`, nil).Open(context.Background(), "u", "bestvideo")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := s.WriteTo(&failingWriter{})
		done <- err
	}()

	select {
	case err := <-done:
		assert.Error(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("WriteTo did not return after write failure")
	}
	assert.NoError(t, s.Close())
}

func TestStream_CloseKillsRunningProcess(t *testing.T) {
	s, err := newTestRelay(`printf start; exec sleep 30`, nil).Open(context.Background(), "u", "bestvideo")
	require.NoError(t, err)

	chunk, err := s.Next()
	require.NoError(t, err)
	assert.Equal(t, "start", string(chunk))

	closed := make(chan struct{})
	go func() {
		s.Close()
		s.Close()
		close(closed)
	}()

	select {
	case <-closed:
	case <-time.After(5 * time.Second):
		t.Fatal("Close did not reap the process")
	}
}

func TestStream_ContextCancelEndsStream(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s, err := newTestRelay(`printf start; exec sleep 30`, nil).Open(ctx, "u", "bestvideo")
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Next()
	require.NoError(t, err)
	cancel()

	var buf bytes.Buffer
	done := make(chan struct{})
	go func() {
		_, _ = s.WriteTo(&buf)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("stream did not end after cancel")
	}
}
