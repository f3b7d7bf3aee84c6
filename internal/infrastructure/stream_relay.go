package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os/exec"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/yourusername/ytrelay-go/internal/domain"
)

const defaultChunkSize = 64 * 1024

// StreamRelay spawns one yt-dlp process per request and exposes its stdout as
// a chunk sequence. Nothing is written to disk.
type StreamRelay struct {
	ytdlp     *domain.YTDLPConfig
	chunkSize int
	logger    *zap.Logger
	command   CommandFactory
}

// Stream is one running relay process
type Stream struct {
	cmd       *exec.Cmd
	stdout    io.ReadCloser
	stderr    *tailBuffer
	buf       []byte
	logger    *zap.Logger
	started   time.Time
	written   int64
	mu        sync.Mutex
	exited    bool
	closeOnce sync.Once
}

// NewStreamRelay creates a relay using the yt-dlp and stream settings
func NewStreamRelay(ytdlp *domain.YTDLPConfig, stream *domain.StreamConfig, logger *zap.Logger) *StreamRelay {
	chunkSize := stream.ChunkSize
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}
	return &StreamRelay{
		ytdlp:     ytdlp,
		chunkSize: chunkSize,
		logger:    logger,
		command:   exec.CommandContext,
	}
}

// WithCommandFactory replaces process creation, used by tests
func (r *StreamRelay) WithCommandFactory(factory CommandFactory) *StreamRelay {
	r.command = factory
	return r
}

// StreamFormat maps a relay mode to the yt-dlp selector and the response
// content type and attachment name.
func StreamFormat(mode domain.StreamMode, quality *int, audioExt string) (format, contentType, filename string) {
	if mode == domain.StreamAudio {
		return fmt.Sprintf("bestaudio[ext=%s]", audioExt), audioContentType(audioExt), "audio." + audioExt
	}
	if quality != nil {
		return fmt.Sprintf("bestvideo[height=%d]", *quality), "video/mp4", "video.mp4"
	}
	return "bestvideo", "video/mp4", "video.mp4"
}

// audioTypes covers the containers yt-dlp serves audio-only; the system mime
// table is consulted for anything else.
var audioTypes = map[string]string{
	"m4a":  "audio/mp4",
	"mp4":  "audio/mp4",
	"mp3":  "audio/mpeg",
	"webm": "audio/webm",
	"opus": "audio/ogg",
	"ogg":  "audio/ogg",
	"aac":  "audio/aac",
	"flac": "audio/flac",
	"wav":  "audio/wav",
}

func audioContentType(ext string) string {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	if t, ok := audioTypes[ext]; ok {
		return t
	}
	if t := mime.TypeByExtension("." + ext); t != "" {
		return t
	}
	return "audio/mp4"
}

func (r *StreamRelay) args(url, format string) []string {
	args := []string{"-f", format, "-o", "-", "--no-part", "--no-playlist", "--quiet", "--no-warnings"}
	args = append(args, commonArgs(r.ytdlp)...)
	return append(args, "--", url)
}

// Open starts the process. Cancelling ctx kills it.
func (r *StreamRelay) Open(ctx context.Context, url, format string) (*Stream, error) {
	args := r.args(url, format)
	r.logger.Info("Opening stream", zap.String("cmd", CommandLine(r.ytdlp.Binary, args...)))

	stderr := newTailBuffer(stderrTailSize)
	cmd := r.command(ctx, r.ytdlp.Binary, args...)
	cmd.Stderr = stderr
	cmd.WaitDelay = waitDelay

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stream stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: failed to start %s: %v", domain.ErrNotReady, r.ytdlp.Binary, err)
	}

	return &Stream{
		cmd:     cmd,
		stdout:  stdout,
		stderr:  stderr,
		buf:     make([]byte, r.chunkSize),
		logger:  r.logger,
		started: time.Now(),
	}, nil
}

// Next returns the next chunk of output. The slice is reused by the following
// call. io.EOF marks the end of output; a non-zero exit is logged, not
// returned, because the client may already have part of the body.
func (s *Stream) Next() ([]byte, error) {
	s.mu.Lock()
	exited := s.exited
	s.mu.Unlock()
	if exited {
		return nil, io.EOF
	}

	for {
		n, err := s.stdout.Read(s.buf)
		if n > 0 {
			s.written += int64(n)
			return s.buf[:n], nil
		}
		if err == nil {
			continue
		}
		if errors.Is(err, io.EOF) {
			s.reap()
			return nil, io.EOF
		}
		s.Close()
		return nil, fmt.Errorf("read stream: %w", err)
	}
}

// WriteTo pumps every chunk into w, flushing after each write when w supports
// it. A write failure kills the process.
func (s *Stream) WriteTo(w io.Writer) (int64, error) {
	flusher, _ := w.(http.Flusher)
	var total int64

	for {
		chunk, err := s.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return total, nil
			}
			return total, err
		}

		n, werr := w.Write(chunk)
		total += int64(n)
		if werr != nil {
			s.Close()
			return total, fmt.Errorf("write response: %w", werr)
		}
		if flusher != nil {
			flusher.Flush()
		}
	}
}

// Written returns the number of bytes read from the process so far
func (s *Stream) Written() int64 {
	return s.written
}

// Close kills the process if it is still running and reaps it. Safe to call
// more than once and after EOF.
func (s *Stream) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		exited := s.exited
		s.mu.Unlock()
		if exited {
			return
		}

		if s.cmd.Process != nil {
			_ = s.cmd.Process.Kill()
		}
		s.reap()
	})
	return nil
}

// reap waits for the process once and logs abnormal exits
func (s *Stream) reap() {
	s.mu.Lock()
	if s.exited {
		s.mu.Unlock()
		return
	}
	s.exited = true
	s.mu.Unlock()

	err := s.cmd.Wait()
	fields := []zap.Field{
		zap.Int64("bytes", s.written),
		zap.Duration("elapsed", time.Since(s.started)),
	}

	if err == nil {
		s.logger.Info("Stream complete", fields...)
		return
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		fields = append(fields,
			zap.Int("exit_code", exitErr.ExitCode()),
			zap.String("stderr", s.stderr.lastErrorLine()))
	}
	s.logger.Warn("Stream process ended abnormally", append(fields, zap.Error(err))...)
}
