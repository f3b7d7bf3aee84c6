package infrastructure

import (
	"strings"
	"sync"
)

// flags whose value is a local secret and must not reach the logs
var redactedFlags = map[string]bool{
	"--cookies": true,
}

// CommandLine renders a command for logging. Arguments are single-quoted
// when they contain shell metacharacters; cookie paths are redacted.
// exec.Command itself never needs this quoting.
func CommandLine(binary string, args ...string) string {
	var b strings.Builder
	b.WriteString(quoteArg(binary))

	redactNext := false
	for _, arg := range args {
		b.WriteByte(' ')
		if redactNext {
			b.WriteString("<redacted>")
			redactNext = false
			continue
		}
		b.WriteString(quoteArg(arg))
		redactNext = redactedFlags[arg]
	}

	return b.String()
}

func quoteArg(s string) string {
	if s == "" {
		return "''"
	}
	if !strings.ContainsAny(s, " \t\n\r'\"$`\\!*?[](){}|;<>&~#%") {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'"'"'`) + "'"
}

// tailBuffer is an io.Writer that keeps only the last max bytes written
type tailBuffer struct {
	mu  sync.Mutex
	max int
	buf []byte
}

func newTailBuffer(max int) *tailBuffer {
	return &tailBuffer{max: max}
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.max; over > 0 {
		t.buf = append(t.buf[:0], t.buf[over:]...)
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return string(t.buf)
}

// lastErrorLine picks the most useful line from yt-dlp's stderr: the last
// "ERROR:" line, else the last non-empty line.
func (t *tailBuffer) lastErrorLine() string {
	lines := strings.Split(strings.TrimSpace(t.String()), "\n")

	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if strings.HasPrefix(line, "ERROR:") {
			return line
		}
	}
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return ""
}
