package infrastructure

import (
	"encoding/json"
	"strings"

	"github.com/yourusername/ytrelay-go/internal/domain"
)

// progressPrefix marks the lines produced by progressTemplate
const progressPrefix = "[progress]"

// progressTemplate makes yt-dlp print the progress hook dict as one JSON
// object per line on stdout.
const progressTemplate = "download:" + progressPrefix + "%(progress)j"

// parseProgressLine decodes a templated progress line. ok is false for any
// other output, including the final file path.
func parseProgressLine(line string) (p domain.RawProgress, ok bool) {
	line = strings.TrimSpace(line)
	payload, found := strings.CutPrefix(line, progressPrefix)
	if !found {
		return p, false
	}

	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		return p, false
	}
	if p.Status == "" {
		return p, false
	}

	return p, true
}
