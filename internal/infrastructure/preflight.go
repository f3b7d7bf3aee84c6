package infrastructure

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/yourusername/ytrelay-go/internal/domain"
)

// Preflight implements domain.ReadinessChecker by resolving the yt-dlp binary
// and its helper tools on PATH.
type Preflight struct {
	binary   string
	tools    []string
	lookPath func(string) (string, error)
}

// NewPreflight creates a checker for config.Binary and config.RequiredTools
func NewPreflight(config *domain.YTDLPConfig) *Preflight {
	return &Preflight{
		binary:   config.Binary,
		tools:    config.RequiredTools,
		lookPath: exec.LookPath,
	}
}

// CheckReady reports every missing executable in a single ErrNotReady
func (p *Preflight) CheckReady(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var missing []string
	for _, name := range append([]string{p.binary}, p.tools...) {
		if name == "" {
			continue
		}
		if _, err := p.lookPath(name); err != nil {
			missing = append(missing, name)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", domain.ErrNotReady, strings.Join(missing, ", "))
	}
	return nil
}
