package infrastructure

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/yourusername/ytrelay-go/internal/domain"
)

// stderrTailSize bounds how much collaborator stderr is kept for errors
const stderrTailSize = 64 * 1024

// waitDelay bounds how long Wait blocks on stdio held open by grandchildren
// (ffmpeg) after yt-dlp itself has exited.
const waitDelay = 2 * time.Second

// CommandFactory builds the process for a collaborator invocation
type CommandFactory func(ctx context.Context, name string, args ...string) *exec.Cmd

// YTDLPClient implements domain.MediaExtractor on top of the yt-dlp binary
type YTDLPClient struct {
	config  *domain.YTDLPConfig
	logger  *zap.Logger
	command CommandFactory
}

// NewYTDLPClient creates a client that runs config.Binary
func NewYTDLPClient(config *domain.YTDLPConfig, logger *zap.Logger) *YTDLPClient {
	return &YTDLPClient{
		config:  config,
		logger:  logger,
		command: exec.CommandContext,
	}
}

// WithCommandFactory replaces process creation, used by tests
func (c *YTDLPClient) WithCommandFactory(factory CommandFactory) *YTDLPClient {
	c.command = factory
	return c
}

// commonArgs are shared by every invocation
func commonArgs(config *domain.YTDLPConfig) []string {
	var args []string
	if config.CookieFile != "" && fileExists(config.CookieFile) {
		args = append(args, "--cookies", config.CookieFile)
	}
	if config.Impersonate != "" {
		args = append(args, "--impersonate", config.Impersonate)
	}
	return append(args, config.ExtraArgs...)
}

func (c *YTDLPClient) infoArgs(url string) []string {
	args := []string{"-J", "--no-warnings", "--no-playlist"}
	args = append(args, commonArgs(c.config)...)
	return append(args, "--", url)
}

func (c *YTDLPClient) downloadArgs(req domain.DownloadRequest) []string {
	args := []string{
		"--newline",
		"--progress",
		"--no-simulate",
		"--no-playlist",
		"--progress-template", progressTemplate,
		"--print", "after_move:filepath",
		"-f", req.Format,
		"-o", req.OutputTemplate,
	}
	args = append(args, commonArgs(c.config)...)
	return append(args, "--", req.URL)
}

// ExtractInfo runs yt-dlp in JSON dump mode
func (c *YTDLPClient) ExtractInfo(ctx context.Context, url string) (*domain.RawMediaInfo, error) {
	if c.config.MetadataTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.MetadataTimeout)
		defer cancel()
	}

	args := c.infoArgs(url)
	c.logger.Debug("Extracting metadata", zap.String("cmd", CommandLine(c.config.Binary, args...)))

	var stdout bytes.Buffer
	stderr := newTailBuffer(stderrTailSize)

	cmd := c.command(ctx, c.config.Binary, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = stderr
	cmd.WaitDelay = waitDelay

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrExtraction, ctxErr)
		}
		return nil, c.processError(err, stderr)
	}

	var info domain.RawMediaInfo
	if err := json.Unmarshal(stdout.Bytes(), &info); err != nil {
		return nil, fmt.Errorf("%w: invalid metadata output: %v", domain.ErrExtraction, err)
	}

	return &info, nil
}

// Download runs yt-dlp to completion, reporting templated progress lines to
// onProgress, and returns the final path printed after any merge.
func (c *YTDLPClient) Download(ctx context.Context, req domain.DownloadRequest, onProgress domain.ProgressFunc) (string, error) {
	if err := os.MkdirAll(filepath.Dir(req.OutputTemplate), 0755); err != nil {
		return "", fmt.Errorf("failed to create download directory: %w", err)
	}

	if onProgress == nil {
		onProgress = func(domain.RawProgress) {}
	}

	args := c.downloadArgs(req)
	c.logger.Info("Starting download", zap.String("cmd", CommandLine(c.config.Binary, args...)))

	stderr := newTailBuffer(stderrTailSize)
	cmd := c.command(ctx, c.config.Binary, args...)
	cmd.Stderr = stderr
	cmd.WaitDelay = waitDelay

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return "", fmt.Errorf("yt-dlp stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", fmt.Errorf("%w: failed to start %s: %v", domain.ErrNotReady, c.config.Binary, err)
	}

	var finalPath string
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if p, ok := parseProgressLine(line); ok {
			onProgress(p)
			continue
		}
		if path := strings.TrimSpace(line); path != "" {
			finalPath = path
		}
	}
	scanErr := scanner.Err()
	if scanErr != nil {
		_, _ = io.Copy(io.Discard, stdout)
	}

	waitErr := cmd.Wait()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return "", ctxErr
	}
	if waitErr != nil {
		return "", c.processError(waitErr, stderr)
	}
	if scanErr != nil {
		return "", fmt.Errorf("reading yt-dlp output: %w", scanErr)
	}
	if finalPath == "" {
		return "", fmt.Errorf("%w: yt-dlp reported no output file", domain.ErrExtraction)
	}

	return finalPath, nil
}

func (c *YTDLPClient) processError(err error, stderr *tailBuffer) error {
	msg := stderr.lastErrorLine()

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		c.logger.Debug("yt-dlp exited with error",
			zap.Int("exit_code", exitErr.ExitCode()),
			zap.String("stderr", stderr.String()))
		if msg == "" {
			msg = exitErr.Error()
		}
		return fmt.Errorf("%w: %s", domain.ErrExtraction, msg)
	}

	if errors.Is(err, exec.ErrNotFound) || errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %v", domain.ErrNotReady, err)
	}

	if msg == "" {
		msg = err.Error()
	}
	return fmt.Errorf("%w: %s", domain.ErrExtraction, msg)
}

// fileExists checks if a file exists
func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
