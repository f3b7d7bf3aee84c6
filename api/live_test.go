//go:build integration

package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yourusername/ytrelay-go/internal/app"
	"github.com/yourusername/ytrelay-go/internal/domain"
	"github.com/yourusername/ytrelay-go/internal/infrastructure"
	"github.com/yourusername/ytrelay-go/pkg/logger"
)

// Runs against the real yt-dlp. Set YTRELAY_TEST_URL to a short public video.
func newLiveServer(t *testing.T) (*httptest.Server, string) {
	t.Helper()

	mediaURL := os.Getenv("YTRELAY_TEST_URL")
	if mediaURL == "" {
		t.Skip("YTRELAY_TEST_URL not set")
	}

	cfg := domain.DefaultConfig()
	cfg.Download.Dir = t.TempDir()
	cfg.Logging.LogsDir = t.TempDir()

	preflight := infrastructure.NewPreflight(&cfg.YTDLP)
	if err := preflight.CheckReady(context.Background()); err != nil {
		t.Skipf("engine not installed: %v", err)
	}

	log := zap.NewNop()
	logs := logger.NewSingleLoggerAdapter(log)
	ytdlp := infrastructure.NewYTDLPClient(&cfg.YTDLP, log)
	hub := app.NewProgressHub(log)
	orchestrator := app.NewTaskOrchestrator(context.Background(), ytdlp, preflight, hub, nil, cfg, logs)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = orchestrator.Shutdown(ctx)
	})

	router := SetupRouter(Services{
		Media:        app.NewMediaService(ytdlp, cfg.YTDLP.AudioExt, log),
		Orchestrator: orchestrator,
		Hub:          hub,
		Relay:        infrastructure.NewStreamRelay(&cfg.YTDLP, &cfg.Stream, log),
		Files:        app.NewFileServer(cfg.Download.Dir, log),
		Checker:      preflight,
		AudioExt:     cfg.YTDLP.AudioExt,
		LogsDir:      cfg.Logging.LogsDir,
	}, logs)

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return server, mediaURL
}

func TestLive_InfoThenStreamLowestQualityAndAudio(t *testing.T) {
	server, mediaURL := newLiveServer(t)

	resp, err := http.Post(server.URL+"/api/v1/download/info", "application/json",
		strings.NewReader(`{"url":"`+mediaURL+`"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var info domain.MediaInfo
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&info))
	require.NotEmpty(t, info.Qualities)

	low := info.Qualities[len(info.Qualities)-1]
	for _, payload := range []string{
		`{"url":"` + mediaURL + `","mode":"video","quality":` + strconv.Itoa(low.Height) + `}`,
		`{"url":"` + mediaURL + `","mode":"audio"}`,
	} {
		resp, err := http.Post(server.URL+"/api/v1/download/stream", "application/json", strings.NewReader(payload))
		require.NoError(t, err)
		n, err := io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Positive(t, n, payload)
	}
}
