package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yourusername/ytrelay-go/internal/app"
	"github.com/yourusername/ytrelay-go/internal/domain"
	"github.com/yourusername/ytrelay-go/internal/infrastructure"
	"github.com/yourusername/ytrelay-go/pkg/logger"
)

// DownloadHandler handles the /api/v1/download endpoints
type DownloadHandler struct {
	media        *app.MediaService
	orchestrator *app.TaskOrchestrator
	relay        *infrastructure.StreamRelay
	audioExt     string
	logs         *logger.LoggerAdapter
}

// NewDownloadHandler creates a new download handler
func NewDownloadHandler(
	media *app.MediaService,
	orchestrator *app.TaskOrchestrator,
	relay *infrastructure.StreamRelay,
	audioExt string,
	logs *logger.LoggerAdapter,
) *DownloadHandler {
	return &DownloadHandler{
		media:        media,
		orchestrator: orchestrator,
		relay:        relay,
		audioExt:     audioExt,
		logs:         logs,
	}
}

// InfoRequest represents a metadata lookup
type InfoRequest struct {
	URL string `json:"url" binding:"required"`
}

// StartRequest represents a background download request
type StartRequest struct {
	URL     string `json:"url" binding:"required"`
	Quality *int   `json:"quality" binding:"omitempty,gt=0"`
}

// StartResponse acknowledges a scheduled task
type StartResponse struct {
	TaskID  string `json:"task_id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// StreamRequest represents a direct relay request
type StreamRequest struct {
	URL     string `json:"url" binding:"required"`
	Mode    string `json:"mode" binding:"omitempty,oneof=video audio"`
	Quality *int   `json:"quality" binding:"omitempty,gt=0"`
}

// Info handles POST /api/v1/download/info
func (h *DownloadHandler) Info(c *gin.Context) {
	var req InfoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	info, err := h.media.Info(c.Request.Context(), req.URL)
	if err != nil {
		respondError(c, http.StatusBadRequest, "failed to fetch media: "+app.FriendlyError(err))
		return
	}

	c.JSON(http.StatusOK, info)
}

// Start handles POST /api/v1/download/start
func (h *DownloadHandler) Start(c *gin.Context) {
	var req StartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	task, err := h.orchestrator.StartDownload(c.Request.Context(), req.URL, req.Quality)
	if err != nil {
		h.logs.LogError(logger.CategoryTask, "Failed to start download",
			zap.String("url", req.URL),
			zap.Error(err))
		c.Error(err)
		respondError(c, http.StatusInternalServerError, err.Error())
		return
	}

	c.JSON(http.StatusOK, StartResponse{
		TaskID:  task.ID,
		Status:  string(task.Status),
		Message: "Download started; subscribe to /ws/" + task.ID + " for progress",
	})
}

// Stream handles POST /api/v1/download/stream. The body is the engine's
// output as it is produced; failures after the first byte only end the body.
func (h *DownloadHandler) Stream(c *gin.Context) {
	var req StreamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	mode := domain.StreamMode(req.Mode)
	if mode == "" {
		mode = domain.StreamVideo
	}
	format, contentType, filename := infrastructure.StreamFormat(mode, req.Quality, h.audioExt)

	log := h.logs.Stream().With(
		zap.String("url", req.URL),
		zap.String("mode", string(mode)),
		zap.String("format", format),
		zap.String("client_ip", c.ClientIP()))

	stream, err := h.relay.Open(c.Request.Context(), req.URL, format)
	if err != nil {
		h.logs.LogError(logger.CategoryStream, "Failed to open stream",
			zap.String("url", req.URL),
			zap.Error(err))
		status := http.StatusBadGateway
		if errors.Is(err, domain.ErrNotReady) {
			status = http.StatusInternalServerError
		}
		respondError(c, status, err.Error())
		return
	}
	defer stream.Close()

	log.Info("stream_started")

	c.Header("Content-Type", contentType)
	c.Header("Content-Disposition", "attachment; filename="+filename)
	c.Status(http.StatusOK)

	written, err := stream.WriteTo(c.Writer)
	if err != nil {
		log.Warn("stream_aborted", zap.Int64("bytes", written), zap.Error(err))
		return
	}
	log.Info("stream_finished", zap.Int64("bytes", written))
}

func respondError(c *gin.Context, status int, detail string) {
	c.AbortWithStatusJSON(status, gin.H{"detail": strings.TrimSpace(detail)})
}
