package handlers

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yourusername/ytrelay-go/internal/app"
	"github.com/yourusername/ytrelay-go/internal/domain"
	"github.com/yourusername/ytrelay-go/pkg/logger"
)

const copyBufferSize = 64 * 1024

// FileHandler serves finished background downloads once
type FileHandler struct {
	files *app.FileServer
	logs  *logger.LoggerAdapter
}

// NewFileHandler creates a new file handler
func NewFileHandler(files *app.FileServer, logs *logger.LoggerAdapter) *FileHandler {
	return &FileHandler{files: files, logs: logs}
}

// Serve handles GET /api/v1/download/file/:filename. The file is deleted only
// after the whole body was written.
func (h *FileHandler) Serve(c *gin.Context) {
	name := c.Param("filename")

	file, err := h.files.Open(name)
	switch {
	case errors.Is(err, domain.ErrInvalidFilename):
		respondError(c, http.StatusBadRequest, "invalid filename")
		return
	case errors.Is(err, domain.ErrFileNotFound):
		respondError(c, http.StatusNotFound, "file not found")
		return
	case err != nil:
		h.logs.LogError(logger.CategoryStream, "Failed to open served file",
			zap.String("file", name),
			zap.Error(err))
		respondError(c, http.StatusInternalServerError, "failed to open file")
		return
	}

	contentType := mime.TypeByExtension(filepath.Ext(name))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Header("Content-Type", contentType)
	c.Header("Content-Length", strconv.FormatInt(file.Size, 10))
	c.Header("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	c.Status(http.StatusOK)

	written, err := io.CopyBuffer(c.Writer, file, make([]byte, copyBufferSize))
	if err != nil {
		file.Abort()
		h.logs.Stream().Warn("file_transfer_aborted",
			zap.String("file", name),
			zap.Int64("bytes", written),
			zap.Error(err))
		return
	}
	c.Writer.Flush()

	file.Complete()
	h.logs.Stream().Info("file_served",
		zap.String("file", name),
		zap.Int64("bytes", written))
}
