package domain

import "context"

// Quality is one selectable rendition
type Quality struct {
	Height   int    `json:"height"`
	Filesize int64  `json:"filesize"` // 0 = unknown
	FormatID string `json:"format_id"`
}

// MediaInfo is the metadata returned to clients; it is rebuilt on every request
type MediaInfo struct {
	Title         string    `json:"title"`
	Thumbnail     string    `json:"thumbnail"`
	Duration      int64     `json:"duration"`
	Uploader      string    `json:"uploader"`
	ViewCount     int64     `json:"view_count"`
	WebpageURL    string    `json:"webpage_url"`
	Qualities     []Quality `json:"qualities"`
	AudioFilesize int64     `json:"audio_filesize"`
}

// Variant is a raw format record as reported by yt-dlp. Nil fields were absent.
type Variant struct {
	FormatID       string   `json:"format_id"`
	Ext            string   `json:"ext"`
	Height         *float64 `json:"height"`
	Filesize       *float64 `json:"filesize"`
	FilesizeApprox *float64 `json:"filesize_approx"`
	VCodec         *string  `json:"vcodec"`
	ACodec         *string  `json:"acodec"`
}

// Size returns the exact size, else the approximation, else 0
func (v Variant) Size() int64 {
	if v.Filesize != nil && *v.Filesize > 0 {
		return int64(*v.Filesize)
	}
	if v.FilesizeApprox != nil && *v.FilesizeApprox > 0 {
		return int64(*v.FilesizeApprox)
	}
	return 0
}

// RawMediaInfo is the subset of yt-dlp's info dict the service consumes
type RawMediaInfo struct {
	Title      string    `json:"title"`
	Thumbnail  string    `json:"thumbnail"`
	Duration   float64   `json:"duration"`
	Uploader   string    `json:"uploader"`
	ViewCount  int64     `json:"view_count"`
	WebpageURL string    `json:"webpage_url"`
	Formats    []Variant `json:"formats"`
}

// StreamMode selects what the relay sends
type StreamMode string

const (
	StreamVideo StreamMode = "video"
	StreamAudio StreamMode = "audio"
)

// DownloadRequest describes one collaborator download
type DownloadRequest struct {
	URL            string
	Format         string
	OutputTemplate string
}

// MediaExtractor is the external extraction/download engine
type MediaExtractor interface {
	// ExtractInfo resolves metadata and the available variants
	ExtractInfo(ctx context.Context, url string) (*RawMediaInfo, error)

	// Download blocks until the file (including any merge) is complete and
	// returns its final path. onProgress is invoked zero or more times on the
	// calling goroutine.
	Download(ctx context.Context, req DownloadRequest, onProgress ProgressFunc) (string, error)
}

// ReadinessChecker verifies the engine's runtime prerequisites
type ReadinessChecker interface {
	CheckReady(ctx context.Context) error
}
