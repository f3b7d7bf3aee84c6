package app

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"go.uber.org/zap"

	"github.com/yourusername/ytrelay-go/internal/domain"
)

const unknownValue = "Unknown"

// botCheckHint replaces the engine's sign-in challenge, which is not
// actionable for API clients as worded.
const botCheckHint = "the media host asked to confirm this is not a bot; configure ytdlp.cookie_file with cookies from a signed-in browser session and retry"

var botCheckMarkers = []string{"Sign in to confirm", "not a bot"}

// MediaService resolves metadata for the info endpoint
type MediaService struct {
	extractor domain.MediaExtractor
	audioExt  string
	logger    *zap.Logger
}

// NewMediaService creates a media service
func NewMediaService(extractor domain.MediaExtractor, audioExt string, logger *zap.Logger) *MediaService {
	return &MediaService{
		extractor: extractor,
		audioExt:  audioExt,
		logger:    logger,
	}
}

// Info fetches fresh metadata and the normalized quality list. Every failure
// is returned wrapped in domain.ErrExtraction.
func (s *MediaService) Info(ctx context.Context, url string) (*domain.MediaInfo, error) {
	raw, err := s.extractor.ExtractInfo(ctx, url)
	if err != nil {
		s.logger.Warn("Metadata extraction failed", zap.String("url", url), zap.Error(err))
		if errors.Is(err, domain.ErrExtraction) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrExtraction, err)
	}

	qualities, audioSize := NormalizeQualities(raw.Formats, s.audioExt)

	info := &domain.MediaInfo{
		Title:         orDefault(raw.Title, unknownValue),
		Thumbnail:     raw.Thumbnail,
		Duration:      int64(math.Round(raw.Duration)),
		Uploader:      orDefault(raw.Uploader, unknownValue),
		ViewCount:     raw.ViewCount,
		WebpageURL:    orDefault(raw.WebpageURL, url),
		Qualities:     qualities,
		AudioFilesize: audioSize,
	}

	s.logger.Debug("Metadata resolved",
		zap.String("url", url),
		zap.String("title", info.Title),
		zap.Int("qualities", len(info.Qualities)))

	return info, nil
}

// FriendlyError returns the client-facing message for err, replacing the
// engine's bot-check wording with an actionable hint.
func FriendlyError(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	for _, marker := range botCheckMarkers {
		if strings.Contains(msg, marker) {
			return botCheckHint
		}
	}
	return msg
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
