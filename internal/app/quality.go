package app

import (
	"math"
	"sort"

	"github.com/yourusername/ytrelay-go/internal/domain"
)

// codecNone is the codec tag yt-dlp uses for "track not present"
const codecNone = "none"

// NormalizeQualities turns raw variants into a deduplicated, height-descending
// list of video qualities plus a best-effort audio size estimate.
func NormalizeQualities(variants []domain.Variant, audioExt string) ([]domain.Quality, int64) {
	byHeight := make(map[int]domain.Quality)

	for _, v := range variants {
		height, ok := videoHeight(v)
		if !ok {
			continue
		}

		q := domain.Quality{Height: height, Filesize: v.Size(), FormatID: v.FormatID}
		existing, seen := byHeight[height]
		if !seen || (existing.Filesize == 0 && q.Filesize > 0) {
			byHeight[height] = q
		}
	}

	qualities := make([]domain.Quality, 0, len(byHeight))
	for _, q := range byHeight {
		qualities = append(qualities, q)
	}
	sort.Slice(qualities, func(i, j int) bool {
		return qualities[i].Height > qualities[j].Height
	})

	return qualities, estimateAudioSize(variants, audioExt)
}

// videoHeight returns the variant's height when it plausibly carries video.
// A missing vcodec is tolerated; only an explicit "none" excludes.
func videoHeight(v domain.Variant) (int, bool) {
	if v.VCodec != nil && *v.VCodec == codecNone {
		return 0, false
	}
	if v.Height == nil {
		return 0, false
	}
	h := *v.Height
	if h <= 0 || h != math.Trunc(h) || h > math.MaxInt32 {
		return 0, false
	}
	return int(h), true
}

func isAudioOnly(v domain.Variant) bool {
	if v.VCodec == nil || *v.VCodec != codecNone {
		return false
	}
	return v.ACodec == nil || *v.ACodec != codecNone
}

// estimateAudioSize prefers the largest sized audio-only variant in the target
// container, falling back to the first sized audio-only variant.
func estimateAudioSize(variants []domain.Variant, audioExt string) int64 {
	var preferred, fallback int64

	for _, v := range variants {
		if !isAudioOnly(v) {
			continue
		}
		size := v.Size()
		if size <= 0 {
			continue
		}
		if v.Ext == audioExt && size > preferred {
			preferred = size
		}
		if fallback == 0 {
			fallback = size
		}
	}

	if preferred > 0 {
		return preferred
	}
	return fallback
}
