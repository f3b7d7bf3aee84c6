package app

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/ytrelay-go/internal/domain"
)

func f64(v float64) *float64 { return &v }
func str(v string) *string { return &v }

func TestNormalizeQualities_DedupAndExclude(t *testing.T) {
	variants := []domain.Variant{
		{FormatID: "a", Height: f64(1080), Filesize: f64(0), VCodec: str("avc1")},
		{FormatID: "b", Height: f64(1080), Filesize: f64(500000), VCodec: str("avc1")},
		{FormatID: "c", Height: f64(360), Filesize: f64(0), VCodec: str("none")},
	}

	qualities, _ := NormalizeQualities(variants, "m4a")

	require.Len(t, qualities, 1)
	assert.Equal(t, domain.Quality{Height: 1080, Filesize: 500000, FormatID: "b"}, qualities[0])
}

func TestNormalizeQualities_SizedWinsRegardlessOfOrder(t *testing.T) {
	variants := []domain.Variant{
		{FormatID: "sized", Height: f64(720), Filesize: f64(1000), VCodec: str("vp9")},
		{FormatID: "unsized", Height: f64(720), VCodec: str("avc1")},
	}

	qualities, _ := NormalizeQualities(variants, "m4a")

	require.Len(t, qualities, 1)
	assert.Equal(t, "sized", qualities[0].FormatID)
}

func TestNormalizeQualities_InvalidHeights(t *testing.T) {
	variants := []domain.Variant{
		{FormatID: "zero", Height: f64(0), VCodec: str("avc1")},
		{FormatID: "neg", Height: f64(-1), VCodec: str("avc1")},
		{FormatID: "frac", Height: f64(720.5), VCodec: str("avc1")},
		{FormatID: "nil", VCodec: str("avc1")},
		{FormatID: "ok", Height: f64(480), VCodec: str("avc1")},
	}

	qualities, _ := NormalizeQualities(variants, "m4a")

	require.Len(t, qualities, 1)
	assert.Equal(t, 480, qualities[0].Height)
}

func TestNormalizeQualities_MissingVCodecIncluded(t *testing.T) {
	variants := []domain.Variant{
		{FormatID: "18", Height: f64(360)},
	}

	qualities, _ := NormalizeQualities(variants, "m4a")

	require.Len(t, qualities, 1)
	assert.Equal(t, 360, qualities[0].Height)
}

func TestNormalizeQualities_FilesizeApprox(t *testing.T) {
	variants := []domain.Variant{
		{FormatID: "22", Height: f64(720), FilesizeApprox: f64(4242), VCodec: str("avc1")},
	}

	qualities, _ := NormalizeQualities(variants, "m4a")

	require.Len(t, qualities, 1)
	assert.Equal(t, int64(4242), qualities[0].Filesize)
}

func TestNormalizeQualities_Empty(t *testing.T) {
	qualities, audio := NormalizeQualities(nil, "m4a")

	assert.NotNil(t, qualities)
	assert.Empty(t, qualities)
	assert.Equal(t, int64(0), audio)
}

func TestNormalizeQualities_SortedStrictlyDescending(t *testing.T) {
	heights := []float64{144, 240, 360, 480, 720, 1080, 1440, 2160}
	codecs := []string{"avc1", "vp9", "none", "av01"}
	rng := rand.New(rand.NewSource(42))

	for round := 0; round < 200; round++ {
		var variants []domain.Variant
		n := rng.Intn(30)
		for i := 0; i < n; i++ {
			v := domain.Variant{
				Height: f64(heights[rng.Intn(len(heights))]),
				VCodec: str(codecs[rng.Intn(len(codecs))]),
			}
			if rng.Intn(2) == 0 {
				v.Filesize = f64(float64(rng.Intn(1000)))
			}
			variants = append(variants, v)
		}

		qualities, _ := NormalizeQualities(variants, "m4a")
		for i := 1; i < len(qualities); i++ {
			assert.Greater(t, qualities[i-1].Height, qualities[i].Height, "round %d", round)
		}
	}
}

func TestEstimateAudioSize_PrefersTargetContainer(t *testing.T) {
	variants := []domain.Variant{
		{FormatID: "251", Ext: "webm", VCodec: str("none"), ACodec: str("opus"), Filesize: f64(9000)},
		{FormatID: "139", Ext: "m4a", VCodec: str("none"), ACodec: str("mp4a.40.5"), Filesize: f64(1000)},
		{FormatID: "140", Ext: "m4a", VCodec: str("none"), ACodec: str("mp4a.40.2"), Filesize: f64(3000)},
		{FormatID: "137", Ext: "mp4", Height: f64(1080), VCodec: str("avc1"), ACodec: str("none"), Filesize: f64(99999)},
	}

	_, audio := NormalizeQualities(variants, "m4a")

	assert.Equal(t, int64(3000), audio)
}

func TestEstimateAudioSize_FallsBackToFirstSized(t *testing.T) {
	variants := []domain.Variant{
		{FormatID: "250", Ext: "webm", VCodec: str("none"), ACodec: str("opus")},
		{FormatID: "251", Ext: "webm", VCodec: str("none"), ACodec: str("opus"), Filesize: f64(7000)},
		{FormatID: "249", Ext: "webm", VCodec: str("none"), ACodec: str("opus"), Filesize: f64(9000)},
	}

	_, audio := NormalizeQualities(variants, "m4a")

	assert.Equal(t, int64(7000), audio)
}

func TestEstimateAudioSize_IgnoresStoryboards(t *testing.T) {
	variants := []domain.Variant{
		{FormatID: "sb0", Ext: "mhtml", VCodec: str("none"), ACodec: str("none"), Filesize: f64(100)},
	}

	_, audio := NormalizeQualities(variants, "m4a")

	assert.Equal(t, int64(0), audio)
}
