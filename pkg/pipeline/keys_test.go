package pipeline

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestProcessedKey(t *testing.T) {
	tests := []struct {
		source, ext, want string
	}{
		{"shots/a.png", "jpg", "shots/a.processed.jpg"},
		{"a.png", "png", "a.processed.png"},
		{"deep/dir/shot.v2.jpeg", "jpg", "deep/dir/shot.v2.processed.jpg"},
		{"noext", "jpg", "noext.processed.jpg"},
		{"dir/.hidden", "png", "dir/.hidden.processed.png"},
	}
	for _, tt := range tests {
		t.Run(tt.source, func(t *testing.T) {
			assert.Equal(t, tt.want, ProcessedKey(tt.source, tt.ext))
		})
	}
}

func TestPointID(t *testing.T) {
	a := PointID("shots/a.processed.jpg", "shots/a.png")
	assert.Equal(t, a, PointID("shots/a.processed.jpg", "other.png"), "processed key decides")
	assert.Equal(t, uuid.NewSHA1(uuid.NameSpaceURL, []byte("shots/a.processed.jpg")).String(), a)

	assert.Equal(t, PointID("", "shots/a.png"), PointID("", "shots/a.png"))
	assert.NotEqual(t, a, PointID("", "shots/a.png"))

	random := PointID("", "")
	_, err := uuid.Parse(random)
	assert.NoError(t, err)
	assert.NotEqual(t, random, PointID("", ""))
}

func TestPrefetchWindow(t *testing.T) {
	assert.Equal(t, 10, PrefetchWindow(5, 2))
	assert.Equal(t, 8, PrefetchWindow(5, 1.5))
	assert.Equal(t, 2, PrefetchWindow(1, 1.01))
	assert.Equal(t, 3, PrefetchWindow(3, 0.5))
}

func TestCDNURL(t *testing.T) {
	assert.Equal(t,
		"https://cdn.example.com/shots/my%20shot%3F.png",
		cdnURL("https://cdn.example.com/{key}", "shots/my shot?.png"))
	assert.Equal(t, "https://cdn.example.com/static", cdnURL("https://cdn.example.com/static", "a.png"))
}

func TestTitle(t *testing.T) {
	assert.Equal(t, "a.png", Title("shots/2024/a.png"))
	assert.Equal(t, "a.png", Title("a.png"))
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, testConfig().Validate())

	err := DefaultConfig().Validate()
	assert.ErrorContains(t, err, "missing MINIO_PROCESSED_BUCKET; missing MINIO_USER_BUCKET")

	cfg := testConfig()
	cfg.PrefetchMultiplier = 1
	assert.ErrorContains(t, cfg.Validate(), "SIMILAR_PREFETCH_MULTIPLIER")

	cfg = testConfig()
	cfg.DefaultTopK = 0
	assert.ErrorContains(t, cfg.Validate(), "SIMILAR_DEFAULT_TOP_K")

	cfg = testConfig()
	cfg.DedupThreshold = 1.5
	assert.ErrorContains(t, cfg.Validate(), "SIMILAR_DEDUP_THRESHOLD")

	cfg = testConfig()
	cfg.PreprocessConcurrency = -1
	assert.ErrorContains(t, cfg.Validate(), "PREPROCESS_CONCURRENCY")
}
