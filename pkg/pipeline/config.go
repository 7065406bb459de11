package pipeline

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/Aleph-Alpha/screensim/pkg/dedup"
)

const (
	DefaultTopK               = 5
	DefaultPrefetchMultiplier = 2.0
)

// Config holds the bucket layout and query tuning shared by Ingestor and
// Searcher.
type Config struct {
	// UploadBucket receives user uploads; queries must reference it.
	UploadBucket string `yaml:"upload_bucket" envconfig:"MINIO_USER_BUCKET"`

	// ProcessedBucket stores the normalized copies of ingested screenshots.
	ProcessedBucket string `yaml:"processed_bucket" envconfig:"MINIO_PROCESSED_BUCKET"`

	// QueryBucket stores the transient normalized copies made by queries.
	QueryBucket string `yaml:"query_bucket" envconfig:"MINIO_QUERY_BUCKET"`

	DefaultTopK        int     `yaml:"default_top_k" envconfig:"SIMILAR_DEFAULT_TOP_K"`
	PrefetchMultiplier float64 `yaml:"prefetch_multiplier" envconfig:"SIMILAR_PREFETCH_MULTIPLIER"`
	DedupThreshold     float64 `yaml:"dedup_threshold" envconfig:"SIMILAR_DEDUP_THRESHOLD"`

	// CDNURLTemplate, e.g. "https://cdn.example.com/{key}", replaces
	// presigned URLs in query results when set.
	CDNURLTemplate string `yaml:"cdn_url_template" envconfig:"CDN_URL_TEMPLATE"`

	// PreprocessConcurrency bounds concurrent image decodes. Zero means
	// GOMAXPROCS.
	PreprocessConcurrency int `yaml:"preprocess_concurrency" envconfig:"PREPROCESS_CONCURRENCY"`
}

func DefaultConfig() Config {
	return Config{
		QueryBucket:        "screenshots-query",
		DefaultTopK:        DefaultTopK,
		PrefetchMultiplier: DefaultPrefetchMultiplier,
		DedupThreshold:     dedup.DefaultThreshold,
	}
}

// Validate reports every missing bucket and every out-of-range tuning value
// in one error.
func (c Config) Validate() error {
	var problems []string
	for key, value := range map[string]string{
		"MINIO_USER_BUCKET":      c.UploadBucket,
		"MINIO_PROCESSED_BUCKET": c.ProcessedBucket,
		"MINIO_QUERY_BUCKET":     c.QueryBucket,
	} {
		if value == "" {
			problems = append(problems, "missing "+key)
		}
	}
	sort.Strings(problems)

	if c.DefaultTopK <= 0 {
		problems = append(problems, fmt.Sprintf("SIMILAR_DEFAULT_TOP_K must be positive, got %d", c.DefaultTopK))
	}
	if c.PrefetchMultiplier <= 1 || math.IsNaN(c.PrefetchMultiplier) || math.IsInf(c.PrefetchMultiplier, 0) {
		problems = append(problems, fmt.Sprintf("SIMILAR_PREFETCH_MULTIPLIER must be greater than 1, got %v", c.PrefetchMultiplier))
	}
	if !(c.DedupThreshold > 0 && c.DedupThreshold <= 1) {
		problems = append(problems, fmt.Sprintf("SIMILAR_DEDUP_THRESHOLD must be in (0, 1], got %v", c.DedupThreshold))
	}
	if c.PreprocessConcurrency < 0 {
		problems = append(problems, "PREPROCESS_CONCURRENCY must not be negative")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid pipeline configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}
