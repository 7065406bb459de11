package pipeline

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/Aleph-Alpha/screensim/pkg/dedup"
	"github.com/Aleph-Alpha/screensim/pkg/embedding"
	"github.com/Aleph-Alpha/screensim/pkg/imageproc"
	"github.com/Aleph-Alpha/screensim/pkg/qdrant"
)

// ObjectReference addresses one object in object storage.
type ObjectReference struct {
	Bucket string `json:"bucket"`
	Key    string `json:"object_key"`
}

// IngestResult describes an indexed screenshot.
type IngestResult struct {
	Processed          ObjectReference
	EmbeddingModel     string
	EmbeddingDimension int
	PointID            string
}

// SimilarRequest asks for screenshots similar to Source. A nil TopK means
// the configured default.
type SimilarRequest struct {
	Source ObjectReference
	TopK   *int
}

// SimilarityResult is one match, ordered by descending Score.
type SimilarityResult struct {
	Score  float64          `json:"score"`
	Title  *string          `json:"title,omitempty"`
	URL    *string          `json:"url,omitempty"`
	Object *ObjectReference `json:"object,omitempty"`
}

// ObjectStore is the object storage surface the pipelines use.
// *minio.Minio satisfies it.
type ObjectStore interface {
	EnsureBucket(ctx context.Context, bucket string) error
	Fetch(ctx context.Context, bucket, key string) ([]byte, error)
	VerifyExists(ctx context.Context, bucket, key string) error
	Upload(ctx context.Context, bucket, key string, data []byte, contentType string) error
	PresignGet(ctx context.Context, bucket, key string) (string, error)
}

// Embedder returns the embedding of a stored image. *embedding.Client
// satisfies it.
type Embedder interface {
	Embed(ctx context.Context, bucket, key string) (embedding.Embedding, error)
}

// VectorIndex stores and searches points. *qdrant.QdrantClient satisfies it.
type VectorIndex interface {
	Upsert(ctx context.Context, point qdrant.Point) error
	Search(ctx context.Context, req qdrant.SearchRequest) ([]dedup.Candidate, error)
}

// Preprocessor normalizes raw image bytes. *imageproc.Preprocessor
// satisfies it.
type Preprocessor interface {
	Process(data []byte) (imageproc.ProcessedImage, error)
}

// Recorder receives pipeline measurements. *metrics.Metrics satisfies it.
type Recorder interface {
	ObserveRequest(flow, outcome string)
	ObserveStage(flow, stage string, d time.Duration)
	AddDedupDropped(n int)
}

// Tracer opens spans around pipeline stages. *tracer.Tracer satisfies it.
type Tracer interface {
	StartSpan(ctx context.Context, name string) (context.Context, trace.Span)
	RecordErrorOnSpan(span trace.Span, err error)
}

type Logger interface {
	InfoWithContext(ctx context.Context, msg string, err error, fields ...map[string]interface{})
	WarnWithContext(ctx context.Context, msg string, err error, fields ...map[string]interface{})
}
