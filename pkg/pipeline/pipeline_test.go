package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aleph-Alpha/screensim/pkg/apperr"
	"github.com/Aleph-Alpha/screensim/pkg/dedup"
)

func TestIngestOpaqueScreenshot(t *testing.T) {
	h := newHarness(t, testConfig())
	h.store.put("uploads", "shots/a.png", opaquePNG(t, 800, 400))

	res, err := h.ingestor.Ingest(context.Background(), ObjectReference{Bucket: "uploads", Key: "shots/a.png"})
	require.NoError(t, err)

	assert.Equal(t, ObjectReference{Bucket: "processed", Key: "shots/a.processed.jpg"}, res.Processed)
	assert.Equal(t, "clip-test", res.EmbeddingModel)
	assert.Equal(t, 3, res.EmbeddingDimension)
	assert.Equal(t, PointID("shots/a.processed.jpg", "shots/a.png"), res.PointID)

	stored, ok := h.store.object("processed", "shots/a.processed.jpg")
	require.True(t, ok)
	assert.Equal(t, "image/jpeg", stored.contentType)
	cfg, format, err := image.DecodeConfig(bytes.NewReader(stored.data))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, 585, cfg.Width)
	assert.Equal(t, 200, cfg.Height)

	assert.Equal(t, []ObjectReference{res.Processed}, h.embedder.calls)

	point, ok := h.index.points[res.PointID]
	require.True(t, ok)
	assert.Equal(t, []float32{1, 0, 0}, point.Vector)
	assert.Equal(t, map[string]any{
		"source_bucket":    "uploads",
		"source_key":       "shots/a.png",
		"processed_bucket": "processed",
		"processed_key":    "shots/a.processed.jpg",
		"title":            "a.png",
	}, point.Payload)

	assert.Contains(t, h.store.calls, "ensure uploads")
	assert.Contains(t, h.store.calls, "ensure processed")
	assert.Equal(t, 1, h.metrics.requests["ingest/ok"])
	assert.Equal(t, []string{
		"ingest.ensure_buckets", "ingest.fetch", "ingest.preprocess",
		"ingest.upload", "ingest.embed", "ingest.upsert",
	}, h.metrics.stages)
}

func TestIngestIsIdempotent(t *testing.T) {
	h := newHarness(t, testConfig())
	h.store.put("uploads", "shots/a.png", opaquePNG(t, 100, 50))

	src := ObjectReference{Bucket: "uploads", Key: "shots/a.png"}
	first, err := h.ingestor.Ingest(context.Background(), src)
	require.NoError(t, err)
	second, err := h.ingestor.Ingest(context.Background(), src)
	require.NoError(t, err)

	assert.Equal(t, first.PointID, second.PointID)
	assert.Len(t, h.index.points, 1)
}

func TestIngestMissingSource(t *testing.T) {
	h := newHarness(t, testConfig())

	_, err := h.ingestor.Ingest(context.Background(), ObjectReference{Bucket: "uploads", Key: "nope.png"})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.Empty(t, h.embedder.calls)
	assert.Empty(t, h.index.points)
	assert.Equal(t, 1, h.metrics.requests["ingest/not_found"])
}

func TestIngestUndecodableImage(t *testing.T) {
	h := newHarness(t, testConfig())
	h.store.put("uploads", "notes.txt", []byte("definitely not an image"))

	_, err := h.ingestor.Ingest(context.Background(), ObjectReference{Bucket: "uploads", Key: "notes.txt"})
	assert.ErrorIs(t, err, apperr.ErrUnsupportedMedia)
	assert.Equal(t, 415, apperr.HTTPStatus(err))
	assert.NotContains(t, h.store.calls, "upload processed/notes.processed.jpg")
	assert.Empty(t, h.embedder.calls)
}

func TestIngestUpsertFailureKeepsProcessedObject(t *testing.T) {
	h := newHarness(t, testConfig())
	h.store.put("uploads", "shots/a.png", opaquePNG(t, 100, 50))
	h.index.upsertErr = apperr.Dependency("upsert failed (collection=screenshots)", errors.New("unavailable"))

	_, err := h.ingestor.Ingest(context.Background(), ObjectReference{Bucket: "uploads", Key: "shots/a.png"})
	assert.ErrorIs(t, err, apperr.ErrDependencyUnavailable)

	_, ok := h.store.object("processed", "shots/a.processed.jpg")
	assert.True(t, ok)
	assert.Equal(t, 1, h.metrics.requests["ingest/dependency_unavailable"])
}

func TestIngestRequiresReference(t *testing.T) {
	h := newHarness(t, testConfig())

	_, err := h.ingestor.Ingest(context.Background(), ObjectReference{Bucket: "uploads"})
	assert.ErrorIs(t, err, apperr.ErrValidation)
	assert.Empty(t, h.store.calls)
}

func TestSimilarRejectsForeignBucket(t *testing.T) {
	h := newHarness(t, testConfig())
	h.store.put("elsewhere", "q.png", opaquePNG(t, 10, 10))
	h.store.calls = nil

	_, err := h.searcher.Similar(context.Background(), SimilarRequest{
		Source: ObjectReference{Bucket: "elsewhere", Key: "q.png"},
	})
	assert.ErrorIs(t, err, apperr.ErrValidation)
	assert.Empty(t, h.store.calls)
	assert.Empty(t, h.embedder.calls)
	assert.Empty(t, h.index.searches)
	assert.Equal(t, 1, h.metrics.requests["query/validation"])
}

func TestSimilarRejectsNonPositiveCount(t *testing.T) {
	for _, count := range []int{0, -3} {
		t.Run(fmt.Sprint(count), func(t *testing.T) {
			h := newHarness(t, testConfig())
			h.store.put("uploads", "q.png", opaquePNG(t, 10, 10))

			_, err := h.searcher.Similar(context.Background(), SimilarRequest{
				Source: ObjectReference{Bucket: "uploads", Key: "q.png"},
				TopK:   intPtr(count),
			})
			assert.ErrorIs(t, err, apperr.ErrValidation)
			assert.Empty(t, h.embedder.calls)
			assert.Empty(t, h.index.searches)
		})
	}
}

func TestSimilarMissingSource(t *testing.T) {
	h := newHarness(t, testConfig())

	_, err := h.searcher.Similar(context.Background(), SimilarRequest{
		Source: ObjectReference{Bucket: "uploads", Key: "missing.png"},
	})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.Empty(t, h.embedder.calls)
	assert.Equal(t, []string{"verify uploads/missing.png"}, h.store.calls)
}

func unit(dim, i int) dedup.FlatVector {
	v := make(dedup.FlatVector, dim)
	v[i] = 1
	return v
}

func candidate(i int, vec dedup.FlatVector) dedup.Candidate {
	return dedup.Candidate{
		ID:     fmt.Sprintf("p%d", i),
		Score:  0.99 - float32(i)/100,
		Vector: vec,
		Payload: map[string]any{
			"source_bucket": "uploads",
			"source_key":    fmt.Sprintf("shots/%d.png", i),
		},
	}
}

func TestSimilarPrefetchesAndDropsNearDuplicates(t *testing.T) {
	h := newHarness(t, testConfig())
	h.store.put("uploads", "q.png", opaquePNG(t, 800, 400))

	// p1, p3 and p5 repeat earlier vectors.
	vectors := []dedup.FlatVector{
		unit(8, 0), unit(8, 0), unit(8, 1), unit(8, 0), unit(8, 2),
		unit(8, 1), unit(8, 3), unit(8, 4), unit(8, 5), unit(8, 6),
	}
	for i, v := range vectors {
		h.index.candidates = append(h.index.candidates, candidate(i, v))
	}

	results, err := h.searcher.Similar(context.Background(), SimilarRequest{
		Source: ObjectReference{Bucket: "uploads", Key: "q.png"},
		TopK:   intPtr(5),
	})
	require.NoError(t, err)

	require.Len(t, h.index.searches, 1)
	assert.Equal(t, 10, h.index.searches[0].Limit)
	assert.True(t, h.index.searches[0].WithVectors)

	require.Len(t, results, 5)
	var keys []string
	for i, r := range results {
		keys = append(keys, r.Object.Key)
		if i > 0 {
			assert.GreaterOrEqual(t, results[i-1].Score, r.Score)
		}
	}
	assert.Equal(t, []string{"shots/0.png", "shots/2.png", "shots/4.png", "shots/6.png", "shots/7.png"}, keys)

	_, stored := h.store.object("queries", "q.processed.jpg")
	assert.True(t, stored)
	assert.Equal(t, []ObjectReference{{Bucket: "queries", Key: "q.processed.jpg"}}, h.embedder.calls)
	// p8 and p9 are never visited once five are kept.
	assert.Equal(t, 3, h.metrics.dropped)
	assert.Equal(t, 1, h.metrics.requests["query/ok"])
}

func TestSimilarDistinctCandidatesRecordNoDrops(t *testing.T) {
	h := newHarness(t, testConfig())
	h.store.put("uploads", "q.png", opaquePNG(t, 20, 20))
	for i := 0; i < 10; i++ {
		h.index.candidates = append(h.index.candidates, candidate(i, unit(10, i)))
	}

	results, err := h.searcher.Similar(context.Background(), SimilarRequest{
		Source: ObjectReference{Bucket: "uploads", Key: "q.png"},
		TopK:   intPtr(5),
	})
	require.NoError(t, err)
	assert.Len(t, results, 5)
	assert.Equal(t, 0, h.metrics.dropped)
}

func TestSimilarUsesDefaultTopK(t *testing.T) {
	h := newHarness(t, testConfig())
	h.store.put("uploads", "q.png", opaquePNG(t, 20, 20))

	_, err := h.searcher.Similar(context.Background(), SimilarRequest{
		Source: ObjectReference{Bucket: "uploads", Key: "q.png"},
	})
	require.NoError(t, err)
	require.Len(t, h.index.searches, 1)
	assert.Equal(t, 10, h.index.searches[0].Limit)
}

func TestSimilarShortResultsAreNotWidened(t *testing.T) {
	h := newHarness(t, testConfig())
	h.store.put("uploads", "q.png", opaquePNG(t, 20, 20))
	for i := 0; i < 4; i++ {
		h.index.candidates = append(h.index.candidates, candidate(i, unit(4, 0)))
	}

	results, err := h.searcher.Similar(context.Background(), SimilarRequest{
		Source: ObjectReference{Bucket: "uploads", Key: "q.png"},
		TopK:   intPtr(3),
	})
	require.NoError(t, err)
	assert.Len(t, results, 1)
	assert.Len(t, h.index.searches, 1)
	assert.Equal(t, 3, h.metrics.dropped)
}

func TestSimilarResultMapping(t *testing.T) {
	h := newHarness(t, testConfig())
	h.store.put("uploads", "q.png", opaquePNG(t, 20, 20))
	h.index.candidates = []dedup.Candidate{
		{ID: "no-key", Score: 0.99, Payload: map[string]any{"title": "orphan"}},
		{ID: "titled", Score: 0.9, Payload: map[string]any{
			"source_bucket": "archive", "source_key": "old/b.png", "title": "Checkout page",
		}},
		{ID: "bare", Score: 0.8, Payload: map[string]any{"source_key": "c.png"}},
	}

	results, err := h.searcher.Similar(context.Background(), SimilarRequest{
		Source: ObjectReference{Bucket: "uploads", Key: "q.png"},
	})
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.InDelta(t, 0.9, results[0].Score, 1e-6)
	assert.Equal(t, "Checkout page", *results[0].Title)
	assert.Equal(t, "https://minio.local/archive/old/b.png?sig=x", *results[0].URL)
	assert.Equal(t, &ObjectReference{Bucket: "archive", Key: "old/b.png"}, results[0].Object)

	assert.Equal(t, "c.png", *results[1].Title)
	assert.Equal(t, "https://minio.local/uploads/c.png?sig=x", *results[1].URL)
	assert.Equal(t, &ObjectReference{Bucket: "uploads", Key: "c.png"}, results[1].Object)
}

func TestSimilarCDNTemplate(t *testing.T) {
	cfg := testConfig()
	cfg.CDNURLTemplate = "https://cdn.example.com/screens/{key}"
	h := newHarness(t, cfg)
	h.store.put("uploads", "q.png", opaquePNG(t, 20, 20))
	h.index.candidates = []dedup.Candidate{candidate(0, unit(2, 0))}

	results, err := h.searcher.Similar(context.Background(), SimilarRequest{
		Source: ObjectReference{Bucket: "uploads", Key: "q.png"},
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "https://cdn.example.com/screens/shots/0.png", *results[0].URL)
	assert.NotContains(t, h.store.calls, "presign uploads/shots/0.png")
}

func TestSimilarPresignFailureOmitsURL(t *testing.T) {
	h := newHarness(t, testConfig())
	h.store.put("uploads", "q.png", opaquePNG(t, 20, 20))
	h.store.presignFn = func(bucket, key string) (string, error) {
		return "", apperr.Dependency("presign failed", errors.New("boom"))
	}
	h.index.candidates = []dedup.Candidate{candidate(0, unit(2, 0))}

	results, err := h.searcher.Similar(context.Background(), SimilarRequest{
		Source: ObjectReference{Bucket: "uploads", Key: "q.png"},
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Nil(t, results[0].URL)
	assert.NotNil(t, results[0].Title)
}

func TestSimilarEmbeddingFailure(t *testing.T) {
	h := newHarness(t, testConfig())
	h.store.put("uploads", "q.png", opaquePNG(t, 20, 20))
	h.embedder.err = apperr.Dependency("failed to reach embedding service", errors.New("refused"))

	_, err := h.searcher.Similar(context.Background(), SimilarRequest{
		Source: ObjectReference{Bucket: "uploads", Key: "q.png"},
	})
	assert.ErrorIs(t, err, apperr.ErrDependencyUnavailable)
	assert.Empty(t, h.index.searches)
	assert.Equal(t, 1, h.metrics.requests["query/dependency_unavailable"])
}
