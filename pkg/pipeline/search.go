package pipeline

import (
	"context"

	"github.com/Aleph-Alpha/screensim/pkg/apperr"
	"github.com/Aleph-Alpha/screensim/pkg/dedup"
	"github.com/Aleph-Alpha/screensim/pkg/embedding"
	"github.com/Aleph-Alpha/screensim/pkg/qdrant"
)

// Searcher finds indexed screenshots similar to an uploaded one.
type Searcher struct {
	cfg      Config
	store    ObjectStore
	embedder Embedder
	index    VectorIndex
	gate     *Gate
	logger   Logger
	observer
}

func NewSearcher(p Params) *Searcher {
	return &Searcher{
		cfg:      p.Config,
		store:    p.Store,
		embedder: p.Embedder,
		index:    p.Index,
		gate:     p.Gate,
		logger:   p.Logger,
		observer: newObserver(p.Metrics, p.Tracer),
	}
}

// Similar returns up to the requested number of near-duplicate-free
// matches for req.Source, best first. Requests for another bucket than the
// upload bucket and non-positive counts fail before any embedding or search
// call. Fewer results than requested are returned as they are.
func (s *Searcher) Similar(ctx context.Context, req SimilarRequest) (results []SimilarityResult, err error) {
	ctx, span := s.tracer.StartSpan(ctx, flowQuery)
	defer span.End()
	defer func() { s.finish(span, flowQuery, err) }()

	src := req.Source
	fields := map[string]interface{}{"bucket": src.Bucket, "object_key": src.Key}

	if src.Bucket != s.cfg.UploadBucket {
		s.logger.WarnWithContext(ctx, "similarity search for foreign bucket rejected", nil, fields)
		return nil, apperr.Validation("invalid bucket provided for similarity search")
	}
	if src.Key == "" {
		return nil, apperr.Validation("source object_key is required")
	}

	count := s.cfg.DefaultTopK
	if req.TopK != nil {
		count = *req.TopK
	}
	if count <= 0 {
		return nil, apperr.Validation("top_k must be positive, got %d", count)
	}

	err = s.stage(ctx, flowQuery, "verify_source", func(ctx context.Context) error {
		return s.store.VerifyExists(ctx, src.Bucket, src.Key)
	})
	if err != nil {
		return nil, err
	}

	err = s.stage(ctx, flowQuery, "ensure_buckets", func(ctx context.Context) error {
		return s.store.EnsureBucket(ctx, s.cfg.QueryBucket)
	})
	if err != nil {
		return nil, err
	}

	processed, _, err := storeProcessed(ctx, s.observer, flowQuery, s.store, s.gate, s.logger, src, s.cfg.QueryBucket)
	if err != nil {
		return nil, err
	}

	var emb embedding.Embedding
	err = s.stage(ctx, flowQuery, "embed", func(ctx context.Context) error {
		var err error
		emb, err = s.embedder.Embed(ctx, processed.Bucket, processed.Key)
		return err
	})
	if err != nil {
		return nil, err
	}

	window := PrefetchWindow(count, s.cfg.PrefetchMultiplier)
	var candidates []dedup.Candidate
	err = s.stage(ctx, flowQuery, "search", func(ctx context.Context) error {
		var err error
		candidates, err = s.index.Search(ctx, qdrant.SearchRequest{
			Vector:      emb.Vector,
			Limit:       window,
			WithVectors: true,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	kept, dropped := dedup.FilterCounted(candidates, count, s.cfg.DedupThreshold)
	s.metrics.AddDedupDropped(dropped)

	results = make([]SimilarityResult, 0, len(kept))
	for _, c := range kept {
		if r, ok := s.resultFor(ctx, c); ok {
			results = append(results, r)
		}
	}

	fields["top_k"] = count
	fields["prefetch_window"] = window
	fields["candidates"] = len(candidates)
	fields["results"] = len(results)
	s.logger.InfoWithContext(ctx, "similarity search completed", nil, fields)

	return results, nil
}

// resultFor maps a surviving candidate to a result. Candidates without a
// source key cannot be addressed and are skipped.
func (s *Searcher) resultFor(ctx context.Context, c dedup.Candidate) (SimilarityResult, bool) {
	sourceKey := payloadString(c.Payload, PayloadSourceKey)
	if sourceKey == "" {
		return SimilarityResult{}, false
	}

	title := payloadString(c.Payload, PayloadTitle)
	if title == "" {
		title = Title(sourceKey)
	}

	bucket := payloadString(c.Payload, PayloadSourceBucket)
	if bucket == "" {
		bucket = s.cfg.UploadBucket
	}

	result := SimilarityResult{
		Score:  float64(c.Score),
		Title:  &title,
		Object: &ObjectReference{Bucket: bucket, Key: sourceKey},
	}

	if s.cfg.CDNURLTemplate != "" {
		u := cdnURL(s.cfg.CDNURLTemplate, sourceKey)
		result.URL = &u
		return result, true
	}

	u, err := s.store.PresignGet(ctx, bucket, sourceKey)
	if err != nil {
		s.logger.WarnWithContext(ctx, "result returned without url", err, map[string]interface{}{
			"point_id":   c.ID,
			"bucket":     bucket,
			"object_key": sourceKey,
		})
		return result, true
	}
	result.URL = &u
	return result, true
}

func payloadString(payload map[string]any, key string) string {
	s, _ := payload[key].(string)
	return s
}
