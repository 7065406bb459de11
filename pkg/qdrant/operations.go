package qdrant

import (
	"context"
	"fmt"
	"slices"

	qdrant "github.com/qdrant/go-client/qdrant"

	"github.com/Aleph-Alpha/screensim/pkg/apperr"
	"github.com/Aleph-Alpha/screensim/pkg/dedup"
)

// EnsureCollection ──────────────────────────────────────────────────────────────
// EnsureCollection creates the collection when it is missing and otherwise
// validates that its vector size and distance match cfg exactly. A mismatch
// returns an apperr.ErrConfigurationMismatch error; callers treat it as fatal.
func (c *QdrantClient) EnsureCollection(ctx context.Context, cfg CollectionConfig) error {
	if cfg.Name == "" {
		return apperr.Wrap(apperr.ErrConfigurationMismatch, "collection name cannot be empty", nil)
	}
	distance, err := parseDistance(cfg.Distance)
	if err != nil {
		return apperr.Wrap(apperr.ErrConfigurationMismatch, fmt.Sprintf("collection '%s'", cfg.Name), err)
	}
	if cfg.VectorSize == 0 {
		return apperr.Wrap(apperr.ErrConfigurationMismatch, fmt.Sprintf("collection '%s': vector size must be positive", cfg.Name), nil)
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	collections, err := c.api.ListCollections(ctx)
	if err != nil {
		return c.fail(ctx, "failed to list collections", err)
	}

	if !slices.Contains(collections, cfg.Name) {
		c.logger.Info("[Qdrant] Collection not found, creating it", nil, map[string]interface{}{
			"collection":  cfg.Name,
			"vector_size": cfg.VectorSize,
			"distance":    distance.String(),
		})

		err := c.api.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: cfg.Name,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     cfg.VectorSize,
				Distance: distance,
			}),
		})
		if err == nil {
			c.logger.Info("[Qdrant] Created collection", nil, map[string]interface{}{"collection": cfg.Name})
			return nil
		}
		// another instance may have created it concurrently; validate below
		c.logger.Warn("[Qdrant] Create collection failed, validating existing one", err, map[string]interface{}{
			"collection": cfg.Name,
		})
	}

	info, err := c.api.GetCollectionInfo(ctx, cfg.Name)
	if err != nil {
		return c.fail(ctx, "failed to get collection info", err)
	}

	size, actualDistance := extractVectorDetails(info)
	if size != cfg.VectorSize || actualDistance != distance {
		return apperr.Wrap(apperr.ErrConfigurationMismatch, fmt.Sprintf(
			"[Qdrant] collection '%s' has size=%d distance=%s, configured size=%d distance=%s",
			cfg.Name, size, actualDistance.String(), cfg.VectorSize, distance.String()), nil)
	}

	c.logger.Info("[Qdrant] Collection already exists", nil, map[string]interface{}{"collection": cfg.Name})
	return nil
}

// Upsert ──────────────────────────────────────────────────────────────
// Upsert inserts or replaces a single point and waits until the write is
// applied, so a returned nil means the point is searchable.
func (c *QdrantClient) Upsert(ctx context.Context, point Point) error {
	payload, err := qdrant.TryValueMap(point.Payload)
	if err != nil {
		return apperr.Wrap(apperr.ErrValidation, fmt.Sprintf("[Qdrant] invalid payload for point %s", point.ID), err)
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	wait := true
	_, err = c.api.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: c.cfg.Collection,
		Wait:           &wait,
		Points: []*qdrant.PointStruct{{
			Id:      qdrant.NewID(point.ID),
			Vectors: qdrant.NewVectors(point.Vector...),
			Payload: payload,
		}},
	})
	if err != nil {
		return c.fail(ctx, "upsert failed", err, map[string]interface{}{"point_id": point.ID})
	}
	return nil
}

// Search ──────────────────────────────────────────────────────────────
// Search returns up to req.Limit nearest points ordered by descending score,
// with payload and, when requested, vectors.
func (c *QdrantClient) Search(ctx context.Context, req SearchRequest) ([]dedup.Candidate, error) {
	if len(req.Vector) == 0 {
		return nil, apperr.Validation("[Qdrant] search vector cannot be empty")
	}
	if req.Limit <= 0 {
		return nil, apperr.Validation("[Qdrant] search limit must be greater than 0")
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	limit := uint64(req.Limit)
	resp, err := c.api.Query(ctx, &qdrant.QueryPoints{
		CollectionName: c.cfg.Collection,
		Query:          qdrant.NewQuery(req.Vector...),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    qdrant.NewWithVectors(req.WithVectors),
	})
	if err != nil {
		return nil, c.fail(ctx, "search failed", err, map[string]interface{}{"limit": req.Limit})
	}

	candidates, err := parseScoredPoints(resp)
	if err != nil {
		return nil, c.fail(ctx, "failed to parse search results", err)
	}
	return candidates, nil
}

// Scroll ──────────────────────────────────────────────────────────────
// Scroll returns one page of points with their payload (restricted to
// req.Fields when set) and the offset of the next page, empty when done.
func (c *QdrantClient) Scroll(ctx context.Context, req ScrollRequest) ([]Record, string, error) {
	limit := req.Limit
	if limit == 0 {
		limit = 256
	}

	withPayload := qdrant.NewWithPayload(true)
	if len(req.Fields) > 0 {
		withPayload = qdrant.NewWithPayloadInclude(req.Fields...)
	}

	scroll := &qdrant.ScrollPoints{
		CollectionName: c.cfg.Collection,
		Limit:          &limit,
		WithPayload:    withPayload,
		WithVectors:    qdrant.NewWithVectors(false),
	}
	if req.Offset != "" {
		scroll.Offset = qdrant.NewID(req.Offset)
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	points, next, err := c.api.ScrollAndOffset(ctx, scroll)
	if err != nil {
		return nil, "", c.fail(ctx, "scroll failed", err)
	}

	records := make([]Record, 0, len(points))
	for _, p := range points {
		id, err := extractPointID(p.GetId())
		if err != nil {
			return nil, "", c.fail(ctx, "failed to parse scrolled point", err)
		}
		records = append(records, Record{ID: id, Payload: convertPayload(p.GetPayload())})
	}

	nextOffset := ""
	if next != nil {
		if nextOffset, err = extractPointID(next); err != nil {
			return nil, "", c.fail(ctx, "failed to parse next page offset", err)
		}
	}
	return records, nextOffset, nil
}

// SetPayload ──────────────────────────────────────────────────────────────
// SetPayload merges payload into the existing payload of the given points.
func (c *QdrantClient) SetPayload(ctx context.Context, ids []string, payload map[string]any) error {
	if len(ids) == 0 {
		return nil
	}

	values, err := qdrant.TryValueMap(payload)
	if err != nil {
		return apperr.Wrap(apperr.ErrValidation, "[Qdrant] invalid payload", err)
	}

	pointIDs := make([]*qdrant.PointId, 0, len(ids))
	for _, id := range ids {
		pointIDs = append(pointIDs, qdrant.NewID(id))
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	wait := true
	_, err = c.api.SetPayload(ctx, &qdrant.SetPayloadPoints{
		CollectionName: c.cfg.Collection,
		Wait:           &wait,
		Payload:        values,
		PointsSelector: qdrant.NewPointsSelector(pointIDs...),
	})
	if err != nil {
		return c.fail(ctx, "set payload failed", err, map[string]interface{}{"points": len(ids)})
	}
	return nil
}

// Count returns the exact number of points in the collection.
func (c *QdrantClient) Count(ctx context.Context) (uint64, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	exact := true
	n, err := c.api.Count(ctx, &qdrant.CountPoints{
		CollectionName: c.cfg.Collection,
		Exact:          &exact,
	})
	if err != nil {
		return 0, c.fail(ctx, "count failed", err)
	}
	return n, nil
}

// fail logs err with the collection name and wraps it as a dependency error.
func (c *QdrantClient) fail(ctx context.Context, msg string, err error, fields ...map[string]interface{}) error {
	logFields := map[string]interface{}{"collection": c.cfg.Collection}
	for _, f := range fields {
		for k, v := range f {
			logFields[k] = v
		}
	}
	c.logger.ErrorWithContext(ctx, "[Qdrant] "+msg, err, logFields)
	return apperr.Dependency(fmt.Sprintf("[Qdrant] %s (collection=%s)", msg, c.cfg.Collection), err)
}
