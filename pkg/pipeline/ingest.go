package pipeline

import (
	"context"

	"github.com/Aleph-Alpha/screensim/pkg/apperr"
	"github.com/Aleph-Alpha/screensim/pkg/embedding"
	"github.com/Aleph-Alpha/screensim/pkg/imageproc"
	"github.com/Aleph-Alpha/screensim/pkg/qdrant"
)

// Payload keys stored with every point.
const (
	PayloadSourceBucket    = "source_bucket"
	PayloadSourceKey       = "source_key"
	PayloadProcessedBucket = "processed_bucket"
	PayloadProcessedKey    = "processed_key"
	PayloadTitle           = "title"
)

// Ingestor indexes one screenshot: fetch, normalize, store the normalized
// copy, embed it and upsert the vector.
type Ingestor struct {
	cfg      Config
	store    ObjectStore
	embedder Embedder
	index    VectorIndex
	gate     *Gate
	logger   Logger
	observer
}

func NewIngestor(p Params) *Ingestor {
	return &Ingestor{
		cfg:      p.Config,
		store:    p.Store,
		embedder: p.Embedder,
		index:    p.Index,
		gate:     p.Gate,
		logger:   p.Logger,
		observer: newObserver(p.Metrics, p.Tracer),
	}
}

// Ingest indexes src. Retrying after a failure is safe: the point id only
// depends on the processed key. A processed object uploaded before a
// failing upsert is left in place.
func (i *Ingestor) Ingest(ctx context.Context, src ObjectReference) (res IngestResult, err error) {
	ctx, span := i.tracer.StartSpan(ctx, flowIngest)
	defer span.End()
	defer func() { i.finish(span, flowIngest, err) }()

	if src.Bucket == "" || src.Key == "" {
		return IngestResult{}, apperr.Validation("source bucket and object_key are required")
	}
	fields := map[string]interface{}{"bucket": src.Bucket, "object_key": src.Key}

	err = i.stage(ctx, flowIngest, "ensure_buckets", func(ctx context.Context) error {
		if err := i.store.EnsureBucket(ctx, src.Bucket); err != nil {
			return err
		}
		return i.store.EnsureBucket(ctx, i.cfg.ProcessedBucket)
	})
	if err != nil {
		return IngestResult{}, err
	}

	processed, img, err := storeProcessed(ctx, i.observer, flowIngest, i.store, i.gate, i.logger, src, i.cfg.ProcessedBucket)
	if err != nil {
		return IngestResult{}, err
	}

	var emb embedding.Embedding
	err = i.stage(ctx, flowIngest, "embed", func(ctx context.Context) error {
		var err error
		emb, err = i.embedder.Embed(ctx, processed.Bucket, processed.Key)
		return err
	})
	if err != nil {
		return IngestResult{}, err
	}

	point := qdrant.Point{
		ID:     PointID(processed.Key, src.Key),
		Vector: emb.Vector,
		Payload: map[string]any{
			PayloadSourceBucket:    src.Bucket,
			PayloadSourceKey:       src.Key,
			PayloadProcessedBucket: processed.Bucket,
			PayloadProcessedKey:    processed.Key,
			PayloadTitle:           Title(src.Key),
		},
	}
	err = i.stage(ctx, flowIngest, "upsert", func(ctx context.Context) error {
		return i.index.Upsert(ctx, point)
	})
	if err != nil {
		return IngestResult{}, err
	}

	fields["point_id"] = point.ID
	fields["processed_key"] = processed.Key
	fields["width"] = img.Width
	fields["height"] = img.Height
	fields["embedding_model"] = emb.Model
	i.logger.InfoWithContext(ctx, "screenshot ingested", nil, fields)

	return IngestResult{
		Processed:          processed,
		EmbeddingModel:     emb.Model,
		EmbeddingDimension: emb.Dimension,
		PointID:            point.ID,
	}, nil
}

// storeProcessed fetches src, normalizes it through gate and uploads the
// result to bucket under the derived processed key.
func storeProcessed(ctx context.Context, o observer, flow string, store ObjectStore, gate *Gate, logger Logger,
	src ObjectReference, bucket string) (ObjectReference, imageproc.ProcessedImage, error) {
	var data []byte
	err := o.stage(ctx, flow, "fetch", func(ctx context.Context) error {
		var err error
		data, err = store.Fetch(ctx, src.Bucket, src.Key)
		return err
	})
	if err != nil {
		return ObjectReference{}, imageproc.ProcessedImage{}, err
	}

	var img imageproc.ProcessedImage
	err = o.stage(ctx, flow, "preprocess", func(ctx context.Context) error {
		var err error
		img, err = gate.Process(ctx, data)
		return err
	})
	if err != nil {
		if apperr.IsValidation(err) {
			logger.WarnWithContext(ctx, "invalid image content during preprocessing", err, map[string]interface{}{
				"bucket":     src.Bucket,
				"object_key": src.Key,
			})
		}
		return ObjectReference{}, imageproc.ProcessedImage{}, err
	}

	processed := ObjectReference{Bucket: bucket, Key: ProcessedKey(src.Key, img.Extension)}
	err = o.stage(ctx, flow, "upload", func(ctx context.Context) error {
		return store.Upload(ctx, processed.Bucket, processed.Key, img.Data, img.ContentType)
	})
	if err != nil {
		return ObjectReference{}, imageproc.ProcessedImage{}, err
	}
	return processed, img, nil
}
