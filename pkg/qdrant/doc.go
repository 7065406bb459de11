// Package qdrant is the vector index adapter for screensim, built on the
// official Qdrant Go client.
//
// Core Features:
//
//   - Managed client lifecycle with Fx integration
//   - Collection bootstrap: created when missing, validated when present;
//     any size or distance mismatch is fatal (apperr.ErrConfigurationMismatch)
//   - Synchronous point upsert (Wait=true)
//   - Nearest-neighbour search with payload and optional vectors, returned as
//     dedup.Candidate values ready for near-duplicate filtering
//   - Payload scrolling and patching for batch maintenance jobs
//
// Basic Usage:
//
//	client, err := qdrant.NewQdrantClient(qdrant.QdrantParams{
//		Config: &qdrant.Config{
//			Endpoint:   "localhost",
//			Port:       6334,
//			Collection: "screenshots",
//			VectorSize: 1024,
//			Distance:   "cosine",
//		},
//		Logger: log,
//	})
//	if err != nil {
//		return err
//	}
//	if err := client.EnsureCollection(ctx, cfg.CollectionConfig()); err != nil {
//		return err
//	}
//
//	hits, err := client.Search(ctx, qdrant.SearchRequest{
//		Vector:      vec,
//		Limit:       10,
//		WithVectors: true,
//	})
//
// All errors other than configuration mismatches and invalid input are
// wrapped as apperr.ErrDependencyUnavailable and mention the collection.
package qdrant
