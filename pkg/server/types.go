package server

import (
	"context"

	"github.com/Aleph-Alpha/screensim/pkg/pipeline"
)

// Logger is the logging surface of the HTTP layer.
//
//go:generate mockgen -source=types.go -destination=mock_server.go -package=server
type Logger interface {
	Info(msg string, err error, fields ...map[string]interface{})
	Error(msg string, err error, fields ...map[string]interface{})
	InfoWithContext(ctx context.Context, msg string, err error, fields ...map[string]interface{})
	WarnWithContext(ctx context.Context, msg string, err error, fields ...map[string]interface{})
	ErrorWithContext(ctx context.Context, msg string, err error, fields ...map[string]interface{})
}

// Ingestor is satisfied by *pipeline.Ingestor.
type Ingestor interface {
	Ingest(ctx context.Context, src pipeline.ObjectReference) (pipeline.IngestResult, error)
}

// Searcher is satisfied by *pipeline.Searcher.
type Searcher interface {
	Similar(ctx context.Context, req pipeline.SimilarRequest) ([]pipeline.SimilarityResult, error)
}

type ingestRequest struct {
	Source pipeline.ObjectReference `json:"source"`
}

type ingestResponse struct {
	Processed          pipeline.ObjectReference `json:"processed"`
	EmbeddingModel     string                   `json:"embedding_model"`
	EmbeddingDimension int                      `json:"embedding_dimension"`
}

type similarRequest struct {
	Source pipeline.ObjectReference `json:"source"`
	TopK   *int                     `json:"top_k"`
}

type similarResponse struct {
	Results []pipeline.SimilarityResult `json:"results"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func pipelineRequest(req similarRequest) pipeline.SimilarRequest {
	return pipeline.SimilarRequest{Source: req.Source, TopK: req.TopK}
}
