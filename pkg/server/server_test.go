package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"
	"go.uber.org/mock/gomock"

	"github.com/Aleph-Alpha/screensim/pkg/apperr"
	"github.com/Aleph-Alpha/screensim/pkg/pipeline"
	"github.com/Aleph-Alpha/screensim/pkg/requestid"
)

type testServer struct {
	server   *Server
	ingestor *MockIngestor
	searcher *MockSearcher
}

func quietLogger(ctrl *gomock.Controller) *MockLogger {
	logger := NewMockLogger(ctrl)
	logger.EXPECT().Info(gomock.Any(), gomock.Any(), gomock.Any()).AnyTimes()
	logger.EXPECT().Error(gomock.Any(), gomock.Any(), gomock.Any()).AnyTimes()
	logger.EXPECT().InfoWithContext(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).AnyTimes()
	logger.EXPECT().WarnWithContext(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).AnyTimes()
	logger.EXPECT().ErrorWithContext(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).AnyTimes()
	return logger
}

func newTestServer(t *testing.T, checks ...Check) testServer {
	t.Helper()
	ctrl := gomock.NewController(t)
	logger := quietLogger(ctrl)
	ingestor := NewMockIngestor(ctrl)
	searcher := NewMockSearcher(ctrl)

	h := NewHandler(ingestor, searcher, NewReadiness(checks, time.Second), logger)
	return testServer{
		server:   NewServer(DefaultConfig(), h, logger, nil),
		ingestor: ingestor,
		searcher: searcher,
	}
}

func (ts testServer) do(t *testing.T, method, target, body string, headers ...string) (*http.Response, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	resp, err := ts.server.App.Test(req, -1)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var decoded map[string]any
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &decoded), string(raw))
	}
	return resp, decoded
}

func TestHealthGeneratesRequestID(t *testing.T) {
	ts := newTestServer(t)

	resp, body := ts.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
	assert.NotEmpty(t, resp.Header.Get(requestid.Header))
}

func TestIngestEchoesRequestIDAndShapesResponse(t *testing.T) {
	ts := newTestServer(t)

	ts.ingestor.EXPECT().
		Ingest(gomock.Any(), pipeline.ObjectReference{Bucket: "uploads", Key: "shots/a.png"}).
		DoAndReturn(func(ctx context.Context, _ pipeline.ObjectReference) (pipeline.IngestResult, error) {
			assert.Equal(t, "req-123", requestid.FromContext(ctx))
			return pipeline.IngestResult{
				Processed:          pipeline.ObjectReference{Bucket: "processed", Key: "shots/a.processed.jpg"},
				EmbeddingModel:     "clip",
				EmbeddingDimension: 512,
				PointID:            "p-1",
			}, nil
		})

	resp, body := ts.do(t, http.MethodPost, "/ingest",
		`{"source":{"bucket":"uploads","object_key":"shots/a.png"}}`,
		requestid.Header, "req-123")

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "req-123", resp.Header.Get(requestid.Header))
	assert.Equal(t, map[string]any{
		"processed":           map[string]any{"bucket": "processed", "object_key": "shots/a.processed.jpg"},
		"embedding_model":     "clip",
		"embedding_dimension": float64(512),
	}, body)
}

func TestIngestRejectsMalformedJSON(t *testing.T) {
	ts := newTestServer(t)

	resp, body := ts.do(t, http.MethodPost, "/ingest", `{"source":`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "cannot parse json", body["error"])
}

func TestErrorKindsMapToStatusCodes(t *testing.T) {
	cases := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{"validation", apperr.Validation("source bucket and object_key are required"), http.StatusBadRequest, "source bucket and object_key are required"},
		{"unsupported media", apperr.UnsupportedMedia("invalid image", errors.New("png: bad header")), http.StatusUnsupportedMediaType, "invalid image"},
		{"not found", apperr.NotFound("object not found", nil), http.StatusNotFound, "object not found"},
		{"not found with cause", apperr.NotFound("object not found", errors.New("NoSuchKey: uploads/private/a.png")), http.StatusNotFound, "object not found"},
		{"wrapped validation", apperr.Wrap(apperr.ErrValidation, "invalid request", errors.New("json: line 3")), http.StatusBadRequest, "invalid request"},
		{"dependency", apperr.Dependency("embedding service error", errors.New("dial tcp: refused")), http.StatusBadGateway, "embedding service error"},
		{"unknown", errors.New("nil map write"), http.StatusInternalServerError, "internal server error"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ts := newTestServer(t)
			ts.ingestor.EXPECT().Ingest(gomock.Any(), gomock.Any()).Return(pipeline.IngestResult{}, tc.err)

			resp, body := ts.do(t, http.MethodPost, "/ingest", `{"source":{"bucket":"b","object_key":"k"}}`)
			assert.Equal(t, tc.status, resp.StatusCode)
			assert.Equal(t, tc.message, body["error"])
		})
	}
}

func TestSimilarPassesTopKAndOmitsEmptyFields(t *testing.T) {
	ts := newTestServer(t)

	title := "a.png"
	ts.searcher.EXPECT().
		Similar(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, req pipeline.SimilarRequest) ([]pipeline.SimilarityResult, error) {
			require.NotNil(t, req.TopK)
			assert.Equal(t, 3, *req.TopK)
			assert.Equal(t, pipeline.ObjectReference{Bucket: "uploads", Key: "q.png"}, req.Source)
			return []pipeline.SimilarityResult{
				{Score: 0.9, Title: &title, Object: &pipeline.ObjectReference{Bucket: "uploads", Key: "a.png"}},
				{Score: 0.5},
			}, nil
		})

	resp, body := ts.do(t, http.MethodPost, "/similar", `{"source":{"bucket":"uploads","object_key":"q.png"},"top_k":3}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	results := body["results"].([]any)
	require.Len(t, results, 2)
	assert.Equal(t, map[string]any{
		"score":  0.9,
		"title":  "a.png",
		"object": map[string]any{"bucket": "uploads", "object_key": "a.png"},
	}, results[0])
	assert.Equal(t, map[string]any{"score": 0.5}, results[1])
}

func TestSimilarWithoutTopKUsesDefault(t *testing.T) {
	ts := newTestServer(t)

	ts.searcher.EXPECT().
		Similar(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, req pipeline.SimilarRequest) ([]pipeline.SimilarityResult, error) {
			assert.Nil(t, req.TopK)
			return nil, nil
		})

	resp, body := ts.do(t, http.MethodPost, "/similar", `{"source":{"bucket":"uploads","object_key":"q.png"}}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []any{}, body["results"])
}

func TestReadinessRunsChecksOnce(t *testing.T) {
	calls := 0
	ts := newTestServer(t,
		Check{Name: "qdrant", Run: func(context.Context) error { calls++; return nil }},
		Check{Name: "postgres", Run: func(context.Context) error { return errors.New("connection refused") }},
	)

	for range 2 {
		resp, body := ts.do(t, http.MethodGet, "/health/ready", "")
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
		assert.Equal(t, "unavailable", body["status"])
	}
	assert.Equal(t, 1, calls)
}

func TestReadinessOK(t *testing.T) {
	ts := newTestServer(t, Check{Name: "qdrant", Run: func(context.Context) error { return nil }})

	resp, body := ts.do(t, http.MethodGet, "/health/ready", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
}

func TestUnknownRouteIsNotFound(t *testing.T) {
	ts := newTestServer(t)

	resp, _ := ts.do(t, http.MethodGet, "/nope", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestFXModuleServesAndCollectsChecks(t *testing.T) {
	ctrl := gomock.NewController(t)
	logger := quietLogger(ctrl)

	cfg := DefaultConfig()
	cfg.Address = "127.0.0.1:0"

	var readiness *Readiness
	app := fxtest.New(t,
		FXModule,
		fx.Supply(cfg),
		fx.Provide(
			func() Logger { return logger },
			func() Ingestor { return NewMockIngestor(ctrl) },
			func() Searcher { return NewMockSearcher(ctrl) },
			fx.Annotate(func() Check {
				return Check{Name: "always", Run: func(context.Context) error { return nil }}
			}, fx.ResultTags(CheckGroup)),
		),
		fx.Populate(&readiness),
	)
	app.RequireStart()
	require.Len(t, readiness.checks, 1)
	assert.NoError(t, readiness.Check(context.Background()))
	app.RequireStop()
}

type carrierKey struct{}

type recordingPropagator struct{}

func (recordingPropagator) SetCarrierOnContext(ctx context.Context, carrier map[string]string) context.Context {
	return context.WithValue(ctx, carrierKey{}, carrier)
}

func TestTraceHeadersReachHandlers(t *testing.T) {
	ctrl := gomock.NewController(t)
	logger := quietLogger(ctrl)
	ingestor := NewMockIngestor(ctrl)
	h := NewHandler(ingestor, NewMockSearcher(ctrl), NewReadiness(nil, time.Second), logger)
	srv := NewServer(DefaultConfig(), h, logger, recordingPropagator{})

	const traceparent = "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01"
	ingestor.EXPECT().
		Ingest(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, _ pipeline.ObjectReference) (pipeline.IngestResult, error) {
			carrier, _ := ctx.Value(carrierKey{}).(map[string]string)
			assert.Equal(t, map[string]string{"traceparent": traceparent}, carrier)
			assert.NotEmpty(t, requestid.FromContext(ctx))
			return pipeline.IngestResult{}, nil
		})

	req := httptest.NewRequest(http.MethodPost, "/ingest",
		strings.NewReader(`{"source":{"bucket":"uploads","object_key":"a.png"}}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("traceparent", traceparent)

	resp, err := srv.App.Test(req, -1)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
