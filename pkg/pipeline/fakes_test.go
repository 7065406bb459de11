package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Aleph-Alpha/screensim/pkg/apperr"
	"github.com/Aleph-Alpha/screensim/pkg/dedup"
	"github.com/Aleph-Alpha/screensim/pkg/embedding"
	"github.com/Aleph-Alpha/screensim/pkg/imageproc"
	"github.com/Aleph-Alpha/screensim/pkg/logger"
	"github.com/Aleph-Alpha/screensim/pkg/qdrant"
)

type storedObject struct {
	data        []byte
	contentType string
}

// memoryStore is an in-memory ObjectStore that records every call.
type memoryStore struct {
	mu        sync.Mutex
	objects   map[string]storedObject
	buckets   map[string]bool
	calls     []string
	presignFn func(bucket, key string) (string, error)
}

func newMemoryStore() *memoryStore {
	return &memoryStore{objects: map[string]storedObject{}, buckets: map[string]bool{}}
}

func (m *memoryStore) put(bucket, key string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.buckets[bucket] = true
	m.objects[bucket+"/"+key] = storedObject{data: data}
}

func (m *memoryStore) object(bucket, key string) (storedObject, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.objects[bucket+"/"+key]
	return o, ok
}

func (m *memoryStore) record(call string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, call)
}

func (m *memoryStore) EnsureBucket(_ context.Context, bucket string) error {
	m.record("ensure " + bucket)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.buckets[bucket] = true
	return nil
}

func (m *memoryStore) Fetch(_ context.Context, bucket, key string) ([]byte, error) {
	m.record("fetch " + bucket + "/" + key)
	o, ok := m.object(bucket, key)
	if !ok {
		return nil, apperr.NotFound("object not found", nil)
	}
	return o.data, nil
}

func (m *memoryStore) VerifyExists(_ context.Context, bucket, key string) error {
	m.record("verify " + bucket + "/" + key)
	if _, ok := m.object(bucket, key); !ok {
		return apperr.NotFound("object not found", nil)
	}
	return nil
}

func (m *memoryStore) Upload(_ context.Context, bucket, key string, data []byte, contentType string) error {
	m.record("upload " + bucket + "/" + key)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[bucket+"/"+key] = storedObject{data: data, contentType: contentType}
	return nil
}

func (m *memoryStore) PresignGet(_ context.Context, bucket, key string) (string, error) {
	m.record("presign " + bucket + "/" + key)
	if m.presignFn != nil {
		return m.presignFn(bucket, key)
	}
	return fmt.Sprintf("https://minio.local/%s/%s?sig=x", bucket, key), nil
}

// fakeEmbedder returns a fixed vector and records the references it saw.
type fakeEmbedder struct {
	mu     sync.Mutex
	vector []float32
	err    error
	calls  []ObjectReference
}

func (f *fakeEmbedder) Embed(_ context.Context, bucket, key string) (embedding.Embedding, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, ObjectReference{Bucket: bucket, Key: key})
	if f.err != nil {
		return embedding.Embedding{}, f.err
	}
	return embedding.Embedding{Model: "clip-test", Dimension: len(f.vector), Vector: f.vector}, nil
}

// fakeIndex keeps upserted points by id and answers searches with a fixed
// candidate list.
type fakeIndex struct {
	mu         sync.Mutex
	points     map[string]qdrant.Point
	candidates []dedup.Candidate
	searches   []qdrant.SearchRequest
	upsertErr  error
}

func newFakeIndex() *fakeIndex {
	return &fakeIndex{points: map[string]qdrant.Point{}}
}

func (f *fakeIndex) Upsert(_ context.Context, p qdrant.Point) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.points[p.ID] = p
	return nil
}

func (f *fakeIndex) Search(_ context.Context, req qdrant.SearchRequest) ([]dedup.Candidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searches = append(f.searches, req)
	if len(f.candidates) > req.Limit {
		return f.candidates[:req.Limit], nil
	}
	return f.candidates, nil
}

// spyRecorder counts recorded runs per flow and outcome.
type spyRecorder struct {
	mu       sync.Mutex
	requests map[string]int
	stages   []string
	dropped  int
}

func newSpyRecorder() *spyRecorder {
	return &spyRecorder{requests: map[string]int{}}
}

func (s *spyRecorder) ObserveRequest(flow, outcome string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests[flow+"/"+outcome]++
}

func (s *spyRecorder) ObserveStage(flow, stage string, _ time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stages = append(s.stages, flow+"."+stage)
}

func (s *spyRecorder) AddDedupDropped(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dropped += n
}

type harness struct {
	cfg      Config
	store    *memoryStore
	embedder *fakeEmbedder
	index    *fakeIndex
	metrics  *spyRecorder
	ingestor *Ingestor
	searcher *Searcher
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.UploadBucket = "uploads"
	cfg.ProcessedBucket = "processed"
	cfg.QueryBucket = "queries"
	return cfg
}

func newHarness(t *testing.T, cfg Config) *harness {
	t.Helper()
	require.NoError(t, cfg.Validate())

	h := &harness{
		cfg:      cfg,
		store:    newMemoryStore(),
		embedder: &fakeEmbedder{vector: []float32{1, 0, 0}},
		index:    newFakeIndex(),
		metrics:  newSpyRecorder(),
	}
	p := Params{
		Config:   cfg,
		Store:    h.store,
		Embedder: h.embedder,
		Index:    h.index,
		Gate:     NewGate(imageproc.NewPreprocessor(imageproc.Config{}), 2),
		Logger:   logger.NewFromZap(zap.NewNop(), false),
		Metrics:  h.metrics,
	}
	h.ingestor = NewIngestor(p)
	h.searcher = NewSearcher(p)
	return h
}

// opaquePNG encodes a w×h opaque RGB gradient.
func opaquePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func intPtr(v int) *int { return &v }
