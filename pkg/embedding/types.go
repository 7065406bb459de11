package embedding

import "context"

// Embedding is the vector returned by the provider for one stored image.
// len(Vector) == Dimension is the provider's contract; it is not re-checked here.
type Embedding struct {
	Model     string    `json:"model"`
	Dimension int       `json:"dimension"`
	Vector    []float32 `json:"vector"`
}

type objectReference struct {
	Bucket    string `json:"bucket"`
	ObjectKey string `json:"object_key"`
}

type embedRequest struct {
	Source objectReference `json:"source"`
}

// Logger is the logging surface the client needs.
//
//go:generate mockgen -source=types.go -destination=mock_logger.go -package=embedding
type Logger interface {
	Info(msg string, err error, fields ...map[string]interface{})
	WarnWithContext(ctx context.Context, msg string, err error, fields ...map[string]interface{})
	ErrorWithContext(ctx context.Context, msg string, err error, fields ...map[string]interface{})
}

// Propagator supplies trace headers for outgoing requests. *tracer.Tracer
// satisfies it.
type Propagator interface {
	GetCarrier(ctx context.Context) map[string]string
}
