package qdrant

// CollectionConfig describes the vector collection backing the index.
type CollectionConfig struct {
	Name       string
	VectorSize uint64
	Distance   string
}

// Point is a single vector with its payload. ID must be a UUID string.
type Point struct {
	ID      string
	Vector  []float32
	Payload map[string]any
}

// SearchRequest describes a nearest-neighbour query.
type SearchRequest struct {
	Vector      []float32
	Limit       int
	WithVectors bool
}

// Record is a point returned by Scroll, payload only.
type Record struct {
	ID      string
	Payload map[string]any
}

// ScrollRequest pages through the collection. Offset is the ID returned as
// next offset by the previous page, empty for the first page.
type ScrollRequest struct {
	Offset string
	Limit  uint32
	Fields []string
}
