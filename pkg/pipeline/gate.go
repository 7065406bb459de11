package pipeline

import (
	"context"
	"runtime"

	"golang.org/x/sync/semaphore"

	"github.com/Aleph-Alpha/screensim/pkg/imageproc"
)

// Gate bounds how many images are decoded and resized at once. One Gate is
// shared by all pipelines of a process.
type Gate struct {
	sem          *semaphore.Weighted
	preprocessor Preprocessor
}

// NewGate allows up to limit concurrent Process calls; limit <= 0 means
// GOMAXPROCS.
func NewGate(p Preprocessor, limit int) *Gate {
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}
	return &Gate{sem: semaphore.NewWeighted(int64(limit)), preprocessor: p}
}

// Process waits for a slot, then runs the preprocessor. It returns ctx's
// error if the context ends while waiting.
func (g *Gate) Process(ctx context.Context, data []byte) (imageproc.ProcessedImage, error) {
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return imageproc.ProcessedImage{}, err
	}
	defer g.sem.Release(1)
	return g.preprocessor.Process(data)
}
