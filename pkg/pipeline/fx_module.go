package pipeline

import "go.uber.org/fx"

// FXModule provides the preprocessing Gate, *Ingestor and *Searcher. The
// application supplies Config and the collaborator interfaces.
var FXModule = fx.Module("pipeline",
	fx.Provide(
		NewGateFromConfig,
		NewIngestor,
		NewSearcher,
	),
)

// Params groups the dependencies shared by Ingestor and Searcher.
type Params struct {
	fx.In

	Config   Config
	Store    ObjectStore
	Embedder Embedder
	Index    VectorIndex
	Gate     *Gate
	Logger   Logger
	Metrics  Recorder `optional:"true"`
	Tracer   Tracer   `optional:"true"`
}

func NewGateFromConfig(cfg Config, p Preprocessor) *Gate {
	return NewGate(p, cfg.PreprocessConcurrency)
}
