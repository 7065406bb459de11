package qdrant

import (
	"context"
	"sync"

	"go.uber.org/fx"
)

// FXModule provides *QdrantClient, ensures the configured collection exists
// with the configured parameters on start and closes the client on stop.
// A parameter mismatch on an existing collection aborts startup.
//
// Dependencies required by this module:
// - a *qdrant.Config and a qdrant.Logger in the container.
var FXModule = fx.Module("qdrant",
	fx.Provide(
		NewQdrantClient,
	),
	fx.Invoke(RegisterQdrantLifecycle),
)

// QdrantParams defines dependencies needed to construct the Qdrant client.
type QdrantParams struct {
	fx.In
	Config *Config
	Logger Logger
}

// RegisterQdrantLifecycle bootstraps the collection and handles shutdown.
func RegisterQdrantLifecycle(lc fx.Lifecycle, client *QdrantClient) {
	var once sync.Once

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return client.EnsureCollection(ctx, client.cfg.CollectionConfig())
		},
		OnStop: func(ctx context.Context) error {
			var err error
			once.Do(func() {
				err = client.Close()
			})
			return err
		},
	})
}
