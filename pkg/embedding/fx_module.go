package embedding

import (
	"context"

	"go.uber.org/fx"
)

// FXModule wires the embedding client into Fx.
//
// It provides:
//   - *Client                (NewClientFromParams)
//   - Lifecycle hook         (RegisterEmbeddingLifecycle)
//
// A Config and a Logger must be supplied by the application; a Propagator
// is optional.
var FXModule = fx.Module(
	"embedding",

	fx.Provide(
		NewClientFromParams, // -> *Client
	),

	fx.Invoke(RegisterEmbeddingLifecycle),
)

// ClientParams groups the dependencies of NewClientFromParams.
type ClientParams struct {
	fx.In

	Config     Config
	Logger     Logger
	Propagator Propagator `optional:"true"`
}

func NewClientFromParams(p ClientParams) (*Client, error) {
	return NewClient(p.Config, p.Logger, p.Propagator)
}

// -------------------------------------------------------
// Lifecycle hook
// -------------------------------------------------------

func RegisterEmbeddingLifecycle(lc fx.Lifecycle, c *Client) {
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return c.Close()
		},
	})
}
