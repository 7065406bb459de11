package postgres

import (
	"context"

	"go.uber.org/fx"
)

// FXModule provides *Postgres and closes the pool on stop.
var FXModule = fx.Module("postgres",
	fx.Provide(
		NewPostgres,
	),
	fx.Invoke(RegisterPostgresLifecycle),
)

func RegisterPostgresLifecycle(lifecycle fx.Lifecycle, postgres *Postgres) {
	lifecycle.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			postgres.logger.Info("closing postgres connection pool...", nil, nil)
			return postgres.Close()
		},
	})
}
