package minio

import (
	"context"
	"sync"

	"go.uber.org/fx"
)

var FXModule = fx.Module("minio",
	fx.Provide(
		NewClient,
	),
	fx.Invoke(RegisterLifecycle),
)

func RegisterLifecycle(lc fx.Lifecycle, mi *Minio, logger Logger) {

	if mi == nil {
		logger.Fatal("MinIO client is nil, cannot register lifecycle hooks", nil, nil)
		return
	}

	wg := &sync.WaitGroup{}
	monitorCtx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			wg.Add(1)
			go func() {
				defer wg.Done()
				mi.monitorConnection(monitorCtx)
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("closing minio client...", nil, nil)
			close(mi.shutdownSignal)
			cancel()

			wg.Wait()
			return nil
		},
	})
}
