package notification

import (
	"context"
	"sync"

	"go.uber.org/fx"
)

// SourceGroup is the fx value group transports add their Source to.
const SourceGroup = `group:"notification_sources"`

// FXModule provides the *Dispatcher and runs it against every Source in
// the "notification_sources" group for the lifetime of the application.
var FXModule = fx.Module("notification",
	fx.Provide(NewDispatcher),
	fx.Invoke(RegisterConsumers),
)

type ConsumerParams struct {
	fx.In

	Lifecycle  fx.Lifecycle
	Dispatcher *Dispatcher
	Sources    []Source `group:"notification_sources"`
}

// RegisterConsumers starts one dispatch loop per source. Stopping cancels
// consumption and waits for in-flight messages to be settled.
func RegisterConsumers(p ConsumerParams) {
	if len(p.Sources) == 0 {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	wg := &sync.WaitGroup{}

	p.Lifecycle.Append(fx.Hook{
		OnStart: func(context.Context) error {
			for _, src := range p.Sources {
				msgs := src.Consume(ctx, wg)
				wg.Add(1)
				go func() {
					defer wg.Done()
					p.Dispatcher.Run(context.WithoutCancel(ctx), msgs)
				}()
			}
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			done := make(chan struct{})
			go func() {
				wg.Wait()
				close(done)
			}()
			select {
			case <-done:
				return nil
			case <-stopCtx.Done():
				return stopCtx.Err()
			}
		},
	})
}
