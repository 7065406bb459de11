package rabbit

import (
	"context"
	"sync"

	"go.uber.org/fx"

	"github.com/Aleph-Alpha/screensim/pkg/notification"
)

// FXModule provides *Rabbit, contributes it to the bucket-notification
// sources and keeps its connection alive while the application runs.
var FXModule = fx.Module("rabbit",
	fx.Provide(
		NewClient,
		fx.Annotate(
			func(rb *Rabbit) notification.Source { return rb },
			fx.ResultTags(notification.SourceGroup),
		),
	),
	fx.Invoke(RegisterRabbitLifecycle),
)

func RegisterRabbitLifecycle(lc fx.Lifecycle, client *Rabbit) {
	wg := &sync.WaitGroup{}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			wg.Add(1)
			go func() {
				defer wg.Done()
				client.RetryConnection()
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			client.gracefulShutdown()
			wg.Wait()
			return nil
		},
	})
}

// gracefulShutdown stops the reconnect loop and consumers, then closes the
// channel and connection. It is safe to call more than once.
func (rb *Rabbit) gracefulShutdown() {
	rb.shutdownOnce.Do(func() {
		close(rb.shutdownSignal)
	})

	rb.mu.Lock()
	defer rb.mu.Unlock()

	rb.logger.Info("closing rabbit channel", nil, nil)

	if rb.Channel != nil && !rb.Channel.IsClosed() {
		if err := rb.Channel.Close(); err != nil {
			rb.logger.Error("error in closing rabbit channel", err, nil)
		}
	}
	if rb.conn != nil && !rb.conn.IsClosed() {
		if err := rb.conn.Close(); err != nil {
			rb.logger.Error("error in closing rabbit connection", err, nil)
		}
	}
}
