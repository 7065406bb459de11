package kafka

import (
	"context"

	"go.uber.org/fx"

	"github.com/Aleph-Alpha/screensim/pkg/notification"
)

// FXModule provides *KafkaClient, contributes it to the bucket-notification
// sources and closes the reader on stop.
var FXModule = fx.Module("kafka",
	fx.Provide(
		NewClient,
		fx.Annotate(
			func(k *KafkaClient) notification.Source { return k },
			fx.ResultTags(notification.SourceGroup),
		),
	),
	fx.Invoke(RegisterKafkaLifecycle),
)

func RegisterKafkaLifecycle(lc fx.Lifecycle, client *KafkaClient) {
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return client.Close()
		},
	})
}
