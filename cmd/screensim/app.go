package main

import (
	"context"
	"fmt"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/Aleph-Alpha/screensim/pkg/config"
	"github.com/Aleph-Alpha/screensim/pkg/embedding"
	"github.com/Aleph-Alpha/screensim/pkg/imageproc"
	"github.com/Aleph-Alpha/screensim/pkg/kafka"
	"github.com/Aleph-Alpha/screensim/pkg/logger"
	"github.com/Aleph-Alpha/screensim/pkg/metrics"
	"github.com/Aleph-Alpha/screensim/pkg/minio"
	"github.com/Aleph-Alpha/screensim/pkg/notification"
	"github.com/Aleph-Alpha/screensim/pkg/pipeline"
	"github.com/Aleph-Alpha/screensim/pkg/postgres"
	"github.com/Aleph-Alpha/screensim/pkg/qdrant"
	"github.com/Aleph-Alpha/screensim/pkg/rabbit"
	"github.com/Aleph-Alpha/screensim/pkg/server"
	"github.com/Aleph-Alpha/screensim/pkg/tracer"
)

// coreOptions wires the adapters and the ingest/query pipelines shared by
// every command.
func coreOptions(c config.Config) []fx.Option {
	qdrantCfg := c.Qdrant

	return []fx.Option{
		fx.Supply(
			c.Logger,
			c.Minio,
			&qdrantCfg,
			c.Embedding,
			c.Preprocess,
			c.Pipeline,
			c.Metrics,
			c.Tracer,
		),

		logger.FXModule,
		tracer.FXModule,
		metrics.FXModule,
		minio.FXModule,
		qdrant.FXModule,
		embedding.FXModule,
		pipeline.FXModule,

		fx.Provide(
			func(l *logger.Logger) tracer.Logger { return l },
			func(l *logger.Logger) metrics.Logger { return l },
			func(l *logger.Logger) minio.Logger { return l },
			func(l *logger.Logger) qdrant.Logger { return l },
			func(l *logger.Logger) embedding.Logger { return l },
			func(l *logger.Logger) pipeline.Logger { return l },

			imageproc.NewPreprocessor,
			func(p *imageproc.Preprocessor) pipeline.Preprocessor { return p },
			func(m *minio.Minio) pipeline.ObjectStore { return m },
			func(e *embedding.Client) pipeline.Embedder { return e },
			func(q *qdrant.QdrantClient) pipeline.VectorIndex { return q },
			func(m *metrics.Metrics) pipeline.Recorder { return m },
			func(t *tracer.Tracer) pipeline.Tracer { return t },
			func(t *tracer.Tracer) embedding.Propagator { return t },
		),
	}
}

// serveOptions adds the HTTP transport, readiness checks and the optional
// bucket-notification consumers on top of coreOptions.
func serveOptions(c config.Config) []fx.Option {
	opts := append(coreOptions(c),
		fx.WithLogger(func(l *logger.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: l.Zap}
		}),
		fx.Supply(c.Server),
		server.FXModule,
		fx.Provide(
			func(l *logger.Logger) server.Logger { return l },
			func(t *tracer.Tracer) server.Propagator { return t },
			func(i *pipeline.Ingestor) server.Ingestor { return i },
			func(s *pipeline.Searcher) server.Searcher { return s },
			fx.Annotate(qdrantCheck, fx.ResultTags(server.CheckGroup)),
			fx.Annotate(minioCheck, fx.ResultTags(server.CheckGroup)),
		),
	)

	if c.Postgres.Configured() {
		opts = append(opts,
			fx.Supply(c.Postgres),
			postgres.FXModule,
			fx.Provide(
				func(l *logger.Logger) postgres.Logger { return l },
				fx.Annotate(postgresCheck, fx.ResultTags(server.CheckGroup)),
			),
		)
	}

	if c.Notification.Enabled() {
		opts = append(opts,
			fx.Supply(c.Notification),
			notification.FXModule,
			fx.Provide(
				func(l *logger.Logger) notification.Logger { return l },
				func(i *pipeline.Ingestor) notification.Ingestor { return i },
			),
		)
	}
	if c.Notification.AMQPEnabled {
		opts = append(opts,
			fx.Supply(c.Rabbit),
			rabbit.FXModule,
			fx.Provide(func(l *logger.Logger) rabbit.Logger { return l }),
		)
	}
	if c.Notification.KafkaEnabled {
		opts = append(opts,
			fx.Supply(c.Kafka),
			kafka.FXModule,
			fx.Provide(func(l *logger.Logger) kafka.Logger { return l }),
		)
	}

	return opts
}

// batchConfig turns off the listeners a one-shot command has no use for.
func batchConfig(c config.Config) config.Config {
	c.Metrics.Enabled = false
	return c
}

func qdrantCheck(q *qdrant.QdrantClient) server.Check {
	return server.Check{Name: "qdrant", Run: q.Ping}
}

func minioCheck(m *minio.Minio) server.Check {
	return server.Check{Name: "minio", Run: m.Ping}
}

func postgresCheck(p *postgres.Postgres) server.Check {
	return server.Check{Name: "postgres", Run: p.Ping}
}

// runBatch starts an application built from coreOptions plus extra, runs fn
// and stops the application again.
func runBatch(ctx context.Context, c config.Config, fn func(context.Context) error, extra ...fx.Option) error {
	opts := append(coreOptions(batchConfig(c)), fx.NopLogger)
	app := fx.New(append(opts, extra...)...)

	if err := app.Start(ctx); err != nil {
		return fmt.Errorf("failed to start: %w", err)
	}

	runErr := fn(ctx)

	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), app.StopTimeout())
	defer cancel()
	if err := app.Stop(stopCtx); err != nil && runErr == nil {
		runErr = fmt.Errorf("failed to stop: %w", err)
	}
	return runErr
}
