package notification

import (
	"context"
	"errors"
	"sync"

	"github.com/Aleph-Alpha/screensim/pkg/pipeline"
	"github.com/Aleph-Alpha/screensim/pkg/requestid"
)

// Logger is the logging surface used by the dispatcher.
//
//go:generate mockgen -source=dispatcher.go -destination=mock_dispatcher.go -package=notification
type Logger interface {
	InfoWithContext(ctx context.Context, msg string, err error, fields ...map[string]interface{})
	WarnWithContext(ctx context.Context, msg string, err error, fields ...map[string]interface{})
	ErrorWithContext(ctx context.Context, msg string, err error, fields ...map[string]interface{})
}

// Ingestor indexes one object. *pipeline.Ingestor satisfies it.
type Ingestor interface {
	Ingest(ctx context.Context, src pipeline.ObjectReference) (pipeline.IngestResult, error)
}

// Message is a delivery handed out by a transport consumer.
type Message interface {
	AckMsg() error
	NackMsg(requeue bool) error
	Body() []byte
}

// Source produces messages until ctx is cancelled, then closes the channel.
type Source interface {
	Consume(ctx context.Context, wg *sync.WaitGroup) <-chan Message
}

// Dispatcher turns bucket notifications into ingest calls.
type Dispatcher struct {
	bucket   string
	ingestor Ingestor
	logger   Logger
}

func NewDispatcher(cfg Config, ingestor Ingestor, logger Logger) *Dispatcher {
	return &Dispatcher{bucket: cfg.Bucket, ingestor: ingestor, logger: logger}
}

// Handle ingests every object created in the configured bucket. Each record
// gets its own correlation id. All records are attempted; the returned error
// joins the individual failures.
func (d *Dispatcher) Handle(ctx context.Context, body []byte) error {
	refs, err := Decode(body, d.bucket)
	if err != nil {
		d.logger.WarnWithContext(ctx, "dropping undecodable bucket notification", err, nil)
		return err
	}

	var errs []error
	for _, ref := range refs {
		rctx := requestid.NewContext(ctx, requestid.Resolve(""))
		fields := map[string]interface{}{"bucket": ref.Bucket, "object_key": ref.Key}

		res, err := d.ingestor.Ingest(rctx, ref)
		if err != nil {
			d.logger.ErrorWithContext(rctx, "notification ingest failed", err, fields)
			errs = append(errs, err)
			continue
		}
		fields["point_id"] = res.PointID
		d.logger.InfoWithContext(rctx, "notification ingest succeeded", nil, fields)
	}
	return errors.Join(errs...)
}

// Run handles messages from msgs until the channel closes. A message is
// acknowledged when handling succeeds and rejected without requeue
// otherwise.
func (d *Dispatcher) Run(ctx context.Context, msgs <-chan Message) {
	for msg := range msgs {
		if err := d.Handle(ctx, msg.Body()); err != nil {
			if nackErr := msg.NackMsg(false); nackErr != nil {
				d.logger.ErrorWithContext(ctx, "failed to reject notification", nackErr, nil)
			}
			continue
		}
		if err := msg.AckMsg(); err != nil {
			d.logger.ErrorWithContext(ctx, "failed to acknowledge notification", err, nil)
		}
	}
}
