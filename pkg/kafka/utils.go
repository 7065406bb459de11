package kafka

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/Aleph-Alpha/screensim/pkg/notification"
)

const commitTimeout = 10 * time.Second

// reader is the part of *kafka.Reader the consumer uses.
type reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// ConsumerMessage is one fetched record. Settling it commits its offset.
type ConsumerMessage struct {
	msg    kafka.Message
	client *KafkaClient
}

func (m *ConsumerMessage) AckMsg() error {
	return m.commit()
}

// NackMsg settles a failed record. Kafka cannot reject a single record, so
// without requeue the offset is committed and the record is skipped. With
// requeue the offset is left uncommitted and the record is delivered again
// after the next rebalance or restart.
func (m *ConsumerMessage) NackMsg(requeue bool) error {
	if requeue {
		return nil
	}
	m.client.logger.Warn("skipping failed kafka notification", nil, map[string]interface{}{
		"topic":     m.msg.Topic,
		"partition": m.msg.Partition,
		"offset":    m.msg.Offset,
	})
	return m.commit()
}

func (m *ConsumerMessage) Body() []byte {
	return m.msg.Value
}

func (m *ConsumerMessage) commit() error {
	ctx, cancel := context.WithTimeout(context.Background(), commitTimeout)
	defer cancel()
	return m.client.reader.CommitMessages(ctx, m.msg)
}

// Consume fetches records until ctx is cancelled, then closes the returned
// channel. Fetch errors other than cancellation are logged and retried
// after a short pause.
func (k *KafkaClient) Consume(ctx context.Context, wg *sync.WaitGroup) <-chan notification.Message {
	outChan := make(chan notification.Message)

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(outChan)

		for {
			msg, err := k.reader.FetchMessage(ctx)
			if err != nil {
				if ctx.Err() != nil || errors.Is(err, context.Canceled) {
					k.logger.Info("consumer is shutting down due to context cancellation", ctx.Err(), nil)
					return
				}
				k.logger.Error("error in fetching message from kafka", err, map[string]interface{}{
					"topic": k.cfg.Topic,
				})
				select {
				case <-time.After(time.Second):
					continue
				case <-ctx.Done():
					return
				}
			}

			k.logger.Debug("message consumed from kafka", nil, map[string]interface{}{
				"topic":     msg.Topic,
				"partition": msg.Partition,
				"offset":    msg.Offset,
			})

			select {
			case outChan <- &ConsumerMessage{msg: msg, client: k}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return outChan
}
