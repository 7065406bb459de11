package rabbit

import (
	"context"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/Aleph-Alpha/screensim/pkg/notification"
)

// ConsumerMessage wraps one AMQP delivery.
type ConsumerMessage struct {
	delivery amqp.Delivery
}

func (m *ConsumerMessage) AckMsg() error {
	return m.delivery.Ack(false)
}

// NackMsg rejects the delivery. Without requeue it is dropped, or routed to
// the dead letter queue when one is configured.
func (m *ConsumerMessage) NackMsg(requeue bool) error {
	return m.delivery.Nack(false, requeue)
}

func (m *ConsumerMessage) Body() []byte {
	return m.delivery.Body
}

// Consume delivers messages from the configured queue until ctx is cancelled
// or the client shuts down. Deliveries must be settled by the caller. The
// consumer is re-established on the current channel after a reconnect.
func (rb *Rabbit) Consume(ctx context.Context, wg *sync.WaitGroup) <-chan notification.Message {
	outChan := make(chan notification.Message, rb.cfg.Channel.PrefetchCount)
	queueName := rb.cfg.Channel.QueueName

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(outChan)

		for {
			select {
			case <-rb.shutdownSignal:
				rb.logger.Info("consumer is shutting down due to shutdown signal", nil, nil)
				return
			case <-ctx.Done():
				rb.logger.Info("consumer is shutting down due to context cancellation", ctx.Err(), nil)
				return
			default:
			}

			rb.mu.RLock()
			msgs, err := rb.Channel.Consume(
				queueName,
				"",    // consumer
				false, // autoAck
				false, // exclusive
				false, // noLocal
				false, // noWait
				nil,   // args
			)
			rb.mu.RUnlock()

			if err != nil {
				rb.logger.Error("error in establishing consumer for rabbit", err, map[string]interface{}{
					"queue_name": queueName,
				})
				select {
				case <-time.After(100 * time.Millisecond):
				case <-ctx.Done():
				case <-rb.shutdownSignal:
				}
				continue
			}

			if !rb.forward(ctx, msgs, outChan) {
				return
			}
		}
	}()
	return outChan
}

// forward copies deliveries to out. It returns false when consumption should
// stop and true when the delivery channel closed and must be re-opened.
func (rb *Rabbit) forward(ctx context.Context, msgs <-chan amqp.Delivery, out chan<- notification.Message) bool {
	for {
		select {
		case <-ctx.Done():
			rb.logger.Info("consumer is shutting down due to context cancellation", ctx.Err(), nil)
			return false
		case <-rb.shutdownSignal:
			rb.logger.Info("consumer is shutting down due to shutdown signal", nil, nil)
			return false
		case msg, ok := <-msgs:
			if !ok {
				return true
			}
			rb.logger.Debug("message consumed from rabbit", nil, map[string]interface{}{
				"queue_name":   rb.cfg.Channel.QueueName,
				"delivery_tag": msg.DeliveryTag,
			})
			select {
			case out <- &ConsumerMessage{delivery: msg}:
			case <-ctx.Done():
				return false
			case <-rb.shutdownSignal:
				return false
			}
		}
	}
}
