// Package rabbit consumes MinIO bucket notifications from RabbitMQ.
//
// MinIO's AMQP notification target publishes one JSON event document per
// object operation to an exchange. This package declares that exchange, a
// durable queue bound to it and, optionally, a dead letter exchange and
// queue that receive rejected deliveries. Deliveries are handed out as
// notification.Message values and must be settled by the caller.
//
// Core Features:
//   - Connection management with automatic reconnection
//   - Plain AMQP, server-authenticated TLS and mutual TLS
//   - Consumer that survives reconnects
//   - Dead letter routing for rejected notifications
//   - Integration with the logger package for structured logging
//
// Basic Usage:
//
//	client, err := rabbit.NewClient(rabbit.DefaultConfig(), log)
//	if err != nil {
//		return err
//	}
//
//	wg := &sync.WaitGroup{}
//	for msg := range client.Consume(ctx, wg) {
//		if err := handle(msg.Body()); err != nil {
//			_ = msg.NackMsg(false)
//			continue
//		}
//		_ = msg.AckMsg()
//	}
//
// FX Integration:
//
// FXModule provides *Rabbit, adds it to the notification.SourceGroup value
// group and runs the reconnect loop for the application lifetime:
//
//	app := fx.New(
//		logger.FXModule,
//		rabbit.FXModule,
//		notification.FXModule,
//	)
package rabbit
