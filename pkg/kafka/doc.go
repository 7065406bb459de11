// Package kafka consumes MinIO bucket notifications from a Kafka topic.
//
// MinIO's Kafka notification target publishes one JSON event document per
// object operation. KafkaClient reads them as a member of a consumer group
// and hands them out as notification.Message values. Offsets are committed
// only when a message is settled, so an unsettled message is delivered
// again after a restart.
//
// TLS and SASL (PLAIN, SCRAM-SHA-256, SCRAM-SHA-512) are supported through
// the reader's dialer.
package kafka
